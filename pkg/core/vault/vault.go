// Package vault tracks per-account, per-asset available and locked
// balances. It is the only place value moves between users (Settle) and
// the anchor for the solvency invariant: total liability per asset never
// exceeds what was deposited minus what was withdrawn.
package vault

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uhyunpark/minidex/pkg/core"
)

type balance struct {
	Available uint64
	Locked    uint64
}

type key struct {
	Addr  common.Address
	Asset core.Asset
}

// Vault holds the balance ledger. Not internally synchronized: the
// exchange facade serializes all mutations under one mutex.
type Vault struct {
	accounts map[key]*balance
}

func New() *Vault {
	return &Vault{accounts: make(map[key]*balance)}
}

func (v *Vault) get(addr common.Address, asset core.Asset) *balance {
	k := key{addr, asset}
	b, ok := v.accounts[k]
	if !ok {
		b = &balance{}
		v.accounts[k] = b
	}
	return b
}

// Balance returns the available (withdrawable) balance.
func (v *Vault) Balance(addr common.Address, asset core.Asset) uint64 {
	if b, ok := v.accounts[key{addr, asset}]; ok {
		return b.Available
	}
	return 0
}

// Locked returns the balance reserved against open orders.
func (v *Vault) Locked(addr common.Address, asset core.Asset) uint64 {
	if b, ok := v.accounts[key{addr, asset}]; ok {
		return b.Locked
	}
	return 0
}

// Deposit credits available balance. The caller must have completed the
// external transfer-in before crediting.
func (v *Vault) Deposit(addr common.Address, asset core.Asset, amount uint64) {
	b := v.get(addr, asset)
	b.Available += amount
}

// Withdraw debits available balance. The external transfer-out happens
// after; on transfer failure the caller rolls back with Deposit.
func (v *Vault) Withdraw(addr common.Address, asset core.Asset, amount uint64) error {
	b := v.get(addr, asset)
	if amount > b.Available {
		return fmt.Errorf("withdraw %d %s, have %d: %w", amount, asset, b.Available, core.ErrInsufficientBalance)
	}
	b.Available -= amount
	return nil
}

// Lock moves amount from available to locked. Called when an order is
// placed, before any book mutation.
func (v *Vault) Lock(addr common.Address, asset core.Asset, amount uint64) error {
	b := v.get(addr, asset)
	if amount > b.Available {
		return fmt.Errorf("lock %d %s, have %d: %w", amount, asset, b.Available, core.ErrInsufficientBalance)
	}
	b.Available -= amount
	b.Locked += amount
	return nil
}

// Unlock moves amount from locked back to available. An unlock exceeding
// the locked balance is an engine bug, never a user error: panic rather
// than mask a solvency defect.
func (v *Vault) Unlock(addr common.Address, asset core.Asset, amount uint64) {
	b := v.get(addr, asset)
	if amount > b.Locked {
		panic(fmt.Sprintf("vault: unlock %d %s exceeds locked %d for %s", amount, asset, b.Locked, addr.Hex()))
	}
	b.Locked -= amount
	b.Available += amount
}

// Settle executes one fill: the buyer's locked quote pays the seller and
// the seller's locked base pays the buyer. All deltas are validated
// before any is applied; a shortfall panics (engine bug). Self-trades
// (buyer == seller) degenerate to moving locked back to available on
// both legs, which keeps every invariant intact.
func (v *Vault) Settle(buyer, seller common.Address, baseAmount, quoteAmount uint64) {
	buyerQuote := v.get(buyer, core.Quote)
	sellerBase := v.get(seller, core.Base)
	if quoteAmount > buyerQuote.Locked {
		panic(fmt.Sprintf("vault: settle quote %d exceeds locked %d for buyer %s", quoteAmount, buyerQuote.Locked, buyer.Hex()))
	}
	if baseAmount > sellerBase.Locked {
		panic(fmt.Sprintf("vault: settle base %d exceeds locked %d for seller %s", baseAmount, sellerBase.Locked, seller.Hex()))
	}

	buyerQuote.Locked -= quoteAmount
	v.get(seller, core.Quote).Available += quoteAmount
	sellerBase.Locked -= baseAmount
	v.get(buyer, core.Base).Available += baseAmount
}

// TotalLiability sums available+locked across all accounts for one asset.
// Used by solvency checks.
func (v *Vault) TotalLiability(asset core.Asset) uint64 {
	var total uint64
	for k, b := range v.accounts {
		if k.Asset == asset {
			total += b.Available + b.Locked
		}
	}
	return total
}
