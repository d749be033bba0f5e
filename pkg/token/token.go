// Package token is the fungible-token collaborator consumed by the
// exchange: TransferFrom pulls deposits in under standard allowance
// semantics, Transfer pays withdrawals out. ERC20 is an in-memory
// implementation with the same semantics, used by the devnet node and
// tests in place of a real on-chain token.
package token

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Transfer failures leave the token ledger untouched; the exchange
// treats any failure as if the call never happened.
var (
	ErrInsufficientFunds     = errors.New("token: insufficient funds")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
)

// Token is the transfer surface the exchange consumes, bound to the
// exchange's own custody address as spender/payer.
type Token interface {
	// TransferFrom moves amount from owner to the custody address,
	// spending the owner's allowance. Used on deposit.
	TransferFrom(owner, to common.Address, amount uint64) error
	// Transfer moves amount from the custody address to the recipient.
	// Used on withdraw.
	Transfer(to common.Address, amount uint64) error
}

type allowanceKey struct {
	Owner   common.Address
	Spender common.Address
}

// ERC20 is a minimal allowance-checked token ledger.
type ERC20 struct {
	mu         sync.Mutex
	balances   map[common.Address]uint64
	allowances map[allowanceKey]uint64

	// failNext forces the next transfer to fail (test hook for
	// withdraw-rollback behavior).
	failNext bool
}

func NewERC20() *ERC20 {
	return &ERC20{
		balances:   make(map[common.Address]uint64),
		allowances: make(map[allowanceKey]uint64),
	}
}

// Mint credits freshly created tokens to an address.
func (t *ERC20) Mint(to common.Address, amount uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[to] += amount
}

// Approve sets spender's allowance over owner's funds.
func (t *ERC20) Approve(owner, spender common.Address, amount uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[allowanceKey{owner, spender}] = amount
}

// Allowance returns spender's remaining allowance over owner's funds.
func (t *ERC20) Allowance(owner, spender common.Address) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowances[allowanceKey{owner, spender}]
}

// BalanceOf returns the token balance of an address.
func (t *ERC20) BalanceOf(addr common.Address) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[addr]
}

// FailNextTransfer makes the next transfer fail without state change.
func (t *ERC20) FailNextTransfer() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failNext = true
}

func (t *ERC20) transfer(from, to common.Address, amount uint64) error {
	if t.failNext {
		t.failNext = false
		return fmt.Errorf("transfer %d from %s: injected failure", amount, from.Hex())
	}
	if t.balances[from] < amount {
		return fmt.Errorf("transfer %d from %s, have %d: %w", amount, from.Hex(), t.balances[from], ErrInsufficientFunds)
	}
	t.balances[from] -= amount
	t.balances[to] += amount
	return nil
}

// Bound binds the ledger to a spender/payer address, yielding the Token
// view the exchange consumes.
func (t *ERC20) Bound(custody common.Address) Token {
	return &bound{token: t, custody: custody}
}

type bound struct {
	token   *ERC20
	custody common.Address
}

func (b *bound) TransferFrom(owner, to common.Address, amount uint64) error {
	b.token.mu.Lock()
	defer b.token.mu.Unlock()

	k := allowanceKey{owner, b.custody}
	if b.token.allowances[k] < amount {
		return fmt.Errorf("transfer_from %d of %s: %w", amount, owner.Hex(), ErrInsufficientAllowance)
	}
	if err := b.token.transfer(owner, to, amount); err != nil {
		return err
	}
	b.token.allowances[k] -= amount
	return nil
}

func (b *bound) Transfer(to common.Address, amount uint64) error {
	b.token.mu.Lock()
	defer b.token.mu.Unlock()
	return b.token.transfer(b.custody, to, amount)
}
