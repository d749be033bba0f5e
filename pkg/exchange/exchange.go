// Package exchange is the public operation surface of the dex: deposit,
// withdraw, place_limit_order, cancel_order, and balance queries. It is
// the only component that talks to the token collaborator, the event
// sink, and the journal. Every operation runs to completion under one
// mutex before the next is accepted, so the vault and book are mutated
// transactionally.
package exchange

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/minidex/pkg/core"
	"github.com/uhyunpark/minidex/pkg/core/orderbook"
	"github.com/uhyunpark/minidex/pkg/core/vault"
	"github.com/uhyunpark/minidex/pkg/storage"
	"github.com/uhyunpark/minidex/pkg/token"
)

// Config wires the exchange's collaborators. Base and Quote are the two
// token contracts of the pair; Custody is the exchange's own address on
// both. Events, Journal, and Logger default to no-ops.
type Config struct {
	Base    token.Token
	Quote   token.Token
	Custody common.Address
	Events  EventSink
	Journal storage.Journal
	Logger  *zap.SugaredLogger
}

type Exchange struct {
	mu sync.Mutex

	vault *vault.Vault
	book  *orderbook.Book

	base    token.Token
	quote   token.Token
	custody common.Address

	events  EventSink
	journal storage.Journal
	log     *zap.SugaredLogger
}

// New builds an exchange and replays the journal to rebuild vault and
// book state from the last run.
func New(cfg Config) (*Exchange, error) {
	if cfg.Base == nil || cfg.Quote == nil {
		return nil, fmt.Errorf("exchange: base and quote tokens are required")
	}
	if cfg.Events == nil {
		cfg.Events = NopSink{}
	}
	if cfg.Journal == nil {
		cfg.Journal = storage.NewNopJournal()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}

	ex := &Exchange{
		vault:   vault.New(),
		book:    orderbook.New(),
		base:    cfg.Base,
		quote:   cfg.Quote,
		custody: cfg.Custody,
		events:  cfg.Events,
		journal: cfg.Journal,
		log:     cfg.Logger,
	}

	if err := ex.journal.Replay(ex.replay); err != nil {
		return nil, fmt.Errorf("exchange: journal replay: %w", err)
	}
	return ex, nil
}

// SetEvents replaces the event sink. Used when the sink (the API
// websocket hub) can only be built after the exchange exists.
func (ex *Exchange) SetEvents(sink EventSink) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if sink == nil {
		sink = NopSink{}
	}
	ex.events = sink
}

func (ex *Exchange) tokenFor(asset core.Asset) token.Token {
	if asset == core.Base {
		return ex.base
	}
	return ex.quote
}

// lockAsset is the asset reserved for an order: quote notional for buys,
// base quantity for sells.
func lockAsset(side core.Side) core.Asset {
	if side == core.Buy {
		return core.Quote
	}
	return core.Base
}

func lockAmount(side core.Side, price, qty uint64) (uint64, error) {
	if side == core.Sell {
		return qty, nil
	}
	notional, ok := core.Notional(price, qty)
	if !ok {
		return 0, fmt.Errorf("notional %d*%d overflows: %w", price, qty, core.ErrInvalidQuantity)
	}
	return notional, nil
}

// Deposit pulls amount of asset from the caller via transfer_from and
// credits the caller's available balance. The vault is credited only
// after the transfer-in succeeds.
func (ex *Exchange) Deposit(caller common.Address, asset core.Asset, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("deposit amount cannot be zero: %w", core.ErrInvalidQuantity)
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()

	if err := ex.tokenFor(asset).TransferFrom(caller, ex.custody, amount); err != nil {
		if errors.Is(err, token.ErrInsufficientAllowance) {
			return fmt.Errorf("deposit %d %s: %w", amount, asset, core.ErrInsufficientAllowance)
		}
		return fmt.Errorf("deposit %d %s: transfer in: %w", amount, asset, err)
	}
	ex.vault.Deposit(caller, asset, amount)

	ex.journal.Append(storage.Record{Op: storage.OpDeposit, Account: caller, Asset: int8(asset), Amount: amount})
	ex.events.Deposit(caller, asset, amount)
	ex.log.Infow("deposit", "account", caller.Hex(), "asset", asset.String(), "amount", amount)
	return nil
}

// Withdraw debits the caller's available balance and transfers the
// tokens out. If the transfer fails the debit is rolled back; no partial
// state change is observable.
func (ex *Exchange) Withdraw(caller common.Address, asset core.Asset, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("withdraw amount cannot be zero: %w", core.ErrInvalidQuantity)
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()

	if err := ex.vault.Withdraw(caller, asset, amount); err != nil {
		return err
	}
	if err := ex.tokenFor(asset).Transfer(caller, amount); err != nil {
		ex.vault.Deposit(caller, asset, amount) // roll back the debit
		return fmt.Errorf("withdraw %d %s: transfer out: %w", amount, asset, err)
	}

	ex.journal.Append(storage.Record{Op: storage.OpWithdraw, Account: caller, Asset: int8(asset), Amount: amount})
	ex.events.Withdraw(caller, asset, amount)
	ex.log.Infow("withdraw", "account", caller.Hex(), "asset", asset.String(), "amount", amount)
	return nil
}

// PlaceLimitOrder locks the caller's collateral, matches against the
// opposite side, and rests any remainder. Returns the order id (assigned
// even when the order fills completely) and the fills produced.
func (ex *Exchange) PlaceLimitOrder(caller common.Address, side core.Side, price, qty uint64) (uint64, []core.Fill, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	id, fills, err := ex.place(caller, side, price, qty)
	if err != nil {
		return 0, nil, err
	}

	ex.journal.Append(storage.Record{Op: storage.OpPlace, Account: caller, Side: int8(side), Price: price, Qty: qty})
	ex.events.NewOrder(id, caller, side, price, qty)
	for _, f := range fills {
		ex.events.OrderFilled(f)
	}
	ex.log.Infow("order_placed",
		"order_id", id, "account", caller.Hex(), "side", side.String(),
		"price", price, "qty", qty, "fills", len(fills))
	return id, fills, nil
}

// place is the journal-replayable body of PlaceLimitOrder: it mutates
// vault and book but produces no external side effects.
func (ex *Exchange) place(caller common.Address, side core.Side, price, qty uint64) (uint64, []core.Fill, error) {
	if side != core.Buy && side != core.Sell {
		return 0, nil, fmt.Errorf("unknown side %d: %w", side, core.ErrInvalidOrder)
	}
	if price == 0 {
		return 0, nil, fmt.Errorf("order price cannot be zero: %w", core.ErrInvalidPrice)
	}
	if qty == 0 {
		return 0, nil, fmt.Errorf("order quantity cannot be zero: %w", core.ErrInvalidQuantity)
	}

	required, err := lockAmount(side, price, qty)
	if err != nil {
		return 0, nil, err
	}
	if err := ex.vault.Lock(caller, lockAsset(side), required); err != nil {
		return 0, nil, err // no book mutation on lock failure
	}

	order := ex.book.NewOrder(caller, side, price, qty, required)
	fills := ex.book.Match(order, ex.vault)
	return order.ID, fills, nil
}

// CancelOrder removes the caller's resting order and unlocks its
// remaining collateral.
func (ex *Exchange) CancelOrder(caller common.Address, orderID uint64) error {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	refunded, err := ex.cancel(caller, orderID)
	if err != nil {
		return err
	}

	ex.journal.Append(storage.Record{Op: storage.OpCancel, Account: caller, OrderID: orderID})
	ex.events.OrderCancelled(orderID, refunded)
	ex.log.Infow("order_cancelled", "order_id", orderID, "account", caller.Hex(), "refunded", refunded)
	return nil
}

func (ex *Exchange) cancel(caller common.Address, orderID uint64) (uint64, error) {
	o, ok := ex.book.Get(orderID)
	if !ok {
		return 0, fmt.Errorf("order %d not found: %w", orderID, core.ErrInvalidOrder)
	}
	if o.Owner != caller {
		return 0, fmt.Errorf("order %d not owned by caller: %w", orderID, core.ErrInvalidOrder)
	}

	ex.book.Remove(orderID)
	refunded := o.Locked
	if refunded > 0 {
		ex.vault.Unlock(caller, lockAsset(o.Side), refunded)
	}
	return refunded, nil
}

// replay re-applies one journal record. Records exist only for
// operations that committed, so replay failures indicate a corrupt
// journal.
func (ex *Exchange) replay(r storage.Record) error {
	switch r.Op {
	case storage.OpDeposit:
		ex.vault.Deposit(r.Account, core.Asset(r.Asset), r.Amount)
		return nil
	case storage.OpWithdraw:
		return ex.vault.Withdraw(r.Account, core.Asset(r.Asset), r.Amount)
	case storage.OpPlace:
		_, _, err := ex.place(r.Account, core.Side(r.Side), r.Price, r.Qty)
		return err
	case storage.OpCancel:
		_, err := ex.cancel(r.Account, r.OrderID)
		return err
	default:
		return fmt.Errorf("unknown journal op %q", r.Op)
	}
}

// BalanceOf returns the caller's available balance for an asset.
func (ex *Exchange) BalanceOf(caller common.Address, asset core.Asset) uint64 {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.vault.Balance(caller, asset)
}

// LockedOf returns the caller's balance reserved against open orders.
func (ex *Exchange) LockedOf(caller common.Address, asset core.Asset) uint64 {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.vault.Locked(caller, asset)
}

// Order returns a copy of a resting order.
func (ex *Exchange) Order(orderID uint64) (core.Order, bool) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	o, ok := ex.book.Get(orderID)
	if !ok {
		return core.Order{}, false
	}
	return *o, true
}

// Depth returns the aggregated bid and ask price levels.
func (ex *Exchange) Depth() ([]orderbook.PriceLevel, []orderbook.PriceLevel) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.book.BidLevels(), ex.book.AskLevels()
}

// LastPrice returns the most recent fill price, 0 if no trades yet.
func (ex *Exchange) LastPrice() uint64 {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.book.LastPrice()
}
