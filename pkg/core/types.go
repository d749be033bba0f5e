// Package core defines the shared types of the exchange: order sides,
// vault assets, orders, fills, and the user-facing error taxonomy.
package core

import (
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side { return -s }

// Asset identifies one leg of the trading pair inside the vault.
type Asset int8

const (
	Base Asset = iota
	Quote
)

func (a Asset) String() string {
	switch a {
	case Base:
		return "base"
	case Quote:
		return "quote"
	default:
		return "unknown"
	}
}

// Order is a resting limit order. The book exclusively owns Order records;
// only the matching engine decrements Remaining and Locked.
type Order struct {
	ID        uint64         // monotonic, unique, assigned at creation, never reused
	Owner     common.Address // account that owns this order
	Side      Side
	Price     uint64 // quote per base, > 0
	Quantity  uint64 // original size, > 0
	Remaining uint64 // <= Quantity, 0 means fully filled
	Locked    uint64 // collateral still locked for this order (Quote for buys, Base for sells)
}

// Remaining orders are kept in FIFO queues per price level, so the id also
// serves as the time-priority sequence: ids are assigned in placement order.

// Fill records one maker/taker execution. Price is always the maker's
// resting price.
type Fill struct {
	MakerID uint64
	TakerID uint64
	Maker   common.Address
	Taker   common.Address
	Price   uint64
	Qty     uint64
}

// Notional computes price*qty, reporting overflow. Placement rejects
// overflowing orders up front so per-fill notionals (smaller qty, price
// no higher than the locked price) can never overflow later.
func Notional(price, qty uint64) (uint64, bool) {
	hi, lo := bits.Mul64(price, qty)
	return lo, hi == 0
}
