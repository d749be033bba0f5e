// Package orderbook keeps the two resting sides of one trading pair and
// runs the matching engine against them. Priority is price first (highest
// bid / lowest ask), then placement order: ids are assigned from a
// monotonic counter and each price level is a FIFO queue, so walking a
// level front-to-back is exactly time priority.
package orderbook

import (
	"container/heap"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uhyunpark/minidex/pkg/core"
)

type PriceLevel struct {
	Price uint64
	Qty   uint64 // total remaining qty at this price level
}

// Book holds the resting orders of one pair. Not internally synchronized:
// the exchange facade serializes all mutations under one mutex.
type Book struct {
	// Heap-based best price tracking (O(1) peek)
	bidHeap *MaxPriceHeap
	askHeap *MinPriceHeap

	// Price level queues (FIFO matching at each price)
	bids map[uint64][]*core.Order // price -> FIFO slice
	asks map[uint64][]*core.Order

	// Order index for O(1) lookup and cancellation
	byID map[uint64]*core.Order

	nextID    uint64 // next order id/sequence, starts at 1, never reused
	lastPrice uint64 // most recent fill price
}

func New() *Book {
	bidHeap := &MaxPriceHeap{}
	askHeap := &MinPriceHeap{}
	heap.Init(bidHeap)
	heap.Init(askHeap)

	return &Book{
		bidHeap: bidHeap,
		askHeap: askHeap,
		bids:    make(map[uint64][]*core.Order),
		asks:    make(map[uint64][]*core.Order),
		byID:    make(map[uint64]*core.Order),
		nextID:  1,
	}
}

// NewOrder allocates the next order id. The id is consumed even when the
// order fills completely and never rests, so ids are never reused. The
// caller must already hold locked collateral in the vault.
func (b *Book) NewOrder(owner common.Address, side core.Side, price, qty, locked uint64) *core.Order {
	o := &core.Order{
		ID:        b.nextID,
		Owner:     owner,
		Side:      side,
		Price:     price,
		Quantity:  qty,
		Remaining: qty,
		Locked:    locked,
	}
	b.nextID++
	return o
}

// Get returns the resting order with the given id.
func (b *Book) Get(id uint64) (*core.Order, bool) {
	o, ok := b.byID[id]
	return o, ok
}

// BestBid returns the highest resting bid price (O(1) with heap).
func (b *Book) BestBid() (uint64, bool) {
	if b.bidHeap.Len() == 0 {
		return 0, false
	}
	return b.bidHeap.Peek(), true
}

// BestAsk returns the lowest resting ask price (O(1) with heap).
func (b *Book) BestAsk() (uint64, bool) {
	if b.askHeap.Len() == 0 {
		return 0, false
	}
	return b.askHeap.Peek(), true
}

// LastPrice returns the price of the most recent fill, 0 if none.
func (b *Book) LastPrice() uint64 { return b.lastPrice }

func (b *Book) insert(o *core.Order) {
	levels := b.bids
	if o.Side == core.Sell {
		levels = b.asks
	}
	if len(levels[o.Price]) == 0 {
		// New price level - add to heap
		if o.Side == core.Buy {
			heap.Push(b.bidHeap, o.Price)
		} else {
			heap.Push(b.askHeap, o.Price)
		}
	}
	levels[o.Price] = append(levels[o.Price], o)
	b.byID[o.ID] = o
}

// Remove deletes a resting order by id. Returns the order so the caller
// can unlock its remaining collateral.
func (b *Book) Remove(id uint64) (*core.Order, bool) {
	o, ok := b.byID[id]
	if !ok {
		return nil, false
	}

	levels := b.bids
	if o.Side == core.Sell {
		levels = b.asks
	}
	arr := levels[o.Price]
	for i, ro := range arr {
		if ro.ID == id {
			levels[o.Price] = append(arr[:i], arr[i+1:]...)
			break
		}
	}
	if len(levels[o.Price]) == 0 {
		delete(levels, o.Price)
		b.removeFromHeap(o.Side, o.Price)
	}
	delete(b.byID, id)
	return o, true
}

// removeFromHeap removes a price level from a side's heap (O(N) worst
// case, but only when a level empties).
func (b *Book) removeFromHeap(side core.Side, price uint64) {
	if side == core.Buy {
		for i := 0; i < b.bidHeap.Len(); i++ {
			if (*b.bidHeap)[i] == price {
				heap.Remove(b.bidHeap, i)
				return
			}
		}
		return
	}
	for i := 0; i < b.askHeap.Len(); i++ {
		if (*b.askHeap)[i] == price {
			heap.Remove(b.askHeap, i)
			return
		}
	}
}

// popBest removes the front order of the best price level on a side.
// Only the matching engine calls this, after the order fully fills.
func (b *Book) popBest(side core.Side, price uint64) {
	levels := b.bids
	if side == core.Sell {
		levels = b.asks
	}
	arr := levels[price]
	maker := arr[0]
	levels[price] = arr[1:]
	delete(b.byID, maker.ID)
	if len(levels[price]) == 0 {
		delete(levels, price)
		b.removeFromHeap(side, price)
	}
}

// BidLevels returns all bid price levels sorted high to low (best bid
// first), with remaining qty aggregated per price.
func (b *Book) BidLevels() []PriceLevel {
	return aggregate(b.bids, func(i, j PriceLevel) bool { return i.Price > j.Price })
}

// AskLevels returns all ask price levels sorted low to high (best ask
// first), with remaining qty aggregated per price.
func (b *Book) AskLevels() []PriceLevel {
	return aggregate(b.asks, func(i, j PriceLevel) bool { return i.Price < j.Price })
}

func aggregate(levels map[uint64][]*core.Order, less func(i, j PriceLevel) bool) []PriceLevel {
	var out []PriceLevel
	for price, orders := range levels {
		if len(orders) == 0 {
			continue
		}
		var total uint64
		for _, o := range orders {
			total += o.Remaining
		}
		out = append(out, PriceLevel{Price: price, Qty: total})
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Open returns the number of resting orders.
func (b *Book) Open() int { return len(b.byID) }
