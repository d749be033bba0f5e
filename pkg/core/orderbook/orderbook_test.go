package orderbook

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uhyunpark/minidex/pkg/core"
)

var (
	alice = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xb0b0000000000000000000000000000000000002")
)

func TestNewOrderIDsMonotonic(t *testing.T) {
	b := New()

	o1 := b.NewOrder(alice, core.Buy, 10, 5, 50)
	o2 := b.NewOrder(alice, core.Sell, 10, 5, 5)
	o3 := b.NewOrder(bob, core.Buy, 11, 1, 11)

	if o1.ID != 1 || o2.ID != 2 || o3.ID != 3 {
		t.Errorf("ids = %d, %d, %d, want 1, 2, 3", o1.ID, o2.ID, o3.ID)
	}
}

func TestBestBidAsk(t *testing.T) {
	b := New()

	if _, ok := b.BestBid(); ok {
		t.Error("empty book reported a best bid")
	}
	if _, ok := b.BestAsk(); ok {
		t.Error("empty book reported a best ask")
	}

	b.insert(b.NewOrder(alice, core.Buy, 10, 5, 50))
	b.insert(b.NewOrder(alice, core.Buy, 12, 5, 60))
	b.insert(b.NewOrder(bob, core.Sell, 20, 5, 5))
	b.insert(b.NewOrder(bob, core.Sell, 15, 5, 5))

	if p, ok := b.BestBid(); !ok || p != 12 {
		t.Errorf("best bid = %d, %v, want 12, true", p, ok)
	}
	if p, ok := b.BestAsk(); !ok || p != 15 {
		t.Errorf("best ask = %d, %v, want 15, true", p, ok)
	}
}

func TestRemove(t *testing.T) {
	b := New()

	o1 := b.NewOrder(alice, core.Buy, 10, 5, 50)
	o2 := b.NewOrder(bob, core.Buy, 12, 5, 60)
	b.insert(o1)
	b.insert(o2)

	if _, ok := b.Remove(999); ok {
		t.Error("removed a nonexistent order")
	}

	removed, ok := b.Remove(o2.ID)
	if !ok || removed.ID != o2.ID {
		t.Fatalf("remove returned %v, %v", removed, ok)
	}
	if _, ok := b.Get(o2.ID); ok {
		t.Error("removed order still indexed")
	}
	// Best bid falls back to the remaining level.
	if p, ok := b.BestBid(); !ok || p != 10 {
		t.Errorf("best bid after remove = %d, %v, want 10, true", p, ok)
	}

	b.Remove(o1.ID)
	if _, ok := b.BestBid(); ok {
		t.Error("empty book still reports a best bid")
	}
	if b.Open() != 0 {
		t.Errorf("open orders = %d, want 0", b.Open())
	}
}

func TestLevelAggregation(t *testing.T) {
	b := New()

	b.insert(b.NewOrder(alice, core.Buy, 10, 5, 50))
	b.insert(b.NewOrder(bob, core.Buy, 10, 3, 30))
	b.insert(b.NewOrder(alice, core.Buy, 12, 2, 24))
	b.insert(b.NewOrder(bob, core.Sell, 15, 7, 7))

	bids := b.BidLevels()
	if len(bids) != 2 {
		t.Fatalf("bid levels = %d, want 2", len(bids))
	}
	// Best bid first (high to low), qty aggregated per price.
	if bids[0].Price != 12 || bids[0].Qty != 2 {
		t.Errorf("bids[0] = %+v, want {12 2}", bids[0])
	}
	if bids[1].Price != 10 || bids[1].Qty != 8 {
		t.Errorf("bids[1] = %+v, want {10 8}", bids[1])
	}

	asks := b.AskLevels()
	if len(asks) != 1 || asks[0].Price != 15 || asks[0].Qty != 7 {
		t.Errorf("asks = %+v, want [{15 7}]", asks)
	}
}
