package orderbook

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/uhyunpark/minidex/pkg/core"
)

// Settler is the slice of the vault the matching engine settles against.
// Both methods panic on locked-balance underflow: by the time the engine
// runs, every resting and incoming order is fully collateralized, so a
// shortfall is an engine bug.
type Settler interface {
	Unlock(addr common.Address, asset core.Asset, amount uint64)
	Settle(buyer, seller common.Address, baseAmount, quoteAmount uint64)
}

func min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// Match walks the opposite side in price-time priority and settles fills
// at each maker's resting price. The taker's collateral (Quote notional
// for buys, Base qty for sells) must already be locked. When a buy taker
// crosses a cheaper ask, the price improvement is unlocked back to the
// buyer immediately, so a buy order's locked balance is always exactly
// price*remaining. Any unfilled remainder rests on the book.
//
// Self-trades are allowed: a taker matching its own resting order settles
// normally, which just moves its locked balances back to available.
func (b *Book) Match(taker *core.Order, ledger Settler) []core.Fill {
	var fills []core.Fill

	if taker.Side == core.Buy {
		for taker.Remaining > 0 {
			askP, ok := b.BestAsk()
			if !ok || askP > taker.Price {
				break
			}
			maker := b.asks[askP][0]
			fillQty := min(taker.Remaining, maker.Remaining)
			quoteAmt := askP * fillQty // cannot overflow: <= taker's locked notional

			ledger.Settle(taker.Owner, maker.Owner, fillQty, quoteAmt)
			taker.Locked -= quoteAmt
			// Taker bid above the resting price: the excess reservation
			// is never owed to anyone, unlock it right away.
			if taker.Price > askP {
				refund := (taker.Price - askP) * fillQty
				ledger.Unlock(taker.Owner, core.Quote, refund)
				taker.Locked -= refund
			}

			taker.Remaining -= fillQty
			maker.Remaining -= fillQty
			maker.Locked -= fillQty
			b.lastPrice = askP
			fills = append(fills, core.Fill{
				MakerID: maker.ID,
				TakerID: taker.ID,
				Maker:   maker.Owner,
				Taker:   taker.Owner,
				Price:   askP,
				Qty:     fillQty,
			})
			if maker.Remaining == 0 {
				b.popBest(core.Sell, askP)
			}
		}
	} else {
		for taker.Remaining > 0 {
			bidP, ok := b.BestBid()
			if !ok || bidP < taker.Price {
				break
			}
			maker := b.bids[bidP][0]
			fillQty := min(taker.Remaining, maker.Remaining)
			quoteAmt := bidP * fillQty // maker locked exactly bidP*remaining

			ledger.Settle(maker.Owner, taker.Owner, fillQty, quoteAmt)
			maker.Locked -= quoteAmt
			taker.Remaining -= fillQty
			taker.Locked -= fillQty
			maker.Remaining -= fillQty
			b.lastPrice = bidP
			fills = append(fills, core.Fill{
				MakerID: maker.ID,
				TakerID: taker.ID,
				Maker:   maker.Owner,
				Taker:   taker.Owner,
				Price:   bidP,
				Qty:     fillQty,
			})
			if maker.Remaining == 0 {
				b.popBest(core.Buy, bidP)
			}
		}
	}

	if taker.Remaining > 0 {
		b.insert(taker)
	}
	return fills
}
