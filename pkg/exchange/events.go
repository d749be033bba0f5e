package exchange

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/uhyunpark/minidex/pkg/core"
)

// EventSink receives fire-and-forget notifications after each committed
// operation. Sinks must not block; the API layer provides a websocket
// broadcasting sink.
type EventSink interface {
	NewOrder(orderID uint64, owner common.Address, side core.Side, price, qty uint64)
	OrderFilled(fill core.Fill)
	OrderCancelled(orderID uint64, remainingRefunded uint64)
	Deposit(account common.Address, asset core.Asset, amount uint64)
	Withdraw(account common.Address, asset core.Asset, amount uint64)
}

type NopSink struct{}

func (NopSink) NewOrder(uint64, common.Address, core.Side, uint64, uint64) {}
func (NopSink) OrderFilled(core.Fill)                                      {}
func (NopSink) OrderCancelled(uint64, uint64)                              {}
func (NopSink) Deposit(common.Address, core.Asset, uint64)                 {}
func (NopSink) Withdraw(common.Address, core.Asset, uint64)                {}

var _ EventSink = NopSink{}
