package api

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/minidex/pkg/core"
	"github.com/uhyunpark/minidex/pkg/exchange"
)

// WSink forwards exchange events to the WebSocket hub.
type WSink struct {
	hub *Hub
}

func NewWSink(hub *Hub) *WSink { return &WSink{hub: hub} }

func (s *WSink) NewOrder(orderID uint64, owner common.Address, side core.Side, price, qty uint64) {
	s.hub.Broadcast(WSMessage{Type: "new_order", Data: OrderInfo{
		ID:        orderID,
		Owner:     owner.Hex(),
		Side:      side.String(),
		Price:     price,
		Qty:       qty,
		Remaining: qty,
	}})
}

func (s *WSink) OrderFilled(f core.Fill) {
	s.hub.Broadcast(WSMessage{Type: "order_filled", Data: FillInfo{
		MakerID: f.MakerID,
		TakerID: f.TakerID,
		Maker:   f.Maker.Hex(),
		Taker:   f.Taker.Hex(),
		Price:   f.Price,
		Qty:     f.Qty,
	}})
}

func (s *WSink) OrderCancelled(orderID uint64, remainingRefunded uint64) {
	s.hub.Broadcast(WSMessage{Type: "order_cancelled", Data: map[string]uint64{
		"orderId":  orderID,
		"refunded": remainingRefunded,
	}})
}

func (s *WSink) Deposit(account common.Address, asset core.Asset, amount uint64) {
	s.hub.Broadcast(WSMessage{Type: "deposit", Data: map[string]interface{}{
		"account": account.Hex(),
		"asset":   asset.String(),
		"amount":  amount,
	}})
}

func (s *WSink) Withdraw(account common.Address, asset core.Asset, amount uint64) {
	s.hub.Broadcast(WSMessage{Type: "withdraw", Data: map[string]interface{}{
		"account": account.Hex(),
		"asset":   asset.String(),
		"amount":  amount,
	}})
}

var _ exchange.EventSink = (*WSink)(nil)
