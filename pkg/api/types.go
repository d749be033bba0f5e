package api

// API request/response types for REST endpoints and WebSocket messages

// ==============================
// REST Types
// ==============================

// DepthSnapshot represents current orderbook state
type DepthSnapshot struct {
	Bids      []PriceLevel `json:"bids"` // Sorted high to low
	Asks      []PriceLevel `json:"asks"` // Sorted low to high
	LastPrice uint64       `json:"lastPrice"`
	Timestamp int64        `json:"timestamp"` // Unix milliseconds
}

// PriceLevel represents [price, size] tuple
type PriceLevel struct {
	Price uint64 `json:"price"` // Price in quote per base
	Size  uint64 `json:"size"`  // Remaining size in base
}

// BalanceInfo represents one asset's vault balances for an account
type BalanceInfo struct {
	Asset     string `json:"asset"` // "base" or "quote"
	Available uint64 `json:"available"`
	Locked    uint64 `json:"locked"`
}

// AccountBalances groups both assets for an account
type AccountBalances struct {
	Address  string        `json:"address"`
	Balances []BalanceInfo `json:"balances"`
}

// PlaceOrderRequest submits a limit order
type PlaceOrderRequest struct {
	Address string `json:"address"`
	Side    string `json:"side"` // "buy" or "sell"
	Price   uint64 `json:"price"`
	Qty     uint64 `json:"qty"`
}

// FillInfo represents one execution
type FillInfo struct {
	MakerID uint64 `json:"makerId"`
	TakerID uint64 `json:"takerId"`
	Maker   string `json:"maker"`
	Taker   string `json:"taker"`
	Price   uint64 `json:"price"`
	Qty     uint64 `json:"qty"`
}

// PlaceOrderResponse returns the assigned order id and any fills
type PlaceOrderResponse struct {
	OrderID uint64     `json:"orderId"`
	Fills   []FillInfo `json:"fills"`
}

// CancelOrderRequest cancels a resting order
type CancelOrderRequest struct {
	Address string `json:"address"`
	OrderID uint64 `json:"orderId"`
}

// TransferRequest is the body for deposit and withdraw
type TransferRequest struct {
	Address string `json:"address"`
	Asset   string `json:"asset"` // "base" or "quote"
	Amount  uint64 `json:"amount"`
}

// OrderInfo represents a resting order
type OrderInfo struct {
	ID        uint64 `json:"id"`
	Owner     string `json:"owner"`
	Side      string `json:"side"`
	Price     uint64 `json:"price"`
	Qty       uint64 `json:"qty"`
	Remaining uint64 `json:"remaining"`
}

// ErrorResponse is the standard error body
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSMessage is the base structure for all WebSocket messages
type WSMessage struct {
	Type string      `json:"type"` // "new_order", "order_filled", "order_cancelled", "deposit", "withdraw"
	Data interface{} `json:"data"` // Type-specific payload
}
