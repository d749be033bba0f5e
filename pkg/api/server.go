package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/minidex/pkg/core"
	"github.com/uhyunpark/minidex/pkg/exchange"
)

// Server handles REST API and WebSocket connections. Devnet-grade: the
// caller's address comes from the request body, unauthenticated.
type Server struct {
	ex     *exchange.Exchange
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

// NewServer creates a new API server. The returned server's Hub should
// be wired into the exchange as its event sink (via NewWSink).
func NewServer(ex *exchange.Exchange, log *zap.SugaredLogger) *Server {
	s := &Server{
		ex:     ex,
		router: mux.NewRouter(),
		hub:    NewHub(),
		log:    log,
	}
	s.setupRoutes()
	return s
}

// Hub returns the WebSocket hub for event sink wiring.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Market data
	api.HandleFunc("/orderbook", s.handleGetOrderbook).Methods("GET")

	// Account endpoints
	api.HandleFunc("/accounts/{address}/balances", s.handleGetBalances).Methods("GET")

	// Vault operations
	api.HandleFunc("/deposit", s.handleDeposit).Methods("POST")
	api.HandleFunc("/withdraw", s.handleWithdraw).Methods("POST")

	// Orders
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.hub.ServeWS)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	// Start WebSocket hub
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	handler := c.Handler(s.router)

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, handler)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	bids, asks := s.ex.Depth()

	bidLevels := make([]PriceLevel, len(bids))
	for i, l := range bids {
		bidLevels[i] = PriceLevel{Price: l.Price, Size: l.Qty}
	}
	askLevels := make([]PriceLevel, len(asks))
	for i, l := range asks {
		askLevels[i] = PriceLevel{Price: l.Price, Size: l.Qty}
	}

	respondJSON(w, DepthSnapshot{
		Bids:      bidLevels,
		Asks:      askLevels,
		LastPrice: s.ex.LastPrice(),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}

	respondJSON(w, AccountBalances{
		Address: addr.Hex(),
		Balances: []BalanceInfo{
			{Asset: core.Base.String(), Available: s.ex.BalanceOf(addr, core.Base), Locked: s.ex.LockedOf(addr, core.Base)},
			{Asset: core.Quote.String(), Available: s.ex.BalanceOf(addr, core.Quote), Locked: s.ex.LockedOf(addr, core.Quote)},
		},
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	addr, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}
	asset, ok := parseAsset(w, req.Asset)
	if !ok {
		return
	}

	if err := s.ex.Deposit(addr, asset, req.Amount); err != nil {
		respondExchangeError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	addr, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}
	asset, ok := parseAsset(w, req.Asset)
	if !ok {
		return
	}

	if err := s.ex.Withdraw(addr, asset, req.Amount); err != nil {
		respondExchangeError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	addr, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}

	var side core.Side
	switch req.Side {
	case "buy":
		side = core.Buy
	case "sell":
		side = core.Sell
	default:
		respondError(w, http.StatusBadRequest, "invalid side", "expected buy or sell")
		return
	}

	orderID, fills, err := s.ex.PlaceLimitOrder(addr, side, req.Price, req.Qty)
	if err != nil {
		respondExchangeError(w, err)
		return
	}

	fillInfos := make([]FillInfo, len(fills))
	for i, f := range fills {
		fillInfos[i] = FillInfo{
			MakerID: f.MakerID,
			TakerID: f.TakerID,
			Maker:   f.Maker.Hex(),
			Taker:   f.Taker.Hex(),
			Price:   f.Price,
			Qty:     f.Qty,
		}
	}
	respondJSON(w, PlaceOrderResponse{OrderID: orderID, Fills: fillInfos})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	addr, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}

	if err := s.ex.CancelOrder(addr, req.OrderID); err != nil {
		respondExchangeError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return false
	}
	return true
}

func parseAddress(w http.ResponseWriter, s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		respondError(w, http.StatusBadRequest, "invalid address", s)
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseAsset(w http.ResponseWriter, s string) (core.Asset, bool) {
	switch s {
	case "base":
		return core.Base, true
	case "quote":
		return core.Quote, true
	default:
		respondError(w, http.StatusBadRequest, "invalid asset", "expected base or quote")
		return 0, false
	}
}

func respondExchangeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, core.ErrInvalidOrder) {
		status = http.StatusNotFound
	}
	respondError(w, status, err.Error(), "")
}

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Detail: detail})
}
