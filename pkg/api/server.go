// Package api exposes the order book over REST and pushes engine events
// to off-chain indexers over websocket.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/veritrade/secbook/pkg/engine"
	"github.com/veritrade/secbook/pkg/pool"
)

type Server struct {
	engine *engine.Engine
	pool   *pool.Pool
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger

	allowedOrigins []string
}

func NewServer(eng *engine.Engine, p *pool.Pool, allowedOrigins []string, log *zap.SugaredLogger) *Server {
	s := &Server{
		engine:         eng,
		pool:           p,
		router:         mux.NewRouter(),
		hub:            NewHub(log),
		log:            log,
		allowedOrigins: allowedOrigins,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Order entry points
	api.HandleFunc("/orders", s.handlePlaceOrder).Methods("POST")
	api.HandleFunc("/orders/edit", s.handleEditOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/{ref}", s.handleGetOrder).Methods("GET")

	// Trade ledger
	api.HandleFunc("/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/trades/revert", s.handleRevertTrade).Methods("POST")
	api.HandleFunc("/trades/{party}/{seq:[0-9]+}", s.handleGetTrade).Methods("GET")
	api.HandleFunc("/fills/finalize", s.handleFinalizeFill).Methods("POST")

	// Pool facade
	api.HandleFunc("/swaps", s.handleSwap).Methods("POST")
	api.HandleFunc("/limits", s.handleLimit).Methods("POST")

	// Book snapshot
	api.HandleFunc("/book", s.handleGetBook).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub and serves HTTP on addr; it blocks.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Infow("api_listening", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.router }

// ==============================
// REST handlers
// ==============================

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	owner, ok := parseAddress(w, req.Owner, "owner")
	if !ok {
		return
	}
	var side engine.Side
	switch req.Side {
	case "buy":
		side = engine.Buy
	case "sell":
		side = engine.Sell
	default:
		respondError(w, http.StatusBadRequest, "invalid side", req.Side)
		return
	}
	var typ engine.OrderType
	switch req.Type {
	case "market":
		typ = engine.Market
	case "limit":
		typ = engine.Limit
	default:
		respondError(w, http.StatusBadRequest, "invalid order type", req.Type)
		return
	}
	price, ok := parseAmount(w, req.Price, "price")
	if !ok {
		return
	}
	qty, ok := parseAmount(w, req.Qty, "qty")
	if !ok {
		return
	}

	res, err := s.engine.NewOrder(owner, side, typ, price, qty)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	order, _ := s.engine.GetOrder(res.Ref, owner)
	status := ""
	if order != nil {
		status = order.Status.String()
	}
	respondJSON(w, PlaceOrderResponse{
		Ref:      res.Ref.Hex(),
		Status:   status,
		Filled:   res.Filled.Dec(),
		Received: res.Received.Dec(),
		LastSeq:  res.LastSeq,
	})
}

func (s *Server) handleEditOrder(w http.ResponseWriter, r *http.Request) {
	var req EditOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	ref, ok := parseRef(w, req.Ref)
	if !ok {
		return
	}
	requester, ok := parseAddress(w, req.Requester, "requester")
	if !ok {
		return
	}
	price, ok := parseAmount(w, req.Price, "price")
	if !ok {
		return
	}
	qty, ok := parseAmount(w, req.Qty, "qty")
	if !ok {
		return
	}
	if err := s.engine.EditOrder(ref, price, qty, requester); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "edited"})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	ref, ok := parseRef(w, req.Ref)
	if !ok {
		return
	}
	requester, ok := parseAddress(w, req.Requester, "requester")
	if !ok {
		return
	}
	remaining, err := s.engine.CancelOrder(ref, requester)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, CancelOrderResponse{Ref: ref.Hex(), Remaining: remaining.Dec()})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	ref, ok := parseRef(w, mux.Vars(r)["ref"])
	if !ok {
		return
	}
	requester, ok := parseAddress(w, r.URL.Query().Get("requester"), "requester")
	if !ok {
		return
	}
	o, err := s.engine.GetOrder(ref, requester)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, orderInfo(o))
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	requester, ok := parseAddress(w, r.URL.Query().Get("requester"), "requester")
	if !ok {
		return
	}
	respondJSON(w, map[string][]uint64{"seqs": s.engine.GetTrades(requester)})
}

func (s *Server) handleGetTrade(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	party, ok := parseAddress(w, vars["party"], "party")
	if !ok {
		return
	}
	seq, err := strconv.ParseUint(vars["seq"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid seq", vars["seq"])
		return
	}
	requester, ok := parseAddress(w, r.URL.Query().Get("requester"), "requester")
	if !ok {
		return
	}
	t, err := s.engine.GetTrade(party, seq, requester)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, tradeInfo(t))
}

func (s *Server) handleRevertTrade(w http.ResponseWriter, r *http.Request) {
	var req RevertTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	ref, ok := parseRef(w, req.Ref)
	if !ok {
		return
	}
	requester, ok := parseAddress(w, req.Requester, "requester")
	if !ok {
		return
	}
	qty, ok := parseAmount(w, req.Qty, "qty")
	if !ok {
		return
	}
	price, ok := parseAmount(w, req.Price, "price")
	if !ok {
		return
	}
	seq, err := s.engine.RevertTrade(ref, qty, price, requester)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, RevertTradeResponse{Seq: seq})
}

func (s *Server) handleFinalizeFill(w http.ResponseWriter, r *http.Request) {
	var req FinalizeFillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	partyRef, ok := parseRef(w, req.PartyRef)
	if !ok {
		return
	}
	counterRef, ok := parseRef(w, req.CounterRef)
	if !ok {
		return
	}
	requester, ok := parseAddress(w, req.Requester, "requester")
	if !ok {
		return
	}
	if err := s.engine.FinalizeFill(partyRef, counterRef, req.Seq, requester); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "finalized"})
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req SwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	tokenIn, ok := parseAddress(w, req.TokenIn, "tokenIn")
	if !ok {
		return
	}
	tokenOut, ok := parseAddress(w, req.TokenOut, "tokenOut")
	if !ok {
		return
	}
	from, ok := parseAddress(w, req.From, "from")
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount, "amount")
	if !ok {
		return
	}
	var userData []byte
	if req.UserData != "" {
		var err error
		userData, err = hexutil.Decode(req.UserData)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid userData", err.Error())
			return
		}
	}
	out, err := s.pool.OnSwap(pool.SwapRequest{
		TokenIn:  tokenIn,
		TokenOut: tokenOut,
		Amount:   amount,
		From:     from,
		UserData: userData,
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, SwapResponse{AmountOut: out.Dec()})
}

func (s *Server) handleLimit(w http.ResponseWriter, r *http.Request) {
	var req LimitSwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	tokenIn, ok := parseAddress(w, req.TokenIn, "tokenIn")
	if !ok {
		return
	}
	from, ok := parseAddress(w, req.From, "from")
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount, "amount")
	if !ok {
		return
	}
	price, ok := parseAmount(w, req.Price, "price")
	if !ok {
		return
	}
	ref, err := s.pool.PlaceLimit(pool.LimitRequest{
		TokenIn: tokenIn,
		Amount:  amount,
		Price:   price,
		From:    from,
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, LimitSwapResponse{Ref: ref.Hex()})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	bids, asks := s.engine.Depth()
	respondJSON(w, BookSnapshot{
		BestBuy:   s.engine.BestBuyPrice().Dec(),
		BestSell:  s.engine.BestSellPrice().Dec(),
		Bids:      priceLevels(bids),
		Asks:      priceLevels(asks),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Engine event push
// ==============================

// The server is the engine's notifier: events land on the "orders" and
// "trades" websocket channels once the engine's state is consistent.
var _ engine.Notifier = (*Server)(nil)

func (s *Server) OrderPlaced(ev engine.OrderPlacedEvent) {
	s.hub.BroadcastToChannel("orders", WSEvent{Channel: "orders", Type: "order_placed", Data: ev})
}

func (s *Server) TradeExecuted(ev engine.TradeExecutedEvent) {
	s.hub.BroadcastToChannel("trades", WSEvent{Channel: "trades", Type: "trade_executed", Data: ev})
}

func (s *Server) TradeReverted(ev engine.TradeRevertedEvent) {
	s.hub.BroadcastToChannel("trades", WSEvent{Channel: "trades", Type: "trade_reverted", Data: ev})
}

func (s *Server) TradeSettled(ev engine.TradeSettledEvent) {
	s.hub.BroadcastToChannel("trades", WSEvent{Channel: "trades", Type: "trade_settled", Data: ev})
}

// ==============================
// Helpers
// ==============================

func orderInfo(o *engine.Order) OrderInfo {
	return OrderInfo{
		Ref:       o.Ref.Hex(),
		Side:      o.Side.String(),
		Type:      o.Type.String(),
		Status:    o.Status.String(),
		Price:     o.Price.Dec(),
		Remaining: o.Remaining.Dec(),
		Owner:     o.Owner.Hex(),
		Nonce:     o.Nonce,
	}
}

func tradeInfo(t *engine.Trade) TradeInfo {
	return TradeInfo{
		Party:        t.Party.Hex(),
		Counterparty: t.Counterparty.Hex(),
		OrderRef:     t.OrderRef.Hex(),
		CounterRef:   t.CounterRef.Hex(),
		SecurityQty:  t.SecurityQty.Dec(),
		CurrencyQty:  t.CurrencyQty.Dec(),
		Price:        t.Price.Dec(),
		Seq:          t.Seq,
		Reversal:     t.Reversal,
	}
}

func priceLevels(levels []engine.Level) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{Price: l.Price.Dec(), Qty: l.Qty.Dec(), Orders: l.Orders}
	}
	return out
}

func parseAddress(w http.ResponseWriter, s, field string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		respondError(w, http.StatusBadRequest, "invalid address", field)
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseRef(w http.ResponseWriter, s string) (common.Hash, bool) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		respondError(w, http.StatusBadRequest, "invalid order reference", s)
		return common.Hash{}, false
	}
	return common.BytesToHash(b), true
}

// parseAmount reads a decimal 18-fixed-point string; empty means zero.
func parseAmount(w http.ResponseWriter, s, field string) (*uint256.Int, bool) {
	if s == "" {
		return new(uint256.Int), true
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount", field)
		return nil, false
	}
	return v, true
}

func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrValidation):
		respondError(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, engine.ErrAuthorization):
		respondError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, engine.ErrState):
		respondError(w, http.StatusConflict, "invalid state", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: error, Message: message})
}
