package api

// Request and response DTOs. Amounts and prices are 18-decimal
// fixed-point integers rendered as decimal strings; references and
// addresses are 0x-prefixed hex.

type PlaceOrderRequest struct {
	Owner string `json:"owner"`
	Side  string `json:"side"` // "buy" or "sell"
	Type  string `json:"type"` // "market" or "limit"
	Price string `json:"price,omitempty"`
	Qty   string `json:"qty"`
}

type PlaceOrderResponse struct {
	Ref      string `json:"ref"`
	Status   string `json:"status"`
	Filled   string `json:"filled"`
	Received string `json:"received"`
	LastSeq  uint64 `json:"lastSeq,omitempty"`
}

type EditOrderRequest struct {
	Ref       string `json:"ref"`
	Price     string `json:"price,omitempty"`
	Qty       string `json:"qty"`
	Requester string `json:"requester"`
}

type CancelOrderRequest struct {
	Ref       string `json:"ref"`
	Requester string `json:"requester"`
}

type CancelOrderResponse struct {
	Ref       string `json:"ref"`
	Remaining string `json:"remaining"`
}

type OrderInfo struct {
	Ref       string `json:"ref"`
	Side      string `json:"side"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Price     string `json:"price"`
	Remaining string `json:"remaining"`
	Owner     string `json:"owner"`
	Nonce     uint64 `json:"nonce"`
}

type TradeInfo struct {
	Party        string `json:"party"`
	Counterparty string `json:"counterparty"`
	OrderRef     string `json:"orderRef"`
	CounterRef   string `json:"counterRef"`
	SecurityQty  string `json:"securityQty"`
	CurrencyQty  string `json:"currencyQty"`
	Price        string `json:"price"`
	Seq          uint64 `json:"seq"`
	Reversal     bool   `json:"reversal,omitempty"`
}

type RevertTradeRequest struct {
	Ref       string `json:"ref"`
	Qty       string `json:"qty"`
	Price     string `json:"price,omitempty"`
	Requester string `json:"requester"`
}

type RevertTradeResponse struct {
	Seq uint64 `json:"seq"`
}

type FinalizeFillRequest struct {
	PartyRef   string `json:"partyRef"`
	CounterRef string `json:"counterRef"`
	Seq        uint64 `json:"seq"`
	Requester  string `json:"requester"`
}

type SwapRequest struct {
	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`
	Amount   string `json:"amount"`
	From     string `json:"from"`
	UserData string `json:"userData,omitempty"` // 0x-prefixed payload
}

type SwapResponse struct {
	AmountOut string `json:"amountOut"`
}

type LimitSwapRequest struct {
	TokenIn string `json:"tokenIn"`
	Amount  string `json:"amount"`
	Price   string `json:"price"`
	From    string `json:"from"`
}

type LimitSwapResponse struct {
	Ref string `json:"ref"`
}

type PriceLevel struct {
	Price  string `json:"price"`
	Qty    string `json:"qty"`
	Orders int    `json:"orders"`
}

type BookSnapshot struct {
	BestBuy   string       `json:"bestBuy"`
	BestSell  string       `json:"bestSell"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp int64        `json:"timestamp"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest subscribes or unsubscribes websocket channels
// ("orders", "trades").
type WSSubscribeRequest struct {
	Op       string   `json:"op"`
	Channels []string `json:"channels"`
}

// WSEvent wraps an engine event for the wire.
type WSEvent struct {
	Channel string      `json:"channel"`
	Type    string      `json:"type"`
	Data    interface{} `json:"data"`
}
