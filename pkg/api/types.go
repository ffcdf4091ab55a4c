package api

import "github.com/shopspring/decimal"

// Request and response types for the REST endpoints and WebSocket
// messages. Decimal fields marshal as JSON strings.

type SubmitOrderRequest struct {
	Side     string          `json:"side"` // "bid" or "ask"
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	ClientID uint64          `json:"clientId"`
}

type SubmitOrderResponse struct {
	ID     uint64 `json:"id"`
	Status string `json:"status"`
}

type AmendOrderRequest struct {
	ID       uint64          `json:"id"`
	Side     string          `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

type CancelOrderRequest struct {
	ID   uint64 `json:"id"`
	Side string `json:"side"`
}

type RegisterClientRequest struct {
	ID     uint64          `json:"id"`
	Cash   decimal.Decimal `json:"cash"`
	Assets decimal.Decimal `json:"assets"`
}

// BookSnapshot is the aggregated depth of both sides, best price first.
type BookSnapshot struct {
	Bids      []LevelInfo `json:"bids"`
	Asks      []LevelInfo `json:"asks"`
	Timestamp int64       `json:"timestamp"` // Unix milliseconds
}

type LevelInfo struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Orders   int             `json:"orders"`
}

type PriceInfo struct {
	BestBid decimal.Decimal `json:"bestBid"`
	BestAsk decimal.Decimal `json:"bestAsk"`
	Mid     decimal.Decimal `json:"mid"`
}

type TradeInfo struct {
	ID        string          `json:"id"`
	BuyerID   uint64          `json:"buyerId"`
	SellerID  uint64          `json:"sellerId"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
}

type VolumeInfo struct {
	Total      int `json:"total"`
	LastSecond int `json:"lastSecond"`
}

type OrderReport struct {
	ID     uint64 `json:"id"`
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest subscribes or unsubscribes a WebSocket client.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// TradeUpdate is pushed on the "trades" channel after each match.
type TradeUpdate struct {
	Type  string    `json:"type"` // "trade"
	Trade TradeInfo `json:"trade"`
}

// BookUpdate is pushed on the "book" channel after book mutations.
type BookUpdate struct {
	Type      string      `json:"type"` // "book"
	Bids      []LevelInfo `json:"bids"`
	Asks      []LevelInfo `json:"asks"`
	Timestamp int64       `json:"timestamp"`
}
