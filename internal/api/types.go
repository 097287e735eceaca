package api

import (
	"time"

	"inditrade-paper/internal/models"
	"inditrade-paper/internal/stream"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SeriesResponse carries an instrument's retained ticks, oldest first.
type SeriesResponse struct {
	Symbol string        `json:"symbol"`
	Ticks  []models.Tick `json:"ticks"`
}

// SessionResponse describes the market session.
type SessionResponse struct {
	Open         bool      `json:"open"`
	NextOpen     time.Time `json:"next_open"`
	NextOpenText string    `json:"next_open_text"`
}

// PlaceOrderRequest is the body of POST /api/v1/orders. Price is the
// chart price the user saw; zero uses the current LTP.
type PlaceOrderRequest struct {
	Symbol   string   `json:"symbol"`
	Side     string   `json:"side"`
	Quantity int      `json:"quantity"`
	Target   *float64 `json:"target,omitempty"`
	Stop     *float64 `json:"stop,omitempty"`
	Price    float64  `json:"price,omitempty"`
}

// HealthResponse is the liveness reply.
type HealthResponse struct {
	Status     string    `json:"status"`
	MarketOpen bool      `json:"market_open"`
	Time       time.Time `json:"time"`
}

// WSSubscribeRequest changes a websocket client's topics.
// Op is "subscribe" or "unsubscribe".
type WSSubscribeRequest struct {
	Op     string   `json:"op"`
	Topics []string `json:"topics"`
}

// WSMessage wraps a hub event sent to a websocket client.
type WSMessage struct {
	Topic string       `json:"topic"`
	Event stream.Event `json:"event"`
}
