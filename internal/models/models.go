// Package models provides domain models for the paper trading engine.
package models

import (
	"time"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Valid reports whether s is one of the two enumerated sides.
func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusOpen   OrderStatus = "OPEN"
	OrderStatusClosed OrderStatus = "CLOSED"
)

// CloseReason records which condition closed an order.
type CloseReason string

const (
	CloseReasonTarget CloseReason = "TARGET"
	CloseReasonStop   CloseReason = "STOP"
	CloseReasonManual CloseReason = "MANUAL"
)

// Tick represents one simulated price observation.
type Tick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Quote represents the ticker-tape view of an instrument.
type Quote struct {
	Symbol    string    `json:"symbol"`
	LTP       float64   `json:"ltp"`
	Previous  float64   `json:"previous"`
	Change    float64   `json:"change"`
	Up        bool      `json:"up"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	HasData   bool      `json:"has_data"`
}
