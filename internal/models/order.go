package models

import "time"

// Order represents a paper order with optional target and stop thresholds.
type Order struct {
	ID          string      `json:"id"`
	Symbol      string      `json:"symbol"`
	Side        OrderSide   `json:"side"`
	Quantity    int         `json:"quantity"`
	EntryPrice  float64     `json:"entry_price"`
	Target      *float64    `json:"target,omitempty"`
	Stop        *float64    `json:"stop,omitempty"`
	PlacedAt    time.Time   `json:"placed_at"`
	Status      OrderStatus `json:"status"`
	ClosedAt    *time.Time  `json:"closed_at,omitempty"`
	ExitPrice   float64     `json:"exit_price,omitempty"`
	CloseReason CloseReason `json:"close_reason,omitempty"`
}

// IsOpen returns true while the order can still be closed.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusOpen
}

// Clone returns a deep copy so callers never share threshold pointers.
func (o Order) Clone() Order {
	c := o
	if o.Target != nil {
		v := *o.Target
		c.Target = &v
	}
	if o.Stop != nil {
		v := *o.Stop
		c.Stop = &v
	}
	if o.ClosedAt != nil {
		v := *o.ClosedAt
		c.ClosedAt = &v
	}
	return c
}

// PlacementRequest is the input for placing a new order.
type PlacementRequest struct {
	Symbol        string    `json:"symbol"`
	Side          OrderSide `json:"side"`
	Quantity      int       `json:"quantity"`
	Target        *float64  `json:"target,omitempty"`
	Stop          *float64  `json:"stop,omitempty"`
	PriceSnapshot float64   `json:"price,omitempty"`
}

// OrderView is an order marked to the latest price.
type OrderView struct {
	Order
	LTP float64 `json:"ltp"`
	PnL float64 `json:"pnl"`
}

// Levels holds suggested target and stop prices.
type Levels struct {
	Target float64 `json:"target"`
	Stop   float64 `json:"stop"`
}

// Float returns a pointer to v. Handy for optional thresholds.
func Float(v float64) *float64 {
	return &v
}
