// Package store provides the order journal: a write-only audit trail of
// order lifecycle events.
package store

import (
	"context"
	"time"

	"inditrade-paper/internal/models"
)

// JournalStore persists order snapshots. The engine never reads its state
// back; the journal exists for audit and the `journal list` command.
type JournalStore interface {
	// SaveOrder upserts the latest snapshot of an order.
	SaveOrder(ctx context.Context, order models.Order) error
	// ListOrders returns journaled orders, most recently placed first.
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	// Close releases the underlying database.
	Close() error
}

// OrderFilter narrows ListOrders.
type OrderFilter struct {
	Symbol string
	Side   models.OrderSide
	Status models.OrderStatus
	Since  time.Time
	Limit  int
}
