package trading

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"inditrade-paper/internal/errors"
	"inditrade-paper/internal/models"
)

// OrderBook holds user orders, most recently placed first.
type OrderBook struct {
	mu     sync.RWMutex
	orders []*models.Order
	byID   map[string]*models.Order
	newID  func() string
}

// NewOrderBook creates an empty order book.
func NewOrderBook() *OrderBook {
	return &OrderBook{
		byID:  make(map[string]*models.Order),
		newID: func() string { return uuid.NewString() },
	}
}

// ValidateRequest checks the placement contract: positive quantity and a known side.
func ValidateRequest(req models.PlacementRequest) error {
	if req.Quantity <= 0 {
		return errors.NewValidationError("quantity", req.Quantity, "must be a positive integer")
	}
	if !req.Side.Valid() {
		return errors.NewValidationError("side", req.Side, "must be BUY or SELL")
	}
	return nil
}

// Place creates a new OPEN order. A rejected request leaves the book unchanged.
func (b *OrderBook) Place(req models.PlacementRequest, now time.Time) (models.Order, error) {
	if err := ValidateRequest(req); err != nil {
		return models.Order{}, err
	}

	order := &models.Order{
		ID:         b.newID(),
		Symbol:     req.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		EntryPrice: req.PriceSnapshot,
		PlacedAt:   now,
		Status:     models.OrderStatusOpen,
	}
	if req.Target != nil {
		order.Target = models.Float(*req.Target)
	}
	if req.Stop != nil {
		order.Stop = models.Float(*req.Stop)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.orders = append([]*models.Order{order}, b.orders...)
	b.byID[order.ID] = order

	return order.Clone(), nil
}

// Close transitions an OPEN order to CLOSED. Closing a CLOSED order is a
// no-op that returns the order unchanged with changed=false.
func (b *OrderBook) Close(id string, exitPrice float64, reason models.CloseReason, now time.Time) (models.Order, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.byID[id]
	if !ok {
		return models.Order{}, false, errors.NewOrderError(id, "", "close", "lookup failed", errors.ErrOrderNotFound)
	}
	if !order.IsOpen() {
		return order.Clone(), false, nil
	}

	closedAt := now
	order.Status = models.OrderStatusClosed
	order.ClosedAt = &closedAt
	order.ExitPrice = exitPrice
	order.CloseReason = reason

	return order.Clone(), true, nil
}

// Get returns the order with the given id.
func (b *OrderBook) Get(id string) (models.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	order, ok := b.byID[id]
	if !ok {
		return models.Order{}, false
	}
	return order.Clone(), true
}

// List returns every order, most recent first.
func (b *OrderBook) List() []models.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]models.Order, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o.Clone())
	}
	return out
}

// Open returns the OPEN orders, most recent first.
func (b *OrderBook) Open() []models.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []models.Order
	for _, o := range b.orders {
		if o.IsOpen() {
			out = append(out, o.Clone())
		}
	}
	return out
}

// Len returns the number of orders in the book.
func (b *OrderBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}
