package engine

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"inditrade-paper/internal/errors"
	"inditrade-paper/internal/logging"
	"inditrade-paper/internal/models"
	"inditrade-paper/internal/observability"
	"inditrade-paper/internal/stream"
	"inditrade-paper/internal/trading"
)

// OrderMonitor closes OPEN orders whose target or stop has been reached.
type OrderMonitor struct {
	book    *trading.OrderBook
	market  *trading.MarketData
	gate    Gate
	clock   clock.Clock
	events  Publisher
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewOrderMonitor creates a monitor over book, priced from market.
func NewOrderMonitor(book *trading.OrderBook, market *trading.MarketData, gate Gate, clk clock.Clock, events Publisher, metrics *observability.Metrics, logger zerolog.Logger) *OrderMonitor {
	return &OrderMonitor{
		book:    book,
		market:  market,
		gate:    gate,
		clock:   clk,
		events:  events,
		metrics: metrics,
		logger:  logging.WithComponent(logger, "monitor"),
	}
}

// Evaluate checks every OPEN order against its instrument's latest price
// and returns the orders it closed. Orders are never touched while the
// gate is closed. An order on an instrument with no ticks is priced at its
// entry price.
func (m *OrderMonitor) Evaluate(ctx context.Context) ([]models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !m.gate.IsOpen() {
		return nil, nil
	}

	now := m.clock.Now()
	var closed []models.Order
	var errs []error

	for _, order := range m.book.Open() {
		ltp := order.EntryPrice
		if tick, ok := m.market.Latest(order.Symbol); ok {
			ltp = tick.Price
		}

		reason, hit := trading.EvaluateExit(order, ltp)
		if !hit {
			continue
		}

		updated, changed, err := m.book.Close(order.ID, ltp, reason, now)
		if err != nil {
			logger := logging.WithSymbol(logging.FromContext(ctx), order.Symbol)
			logger.Warn().Err(err).
				Str("order_id", order.ID).
				Msg("Order close failed")
			errs = append(errs, err)
			continue
		}
		if !changed {
			// closed elsewhere since the snapshot
			continue
		}

		closed = append(closed, updated)
		logging.LogOrder(logging.WithOrderID(m.logger, updated.ID), updated.ID, updated.Symbol,
			string(updated.Side), string(reason), ltp)
		if m.metrics != nil {
			m.metrics.OrdersClosed.WithLabelValues(string(reason)).Inc()
		}
		if m.events != nil {
			m.events.Publish(stream.OrderEvent(updated, now))
		}
	}

	if m.metrics != nil && len(closed) > 0 {
		m.metrics.OpenOrders.Set(float64(len(m.book.Open())))
	}
	return closed, errors.Join(errs...)
}

// Run is the scheduler entry point for Evaluate.
func (m *OrderMonitor) Run(ctx context.Context) error {
	_, err := m.Evaluate(ctx)
	return err
}
