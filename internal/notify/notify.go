// Package notify turns order and session events into user notifications.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inditrade-paper/internal/logging"
	"inditrade-paper/internal/models"
	"inditrade-paper/internal/stream"
	"inditrade-paper/internal/trading"
	"inditrade-paper/pkg/utils"
)

// Kind classifies a notification.
type Kind string

const (
	KindOrderPlaced   Kind = "order_placed"
	KindOrderClosed   Kind = "order_closed"
	KindSessionOpen   Kind = "session_open"
	KindSessionClosed Kind = "session_closed"
)

// Notification is one message for a channel.
type Notification struct {
	Kind      Kind          `json:"kind"`
	Title     string        `json:"title"`
	Message   string        `json:"message"`
	Order     *models.Order `json:"order,omitempty"`
	PnL       float64       `json:"pnl,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Channel delivers notifications somewhere.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// FromEvent builds the notification for an engine event. Ticks and, unless
// includePlaced is set, newly placed orders produce none.
func FromEvent(event stream.Event, includePlaced bool) (Notification, bool) {
	switch {
	case event.Type == stream.EventOrder && event.Order != nil:
		o := event.Order.Clone()
		if o.IsOpen() {
			if !includePlaced {
				return Notification{}, false
			}
			return Notification{
				Kind:      KindOrderPlaced,
				Title:     fmt.Sprintf("%s %s placed", o.Side, o.Symbol),
				Message:   fmt.Sprintf("%s %d %s @ %s", o.Side, o.Quantity, o.Symbol, utils.FormatPrice(o.EntryPrice)),
				Order:     &o,
				Timestamp: event.Time,
			}, true
		}
		pnl := trading.PnL(o, o.ExitPrice)
		return Notification{
			Kind:  KindOrderClosed,
			Title: fmt.Sprintf("%s %s closed (%s)", o.Side, o.Symbol, o.CloseReason),
			Message: fmt.Sprintf("%s %d %s %s → %s, P&L %s",
				o.Side, o.Quantity, o.Symbol,
				utils.FormatPrice(o.EntryPrice), utils.FormatPrice(o.ExitPrice), utils.FormatPnL(pnl)),
			Order:     &o,
			PnL:       pnl,
			Timestamp: event.Time,
		}, true

	case event.Type == stream.EventSession && event.Session != nil:
		if event.Session.Open {
			return Notification{
				Kind:      KindSessionOpen,
				Title:     "Market open",
				Message:   "Simulation resumed",
				Timestamp: event.Time,
			}, true
		}
		msg := "Simulation paused"
		if event.Session.NextOpen != "" {
			msg = fmt.Sprintf("Simulation paused, opens %s", event.Session.NextOpen)
		}
		return Notification{
			Kind:      KindSessionClosed,
			Title:     "Market closed",
			Message:   msg,
			Timestamp: event.Time,
		}, true
	}
	return Notification{}, false
}

// DispatcherConfig controls a Dispatcher.
type DispatcherConfig struct {
	BufferSize    int
	IncludePlaced bool
	Timeout       time.Duration
	Retry         utils.RetryConfig
}

// DefaultDispatcherConfig returns the defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		BufferSize: 100,
		Timeout:    10 * time.Second,
		Retry:      utils.DefaultRetryConfig(),
	}
}

// Dispatcher is a hub consumer that queues notifications and delivers them
// to every channel from its own goroutine, so slow channels never hold up
// the hub.
type Dispatcher struct {
	config   DispatcherConfig
	channels []Channel
	queue    chan Notification
	logger   zerolog.Logger

	mu      sync.Mutex
	dropped uint64
}

// NewDispatcher creates a dispatcher over channels.
func NewDispatcher(config DispatcherConfig, logger zerolog.Logger, channels ...Channel) *Dispatcher {
	if config.BufferSize <= 0 {
		config.BufferSize = 100
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &Dispatcher{
		config:   config,
		channels: channels,
		queue:    make(chan Notification, config.BufferSize),
		logger:   logging.WithComponent(logger, "notify"),
	}
}

// Types implements stream.Consumer.
func (d *Dispatcher) Types() []stream.EventType {
	return []stream.EventType{stream.EventOrder, stream.EventSession}
}

// OnEvent implements stream.Consumer.
func (d *Dispatcher) OnEvent(event stream.Event) {
	n, ok := FromEvent(event, d.config.IncludePlaced)
	if !ok {
		return
	}
	d.enqueue(n)
}

// enqueue drops the oldest queued notification when the buffer is full.
func (d *Dispatcher) enqueue(n Notification) {
	for {
		select {
		case d.queue <- n:
			return
		default:
		}
		select {
		case <-d.queue:
			d.mu.Lock()
			d.dropped++
			d.mu.Unlock()
		default:
		}
	}
}

// Dropped returns how many notifications were discarded on overflow.
func (d *Dispatcher) Dropped() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Run delivers queued notifications until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	for _, ch := range d.channels {
		sendCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
		err := utils.Retry(sendCtx, d.config.Retry, func(ctx context.Context) error {
			return ch.Send(ctx, n)
		})
		cancel()
		if err != nil {
			d.logger.Warn().Err(err).
				Str("channel", ch.Name()).
				Str("kind", string(n.Kind)).
				Msg("Notification not delivered")
		}
	}
}
