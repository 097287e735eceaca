package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"inditrade-paper/internal/logging"
	"inditrade-paper/internal/observability"
	"inditrade-paper/internal/stream"
	"inditrade-paper/internal/trading"
)

// Gate answers whether the periodic tasks may touch market state.
type Gate interface {
	IsOpen() bool
}

// GateFunc adapts a function to Gate.
type GateFunc func() bool

// IsOpen implements Gate.
func (f GateFunc) IsOpen() bool { return f() }

// SessionGate is a level-triggered open/closed flag derived from the
// session clock. It is recomputed on every poll, so status may lag a real
// session boundary by up to one poll interval.
type SessionGate struct {
	session *trading.SessionClock
	clock   clock.Clock
	open    atomic.Bool
	events  Publisher
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewSessionGate creates a gate primed with the current session state.
func NewSessionGate(session *trading.SessionClock, clk clock.Clock, events Publisher, metrics *observability.Metrics, logger zerolog.Logger) *SessionGate {
	g := &SessionGate{
		session: session,
		clock:   clk,
		events:  events,
		metrics: metrics,
		logger:  logging.WithComponent(logger, "session"),
	}
	open := session.IsOpen(clk.Now())
	g.open.Store(open)
	if metrics != nil {
		metrics.SetMarketOpen(open)
	}
	return g
}

// IsOpen implements Gate.
func (g *SessionGate) IsOpen() bool {
	return g.open.Load()
}

// Refresh recomputes the flag and reports whether it changed.
func (g *SessionGate) Refresh() (open, changed bool) {
	now := g.clock.Now()
	open = g.session.IsOpen(now)
	changed = g.open.Swap(open) != open

	if g.metrics != nil {
		g.metrics.SetMarketOpen(open)
	}
	if changed {
		next := g.session.DescribeNextOpen(now)
		logging.LogSession(g.logger, open, next)
		if g.events != nil {
			g.events.Publish(stream.SessionEvent(open, next, now))
		}
	}
	return open, changed
}

// Poll refreshes the gate on every scheduler tick until ctx is done.
func (g *SessionGate) Poll(ctx context.Context, sched *Scheduler, interval time.Duration) error {
	return sched.Every(ctx, "session", interval, func(context.Context) error {
		g.Refresh()
		return nil
	})
}
