package engine

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"inditrade-paper/internal/logging"
	"inditrade-paper/internal/observability"
	"inditrade-paper/internal/stream"
	"inditrade-paper/internal/trading"
)

// Publisher receives engine events.
type Publisher interface {
	Publish(event stream.Event)
}

// SimulationDriver advances every tracked instrument by one step per run
// while the gate is open.
type SimulationDriver struct {
	market  *trading.MarketData
	gate    Gate
	clock   clock.Clock
	events  Publisher
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewSimulationDriver creates a driver over market.
func NewSimulationDriver(market *trading.MarketData, gate Gate, clk clock.Clock, events Publisher, metrics *observability.Metrics, logger zerolog.Logger) *SimulationDriver {
	return &SimulationDriver{
		market:  market,
		gate:    gate,
		clock:   clk,
		events:  events,
		metrics: metrics,
		logger:  logging.WithComponent(logger, "driver"),
	}
}

// Step appends one tick per instrument. It reports false without touching
// any series when the gate is closed.
func (d *SimulationDriver) Step(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !d.gate.IsOpen() {
		if d.metrics != nil {
			d.metrics.DriverTicksSkipped.Inc()
		}
		return false, nil
	}

	ticks := d.market.Advance(d.clock.Now())
	for _, t := range ticks {
		if d.metrics != nil {
			d.metrics.TicksGenerated.WithLabelValues(t.Symbol).Inc()
		}
		if d.events != nil {
			d.events.Publish(stream.TickEvent(t))
		}
	}

	d.logger.Trace().Int("instruments", len(ticks)).Msg("Simulation step")
	return true, nil
}

// Run is the scheduler entry point for Step.
func (d *SimulationDriver) Run(ctx context.Context) error {
	_, err := d.Step(ctx)
	return err
}
