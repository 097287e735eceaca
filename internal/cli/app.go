package cli

import (
	"github.com/benbjohnson/clock"

	"inditrade-paper/internal/config"
	"inditrade-paper/internal/engine"
	"inditrade-paper/internal/observability"
	"inditrade-paper/internal/stream"
)

// engineOptions maps the configuration onto engine options.
func engineOptions(cfg *config.Config) (engine.Options, error) {
	session, err := cfg.SessionConfig()
	if err != nil {
		return engine.Options{}, err
	}
	return engine.Options{
		Instruments:         cfg.Simulation.Instruments,
		SeriesCapacity:      cfg.Simulation.SeriesCapacity,
		Walk:                cfg.WalkParams(),
		Session:             session,
		TickInterval:        cfg.Simulation.TickInterval,
		MonitorInterval:     cfg.Monitor.Interval,
		SessionPollInterval: cfg.Session.PollInterval,
		RequireOpenMarket:   cfg.Orders.RequireOpenMarket,
		Seed:                cfg.Simulation.Seed,
	}, nil
}

// newEngine builds an engine on the wall clock with metrics and a hub.
func (app *App) newEngine(metrics *observability.Metrics, hub *stream.Hub) (*engine.Engine, error) {
	opts, err := engineOptions(app.Config)
	if err != nil {
		return nil, err
	}
	opts.Clock = clock.New()
	opts.Metrics = metrics
	opts.Hub = hub
	opts.Logger = &app.Logger
	return engine.New(opts), nil
}
