// Package engine runs the simulated market: the session gate, the price
// driver and the order monitor, behind one facade.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"inditrade-paper/internal/errors"
	"inditrade-paper/internal/logging"
	"inditrade-paper/internal/observability"
)

// TaskFunc is one run of a periodic task.
type TaskFunc func(ctx context.Context) error

// Scheduler runs periodic tasks with per-run fault isolation: a run that
// fails or panics is logged and counted, and the next run proceeds.
type Scheduler struct {
	clock   clock.Clock
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewScheduler creates a scheduler on the given clock.
func NewScheduler(clk clock.Clock, logger zerolog.Logger, metrics *observability.Metrics) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{clock: clk, logger: logger, metrics: metrics}
}

// Every runs fn every interval until ctx is done. It always returns nil so
// a single task never tears down its siblings.
func (s *Scheduler) Every(ctx context.Context, name string, interval time.Duration, fn TaskFunc) error {
	ticker := s.clock.Ticker(interval)
	defer ticker.Stop()

	s.logger.Debug().Str("task", name).Dur("interval", interval).Msg("Task scheduled")

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Str("task", name).Msg("Task stopped")
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				return nil
			}
			if err := s.RunOnce(ctx, name, fn); err != nil {
				s.logger.Error().Err(err).Str("task", name).Msg("Task run failed")
			}
		}
	}
}

// RunOnce executes fn once, converting a panic into an error.
func (s *Scheduler) RunOnce(ctx context.Context, name string, fn TaskFunc) (err error) {
	start := s.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			err = errors.NewTaskError(name, err)
		}
		if s.metrics != nil {
			s.metrics.TaskRuns.WithLabelValues(name).Inc()
			s.metrics.TaskDuration.WithLabelValues(name).Observe(s.clock.Since(start).Seconds())
			if err != nil {
				s.metrics.TaskFailures.WithLabelValues(name).Inc()
			}
		}
	}()
	return fn(logging.WithLogger(ctx, s.logger.With().Str("task", name).Logger()))
}
