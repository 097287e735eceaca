package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inditrade-paper/internal/errors"
	"inditrade-paper/internal/models"
	"inditrade-paper/internal/observability"
	"inditrade-paper/internal/stream"
	"inditrade-paper/internal/trading"
)

func TestScheduler_RunOnceRecoversPanic(t *testing.T) {
	metrics := observability.NewMetrics("test")
	sched := NewScheduler(clock.NewMock(), zerolog.Nop(), metrics)

	err := sched.RunOnce(context.Background(), "driver", func(context.Context) error {
		panic("boom")
	})
	require.Error(t, err)

	var taskErr *errors.TaskError
	require.True(t, errors.As(err, &taskErr))
	assert.Equal(t, "driver", taskErr.Task)
	assert.Contains(t, err.Error(), "boom")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TaskRuns.WithLabelValues("driver")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TaskFailures.WithLabelValues("driver")))
}

func TestScheduler_EveryContinuesAfterFailures(t *testing.T) {
	mock := clock.NewMock()
	metrics := observability.NewMetrics("test")
	sched := NewScheduler(mock, zerolog.Nop(), metrics)

	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sched.Every(ctx, "flaky", time.Second, func(context.Context) error {
			switch runs.Add(1) {
			case 1:
				return fmt.Errorf("transient")
			case 2:
				panic("bad tick")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		return runs.Load() >= 4
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.TaskFailures.WithLabelValues("flaky")))
}

func TestSessionGate_RefreshTracksBoundaries(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 10, 16, 15, 30, 0, 0, trading.IndiaLocation)) // Friday close minute
	events := &recordingPublisher{}
	metrics := observability.NewMetrics("test")
	session := trading.NewSessionClock(trading.DefaultSessionConfig())

	gate := NewSessionGate(session, mock, events, metrics, zerolog.Nop())
	require.True(t, gate.IsOpen(), "15:30 is still inside the session")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MarketOpen))

	mock.Add(time.Minute)
	open, changed := gate.Refresh()
	assert.False(t, open)
	assert.True(t, changed)
	assert.False(t, gate.IsOpen())
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.MarketOpen))

	open, changed = gate.Refresh()
	assert.False(t, open)
	assert.False(t, changed)

	sessions := events.ofType(stream.EventSession)
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].Session.Open)
	assert.Equal(t, "on Mon, 19 Oct at 09:15 IST", sessions[0].Session.NextOpen)
}

func TestSessionGate_PollLagsByAtMostOneInterval(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 10, 12, 9, 14, 0, 0, trading.IndiaLocation))
	session := trading.NewSessionClock(trading.DefaultSessionConfig())
	gate := NewSessionGate(session, mock, nil, nil, zerolog.Nop())
	sched := NewScheduler(mock, zerolog.Nop(), nil)
	require.False(t, gate.IsOpen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = gate.Poll(ctx, sched, DefaultSessionPollInterval) }()

	require.Eventually(t, func() bool {
		mock.Add(DefaultSessionPollInterval)
		return gate.IsOpen()
	}, 5*time.Second, 5*time.Millisecond)
}

// Once the monitor closes an order, later prices never reopen or re-close it.
func TestProperty_MonitorClosesAtMostOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("close is final", prop.ForAll(
		func(moves []float64, buy bool) bool {
			path := make([]float64, 0, len(moves))
			last := 100.0
			for _, m := range moves {
				last = trading.ClampPrice(last+m, testWalk.Floor)
				path = append(path, last)
			}

			e, _, _ := newTestEngine(t, sessionTime, pathSource(path...))
			if ok, _ := e.Driver().Step(context.Background()); !ok {
				return false
			}
			side := models.OrderSideSell
			if buy {
				side = models.OrderSideBuy
			}
			order, err := e.PlaceOrder(models.PlacementRequest{
				Symbol: "TCS", Side: side, Quantity: 1,
				Target: models.Float(100 + 5*sign(buy)), Stop: models.Float(100 - 5*sign(buy)),
			})
			if err != nil {
				return false
			}

			var closedOnce *models.Order
			for range path {
				if _, err := e.Driver().Step(context.Background()); err != nil {
					return false
				}
				closed, err := e.Monitor().Evaluate(context.Background())
				if err != nil {
					return false
				}
				if len(closed) > 0 {
					if closedOnce != nil {
						return false
					}
					closedOnce = &closed[0]
				}
				got, _ := e.Order(order.ID)
				if closedOnce != nil && (got.Status != models.OrderStatusClosed ||
					got.ExitPrice != closedOnce.ExitPrice || got.CloseReason != closedOnce.CloseReason) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(20, gen.Float64Range(-8, 8)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func sign(buy bool) float64 {
	if buy {
		return 1
	}
	return -1
}
