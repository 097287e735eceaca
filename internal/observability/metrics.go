// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	registry *prometheus.Registry

	// Simulation metrics
	TicksGenerated     *prometheus.CounterVec
	DriverTicksSkipped prometheus.Counter
	MarketOpen         prometheus.Gauge

	// Order metrics
	OrdersPlaced   *prometheus.CounterVec
	OrdersRejected prometheus.Counter
	OrdersClosed   *prometheus.CounterVec
	OpenOrders     prometheus.Gauge

	// Scheduler metrics
	TaskRuns     *prometheus.CounterVec
	TaskFailures *prometheus.CounterVec
	TaskDuration *prometheus.HistogramVec

	// Stream metrics
	EventsDropped prometheus.Counter
}

// NewMetrics creates a Metrics instance on its own registry so several
// engines (and tests) can coexist in one process.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "paper_trader"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		TicksGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "ticks_generated_total",
			Help:      "Total number of simulated ticks by instrument",
		}, []string{"symbol"}),
		DriverTicksSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "driver_ticks_skipped_total",
			Help:      "Scheduled driver ticks skipped because the market was closed",
		}),
		MarketOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "market_open",
			Help:      "1 while the simulated market session is open",
		}),

		OrdersPlaced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Total number of orders placed by side",
		}, []string{"side"}),
		OrdersRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "rejected_total",
			Help:      "Total number of rejected placement requests",
		}),
		OrdersClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "closed_total",
			Help:      "Total number of orders closed by reason",
		}, []string{"reason"}),
		OpenOrders: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "open",
			Help:      "Current number of open orders",
		}),

		TaskRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "task_runs_total",
			Help:      "Total number of periodic task runs",
		}, []string{"task"}),
		TaskFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "task_failures_total",
			Help:      "Total number of failed periodic task runs",
		}, []string{"task"}),
		TaskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "task_duration_seconds",
			Help:      "Duration of periodic task runs",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"task"}),

		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_dropped_total",
			Help:      "Events dropped because a subscriber was too slow",
		}),
	}
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetMarketOpen records the session state.
func (m *Metrics) SetMarketOpen(open bool) {
	if open {
		m.MarketOpen.Set(1)
		return
	}
	m.MarketOpen.Set(0)
}
