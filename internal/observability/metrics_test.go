package observability

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsAreIndependentPerInstance(t *testing.T) {
	a := NewMetrics("test")
	b := NewMetrics("test")

	a.OrdersPlaced.WithLabelValues("BUY").Inc()
	a.SetMarketOpen(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.OrdersPlaced.WithLabelValues("BUY")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.OrdersPlaced.WithLabelValues("BUY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.MarketOpen))

	a.SetMarketOpen(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(a.MarketOpen))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics("")
	m.TicksGenerated.WithLabelValues("TCS").Add(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `paper_trader_simulation_ticks_generated_total{symbol="TCS"} 3`)
}
