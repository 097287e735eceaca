package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inditrade-paper/internal/errors"
	"inditrade-paper/internal/trading"
)

func TestLoad_WritesTemplateAndUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "config.toml"))
	assert.NoError(t, statErr, "template written on first run")

	assert.Equal(t, []string{"NIFTY", "BANKNIFTY", "RELIANCE", "TCS", "INFY", "HDFCBANK"}, cfg.Simulation.Instruments)
	assert.Equal(t, 900*time.Millisecond, cfg.Simulation.TickInterval)
	assert.Equal(t, 200, cfg.Simulation.SeriesCapacity)
	assert.Equal(t, 60*time.Second, cfg.Session.PollInterval)
	assert.False(t, cfg.Orders.RequireOpenMarket)
	assert.Equal(t, filepath.Join(dir, "journal.db"), cfg.Journal.Path)

	walk := cfg.WalkParams()
	assert.Equal(t, trading.DefaultWalkParams(), walk)

	session, err := cfg.SessionConfig()
	require.NoError(t, err)
	def := trading.DefaultSessionConfig()
	assert.Equal(t, def.Open, session.Open)
	assert.Equal(t, def.Close, session.Close)
	assert.Equal(t, def.TradingDays, session.TradingDays)
	_, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, session.Location).Zone()
	assert.Equal(t, 19800, offset)
}

func TestLoad_ReadsFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
[simulation]
instruments = ["sbin", " wipro "]
tick_interval = "2s"
seed = 42

[session]
open = "10:00"
close = "14:00"
trading_days = ["monday", "Wed"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))
	t.Setenv("PAPER_SERVER_ADDR", ":9999")
	t.Setenv("PAPER_ORDERS_REQUIRE_OPEN_MARKET", "true")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "config.toml"), cfg.File)
	assert.Equal(t, []string{"SBIN", "WIPRO"}, cfg.Simulation.Instruments)
	assert.Equal(t, 2*time.Second, cfg.Simulation.TickInterval)
	assert.Equal(t, int64(42), cfg.Simulation.Seed)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.True(t, cfg.Orders.RequireOpenMarket)

	session, err := cfg.SessionConfig()
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, session.TradingDays)
	assert.Equal(t, trading.ClockTime{Hour: 10, Minute: 0}, session.Open)
}

func TestLoad_DotEnvInConfigDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PAPER_METRICS_NAMESPACE=dotenv_ns\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("PAPER_METRICS_NAMESPACE") })

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "dotenv_ns", cfg.Metrics.Namespace)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no instruments", func(c *Config) { c.Simulation.Instruments = nil }},
		{"duplicate instrument", func(c *Config) { c.Simulation.Instruments = []string{"TCS", "TCS"} }},
		{"zero tick interval", func(c *Config) { c.Simulation.TickInterval = 0 }},
		{"zero capacity", func(c *Config) { c.Simulation.SeriesCapacity = 0 }},
		{"zero floor", func(c *Config) { c.Simulation.PriceFloor = 0 }},
		{"inverted seed range", func(c *Config) { c.Simulation.SeedMin = 300 }},
		{"bad offset", func(c *Config) { c.Session.UTCOffset = "IST" }},
		{"close before open", func(c *Config) { c.Session.Close = "09:00" }},
		{"bad weekday", func(c *Config) { c.Session.TradingDays = []string{"Funday"} }},
		{"zero poll", func(c *Config) { c.Session.PollInterval = 0 }},
		{"zero monitor", func(c *Config) { c.Monitor.Interval = 0 }},
		{"journal without path", func(c *Config) { c.Journal.Enabled = true; c.Journal.Path = "" }},
		{"webhook not http", func(c *Config) { c.Notify.WebhookURL = "ftp://example.com/hook" }},
		{"notify without buffer", func(c *Config) { c.Notify.Terminal = true; c.Notify.BufferSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfigInvalid))
		})
	}
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday("Saturday")
	require.NoError(t, err)
	assert.Equal(t, time.Saturday, d)

	_, err = ParseWeekday("xy")
	assert.Error(t, err)
}
