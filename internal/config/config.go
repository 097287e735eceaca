// Package config handles application configuration management.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"inditrade-paper/internal/errors"
	"inditrade-paper/internal/logging"
	"inditrade-paper/internal/trading"
)

// EnvPrefix prefixes every environment override, e.g. PAPER_SERVER_ADDR.
const EnvPrefix = "PAPER"

// Config holds all application configuration.
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	Session    SessionConfig    `mapstructure:"session"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Orders     OrdersConfig     `mapstructure:"orders"`
	Server     ServerConfig     `mapstructure:"server"`
	Journal    JournalConfig    `mapstructure:"journal"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Log        LogConfig        `mapstructure:"log"`

	// File is the config file that was read, empty when running on defaults.
	File string `mapstructure:"-"`
}

// SimulationConfig shapes the random walk and the tracked instruments.
type SimulationConfig struct {
	Instruments    []string      `mapstructure:"instruments"`
	TickInterval   time.Duration `mapstructure:"tick_interval"`
	SeriesCapacity int           `mapstructure:"series_capacity"`
	StepBound      float64       `mapstructure:"step_bound"`
	SeedMin        float64       `mapstructure:"seed_min"`
	SeedMax        float64       `mapstructure:"seed_max"`
	PriceFloor     float64       `mapstructure:"price_floor"`
	Seed           int64         `mapstructure:"seed"` // 0 = time-based
}

// SessionConfig describes the exchange session.
type SessionConfig struct {
	UTCOffset    string        `mapstructure:"utc_offset"`
	ZoneName     string        `mapstructure:"zone_name"`
	Open         string        `mapstructure:"open"`
	Close        string        `mapstructure:"close"`
	TradingDays  []string      `mapstructure:"trading_days"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// MonitorConfig controls the order monitor.
type MonitorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// OrdersConfig controls order placement.
type OrdersConfig struct {
	RequireOpenMarket bool `mapstructure:"require_open_market"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// JournalConfig controls the SQLite order journal.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// NotifyConfig controls order and session notifications.
type NotifyConfig struct {
	Terminal   bool          `mapstructure:"terminal"`
	Bell       bool          `mapstructure:"bell"`
	OnPlaced   bool          `mapstructure:"on_placed"`
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	BufferSize int           `mapstructure:"buffer_size"`
}

// Enabled reports whether any notification channel is configured.
func (n NotifyConfig) Enabled() bool {
	return n.Terminal || n.WebhookURL != ""
}

// LogConfig mirrors logging.LogConfig.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/paper-trader"
	}
	return filepath.Join(home, ".config", "paper-trader")
}

// ConfigPath returns the config file path inside configDir.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("simulation.instruments", []string{"NIFTY", "BANKNIFTY", "RELIANCE", "TCS", "INFY", "HDFCBANK"})
	v.SetDefault("simulation.tick_interval", 900*time.Millisecond)
	v.SetDefault("simulation.series_capacity", 200)
	v.SetDefault("simulation.step_bound", 0.4)
	v.SetDefault("simulation.seed_min", 100.0)
	v.SetDefault("simulation.seed_max", 200.0)
	v.SetDefault("simulation.price_floor", 1.0)
	v.SetDefault("simulation.seed", 0)

	v.SetDefault("session.utc_offset", "+05:30")
	v.SetDefault("session.zone_name", "IST")
	v.SetDefault("session.open", "09:15")
	v.SetDefault("session.close", "15:30")
	v.SetDefault("session.trading_days", []string{"Mon", "Tue", "Wed", "Thu", "Fri"})
	v.SetDefault("session.poll_interval", 60*time.Second)

	v.SetDefault("monitor.interval", 900*time.Millisecond)

	v.SetDefault("orders.require_open_market", false)

	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.path", filepath.Join(configDir, "journal.db"))

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "paper_trader")

	v.SetDefault("notify.terminal", false)
	v.SetDefault("notify.bell", false)
	v.SetDefault("notify.on_placed", false)
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.timeout", 10*time.Second)
	v.SetDefault("notify.buffer_size", 100)

	logDefaults := logging.DefaultLogConfig()
	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.console", logDefaults.Console)
	v.SetDefault("log.file", logDefaults.File)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "paper-trader.log"))
	v.SetDefault("log.max_size", logDefaults.MaxSize)
	v.SetDefault("log.max_backups", logDefaults.MaxBackups)
	v.SetDefault("log.max_age", logDefaults.MaxAge)
}

// Load reads config.toml from configDir, writing a template on first run,
// then applies .env files and PAPER_* environment overrides.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	loadDotEnv(configDir)

	v := newViper(configDir)
	v.AddConfigPath(configDir)

	cfg := &Config{}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, fmt.Errorf("writing config template: %w", err)
		}
	} else {
		cfg.File = v.ConfigFileUsed()
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// LoadFile reads one explicit config file. The file must exist.
func LoadFile(path string) (*Config, error) {
	configDir := filepath.Dir(path)
	loadDotEnv(configDir)

	v := newViper(configDir)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	cfg := &Config{File: v.ConfigFileUsed()}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration built from defaults and the
// environment only.
func Default() *Config {
	v := newViper(DefaultConfigDir())
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	cfg.normalize()
	return cfg
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	SetDefaults(v, configDir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadDotEnv loads .env from the working directory and configDir. Existing
// environment variables win.
func loadDotEnv(configDir string) {
	for _, path := range []string{".env", filepath.Join(configDir, ".env")} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

func (c *Config) normalize() {
	for i, s := range c.Simulation.Instruments {
		c.Simulation.Instruments[i] = strings.ToUpper(strings.TrimSpace(s))
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return errors.Wrapf(errors.ErrConfigInvalid, format, args...)
	}

	sim := c.Simulation
	if len(sim.Instruments) == 0 {
		return invalid("simulation.instruments must not be empty")
	}
	seen := make(map[string]bool, len(sim.Instruments))
	for _, s := range sim.Instruments {
		if s == "" {
			return invalid("simulation.instruments contains an empty symbol")
		}
		if seen[s] {
			return invalid("simulation.instruments lists %s twice", s)
		}
		seen[s] = true
	}
	if sim.TickInterval <= 0 {
		return invalid("simulation.tick_interval must be positive")
	}
	if sim.SeriesCapacity < 1 {
		return invalid("simulation.series_capacity must be at least 1")
	}
	if sim.StepBound < 0 {
		return invalid("simulation.step_bound must be non-negative")
	}
	if sim.PriceFloor <= 0 {
		return invalid("simulation.price_floor must be positive")
	}
	if sim.SeedMin >= sim.SeedMax {
		return invalid("simulation.seed_min must be below seed_max")
	}

	if _, err := c.SessionConfig(); err != nil {
		return invalid("%v", err)
	}
	if c.Session.PollInterval <= 0 {
		return invalid("session.poll_interval must be positive")
	}
	if c.Monitor.Interval <= 0 {
		return invalid("monitor.interval must be positive")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return invalid("journal.path is required when the journal is enabled")
	}
	if c.Notify.WebhookURL != "" {
		u, err := url.Parse(c.Notify.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("notify.webhook_url must be an http(s) URL")
		}
	}
	if c.Notify.Enabled() && c.Notify.BufferSize <= 0 {
		return invalid("notify.buffer_size must be positive")
	}
	return nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ParseWeekday accepts "Mon", "monday" and similar.
func ParseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if len(key) >= 3 {
		if d, ok := weekdays[key[:3]]; ok {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// SessionConfig converts the [session] section.
func (c *Config) SessionConfig() (trading.SessionConfig, error) {
	s := c.Session
	loc, err := trading.ParseUTCOffset(s.ZoneName, s.UTCOffset)
	if err != nil {
		return trading.SessionConfig{}, fmt.Errorf("session.utc_offset: %w", err)
	}
	open, err := trading.ParseClockTime(s.Open)
	if err != nil {
		return trading.SessionConfig{}, fmt.Errorf("session.open: %w", err)
	}
	closeAt, err := trading.ParseClockTime(s.Close)
	if err != nil {
		return trading.SessionConfig{}, fmt.Errorf("session.close: %w", err)
	}
	if closeAt.Minutes() <= open.Minutes() {
		return trading.SessionConfig{}, fmt.Errorf("session.close must be after session.open")
	}
	if len(s.TradingDays) == 0 {
		return trading.SessionConfig{}, fmt.Errorf("session.trading_days must not be empty")
	}

	days := make([]time.Weekday, 0, len(s.TradingDays))
	for _, name := range s.TradingDays {
		d, err := ParseWeekday(name)
		if err != nil {
			return trading.SessionConfig{}, fmt.Errorf("session.trading_days: %w", err)
		}
		days = append(days, d)
	}

	return trading.SessionConfig{Location: loc, Open: open, Close: closeAt, TradingDays: days}, nil
}

// WalkParams converts the random walk settings.
func (c *Config) WalkParams() trading.WalkParams {
	return trading.WalkParams{
		SeedMin:   c.Simulation.SeedMin,
		SeedMax:   c.Simulation.SeedMax,
		StepBound: c.Simulation.StepBound,
		Floor:     c.Simulation.PriceFloor,
	}
}

// LogConfig converts the [log] section.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Log.Level,
		Console:    c.Log.Console,
		File:       c.Log.File,
		FilePath:   c.Log.FilePath,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
	}
}
