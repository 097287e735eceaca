package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Paper Trader configuration
# Every key can be overridden with PAPER_<SECTION>_<KEY>, e.g. PAPER_SERVER_ADDR.

[simulation]
# Instruments simulated from startup
instruments = ["NIFTY", "BANKNIFTY", "RELIANCE", "TCS", "INFY", "HDFCBANK"]
# Time between random walk steps
tick_interval = "900ms"
# Ticks retained per instrument
series_capacity = 200
# Largest move per step in either direction
step_bound = 0.4
# Range the first price of an instrument is drawn from
seed_min = 100.0
seed_max = 200.0
# Prices never fall below this floor
price_floor = 1.0
# Random seed, 0 seeds from the clock
seed = 0

[session]
utc_offset = "+05:30"
zone_name = "IST"
# Open and close are both inclusive
open = "09:15"
close = "15:30"
trading_days = ["Mon", "Tue", "Wed", "Thu", "Fri"]
# How often the open/closed flag is recomputed
poll_interval = "60s"

[monitor]
# Time between target/stop checks
interval = "900ms"

[orders]
# Reject placement while the market is closed
require_open_market = false

[server]
addr = "127.0.0.1:8080"
allowed_origins = ["*"]

[journal]
# Record order lifecycle events in SQLite
enabled = false
# path = "~/.config/paper-trader/journal.db"

[metrics]
enabled = true
namespace = "paper_trader"

[notify]
# Print order closes and session changes to the terminal
terminal = false
# Ring the terminal bell on target/stop exits
bell = false
# Also notify when an order is placed
on_placed = false
# POST notifications as JSON to this URL
webhook_url = ""
timeout = "10s"
buffer_size = 100

[log]
# debug, info, warn, error
level = "info"
console = true
file = false
max_size = 50
max_backups = 5
max_age = 14
`

// Template returns the default config file contents.
func Template() string {
	return configTemplate
}

// createTemplateConfig writes config.toml into configDir unless it exists.
func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}
