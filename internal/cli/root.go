// Package cli provides the command-line interface for the paper trader.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inditrade-paper/internal/config"
	"inditrade-paper/internal/logging"
)

// Version information
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

// App holds the application dependencies shared by commands.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger
}

// NewRootCmd creates the root command for the CLI. The configuration is
// loaded before any subcommand runs.
func NewRootCmd(logger zerolog.Logger) *cobra.Command {
	app := &App{Logger: logger}

	rootCmd := &cobra.Command{
		Use:   "paper-trader",
		Short: "Paper trading simulator for the Indian equity session",
		Long: `paper-trader simulates NSE-style prices with a random walk during the
09:15-15:30 IST session and fills paper orders against target and stop levels.

Run 'paper-trader serve' to start the engine with its HTTP and WebSocket API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/paper-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newSessionCmd(app))
	rootCmd.AddCommand(newSimulateCmd(app))
	rootCmd.AddCommand(newJournalCmd(app))

	return rootCmd
}

func (app *App) init(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	if dir == "" {
		dir = config.DefaultConfigDir()
	}
	app.ConfigDir = dir

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	app.Config = cfg

	app.Logger = logging.NewLoggerWithConfig(cfg.LogConfig())
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logging.SetDebugLevel()
		app.Logger = app.Logger.Level(zerolog.DebugLevel)
	}
	app.Logger.Debug().Str("config_dir", dir).Str("file", cfg.File).Msg("Configuration loaded")
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Runs without a config directory.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("paper-trader v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := config.ConfigPath(app.ConfigDir)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Simulation")
	output.Printf("  Instruments:     %v\n", cfg.Simulation.Instruments)
	output.Printf("  Tick interval:   %s\n", cfg.Simulation.TickInterval)
	output.Printf("  Series capacity: %d\n", cfg.Simulation.SeriesCapacity)
	output.Printf("  Step bound:      ±%.2f\n", cfg.Simulation.StepBound)
	output.Printf("  Seed range:      [%.2f, %.2f)\n", cfg.Simulation.SeedMin, cfg.Simulation.SeedMax)
	output.Printf("  Price floor:     %.2f\n", cfg.Simulation.PriceFloor)
	output.Println()

	output.Bold("Session")
	output.Printf("  Hours:           %s-%s %s (UTC%s)\n", cfg.Session.Open, cfg.Session.Close, cfg.Session.ZoneName, cfg.Session.UTCOffset)
	output.Printf("  Trading days:    %v\n", cfg.Session.TradingDays)
	output.Printf("  Poll interval:   %s\n", cfg.Session.PollInterval)
	output.Println()

	output.Bold("Orders")
	output.Printf("  Monitor interval:    %s\n", cfg.Monitor.Interval)
	output.Printf("  Require open market: %v\n", cfg.Orders.RequireOpenMarket)
	output.Println()

	output.Bold("Server")
	output.Printf("  Address:         %s\n", cfg.Server.Addr)
	output.Printf("  Allowed origins: %v\n", cfg.Server.AllowedOrigins)
	output.Printf("  Metrics:         %v\n", cfg.Metrics.Enabled)
	output.Printf("  Journal:         %v (%s)\n", cfg.Journal.Enabled, cfg.Journal.Path)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Terminal:        %v (bell %v)\n", cfg.Notify.Terminal, cfg.Notify.Bell)
	output.Printf("  On placement:    %v\n", cfg.Notify.OnPlaced)
	if cfg.Notify.WebhookURL != "" {
		output.Printf("  Webhook:         %s\n", cfg.Notify.WebhookURL)
	}
	return nil
}
