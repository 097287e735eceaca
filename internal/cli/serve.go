package cli

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"inditrade-paper/internal/api"
	"inditrade-paper/internal/notify"
	"inditrade-paper/internal/observability"
	"inditrade-paper/internal/store"
	"inditrade-paper/internal/stream"
)

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and its HTTP/WebSocket API",
		Long: `Start the price simulation, the order monitor and the API server.
Runs until interrupted with Ctrl+C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if cmd.Flags().Changed("notify") {
				app.Config.Notify.Terminal, _ = cmd.Flags().GetBool("notify")
			}
			if addr == "" {
				addr = app.Config.Server.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.serve(ctx, addr, cmd.OutOrStdout())
		},
	}

	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().Bool("notify", false, "print order exits and session changes (overrides notify.terminal)")
	return cmd
}

func (app *App) serve(ctx context.Context, addr string, cmdOutput io.Writer) error {
	cfg := app.Config
	logger := app.Logger

	metrics := observability.NewMetrics(cfg.Metrics.Namespace)
	hub := stream.NewHubWithConfig(stream.HubConfig{Metrics: metrics})

	var journal *store.Journal
	if cfg.Journal.Enabled {
		journalStore, err := store.NewSQLiteStore(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer journalStore.Close()
		journal = store.NewJournal(journalStore, logger)
		hub.RegisterConsumer(journal)
		logger.Info().Str("path", cfg.Journal.Path).Msg("Order journal enabled")
	}

	dispatcher := app.newDispatcher(cmdOutput)
	if dispatcher != nil {
		hub.RegisterConsumer(dispatcher)
	}

	eng, err := app.newEngine(metrics, hub)
	if err != nil {
		return err
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = metrics.Handler()
	}
	server := api.NewServer(eng, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        metricsHandler,
		Logger:         logger,
	})

	hub.Start(ctx)
	defer hub.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error { return server.ListenAndServe(gctx, addr) })
	if dispatcher != nil {
		g.Go(func() error { return dispatcher.Run(gctx) })
	}
	if journal != nil {
		g.Go(func() error { return journal.Run(gctx) })
	}

	return g.Wait()
}

// newDispatcher builds the notification dispatcher, or nil when no channel
// is configured.
func (app *App) newDispatcher(terminal io.Writer) *notify.Dispatcher {
	cfg := app.Config.Notify
	if !cfg.Enabled() {
		return nil
	}

	var channels []notify.Channel
	if cfg.Terminal {
		channels = append(channels, notify.NewTerminalChannel(terminal, cfg.Bell))
	}
	if cfg.WebhookURL != "" {
		channels = append(channels, notify.NewWebhookChannel(cfg.WebhookURL, cfg.Timeout))
	}

	dcfg := notify.DefaultDispatcherConfig()
	dcfg.BufferSize = cfg.BufferSize
	dcfg.IncludePlaced = cfg.OnPlaced
	dcfg.Timeout = cfg.Timeout
	return notify.NewDispatcher(dcfg, app.Logger, channels...)
}
