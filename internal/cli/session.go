package cli

import (
	"time"

	"github.com/spf13/cobra"

	"inditrade-paper/internal/trading"
)

func newSessionCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Show whether the market is open",
		Long: `Show the market session state and when it next opens.

Examples:
  paper-trader session
  paper-trader session --at 2026-10-17T10:00:00+05:30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			sessionCfg, err := app.Config.SessionConfig()
			if err != nil {
				return err
			}
			clock := trading.NewSessionClock(sessionCfg)

			at := time.Now()
			if raw, _ := cmd.Flags().GetString("at"); raw != "" {
				at, err = time.Parse(time.RFC3339, raw)
				if err != nil {
					return err
				}
			}

			info := clock.Status(at)
			if output.IsJSON() {
				return output.JSON(info)
			}

			output.Printf("Market:    %s\n", output.MarketStatus(info.Open))
			output.Printf("At:        %s\n", at.In(sessionCfg.Location).Format("Mon, 02 Jan 2006 15:04 MST"))
			if !info.Open {
				output.Printf("Next open: %s\n", info.Description)
				output.Warning("Prices are frozen and the order monitor is paused until the open")
			}
			return nil
		},
	}

	cmd.Flags().String("at", "", "evaluate at this RFC3339 time instead of now")
	return cmd
}
