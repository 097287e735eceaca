package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"inditrade-paper/internal/engine"
	"inditrade-paper/internal/models"
	"inditrade-paper/internal/trading"
	"inditrade-paper/pkg/utils"
)

// SimulationResult is the JSON output of the simulate command.
type SimulationResult struct {
	Steps  int            `json:"steps"`
	Seed   int64          `json:"seed"`
	Quotes []models.Quote `json:"quotes"`
	Path   []models.Tick  `json:"path,omitempty"`
	Levels *models.Levels `json:"levels,omitempty"`
}

func newSimulateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the price generator offline",
		Long: `Advance the random walk a number of steps without waiting for the
session clock. The same seed always produces the same prices.

Examples:
  paper-trader simulate --steps 50 --seed 7
  paper-trader simulate --steps 20 --seed 7 --symbol TCS`,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			seed, _ := cmd.Flags().GetInt64("seed")
			symbol, _ := cmd.Flags().GetString("symbol")
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}

			result, err := app.simulate(steps, seed, strings.ToUpper(symbol))
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(result)
			}
			renderSimulation(output, result)
			return nil
		},
	}

	cmd.Flags().Int("steps", 20, "number of steps to simulate")
	cmd.Flags().Int64("seed", 1, "random seed")
	cmd.Flags().String("symbol", "", "simulate only this symbol and print its path")
	return cmd
}

func (app *App) simulate(steps int, seed int64, symbol string) (*SimulationResult, error) {
	opts, err := engineOptions(app.Config)
	if err != nil {
		return nil, err
	}
	if symbol != "" {
		opts.Instruments = []string{symbol}
	}
	if steps > opts.SeriesCapacity {
		opts.SeriesCapacity = steps
	}
	opts.Seed = seed

	mock := clock.NewMock()
	mock.Set(sessionStart(app))
	opts.Clock = mock

	eng := engine.New(opts)
	for i := 0; i < steps; i++ {
		eng.Step()
		mock.Add(opts.TickInterval)
	}

	result := &SimulationResult{Steps: steps, Seed: seed, Quotes: eng.Quotes()}
	if symbol != "" {
		result.Path = eng.Series(symbol)
		if tick, ok := eng.LatestPrice(symbol); ok {
			levels := eng.SuggestLevels(tick.Price)
			result.Levels = &levels
		}
	}
	return result, nil
}

// sessionStart stamps simulated ticks from the next session open so the
// output reads like a trading day.
func sessionStart(app *App) time.Time {
	cfg, err := app.Config.SessionConfig()
	if err != nil {
		return time.Time{}
	}
	return trading.NewSessionClock(cfg).NextOpen(time.Now())
}

func renderSimulation(output *Output, result *SimulationResult) {
	output.Bold("Simulated %d steps (seed %d)", result.Steps, result.Seed)
	output.Println()

	table := NewTable(output, "SYMBOL", "LTP", "PREV", "MOVE").AlignRight(1, 2)
	for _, q := range result.Quotes {
		table.AddRow(output.Symbol(q.Symbol), utils.FormatPrice(q.LTP), utils.FormatPrice(q.Previous), output.Move(q))
	}
	table.Render()

	if len(result.Path) > 0 {
		output.Println()
		path := NewTable(output, "STEP", "TIME", "PRICE").AlignRight(0, 2)
		for i, t := range result.Path {
			path.AddRow(fmt.Sprintf("%d", i+1), t.Timestamp.Format("15:04:05"), utils.FormatPrice(t.Price))
		}
		path.Render()
	}
	if result.Levels != nil {
		output.Println()
		output.Dim("Suggested levels at LTP: target %s, stop %s",
			utils.FormatPrice(result.Levels.Target), utils.FormatPrice(result.Levels.Stop))
	}
}
