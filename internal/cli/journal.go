package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"inditrade-paper/internal/models"
	"inditrade-paper/internal/store"
	"inditrade-paper/internal/trading"
	"inditrade-paper/pkg/utils"
)

func newJournalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Review the order journal",
		Long:  "Read the SQLite journal written by 'serve' when journal.enabled is set.",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List journaled orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := app.Config.Journal.Path
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("no journal at %s (enable journal.enabled and run serve)", path)
			}

			journal, err := store.NewSQLiteStore(path)
			if err != nil {
				return err
			}
			defer journal.Close()

			symbol, _ := cmd.Flags().GetString("symbol")
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")

			orders, err := journal.ListOrders(cmd.Context(), store.OrderFilter{
				Symbol: strings.ToUpper(symbol),
				Status: models.OrderStatus(strings.ToUpper(status)),
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(orders)
			}
			renderJournal(output, orders)
			return nil
		},
	}
	list.Flags().String("symbol", "", "filter by symbol")
	list.Flags().String("status", "", "filter by status (OPEN, CLOSED)")
	list.Flags().Int("limit", 50, "maximum rows")

	cmd.AddCommand(list)
	return cmd
}

func renderJournal(output *Output, orders []models.Order) {
	if len(orders) == 0 {
		output.Dim("No journaled orders")
		return
	}

	table := NewTable(output, "PLACED", "SYMBOL", "SIDE", "QTY", "ENTRY", "TARGET", "STOP", "STATUS", "EXIT", "P&L").AlignRight(3, 4, 5, 6, 8, 9)
	for _, o := range orders {
		exit, pnl := "-", "-"
		status := string(o.Status)
		if !o.IsOpen() {
			exit = utils.FormatPrice(o.ExitPrice)
			pnl = output.FormatPnL(trading.PnL(o, o.ExitPrice))
			status += " (" + string(o.CloseReason) + ")"
		}
		table.AddRow(
			o.PlacedAt.Local().Format("02 Jan 15:04:05"),
			output.Symbol(o.Symbol),
			output.Side(o.Side),
			fmt.Sprintf("%d", o.Quantity),
			utils.FormatPrice(o.EntryPrice),
			optionalPrice(o.Target),
			optionalPrice(o.Stop),
			status,
			exit,
			pnl,
		)
	}
	table.Render()
}

func optionalPrice(v *float64) string {
	if v == nil {
		return "-"
	}
	return utils.FormatPrice(*v)
}
