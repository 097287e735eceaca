package trading

import (
	"github.com/shopspring/decimal"

	"inditrade-paper/internal/models"
)

// SuggestedStopOffset is the distance below a chart-drawn target used for the stop.
const SuggestedStopOffset = 1.2

// EvaluateExit reports whether an order should close at ltp and why.
//
// BUY closes when ltp >= target or ltp <= stop; SELL closes when
// ltp <= target or ltp >= stop. Unset thresholds never fire. When both fire
// on the same price the target wins; either way the order closes once.
func EvaluateExit(order models.Order, ltp float64) (models.CloseReason, bool) {
	if !order.IsOpen() {
		return "", false
	}

	switch order.Side {
	case models.OrderSideBuy:
		if order.Target != nil && ltp >= *order.Target {
			return models.CloseReasonTarget, true
		}
		if order.Stop != nil && ltp <= *order.Stop {
			return models.CloseReasonStop, true
		}
	case models.OrderSideSell:
		if order.Target != nil && ltp <= *order.Target {
			return models.CloseReasonTarget, true
		}
		if order.Stop != nil && ltp >= *order.Stop {
			return models.CloseReasonStop, true
		}
	}
	return "", false
}

// PnL returns the profit of an order marked at price, rounded to paise.
// Closed orders are marked at their exit price.
func PnL(order models.Order, price float64) float64 {
	if !order.IsOpen() {
		price = order.ExitPrice
	}
	entry := decimal.NewFromFloat(order.EntryPrice)
	mark := decimal.NewFromFloat(price)
	qty := decimal.NewFromInt(int64(order.Quantity))

	diff := mark.Sub(entry)
	if order.Side == models.OrderSideSell {
		diff = diff.Neg()
	}
	pnl, _ := diff.Mul(qty).Round(2).Float64()
	return pnl
}

// SuggestLevels derives a target/stop pair from a price picked on the chart.
func SuggestLevels(target, floor float64) models.Levels {
	t := decimal.NewFromFloat(target).Round(2)
	stop, _ := t.Sub(decimal.NewFromFloat(SuggestedStopOffset)).Float64()
	tf, _ := t.Float64()
	return models.Levels{
		Target: tf,
		Stop:   ClampPrice(stop, floor),
	}
}
