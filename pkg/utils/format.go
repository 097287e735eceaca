// Package utils provides shared formatting and retry helpers.
package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RupeeSymbol prefixes formatted currency amounts.
const RupeeSymbol = "₹"

// FormatRupees formats an amount with the Indian digit grouping
// (12,34,567.89) and the rupee symbol.
func FormatRupees(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(2)
	negative := d.IsNegative()
	if negative {
		d = d.Neg()
	}

	parts := strings.SplitN(d.StringFixed(2), ".", 2)
	result := RupeeSymbol + groupIndian(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

// groupIndian groups an integer string as 3 digits then pairs.
func groupIndian(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	result := s[n-3:]
	s = s[:n-3]
	for len(s) > 2 {
		result = s[len(s)-2:] + "," + result
		s = s[:len(s)-2]
	}
	return s + "," + result
}

// FormatPrice formats a price to paise without grouping.
func FormatPrice(price float64) string {
	return decimal.NewFromFloat(price).StringFixed(2)
}

// FormatPnL formats profit and loss with an explicit sign.
func FormatPnL(pnl float64) string {
	formatted := FormatRupees(pnl)
	if decimal.NewFromFloat(pnl).Round(2).IsPositive() {
		return "+" + formatted
	}
	return formatted
}

// FormatChange formats the move from previous to ltp as a signed
// percentage. A non-positive previous price yields "0.00%".
func FormatChange(previous, ltp float64) string {
	prev := decimal.NewFromFloat(previous)
	if !prev.IsPositive() {
		return "0.00%"
	}
	pct := decimal.NewFromFloat(ltp).Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(2)
	sign := ""
	if pct.IsPositive() {
		sign = "+"
	}
	return sign + pct.StringFixed(2) + "%"
}
