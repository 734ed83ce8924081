// Package utils provides shared formatting and retry helpers.
package utils

import (
	"fmt"
	"strings"
)

// FormatUSD formats a dollar amount with thousands separators.
func FormatUSD(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")

	result := "$" + groupThousands(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	return groupThousands(s[:n-3]) + "," + s[n-3:]
}

// FormatPercent formats a percentage with an explicit sign on gains.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatPnL formats a profit or loss with an explicit sign on gains.
func FormatPnL(pnl float64) string {
	formatted := FormatUSD(pnl)
	if pnl > 0 {
		return "+" + formatted
	}
	return formatted
}

// FormatQuantity formats an integer count with commas.
func FormatQuantity(qty int64) string {
	negative := qty < 0
	if negative {
		qty = -qty
	}
	result := groupThousands(fmt.Sprintf("%d", qty))
	if negative {
		result = "-" + result
	}
	return result
}

// FormatCompact abbreviates large dollar amounts (12.3K, 4.56M).
func FormatCompact(amount float64) string {
	abs := amount
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", amount/1e6)
	case abs >= 1e4:
		return fmt.Sprintf("%.1fK", amount/1e3)
	}
	return FormatUSD(amount)
}
