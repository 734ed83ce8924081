package backtest

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"options-backtester/internal/models"
	"options-backtester/pkg/utils"
)

// WriteSummary renders the headline metrics as a table.
func WriteSummary(w io.Writer, result *Result) {
	m := result.Metrics

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	rows := [][]string{
		{"Period", fmt.Sprintf("%s to %s", result.StartDate.Format("2006-01-02"), result.EndDate.Format("2006-01-02"))},
		{"Initial Capital", utils.FormatUSD(result.InitialCapital)},
		{"Final Equity", utils.FormatUSD(result.FinalEquity)},
		{"Total Return", utils.FormatPercent(m.TotalReturn)},
		{"Annualized Return", utils.FormatPercent(m.AnnualizedReturn)},
		{"Total Trades", fmt.Sprintf("%d", m.TotalTrades)},
		{"Win Rate", fmt.Sprintf("%.1f%%", m.WinRate)},
		{"Profit Factor", fmt.Sprintf("%.2f", m.ProfitFactor)},
		{"Expectancy", utils.FormatUSD(m.Expectancy)},
		{"Avg Win / Avg Loss", fmt.Sprintf("%s / %s", utils.FormatUSD(m.AvgWin), utils.FormatUSD(m.AvgLoss))},
		{"Sharpe Ratio", fmt.Sprintf("%.2f", m.SharpeRatio)},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", m.MaxDrawdown)},
		{"Avg Days Held", fmt.Sprintf("%.1f", m.AvgDaysHeld)},
		{"Fallback Valuations", fmt.Sprintf("%d", result.FallbackValuations)},
		{"Skipped Ticks", fmt.Sprintf("%d", result.SkippedTicks)},
	}
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()

	if len(m.ByExitReason) > 0 {
		fmt.Fprintln(w)
		exits := tablewriter.NewWriter(w)
		exits.SetHeader([]string{"Exit Reason", "Count"})
		exits.SetBorder(false)
		for _, reason := range []models.ExitReason{models.ExitProfitTarget, models.ExitStopLoss, models.ExitExpiration} {
			if n, ok := m.ByExitReason[reason]; ok {
				exits.Append([]string{string(reason), fmt.Sprintf("%d", n)})
			}
		}
		exits.Render()
	}
}

// WriteTrades renders the closed-position ledger as a table.
func WriteTrades(w io.Writer, trades []models.ClosedTrade) {
	if len(trades) == 0 {
		fmt.Fprintln(w, "No closed trades.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Ticker", "Strategy", "Entry", "Exit", "Premium", "PnL", "Reason", "PoP", "DTE", "Held"})
	table.SetBorder(false)

	for _, t := range trades {
		table.Append([]string{
			t.Ticker,
			t.Strategy,
			t.EntryDate.Format("2006-01-02"),
			t.ExitDate.Format("2006-01-02"),
			utils.FormatUSD(t.PremiumCollected),
			utils.FormatPnL(t.RealizedPnL),
			string(t.ExitReason),
			formatPoP(t.PoP),
			fmt.Sprintf("%d", t.DTEAtEntry),
			fmt.Sprintf("%d", t.DaysHeld),
		})
	}
	table.Render()
}

// formatPoP renders an entry PoP estimate, dashing out trades that
// never got one.
func formatPoP(pop float64) string {
	if pop <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", pop*100)
}

// EquityCurveASCII renders the equity curve as a fixed-size text chart.
func EquityCurveASCII(curve []models.EquityPoint, width, height int) string {
	if len(curve) == 0 {
		return "No data to display"
	}

	minEquity := curve[0].Equity
	maxEquity := curve[0].Equity
	for _, point := range curve {
		if point.Equity < minEquity {
			minEquity = point.Equity
		}
		if point.Equity > maxEquity {
			maxEquity = point.Equity
		}
	}

	equityRange := maxEquity - minEquity
	if equityRange == 0 {
		equityRange = 1
	}
	minEquity -= equityRange * 0.05
	maxEquity += equityRange * 0.05
	equityRange = maxEquity - minEquity

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = make([]rune, width)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}

	step := len(curve) / width
	if step == 0 {
		step = 1
	}
	for x := 0; x < width && x*step < len(curve); x++ {
		point := curve[x*step]
		y := int((point.Equity - minEquity) / equityRange * float64(height-1))
		if y >= 0 && y < height {
			grid[height-1-y][x] = '█'
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Equity Curve (%.0f - %.0f)\n", minEquity, maxEquity))
	sb.WriteString(strings.Repeat("─", width+2) + "\n")
	for _, row := range grid {
		sb.WriteRune('│')
		sb.WriteString(string(row))
		sb.WriteRune('│')
		sb.WriteRune('\n')
	}
	sb.WriteString(strings.Repeat("─", width+2) + "\n")
	return sb.String()
}
