package backtest

import (
	"math"

	"options-backtester/internal/models"
)

// Metrics summarizes a finished backtest.
type Metrics struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int

	TotalPnL         float64
	TotalReturn      float64 // % of initial capital
	AnnualizedReturn float64 // %
	WinRate          float64 // %
	AvgWin           float64
	AvgLoss          float64
	ProfitFactor     float64
	Expectancy       float64 // average PnL per trade
	SharpeRatio      float64
	MaxDrawdown      float64 // % peak-to-trough
	AvgDaysHeld      float64

	ByExitReason   map[models.ExitReason]int
	PnLByTicker    map[string]float64
	PnLByDTEBucket map[string]float64 // keyed by entry-DTE bucket
}

func computeMetrics(result *Result) Metrics {
	m := Metrics{
		ByExitReason:   make(map[models.ExitReason]int),
		PnLByTicker:    make(map[string]float64),
		PnLByDTEBucket: make(map[string]float64),
	}
	m.TotalTrades = len(result.Trades)

	var winSum, lossSum, daysSum float64
	for _, trade := range result.Trades {
		m.TotalPnL += trade.RealizedPnL
		m.ByExitReason[trade.ExitReason]++
		m.PnLByTicker[trade.Ticker] += trade.RealizedPnL
		m.PnLByDTEBucket[dteBucket(trade.DTEAtEntry)] += trade.RealizedPnL
		daysSum += float64(trade.DaysHeld)
		if trade.Profitable() {
			m.WinningTrades++
			winSum += trade.RealizedPnL
		} else {
			m.LosingTrades++
			lossSum += trade.RealizedPnL
		}
	}

	if result.InitialCapital > 0 {
		m.TotalReturn = (result.FinalEquity - result.InitialCapital) / result.InitialCapital * 100
	}
	if days := result.EndDate.Sub(result.StartDate).Hours() / 24; days > 0 && result.InitialCapital > 0 && result.FinalEquity > 0 {
		years := days / 365
		m.AnnualizedReturn = (math.Pow(result.FinalEquity/result.InitialCapital, 1/years) - 1) * 100
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
		m.Expectancy = m.TotalPnL / float64(m.TotalTrades)
		m.AvgDaysHeld = daysSum / float64(m.TotalTrades)
	}
	if m.WinningTrades > 0 {
		m.AvgWin = winSum / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = lossSum / float64(m.LosingTrades)
	}
	if lossSum != 0 {
		m.ProfitFactor = winSum / math.Abs(lossSum)
	}

	m.SharpeRatio = sharpeRatio(result.EquityCurve)
	m.MaxDrawdown = maxDrawdown(result.EquityCurve)
	return m
}

// sharpeRatio annualizes the mean/std of daily equity returns against a
// 5% risk-free rate.
func sharpeRatio(curve []models.EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) == 0 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}

	riskFree := 0.05 / 252
	return (mean - riskFree) / std * math.Sqrt(252)
}

// dteBucket groups entry DTEs into the bands the scorer's bias curve
// distinguishes.
func dteBucket(dte int) string {
	switch {
	case dte < 30:
		return "<30"
	case dte <= 45:
		return "30-45"
	case dte <= 60:
		return "46-60"
	}
	return ">60"
}

func maxDrawdown(curve []models.EquityPoint) float64 {
	var peak, worst float64
	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak > 0 {
			dd := (peak - point.Equity) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst * 100
}
