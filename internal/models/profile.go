package models

// VolatilityCategory buckets a ticker by its trailing mean implied
// volatility.
type VolatilityCategory string

const (
	VolHigh   VolatilityCategory = "High"   // mean IV >= 0.40
	VolMedium VolatilityCategory = "Medium" // 0.25 <= mean IV < 0.40
	VolLow    VolatilityCategory = "Low"    // mean IV < 0.25
)

// AssetClass groups tickers for DTE selection.
type AssetClass string

const (
	ClassETF       AssetClass = "ETF"
	ClassTech      AssetClass = "Tech"
	ClassCommodity AssetClass = "Commodity"
)

// TickerRiskProfile is the per-ticker risk configuration resolved by the
// parameter manager: profit target and stop loss percentages plus the
// DTE entry window. Consumed read-only by the backtest core.
type TickerRiskProfile struct {
	Ticker             string
	AssetClass         AssetClass
	VolatilityCategory VolatilityCategory
	ProfitTargetPct    float64 // % of collected premium
	StopLossPct        float64 // % of max risk
	DTEMin             int
	DTEMax             int
	Default            bool // true when resolved from the unknown-ticker default
}

// CapturedProfile copies the exit-relevant fields onto a position.
func (p TickerRiskProfile) CapturedProfile() RiskProfile {
	return RiskProfile{
		ProfitTargetPct: p.ProfitTargetPct,
		StopLossPct:     p.StopLossPct,
		DTEMin:          p.DTEMin,
		DTEMax:          p.DTEMax,
	}
}
