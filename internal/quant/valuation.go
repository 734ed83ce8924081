package quant

import (
	"time"

	"options-backtester/internal/errors"
	"options-backtester/internal/models"
)

// PriceSource identifies which strategy produced a leg's value.
type PriceSource string

const (
	SourceQuote PriceSource = "quote" // live bid/ask midpoint
	SourceModel PriceSource = "model" // theoretical fallback
)

// LegValue is a resolved per-leg valuation.
type LegValue struct {
	Price  float64 // per share
	Source PriceSource
}

// SpreadValue is the aggregate valuation of a multi-leg position: the
// cost to settle it, short legs positive, long legs negative, in
// dollars per spread.
type SpreadValue struct {
	Value        float64
	FallbackLegs int // legs priced by the model instead of the market
}

// Engine values option legs with two interchangeable strategies: the
// quoted market price when the day's quote is usable, and a
// model-derived price otherwise. Callers never special-case the
// fallback; every leg whose (S, K, T, sigma) are known resolves to a
// price or an explicit error.
type Engine struct {
	riskFreeRate float64
	defaultIV    float64
}

// NewEngine creates a valuation engine. Both parameters are taken
// verbatim; a zero risk-free rate is a valid rate, not a request for
// the default. Config validation keeps defaultIV positive.
func NewEngine(riskFreeRate, defaultIV float64) *Engine {
	return &Engine{riskFreeRate: riskFreeRate, defaultIV: defaultIV}
}

// RiskFreeRate returns the configured rate.
func (e *Engine) RiskFreeRate() float64 {
	return e.riskFreeRate
}

// LegValue resolves one leg against the snapshot. When the day's chain
// carries a fresh two-sided quote, the midpoint wins; otherwise the leg
// is priced theoretically from the last-known implied volatility (the
// leg's own, then the chain median, then the configured default) and
// the current underlying.
func (e *Engine) LegValue(leg models.SpreadLeg, snap *models.MarketSnapshot) (LegValue, error) {
	q := leg.Quote

	if current, ok := snap.FindQuote(q.Strike, q.Right, q.Expiration); ok {
		if !current.Stale && current.Mid() > 0 {
			return LegValue{Price: current.Mid(), Source: SourceQuote}, nil
		}
		// Quote row exists but is unusable; prefer its IV for the model.
		if current.IV > 0 {
			q.IV = current.IV
		}
	}

	return e.modelValue(q, snap)
}

func (e *Engine) modelValue(q models.OptionQuote, snap *models.MarketSnapshot) (LegValue, error) {
	days := q.DTE(snap.Date)
	if days <= 0 {
		// At or past expiry the option is worth its intrinsic value.
		return LegValue{Price: intrinsic(snap.Underlying, q), Source: SourceModel}, nil
	}

	sigma := q.IV
	if sigma <= 0 {
		sigma = snap.MedianIV()
	}
	if sigma <= 0 {
		sigma = e.defaultIV
	}
	if snap.Underlying <= 0 {
		return LegValue{}, errors.NewValuationError(q.Ticker, q.Strike, string(q.Right),
			"no underlying price for model valuation")
	}

	price, err := Price(snap.Underlying, q.Strike, DaysToYears(days), e.riskFreeRate, sigma, q.Right)
	if err != nil {
		return LegValue{}, errors.Wrap(err, "model valuation")
	}
	return LegValue{Price: price, Source: SourceModel}, nil
}

// SpreadValue values every leg of a position against the snapshot and
// aggregates to the cost of settling the spread. Any single leg that
// cannot be valued fails the whole call; a partial valuation is never
// returned.
func (e *Engine) SpreadValue(legs []models.SpreadLeg, snap *models.MarketSnapshot) (SpreadValue, error) {
	var out SpreadValue
	for _, leg := range legs {
		lv, err := e.LegValue(leg, snap)
		if err != nil {
			return SpreadValue{}, err
		}
		if lv.Source == SourceModel {
			out.FallbackLegs++
		}
		v := lv.Price * models.ContractMultiplier * float64(leg.Quantity)
		if leg.Side == models.SideShort {
			out.Value += v
		} else {
			out.Value -= v
		}
	}
	return out, nil
}

// ExpirationValue settles a spread at its terminal intrinsic value.
func (e *Engine) ExpirationValue(legs []models.SpreadLeg, finalUnderlying float64) float64 {
	c := models.CandidateSpread{Legs: legs}
	return c.IntrinsicValue(finalUnderlying)
}

// TimeToExpiry converts a snapshot date and expiration to a year
// fraction, clamped at zero.
func TimeToExpiry(asOf, expiration time.Time) float64 {
	days := expiration.Sub(asOf).Hours() / 24
	if days < 0 {
		return 0
	}
	return days / CalendarDaysPerYear
}

func intrinsic(underlying float64, q models.OptionQuote) float64 {
	if q.Right == models.RightCall {
		if underlying > q.Strike {
			return underlying - q.Strike
		}
		return 0
	}
	if q.Strike > underlying {
		return q.Strike - underlying
	}
	return 0
}
