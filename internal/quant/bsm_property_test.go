package quant

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"options-backtester/internal/models"
)

func bsmDomain() (gopter.Gen, gopter.Gen, gopter.Gen, gopter.Gen) {
	spot := gen.Float64Range(5, 1000)
	strike := gen.Float64Range(5, 1000)
	days := gen.IntRange(1, 365)
	sigma := gen.Float64Range(0.05, 1.5)
	return spot, strike, days, sigma
}

func TestPriceBoundsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	spot, strike, days, sigma := bsmDomain()

	properties.Property("call price stays within no-arbitrage bounds", prop.ForAll(
		func(s, k float64, d int, vol float64) bool {
			tt := DaysToYears(d)
			call, err := Price(s, k, tt, 0.05, vol, models.RightCall)
			if err != nil {
				return false
			}
			lower := math.Max(0, s-k*math.Exp(-0.05*tt))
			return call >= lower-1e-9 && call <= s+1e-9
		},
		spot, strike, days, sigma,
	))

	properties.Property("put price stays within no-arbitrage bounds", prop.ForAll(
		func(s, k float64, d int, vol float64) bool {
			tt := DaysToYears(d)
			put, err := Price(s, k, tt, 0.05, vol, models.RightPut)
			if err != nil {
				return false
			}
			discK := k * math.Exp(-0.05*tt)
			lower := math.Max(0, discK-s)
			return put >= lower-1e-9 && put <= discK+1e-9
		},
		spot, strike, days, sigma,
	))

	properties.TestingRun(t)
}

func TestParityHoldsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	spot, strike, days, sigma := bsmDomain()

	properties.Property("put-call parity gap is zero", prop.ForAll(
		func(s, k float64, d int, vol float64) bool {
			gap, err := ParityGap(s, k, DaysToYears(d), 0.05, vol)
			if err != nil {
				return false
			}
			// Parity is exact up to float error, which grows with the
			// magnitudes involved.
			return math.Abs(gap) < 1e-6*math.Max(1, s+k)
		},
		spot, strike, days, sigma,
	))

	properties.TestingRun(t)
}

func TestGreeksShapeProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	spot, strike, days, sigma := bsmDomain()

	properties.Property("gamma and vega never go negative, deltas stay in range", prop.ForAll(
		func(s, k float64, d int, vol float64) bool {
			g, err := Greeks(s, k, DaysToYears(d), 0.05, vol)
			if err != nil {
				return false
			}
			// Deep moneyness underflows the density to zero, so the
			// bounds are closed rather than strict.
			return g.Call.Gamma >= 0 && g.Call.Vega >= 0 &&
				g.Call.Delta >= 0 && g.Call.Delta <= 1 &&
				g.Put.Delta >= -1 && g.Put.Delta <= 0
		},
		spot, strike, days, sigma,
	))

	properties.TestingRun(t)
}
