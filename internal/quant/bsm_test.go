package quant

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-backtester/internal/errors"
	"options-backtester/internal/models"
)

func TestPriceGoldenValues(t *testing.T) {
	s, k, r, sigma := 100.0, 105.0, 0.05, 0.25
	tt := DaysToYears(30)

	call, err := Price(s, k, tt, r, sigma, models.RightCall)
	require.NoError(t, err)
	assert.InDelta(t, 1.19, call, 0.01)

	put, err := Price(s, k, tt, r, sigma, models.RightPut)
	require.NoError(t, err)
	assert.InDelta(t, 5.76, put, 0.01)
}

func TestPutCallParity(t *testing.T) {
	cases := []struct {
		s, k, sigma float64
		days        int
	}{
		{100, 105, 0.25, 30},
		{100, 100, 0.15, 7},
		{450, 430, 0.55, 60},
		{25, 40, 0.80, 365},
	}
	for _, tc := range cases {
		gap, err := ParityGap(tc.s, tc.k, DaysToYears(tc.days), 0.05, tc.sigma)
		require.NoError(t, err)
		assert.InDelta(t, 0, gap, 1e-6, "S=%.0f K=%.0f", tc.s, tc.k)
	}
}

func TestPriceDeepMoneyness(t *testing.T) {
	tt := DaysToYears(30)

	// Deep ITM call converges to discounted forward intrinsic.
	call, err := Price(200, 100, tt, 0.05, 0.25, models.RightCall)
	require.NoError(t, err)
	assert.InDelta(t, 200-100*math.Exp(-0.05*tt), call, 0.01)

	// Deep OTM put is nearly worthless.
	put, err := Price(200, 100, tt, 0.05, 0.25, models.RightPut)
	require.NoError(t, err)
	assert.Less(t, put, 0.01)
}

func TestPriceInvalidInputs(t *testing.T) {
	tt := DaysToYears(30)
	cases := []struct {
		name           string
		s, k, t, sigma float64
		field          string
	}{
		{"zero underlying", 0, 105, tt, 0.25, "S"},
		{"negative underlying", -5, 105, tt, 0.25, "S"},
		{"zero strike", 100, 0, tt, 0.25, "K"},
		{"expired", 100, 105, 0, 0.25, "T"},
		{"negative time", 100, 105, -0.1, 0.25, "T"},
		{"zero vol", 100, 105, tt, 0, "sigma"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Price(tc.s, tc.k, tc.t, 0.05, tc.sigma, models.RightCall)
			require.Error(t, err)

			var inv *errors.InvalidInputError
			require.ErrorAs(t, err, &inv)
			assert.Equal(t, tc.field, inv.Field)
		})
	}
}

func TestGreeksSignsAndScaling(t *testing.T) {
	g, err := Greeks(100, 105, DaysToYears(30), 0.05, 0.25)
	require.NoError(t, err)

	assert.Greater(t, g.Call.Delta, 0.0)
	assert.Less(t, g.Call.Delta, 1.0)
	assert.InDelta(t, g.Call.Delta-1, g.Put.Delta, 1e-12)

	// Gamma and vega are shared across rights and positive.
	assert.Greater(t, g.Call.Gamma, 0.0)
	assert.Equal(t, g.Call.Gamma, g.Put.Gamma)
	assert.Greater(t, g.Call.Vega, 0.0)
	assert.Equal(t, g.Call.Vega, g.Put.Vega)

	// Long options decay.
	assert.Less(t, g.Call.Theta, 0.0)
	assert.Less(t, g.Put.Theta, 0.0)

	assert.Greater(t, g.Call.Rho, 0.0)
	assert.Less(t, g.Put.Rho, 0.0)
}

func TestGreeksDeltaApproximatesPriceSlope(t *testing.T) {
	s, k, r, sigma := 100.0, 105.0, 0.05, 0.25
	tt := DaysToYears(30)
	h := 0.01

	g, err := Greeks(s, k, tt, r, sigma)
	require.NoError(t, err)

	up, err := Price(s+h, k, tt, r, sigma, models.RightCall)
	require.NoError(t, err)
	down, err := Price(s-h, k, tt, r, sigma, models.RightCall)
	require.NoError(t, err)

	assert.InDelta(t, g.Call.Delta, (up-down)/(2*h), 1e-4)
}

func TestDaysToYears(t *testing.T) {
	assert.InDelta(t, 30.0/365.0, DaysToYears(30), 1e-12)
	assert.Equal(t, 1.0, DaysToYears(365))
	assert.Equal(t, 0.0, DaysToYears(0))
}
