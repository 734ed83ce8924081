// Package quant implements closed-form European option pricing (the
// Black-Scholes-Merton model), analytic greeks, and total leg valuation
// with a model-derived fallback when live quotes are unavailable.
package quant

import (
	"math"

	"options-backtester/internal/errors"
	"options-backtester/internal/models"
)

// Model constants.
const (
	CalendarDaysPerYear = 365.0
	DefaultRiskFreeRate = 0.05
)

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// normPDF is the standard normal probability density function.
func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

// validateInputs rejects inputs outside the model's domain. Valuation
// is total over the declared domain: inside it a price is always
// produced, outside it the caller gets an explicit error, never a
// silent sentinel.
func validateInputs(s, k, t, sigma float64) error {
	switch {
	case s <= 0:
		return errors.NewInvalidInputError("S", s, "underlying price must be positive")
	case k <= 0:
		return errors.NewInvalidInputError("K", k, "strike must be positive")
	case t <= 0:
		return errors.NewInvalidInputError("T", t, "time to expiration must be positive")
	case sigma <= 0:
		return errors.NewInvalidInputError("sigma", sigma, "volatility must be positive")
	}
	return nil
}

// D1D2 computes the BSM auxiliary variables:
//
//	d1 = [ln(S/K) + (r + sigma^2/2)T] / (sigma*sqrt(T))
//	d2 = d1 - sigma*sqrt(T)
func D1D2(s, k, t, r, sigma float64) (d1, d2 float64, err error) {
	if err = validateInputs(s, k, t, sigma); err != nil {
		return 0, 0, err
	}
	sqrtT := math.Sqrt(t)
	d1 = (math.Log(s/k) + (r+0.5*sigma*sigma)*t) / (sigma * sqrtT)
	d2 = d1 - sigma*sqrtT
	return d1, d2, nil
}

// Price computes the closed-form European option price:
//
//	Call: S*N(d1) - K*e^(-rT)*N(d2)
//	Put:  K*e^(-rT)*N(-d2) - S*N(-d1)
func Price(s, k, t, r, sigma float64, right models.OptionRight) (float64, error) {
	d1, d2, err := D1D2(s, k, t, r, sigma)
	if err != nil {
		return 0, err
	}
	discount := math.Exp(-r * t)
	if right == models.RightCall {
		return s*normCDF(d1) - k*discount*normCDF(d2), nil
	}
	return k*discount*normCDF(-d2) - s*normCDF(-d1), nil
}

// PairGreeks holds the analytic greeks for a call and put at the same
// strike and expiry. Gamma and vega are side-independent. Vega and rho
// are scaled per 1% move; theta is per calendar day.
type PairGreeks struct {
	Call models.Greeks
	Put  models.Greeks
}

// Greeks computes first-order sensitivities from the analytic partial
// derivatives of the pricing formula.
func Greeks(s, k, t, r, sigma float64) (PairGreeks, error) {
	d1, d2, err := D1D2(s, k, t, r, sigma)
	if err != nil {
		return PairGreeks{}, err
	}

	sqrtT := math.Sqrt(t)
	discount := math.Exp(-r * t)
	pdfD1 := normPDF(d1)

	deltaCall := normCDF(d1)
	gamma := pdfD1 / (s * sigma * sqrtT)
	vega := s * pdfD1 * sqrtT / 100

	thetaCommon := -(s * pdfD1 * sigma) / (2 * sqrtT)
	thetaCall := (thetaCommon - r*k*discount*normCDF(d2)) / CalendarDaysPerYear
	thetaPut := (thetaCommon + r*k*discount*normCDF(-d2)) / CalendarDaysPerYear

	rhoCall := k * t * discount * normCDF(d2) / 100
	rhoPut := -k * t * discount * normCDF(-d2) / 100

	return PairGreeks{
		Call: models.Greeks{
			Delta: deltaCall,
			Gamma: gamma,
			Vega:  vega,
			Theta: thetaCall,
			Rho:   rhoCall,
		},
		Put: models.Greeks{
			Delta: deltaCall - 1,
			Gamma: gamma,
			Vega:  vega,
			Theta: thetaPut,
			Rho:   rhoPut,
		},
	}, nil
}

// ParityGap returns call - put - (S - K*e^(-rT)), which is zero for a
// correct European pricer. Diagnostic only; the valuation path never
// calls it.
func ParityGap(s, k, t, r, sigma float64) (float64, error) {
	call, err := Price(s, k, t, r, sigma, models.RightCall)
	if err != nil {
		return 0, err
	}
	put, err := Price(s, k, t, r, sigma, models.RightPut)
	if err != nil {
		return 0, err
	}
	return call - put - (s - k*math.Exp(-r*t)), nil
}

// DaysToYears converts calendar days to the year fraction the model
// expects.
func DaysToYears(days int) float64 {
	return float64(days) / CalendarDaysPerYear
}
