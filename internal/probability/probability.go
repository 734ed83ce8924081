// Package probability estimates probability of profit (PoP) for a
// terminal price range, by two interchangeable methods: an empirical
// estimator over historical windows, and a Monte Carlo simulation of
// the lognormal terminal distribution implied by geometric Brownian
// motion.
package probability

import (
	"math"
	"math/rand"
	"sort"

	"options-backtester/internal/errors"
)

// Range is the profitable terminal price interval, inclusive.
type Range struct {
	Lower float64
	Upper float64
}

// Contains reports whether price falls inside the range.
func (r Range) Contains(price float64) bool {
	return price >= r.Lower && price <= r.Upper
}

func (r Range) validate() error {
	if r.Lower >= r.Upper {
		return errors.NewInvalidInputError("range", r.Lower, "lower bound must be below upper bound")
	}
	return nil
}

// Result is a PoP estimate with distribution statistics over the
// projected terminal prices.
type Result struct {
	PoP           float64 // 0..1
	NumProfitable int
	TotalSamples  int
	Mean          float64
	Std           float64
	Percentiles   Percentiles
}

// Percentiles are the 5/25/50/75/95 quantiles of the projected prices.
type Percentiles struct {
	P5  float64
	P25 float64
	P50 float64
	P75 float64
	P95 float64
}

// WindowPolicy selects how historical windows are sampled for the
// empirical estimator. The exact rule is a documented policy, not a
// hidden constant.
type WindowPolicy int

const (
	// Overlapping draws every horizon-day window the series admits,
	// stepping one observation at a time. Maximizes sample count at the
	// cost of serially correlated samples.
	Overlapping WindowPolicy = iota
	// Disjoint steps a full horizon between windows, trading samples
	// for independence.
	Disjoint
)

// EmpiricalOptions tune the empirical estimator.
type EmpiricalOptions struct {
	MinSamples int
	Policy     WindowPolicy
}

// DefaultMinSamples is the minimum window count for an empirical
// estimate.
const DefaultMinSamples = 30

// Empirical estimates PoP from history alone: each horizon-day window's
// realized return projects a terminal price from the latest close, and
// PoP is the fraction of projections landing inside the profitable
// range.
func Empirical(history []float64, horizonDays int, profitable Range, opts EmpiricalOptions) (Result, error) {
	if horizonDays <= 0 {
		return Result{}, errors.NewInvalidInputError("horizon_days", float64(horizonDays), "must be positive")
	}
	if err := profitable.validate(); err != nil {
		return Result{}, err
	}
	minSamples := opts.MinSamples
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}

	if len(history) < horizonDays+minSamples {
		return Result{}, errors.NewInsufficientDataError(
			horizonDays+minSamples, len(history), "historical price series too short")
	}

	step := 1
	if opts.Policy == Disjoint {
		step = horizonDays
	}

	current := history[len(history)-1]
	var projected []float64
	for i := horizonDays; i < len(history); i += step {
		prev := history[i-horizonDays]
		if prev <= 0 {
			continue
		}
		ret := (history[i] - prev) / prev
		projected = append(projected, current*(1+ret))
	}

	if len(projected) < minSamples {
		return Result{}, errors.NewInsufficientDataError(
			minSamples, len(projected), "too few windows after sampling")
	}

	return summarize(projected, profitable), nil
}

// MonteCarlo estimates PoP by drawing terminal prices from the GBM
// lognormal distribution:
//
//	S(T) = S * exp((r - sigma^2/2)T + sigma*sqrt(T)*Z)
//
// A single step suffices since only the terminal value matters. The
// generator is seed-scoped to this call, so a fixed seed reproduces the
// estimate bit for bit and concurrent callers never share state.
func MonteCarlo(s, sigma, r, t float64, profitable Range, trials int, seed int64) (Result, error) {
	if err := validateGBM(s, sigma, t); err != nil {
		return Result{}, err
	}
	if trials <= 0 {
		return Result{}, errors.NewInvalidInputError("trials", float64(trials), "must be positive")
	}
	if err := profitable.validate(); err != nil {
		return Result{}, err
	}

	rng := rand.New(rand.NewSource(seed))
	drift := (r - 0.5*sigma*sigma) * t
	vol := sigma * math.Sqrt(t)

	finals := make([]float64, trials)
	for i := range finals {
		finals[i] = s * math.Exp(drift+vol*rng.NormFloat64())
	}

	return summarize(finals, profitable), nil
}

func validateGBM(s, sigma, t float64) error {
	switch {
	case s <= 0:
		return errors.NewInvalidInputError("S", s, "underlying price must be positive")
	case sigma <= 0:
		return errors.NewInvalidInputError("sigma", sigma, "volatility must be positive")
	case t <= 0:
		return errors.NewInvalidInputError("T", t, "time horizon must be positive")
	}
	return nil
}

func summarize(prices []float64, profitable Range) Result {
	n := len(prices)
	var sum, profitableCount float64
	for _, p := range prices {
		sum += p
		if profitable.Contains(p) {
			profitableCount++
		}
	}
	mean := sum / float64(n)

	var variance float64
	for _, p := range prices {
		variance += (p - mean) * (p - mean)
	}
	variance /= float64(n)

	sorted := make([]float64, n)
	copy(sorted, prices)
	sort.Float64s(sorted)

	return Result{
		PoP:           profitableCount / float64(n),
		NumProfitable: int(profitableCount),
		TotalSamples:  n,
		Mean:          mean,
		Std:           math.Sqrt(variance),
		Percentiles: Percentiles{
			P5:  quantile(sorted, 0.05),
			P25: quantile(sorted, 0.25),
			P50: quantile(sorted, 0.50),
			P75: quantile(sorted, 0.75),
			P95: quantile(sorted, 0.95),
		},
	}
}

// quantile linearly interpolates over a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
