// Package models defines the core data model: market snapshots, option
// quotes, candidate spreads, positions and the portfolio ledger.
package models

import "time"

// OptionRight identifies the option contract type.
type OptionRight string

const (
	RightCall OptionRight = "call"
	RightPut  OptionRight = "put"
)

// Greeks holds first-order option price sensitivities.
type Greeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// OptionQuote is a single option contract observation within a snapshot.
// Stale is set by the loader when the day carried no usable bid/ask; the
// valuation engine then falls back to a model price from IV.
type OptionQuote struct {
	Ticker       string
	Strike       float64
	Expiration   time.Time
	Right        OptionRight
	Bid          float64
	Ask          float64
	Last         float64
	Volume       int64
	OpenInterest int64
	IV           float64
	Greeks       Greeks
	Stale        bool
}

// Mid returns the bid/ask midpoint, or the last trade when the quote is
// one-sided or stale.
func (q OptionQuote) Mid() float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	return q.Last
}

// SpreadPct returns the bid/ask spread as a fraction of the midpoint.
// A quote without both sides is reported as fully wide.
func (q OptionQuote) SpreadPct() float64 {
	if q.Bid <= 0 || q.Ask <= 0 {
		return 1.0
	}
	mid := (q.Bid + q.Ask) / 2
	if mid <= 0 {
		return 1.0
	}
	return (q.Ask - q.Bid) / mid
}

// DTE returns calendar days from the snapshot date to expiration.
func (q OptionQuote) DTE(asOf time.Time) int {
	return int(q.Expiration.Sub(asOf).Hours() / 24)
}

// MarketSnapshot is one ticker's option chain on one trading day.
// Snapshots are immutable once produced by the loader.
type MarketSnapshot struct {
	Date       time.Time
	Ticker     string
	Underlying float64
	Quotes     []OptionQuote
}

// QuotesForExpiration returns the chain slice for a single expiration.
func (s *MarketSnapshot) QuotesForExpiration(exp time.Time) []OptionQuote {
	var out []OptionQuote
	for _, q := range s.Quotes {
		if q.Expiration.Equal(exp) {
			out = append(out, q)
		}
	}
	return out
}

// FindQuote locates the quote matching a strike/right/expiration, if the
// day's chain carries it.
func (s *MarketSnapshot) FindQuote(strike float64, right OptionRight, exp time.Time) (OptionQuote, bool) {
	for _, q := range s.Quotes {
		if q.Strike == strike && q.Right == right && q.Expiration.Equal(exp) {
			return q, true
		}
	}
	return OptionQuote{}, false
}

// MedianIV returns the median implied volatility across the chain, used
// as the fallback volatility when a leg's own IV is unavailable.
func (s *MarketSnapshot) MedianIV() float64 {
	ivs := make([]float64, 0, len(s.Quotes))
	for _, q := range s.Quotes {
		if q.IV > 0 {
			ivs = append(ivs, q.IV)
		}
	}
	if len(ivs) == 0 {
		return 0
	}
	// insertion sort; chains are small enough per expiration
	for i := 1; i < len(ivs); i++ {
		for j := i; j > 0 && ivs[j] < ivs[j-1]; j-- {
			ivs[j], ivs[j-1] = ivs[j-1], ivs[j]
		}
	}
	n := len(ivs)
	if n%2 == 1 {
		return ivs[n/2]
	}
	return (ivs[n/2-1] + ivs[n/2]) / 2
}
