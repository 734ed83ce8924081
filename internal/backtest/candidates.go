package backtest

import (
	"sort"
	"time"

	"options-backtester/internal/models"
)

// Strategy names for generated candidates.
const (
	StrategyBullPut  = "bull_put"
	StrategyBearCall = "bear_call"
)

// candidate generation delta bands. Deliberately wider than the filter
// bands so the filter stage, not generation, decides admission.
const (
	genShortDeltaMin = 0.10
	genShortDeltaMax = 0.35
	genLongDeltaMax  = 0.15
)

// ivTracker keeps a rolling window of daily chain IV observations per
// ticker, from which the IV rank of the current day is derived.
type ivTracker struct {
	window  int
	history map[string][]float64
}

const (
	ivRankWindow     = 252
	ivRankMinHistory = 20
	ivRankDefault    = 50.0
)

func newIVTracker() *ivTracker {
	return &ivTracker{window: ivRankWindow, history: make(map[string][]float64)}
}

// Observe appends today's chain IV and trims the window.
func (t *ivTracker) Observe(ticker string, iv float64) {
	if iv <= 0 {
		return
	}
	h := append(t.history[ticker], iv)
	if len(h) > t.window {
		h = h[len(h)-t.window:]
	}
	t.history[ticker] = h
}

// History returns the tracked IV series for a ticker.
func (t *ivTracker) History(ticker string) []float64 {
	return t.history[ticker]
}

// Rank returns the percentile of the latest observation within the
// tracked window, 0..100. Short histories fall back to a neutral rank.
func (t *ivTracker) Rank(ticker string) float64 {
	h := t.history[ticker]
	if len(h) < ivRankMinHistory {
		return ivRankDefault
	}
	current := h[len(h)-1]
	below := 0
	for _, iv := range h {
		if iv < current {
			below++
		}
	}
	return float64(below) / float64(len(h)) * 100
}

// buildCandidates assembles vertical credit spreads from one snapshot:
// bull puts below the underlying and bear calls above it. Generation is
// loose on purpose; the filter pipeline applies the strict bands.
func buildCandidates(snap *models.MarketSnapshot, profile models.TickerRiskProfile, ivRank float64) []models.CandidateSpread {
	var out []models.CandidateSpread

	expirations := chainExpirations(snap)
	for _, exp := range expirations {
		dte := int(exp.Sub(snap.Date).Hours() / 24)
		if dte < profile.DTEMin || dte > profile.DTEMax {
			continue
		}
		chain := snap.QuotesForExpiration(exp)

		puts := quotesByRight(chain, models.RightPut)
		calls := quotesByRight(chain, models.RightCall)

		out = append(out, verticals(snap, puts, models.RightPut, ivRank, dte)...)
		out = append(out, verticals(snap, calls, models.RightCall, ivRank, dte)...)
	}
	return out
}

// verticals pairs every in-band short strike with every in-band long
// strike further out of the money, keeping only net-credit spreads.
func verticals(snap *models.MarketSnapshot, quotes []models.OptionQuote, right models.OptionRight, ivRank float64, dte int) []models.CandidateSpread {
	strategy := StrategyBullPut
	if right == models.RightCall {
		strategy = StrategyBearCall
	}

	var out []models.CandidateSpread
	for _, short := range quotes {
		sd := absDollars(short.Greeks.Delta)
		if sd < genShortDeltaMin || sd > genShortDeltaMax {
			continue
		}
		for _, long := range quotes {
			if !furtherOTM(long.Strike, short.Strike, right) {
				continue
			}
			if absDollars(long.Greeks.Delta) > genLongDeltaMax {
				continue
			}

			credit := (short.Mid() - long.Mid()) * models.ContractMultiplier
			if credit <= 0 {
				continue
			}
			width := absDollars(short.Strike-long.Strike) * models.ContractMultiplier
			risk := width - credit
			if risk <= 0 {
				continue
			}

			out = append(out, models.CandidateSpread{
				Ticker:   snap.Ticker,
				Strategy: strategy,
				Legs: []models.SpreadLeg{
					{Quote: short, Side: models.SideShort, Quantity: 1},
					{Quote: long, Side: models.SideLong, Quantity: 1},
				},
				Expiration: short.Expiration,
				NetCredit:  credit,
				MaxRisk:    -risk,
				NetGreeks: models.Greeks{
					Delta: -short.Greeks.Delta + long.Greeks.Delta,
					Gamma: -short.Greeks.Gamma + long.Greeks.Gamma,
					Theta: -short.Greeks.Theta + long.Greeks.Theta,
					Vega:  -short.Greeks.Vega + long.Greeks.Vega,
					Rho:   -short.Greeks.Rho + long.Greeks.Rho,
				},
				DTE:    dte,
				IVRank: ivRank,
			})
		}
	}
	return out
}

// furtherOTM reports whether candidate sits further out of the money
// than anchor for the given right.
func furtherOTM(candidate, anchor float64, right models.OptionRight) bool {
	if right == models.RightPut {
		return candidate < anchor
	}
	return candidate > anchor
}

func chainExpirations(snap *models.MarketSnapshot) []time.Time {
	seen := make(map[time.Time]bool)
	var out []time.Time
	for _, q := range snap.Quotes {
		if !seen[q.Expiration] {
			seen[q.Expiration] = true
			out = append(out, q.Expiration)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func quotesByRight(chain []models.OptionQuote, right models.OptionRight) []models.OptionQuote {
	var out []models.OptionQuote
	for _, q := range chain {
		if q.Right == right {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strike < out[j].Strike })
	return out
}
