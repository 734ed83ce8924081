package scoring

import (
	"sort"

	"options-backtester/internal/models"
)

// Weights define the contribution of each sub-score to the quality
// score. Weights should sum to 1.0.
type Weights struct {
	PremiumRisk  float64
	DTEBias      float64
	Liquidity    float64
	IVRank       float64
	Premium      float64
	DeltaBalance float64
}

// DefaultWeights returns the standard score weights.
func DefaultWeights() Weights {
	return Weights{
		PremiumRisk:  0.45,
		DTEBias:      0.20,
		Liquidity:    0.15,
		IVRank:       0.10,
		Premium:      0.05,
		DeltaBalance: 0.05,
	}
}

// Normalization caps for the sub-scores.
const (
	// premium/risk ratio caps at 400% before normalization.
	premiumRiskCap = 4.0
	// per-leg average volume and open interest saturate here.
	volumeNorm = 100.0
	oiNorm     = 200.0
	// absolute credit saturates here.
	creditNorm = 500.0
)

// ScoredCandidate pairs a candidate with its quality score and the
// sub-score breakdown for audit.
type ScoredCandidate struct {
	models.CandidateSpread
	Score      float64
	Components map[string]float64
}

// Scorer computes weighted multi-factor quality scores.
type Scorer struct {
	weights  Weights
	criteria FilterCriteria
}

// NewScorer builds a scorer with the given weights and the delta band
// used for the balance sub-score.
func NewScorer(weights Weights, criteria FilterCriteria) *Scorer {
	return &Scorer{weights: weights, criteria: criteria}
}

// Score computes the quality score for one candidate. Every sub-score
// is normalized to [0,1] before weighting, so the total also lands in
// [0,1].
func (s *Scorer) Score(c models.CandidateSpread) ScoredCandidate {
	components := map[string]float64{
		"premium_risk":  clamp(c.PremiumRiskRatio()/premiumRiskCap, 0, 1),
		"dte_bias":      dteBias(c.DTE),
		"liquidity":     liquidityScore(c.Legs),
		"iv_rank":       clamp(c.IVRank/100.0, 0, 1),
		"premium":       clamp(c.NetCredit/creditNorm, 0, 1),
		"delta_balance": s.deltaBalance(c.ShortLegs()),
	}

	total := components["premium_risk"]*s.weights.PremiumRisk +
		components["dte_bias"]*s.weights.DTEBias +
		components["liquidity"]*s.weights.Liquidity +
		components["iv_rank"]*s.weights.IVRank +
		components["premium"]*s.weights.Premium +
		components["delta_balance"]*s.weights.DeltaBalance

	return ScoredCandidate{CandidateSpread: c, Score: total, Components: components}
}

// dteBias is a piecewise preference peaking over the 42-56 day window
// and tapering toward very short or very long entries.
func dteBias(dte int) float64 {
	switch {
	case dte >= 42 && dte <= 56:
		return 1.0
	case (dte >= 36 && dte < 42) || (dte > 56 && dte <= 60):
		return 0.85
	case dte >= 30 && dte < 36:
		return 0.60
	case dte >= 22 && dte < 30:
		return 0.40
	default:
		return 0.20
	}
}

// liquidityScore averages volume and open interest across the legs,
// each normalized to its saturation point.
func liquidityScore(legs []models.SpreadLeg) float64 {
	if len(legs) == 0 {
		return 0
	}
	var volume, oi float64
	for _, leg := range legs {
		volume += float64(leg.Quote.Volume)
		oi += float64(leg.Quote.OpenInterest)
	}
	n := float64(len(legs))
	volScore := clamp(volume/n/volumeNorm, 0, 1)
	oiScore := clamp(oi/n/oiNorm, 0, 1)
	return (volScore + oiScore) / 2
}

// deltaBalance rewards short legs sitting at the center of the short
// delta band. A leg at the band midpoint scores 1, a leg at (or past)
// a band edge scores 0.
func (s *Scorer) deltaBalance(shorts []models.SpreadLeg) float64 {
	if len(shorts) == 0 {
		return 0
	}
	mid := (s.criteria.ShortDeltaMin + s.criteria.ShortDeltaMax) / 2
	halfWidth := (s.criteria.ShortDeltaMax - s.criteria.ShortDeltaMin) / 2
	if halfWidth <= 0 {
		return 0
	}
	var total float64
	for _, leg := range shorts {
		dev := absFloat(absFloat(leg.Quote.Greeks.Delta)-mid) / halfWidth
		total += clamp(1-dev, 0, 1)
	}
	return total / float64(len(shorts))
}

// Rank scores and sorts candidates best-first with a deterministic
// tie-break: score, then premium/risk ratio, then ticker. Two runs over
// the same input always produce the same order.
func (s *Scorer) Rank(candidates []models.CandidateSpread) []ScoredCandidate {
	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, s.Score(c))
	}
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ar, br := a.PremiumRiskRatio(), b.PremiumRiskRatio()
		if ar != br {
			return ar > br
		}
		return a.Ticker < b.Ticker
	})
	return scored
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
