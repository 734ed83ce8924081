// Package scoring filters and ranks candidate spreads. The filter
// pipeline is an ordered sequence of pure narrowing stages; survivors
// get a weighted multi-factor quality score and a deterministic rank.
package scoring

import (
	"fmt"

	"options-backtester/internal/models"
)

// Filter stage names, recorded in the rejection audit.
const (
	StageDTE       = "dte_range"
	StageLiquidity = "liquidity"
	StageIVRank    = "iv_rank"
	StageDelta     = "delta_range"
)

// FilterCriteria are the pipeline thresholds.
type FilterCriteria struct {
	MinVolume       int64
	MinOpenInterest int64
	MinIVRank       float64
	ShortDeltaMin   float64
	ShortDeltaMax   float64
	LongDeltaMin    float64
	LongDeltaMax    float64
}

// DefaultFilterCriteria returns the standard entry thresholds.
func DefaultFilterCriteria() FilterCriteria {
	return FilterCriteria{
		MinVolume:       10,
		MinOpenInterest: 50,
		MinIVRank:       60,
		ShortDeltaMin:   0.16,
		ShortDeltaMax:   0.25,
		LongDeltaMin:    0.05,
		LongDeltaMax:    0.10,
	}
}

// Rejection records why a candidate fell out of the pipeline.
type Rejection struct {
	Candidate models.CandidateSpread
	Stage     string
	Reason    string
}

// Pipeline applies the filter stages in order. Each stage only narrows
// the set; a candidate rejected at one stage never reaches the next.
type Pipeline struct {
	criteria FilterCriteria
}

// NewPipeline builds a filter pipeline with the given criteria.
func NewPipeline(criteria FilterCriteria) *Pipeline {
	return &Pipeline{criteria: criteria}
}

// Apply runs every stage over the candidates, returning survivors and
// the rejection audit. The input slice is never mutated. The profile
// supplies the per-ticker DTE window.
func (p *Pipeline) Apply(candidates []models.CandidateSpread, profile models.TickerRiskProfile) ([]models.CandidateSpread, []Rejection) {
	survivors := make([]models.CandidateSpread, 0, len(candidates))
	var rejections []Rejection

	for _, c := range candidates {
		if stage, reason, ok := p.check(c, profile); !ok {
			rejections = append(rejections, Rejection{Candidate: c, Stage: stage, Reason: reason})
			continue
		}
		survivors = append(survivors, c)
	}
	return survivors, rejections
}

func (p *Pipeline) check(c models.CandidateSpread, profile models.TickerRiskProfile) (stage, reason string, ok bool) {
	// Stage 1: DTE window from the ticker profile.
	if c.DTE < profile.DTEMin || c.DTE > profile.DTEMax {
		return StageDTE, fmt.Sprintf("DTE %d outside [%d,%d]", c.DTE, profile.DTEMin, profile.DTEMax), false
	}

	// Stage 2: per-leg liquidity minimums.
	for _, leg := range c.Legs {
		if leg.Quote.Volume < p.criteria.MinVolume {
			return StageLiquidity, fmt.Sprintf("strike %.2f volume %d below %d",
				leg.Quote.Strike, leg.Quote.Volume, p.criteria.MinVolume), false
		}
		if leg.Quote.OpenInterest < p.criteria.MinOpenInterest {
			return StageLiquidity, fmt.Sprintf("strike %.2f open interest %d below %d",
				leg.Quote.Strike, leg.Quote.OpenInterest, p.criteria.MinOpenInterest), false
		}
	}

	// Stage 3: IV rank minimum.
	if c.IVRank < p.criteria.MinIVRank {
		return StageIVRank, fmt.Sprintf("IV rank %.1f below %.1f", c.IVRank, p.criteria.MinIVRank), false
	}

	// Stage 4: per-leg delta bands, by side.
	for _, leg := range c.Legs {
		d := absFloat(leg.Quote.Greeks.Delta)
		switch leg.Side {
		case models.SideShort:
			if d < p.criteria.ShortDeltaMin || d > p.criteria.ShortDeltaMax {
				return StageDelta, fmt.Sprintf("short strike %.2f |delta| %.3f outside [%.2f,%.2f]",
					leg.Quote.Strike, d, p.criteria.ShortDeltaMin, p.criteria.ShortDeltaMax), false
			}
		case models.SideLong:
			if d < p.criteria.LongDeltaMin || d > p.criteria.LongDeltaMax {
				return StageDelta, fmt.Sprintf("long strike %.2f |delta| %.3f outside [%.2f,%.2f]",
					leg.Quote.Strike, d, p.criteria.LongDeltaMin, p.criteria.LongDeltaMax), false
			}
		}
	}

	return "", "", true
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
