package models

import "time"

// LegSide indicates whether a leg is bought or sold.
type LegSide string

const (
	SideLong  LegSide = "long"
	SideShort LegSide = "short"
)

// ContractMultiplier is the share count per option contract.
const ContractMultiplier = 100.0

// SpreadLeg is one leg of a multi-leg strategy: a quote plus the side
// taken against it.
type SpreadLeg struct {
	Quote    OptionQuote
	Side     LegSide
	Quantity int
}

// CandidateSpread is one strategy instance assembled from a snapshot,
// before it has been filtered, scored or opened.
type CandidateSpread struct {
	Ticker     string
	Strategy   string
	Legs       []SpreadLeg
	Expiration time.Time

	// Derived at construction.
	NetCredit float64 // premium collected per spread, in dollars
	MaxRisk   float64 // worst-case loss per spread, in dollars
	NetGreeks Greeks
	DTE       int
	IVRank    float64 // 0..100, ticker IV percentile over its trailing range
	PoP       float64 // 0..1, model probability the spread expires profitable
}

// ShortLegs returns the legs sold.
func (c *CandidateSpread) ShortLegs() []SpreadLeg {
	var out []SpreadLeg
	for _, l := range c.Legs {
		if l.Side == SideShort {
			out = append(out, l)
		}
	}
	return out
}

// PremiumRiskRatio is the collected credit as a fraction of max risk.
func (c *CandidateSpread) PremiumRiskRatio() float64 {
	if c.MaxRisk == 0 {
		return 0
	}
	return c.NetCredit / abs(c.MaxRisk)
}

// IntrinsicValue prices the spread at expiration for a terminal
// underlying price, from the short side's perspective (cost to settle).
func (c *CandidateSpread) IntrinsicValue(finalPrice float64) float64 {
	total := 0.0
	for _, l := range c.Legs {
		var intrinsic float64
		if l.Quote.Right == RightCall {
			intrinsic = max(0, finalPrice-l.Quote.Strike)
		} else {
			intrinsic = max(0, l.Quote.Strike-finalPrice)
		}
		v := intrinsic * ContractMultiplier * float64(l.Quantity)
		if l.Side == SideShort {
			total += v
		} else {
			total -= v
		}
	}
	return total
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
