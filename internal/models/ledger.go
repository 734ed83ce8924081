package models

import "time"

// ClosedTrade is one row of the closed-position ledger, the primary
// backtest output consumed by reporting.
type ClosedTrade struct {
	PositionID       string
	Ticker           string
	Strategy         string
	EntryDate        time.Time
	ExitDate         time.Time
	EntryPrice       float64 // net credit at open
	ExitPrice        float64 // cost to close
	PremiumCollected float64
	RealizedPnL      float64
	ExitReason       ExitReason
	PoP              float64    // model probability of profit at entry
	DTEAtEntry       int
	DaysHeld         int
}

// Profitable reports whether the trade closed with a gain.
func (t ClosedTrade) Profitable() bool {
	return t.RealizedPnL > 0
}

// ReturnPct is realized PnL over the capital the trade committed.
func (t ClosedTrade) ReturnPct(maxRisk float64) float64 {
	if maxRisk == 0 {
		return 0
	}
	return t.RealizedPnL / abs(maxRisk) * 100
}

// EquityPoint is one tick of the portfolio equity curve.
type EquityPoint struct {
	Date            time.Time
	Equity          float64
	Cash            float64
	Committed       float64
	Unrealized      float64
	OpenPositions   int
	ClosedPositions int
}

// RejectedCandidate is one row of the rejected-candidate audit trail.
type RejectedCandidate struct {
	Date   time.Time
	Ticker string
	Stage  string
	Reason string
}
