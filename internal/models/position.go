package models

import (
	"fmt"
	"time"
)

// PositionState is the lifecycle state of a position. Transitions move
// strictly forward; closed states are terminal.
type PositionState string

const (
	StateCandidate        PositionState = "candidate"
	StateOpen             PositionState = "open"
	StateClosedProfit     PositionState = "closed_profit"
	StateClosedLoss       PositionState = "closed_loss"
	StateClosedExpiration PositionState = "closed_expiration"
)

// IsTerminal reports whether the state admits no further transitions.
func (s PositionState) IsTerminal() bool {
	switch s {
	case StateClosedProfit, StateClosedLoss, StateClosedExpiration:
		return true
	}
	return false
}

// ExitReason records why a position closed.
type ExitReason string

const (
	ExitProfitTarget ExitReason = "profit_target"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitExpiration   ExitReason = "expiration"
)

// StateForExit maps an exit reason onto the terminal state it produces.
func StateForExit(reason ExitReason) PositionState {
	switch reason {
	case ExitProfitTarget:
		return StateClosedProfit
	case ExitStopLoss:
		return StateClosedLoss
	default:
		return StateClosedExpiration
	}
}

var validTransitions = map[PositionState][]PositionState{
	StateCandidate: {StateOpen},
	StateOpen:      {StateClosedProfit, StateClosedLoss, StateClosedExpiration},
}

// RiskProfile is the subset of a TickerRiskProfile captured on a
// position at entry. It never changes afterwards, regardless of later
// profile refreshes.
type RiskProfile struct {
	ProfitTargetPct float64
	StopLossPct     float64
	DTEMin          int
	DTEMax          int
}

// Position is a spread owned by the portfolio. Identity and entry data
// are fixed at open; exit fields are written exactly once on close.
type Position struct {
	ID       string
	Ticker   string
	Strategy string

	EntryDate       time.Time
	Expiration      time.Time
	DTEAtEntry      int
	UnderlyingEntry float64

	Legs         []SpreadLeg
	EntryPremium float64     // net credit collected at fill
	MaxRisk      float64     // committed capital
	EntryGreeks  Greeks
	PoP          float64     // model probability of profit at entry
	Profile      RiskProfile // captured at entry
	ProfitTarget float64     // dollars: EntryPremium * ProfitTargetPct/100
	StopLoss     float64     // dollars: |MaxRisk| * StopLossPct/100

	State       PositionState
	ExitDate    time.Time
	ExitValue   float64
	ExitReason  ExitReason
	RealizedPnL float64
	DaysHeld    int
}

// Transition moves the position to a new state, rejecting anything the
// lifecycle does not allow; a closed position can never reopen.
func (p *Position) Transition(to PositionState) error {
	for _, next := range validTransitions[p.State] {
		if next == to {
			p.State = to
			return nil
		}
	}
	return fmt.Errorf("invalid position transition: %s -> %s", p.State, to)
}

// Close transitions an open position to the terminal state implied by
// reason and books the exit.
func (p *Position) Close(date time.Time, reason ExitReason, exitValue, pnl float64) error {
	if err := p.Transition(StateForExit(reason)); err != nil {
		return err
	}
	p.ExitDate = date
	p.ExitReason = reason
	p.ExitValue = exitValue
	p.RealizedPnL = pnl
	p.DaysHeld = int(date.Sub(p.EntryDate).Hours() / 24)
	return nil
}
