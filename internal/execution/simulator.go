// Package execution simulates order fills for multi-leg spreads under a
// fixed slippage and commission model. Fills are all-or-nothing: a
// spread either fills on every leg or is rejected whole.
package execution

import (
	"options-backtester/internal/errors"
	"options-backtester/internal/models"
)

// Default friction parameters.
const (
	DefaultSlippage     = 0.02 // 2% of the quoted price, against the trader
	DefaultCommission   = 1.00 // dollars per contract per leg
	DefaultMaxSpreadPct = 0.10 // widest acceptable (ask-bid)/mid per leg
)

// LegFill is the simulated execution of one leg.
type LegFill struct {
	Strike   float64
	Right    models.OptionRight
	Side     models.LegSide
	Quantity int
	Quoted   float64 // the side of the book we crossed
	Price    float64 // after slippage
}

// Fill is the simulated execution of a whole spread.
type Fill struct {
	Legs       []LegFill
	Gross      float64 // signed dollars before commission, credit positive
	Commission float64
	Net        float64 // Gross - Commission
}

// Simulator models fills against quoted markets. The zero value is not
// usable; construct with NewSimulator.
type Simulator struct {
	slippage     float64
	commission   float64
	maxSpreadPct float64
}

// NewSimulator builds a simulator. Parameters are taken verbatim, so
// zero slippage or commission means frictionless fills; a non-positive
// maxSpreadPct disables the spread-width check.
func NewSimulator(slippage, commission, maxSpreadPct float64) *Simulator {
	return &Simulator{slippage: slippage, commission: commission, maxSpreadPct: maxSpreadPct}
}

// SimulateOpen fills a spread at entry. Short legs sell at bid less
// slippage, long legs buy at ask plus slippage. Any leg quoted wider
// than the spread limit rejects the whole order.
func (s *Simulator) SimulateOpen(legs []models.SpreadLeg) (Fill, error) {
	return s.simulate(legs, true)
}

// SimulateClose fills a spread at exit, crossing the opposite sides:
// short legs buy back at ask plus slippage, long legs sell at bid less
// slippage. The leg quotes must be current.
func (s *Simulator) SimulateClose(legs []models.SpreadLeg) (Fill, error) {
	return s.simulate(legs, false)
}

func (s *Simulator) simulate(legs []models.SpreadLeg, opening bool) (Fill, error) {
	if len(legs) == 0 {
		return Fill{}, errors.NewInvalidInputError("legs", 0, "spread has no legs")
	}

	// Check every leg before filling any.
	for _, leg := range legs {
		q := leg.Quote
		if q.Bid <= 0 || q.Ask <= 0 {
			return Fill{}, errors.NewSpreadTooWideError(q.Ticker, q.Strike, string(q.Right), 1.0, s.maxSpreadPct)
		}
		if s.maxSpreadPct > 0 && q.SpreadPct() > s.maxSpreadPct {
			return Fill{}, errors.NewSpreadTooWideError(q.Ticker, q.Strike, string(q.Right), q.SpreadPct(), s.maxSpreadPct)
		}
	}

	fill := Fill{Legs: make([]LegFill, 0, len(legs))}
	for _, leg := range legs {
		q := leg.Quote
		selling := (leg.Side == models.SideShort) == opening

		var quoted, price float64
		if selling {
			quoted = q.Bid
			price = q.Bid * (1 - s.slippage)
		} else {
			quoted = q.Ask
			price = q.Ask * (1 + s.slippage)
		}

		qty := float64(leg.Quantity)
		cash := price * models.ContractMultiplier * qty
		if selling {
			fill.Gross += cash
		} else {
			fill.Gross -= cash
		}
		fill.Commission += s.commission * qty

		fill.Legs = append(fill.Legs, LegFill{
			Strike:   q.Strike,
			Right:    q.Right,
			Side:     leg.Side,
			Quantity: leg.Quantity,
			Quoted:   quoted,
			Price:    price,
		})
	}

	fill.Net = fill.Gross - fill.Commission
	return fill, nil
}
