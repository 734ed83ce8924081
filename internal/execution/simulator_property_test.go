package execution

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"options-backtester/internal/models"
)

func TestSimulatorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	sim := NewSimulator(DefaultSlippage, DefaultCommission, DefaultMaxSpreadPct)

	tightLegs := func(bid, width float64) []models.SpreadLeg {
		return []models.SpreadLeg{
			{
				Side: models.SideShort, Quantity: 1,
				Quote: models.OptionQuote{
					Ticker: "SPY", Strike: 95, Right: models.RightPut,
					Bid: bid, Ask: bid + width,
				},
			},
		}
	}

	properties.Property("slippage always works against the trader", prop.ForAll(
		func(bid, width float64) bool {
			legs := tightLegs(bid, width)
			if legs[0].Quote.SpreadPct() > DefaultMaxSpreadPct {
				return true
			}
			open, errOpen := sim.SimulateOpen(legs)
			cls, errClose := sim.SimulateClose(legs)
			if errOpen != nil || errClose != nil {
				return false
			}
			// Selling fills below bid, buying back fills above ask.
			return open.Legs[0].Price < legs[0].Quote.Bid &&
				cls.Legs[0].Price > legs[0].Quote.Ask
		},
		gen.Float64Range(0.5, 50),
		gen.Float64Range(0.001, 0.5),
	))

	properties.Property("spread check is deterministic and all-or-nothing", prop.ForAll(
		func(bid, width float64) bool {
			legs := tightLegs(bid, width)
			_, err1 := sim.SimulateOpen(legs)
			_, err2 := sim.SimulateOpen(legs)
			if (err1 == nil) != (err2 == nil) {
				return false
			}
			wide := legs[0].Quote.SpreadPct() > DefaultMaxSpreadPct
			return wide == (err1 != nil)
		},
		gen.Float64Range(0.5, 50),
		gen.Float64Range(0.001, 5),
	))

	properties.Property("net never exceeds gross", prop.ForAll(
		func(bid, width float64, qty int) bool {
			legs := tightLegs(bid, width)
			legs[0].Quantity = qty
			fill, err := sim.SimulateOpen(legs)
			if err != nil {
				return true
			}
			return fill.Net <= fill.Gross &&
				fill.Commission == DefaultCommission*float64(qty)
		},
		gen.Float64Range(0.5, 50),
		gen.Float64Range(0.001, 0.5),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}
