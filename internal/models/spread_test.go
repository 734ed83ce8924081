package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func vertical(shortStrike, longStrike float64, right OptionRight) CandidateSpread {
	exp := time.Date(2024, 4, 19, 0, 0, 0, 0, time.UTC)
	return CandidateSpread{
		Ticker:   "XYZ",
		Strategy: "bull_put",
		Legs: []SpreadLeg{
			{Quote: OptionQuote{Strike: shortStrike, Right: right, Expiration: exp}, Side: SideShort, Quantity: 1},
			{Quote: OptionQuote{Strike: longStrike, Right: right, Expiration: exp}, Side: SideLong, Quantity: 1},
		},
		Expiration: exp,
	}
}

func TestPremiumRiskRatio(t *testing.T) {
	c := vertical(95, 90, RightPut)
	c.NetCredit = 110
	c.MaxRisk = -390
	assert.InDelta(t, 110.0/390.0, c.PremiumRiskRatio(), 1e-9)

	c.MaxRisk = 0
	assert.Zero(t, c.PremiumRiskRatio())
}

func TestIntrinsicValuePutSpread(t *testing.T) {
	c := vertical(95, 90, RightPut)

	assert.Zero(t, c.IntrinsicValue(100))              // both OTM
	assert.InDelta(t, 100, c.IntrinsicValue(94), 1e-9) // short ITM only
	assert.InDelta(t, 500, c.IntrinsicValue(85), 1e-9) // both ITM, capped at width
	assert.InDelta(t, 500, c.IntrinsicValue(1), 1e-9)  // stays capped
}

func TestIntrinsicValueCallSpread(t *testing.T) {
	c := vertical(105, 110, RightCall)

	assert.Zero(t, c.IntrinsicValue(100))
	assert.InDelta(t, 200, c.IntrinsicValue(107), 1e-9)
	assert.InDelta(t, 500, c.IntrinsicValue(130), 1e-9)
}

func TestShortLegs(t *testing.T) {
	c := vertical(95, 90, RightPut)
	shorts := c.ShortLegs()
	assert.Len(t, shorts, 1)
	assert.Equal(t, 95.0, shorts[0].Quote.Strike)
}

func TestQuoteMid(t *testing.T) {
	assert.Equal(t, 2.0, OptionQuote{Bid: 1.9, Ask: 2.1}.Mid())
	assert.Equal(t, 1.5, OptionQuote{Bid: 0, Ask: 2.1, Last: 1.5}.Mid())
	assert.Zero(t, OptionQuote{}.Mid())
}

func TestQuoteSpreadPct(t *testing.T) {
	assert.InDelta(t, 0.2222, OptionQuote{Bid: 1.00, Ask: 1.25}.SpreadPct(), 0.0001)
	assert.InDelta(t, 0.10, OptionQuote{Bid: 1.90, Ask: 2.10}.SpreadPct(), 1e-9)
	assert.Equal(t, 1.0, OptionQuote{Bid: 0, Ask: 1.25}.SpreadPct())
	assert.Equal(t, 1.0, OptionQuote{Bid: 1.00, Ask: 0}.SpreadPct())
}

func TestSnapshotMedianIV(t *testing.T) {
	snap := &MarketSnapshot{Quotes: []OptionQuote{
		{IV: 0.30}, {IV: 0.20}, {IV: 0.40},
	}}
	assert.InDelta(t, 0.30, snap.MedianIV(), 1e-9)

	snap.Quotes = append(snap.Quotes, OptionQuote{IV: 0.50})
	assert.InDelta(t, 0.35, snap.MedianIV(), 1e-9)

	// Zero IVs are excluded, an empty chain reports none.
	snap.Quotes = []OptionQuote{{IV: 0}, {IV: 0.25}}
	assert.InDelta(t, 0.25, snap.MedianIV(), 1e-9)
	assert.Zero(t, (&MarketSnapshot{}).MedianIV())
}
