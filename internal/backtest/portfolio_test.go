package backtest

import (
	"testing"
	"time"

	goerrors "errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-backtester/internal/errors"
	"options-backtester/internal/models"
)

func openTestPosition(ticker string, premium, maxRisk float64) *models.Position {
	return &models.Position{
		ID:           ticker + "-1",
		Ticker:       ticker,
		Strategy:     StrategyBullPut,
		EntryDate:    time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		EntryPremium: premium,
		MaxRisk:      maxRisk,
		State:        models.StateOpen,
	}
}

func TestPortfolioOpenCommitsCapital(t *testing.T) {
	p := NewPortfolio(10000, 5)
	require.NoError(t, p.Open(openTestPosition("SPY", 100, -400)))

	assert.Equal(t, 9600.0, p.Cash())
	assert.Equal(t, 400.0, p.Committed())
	assert.True(t, p.CheckInvariant())
}

func TestPortfolioOnePositionPerTicker(t *testing.T) {
	p := NewPortfolio(10000, 5)
	require.NoError(t, p.Open(openTestPosition("SPY", 100, -400)))

	err := p.Open(openTestPosition("SPY", 80, -300))
	assert.True(t, goerrors.Is(err, errors.ErrTickerHeld))
	assert.Len(t, p.OpenPositions(), 1)
}

func TestPortfolioMaxPositions(t *testing.T) {
	p := NewPortfolio(100000, 2)
	require.NoError(t, p.Open(openTestPosition("SPY", 100, -400)))
	require.NoError(t, p.Open(openTestPosition("QQQ", 100, -400)))

	err := p.Open(openTestPosition("TSLA", 100, -400))
	assert.True(t, goerrors.Is(err, errors.ErrPositionLimit))
}

func TestPortfolioInsufficientCapital(t *testing.T) {
	p := NewPortfolio(300, 5)
	err := p.Open(openTestPosition("SPY", 100, -400))

	var exceeded *errors.CapitalExceededError
	require.True(t, goerrors.As(err, &exceeded))
	assert.Equal(t, 400.0, exceeded.Required)
	assert.Equal(t, 300.0, exceeded.Available)
	// A blocked open leaves the portfolio untouched.
	assert.Equal(t, 300.0, p.Cash())
	assert.Empty(t, p.OpenPositions())
}

func TestPortfolioCloseReleasesCapitalWithPnL(t *testing.T) {
	p := NewPortfolio(10000, 5)
	pos := openTestPosition("SPY", 100, -400)
	pos.PoP = 0.74
	require.NoError(t, p.Open(pos))

	exit := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, pos.Close(exit, models.ExitProfitTarget, 40, 60))
	p.Close(pos)

	assert.Equal(t, 10060.0, p.Cash())
	assert.Equal(t, 0.0, p.Committed())
	assert.True(t, p.CheckInvariant())

	trades := p.ClosedTrades()
	require.Len(t, trades, 1)
	assert.Equal(t, "SPY", trades[0].Ticker)
	assert.Equal(t, 60.0, trades[0].RealizedPnL)
	assert.Equal(t, models.ExitProfitTarget, trades[0].ExitReason)
	assert.Equal(t, 0.74, trades[0].PoP)
	assert.Equal(t, 18, trades[0].DaysHeld)

	// Ticker is free to trade again.
	assert.NoError(t, p.CanOpen("SPY", 400))
}

func TestPortfolioInvariantAfterLosses(t *testing.T) {
	p := NewPortfolio(10000, 5)
	pos := openTestPosition("SPY", 100, -400)
	require.NoError(t, p.Open(pos))

	exit := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, pos.Close(exit, models.ExitStopLoss, 900, -800))
	p.Close(pos)

	assert.Equal(t, 9200.0, p.Cash())
	assert.True(t, p.CheckInvariant())
}

func TestPortfolioMarkEquity(t *testing.T) {
	p := NewPortfolio(10000, 5)
	require.NoError(t, p.Open(openTestPosition("SPY", 100, -400)))

	point := p.MarkEquity(time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), 25)
	assert.Equal(t, 10025.0, point.Equity)
	assert.Equal(t, 9600.0, point.Cash)
	assert.Equal(t, 400.0, point.Committed)
	assert.Equal(t, 1, point.OpenPositions)
	assert.Len(t, p.EquityCurve(), 1)
}

func TestMarkSettlementRewritesSameDatePoint(t *testing.T) {
	p := NewPortfolio(10000, 5)
	pos := openTestPosition("SPY", 100, -400)
	require.NoError(t, p.Open(pos))

	date := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	p.MarkEquity(date, 25)

	exit := date
	require.NoError(t, pos.Close(exit, models.ExitExpiration, 75, 25))
	p.Close(pos)

	point := p.MarkSettlement(date)
	require.Len(t, p.EquityCurve(), 1)
	assert.Equal(t, point, p.EquityCurve()[0])
	assert.Equal(t, 0, point.OpenPositions)
	assert.Equal(t, 1, point.ClosedPositions)
	assert.Equal(t, 0.0, point.Unrealized)
	assert.Equal(t, 10025.0, point.Equity)

	// A date with no prior mark still gets its own point.
	later := date.AddDate(0, 0, 1)
	p.MarkSettlement(later)
	assert.Len(t, p.EquityCurve(), 2)
}

func TestPositionNeverReopens(t *testing.T) {
	pos := openTestPosition("SPY", 100, -400)
	exit := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, pos.Close(exit, models.ExitStopLoss, 900, -800))

	assert.Equal(t, models.StateClosedLoss, pos.State)
	assert.Error(t, pos.Transition(models.StateOpen))
	assert.Error(t, pos.Close(exit, models.ExitProfitTarget, 0, 0))
}
