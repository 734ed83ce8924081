package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	goerrors "errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-backtester/internal/backtest"
	"options-backtester/internal/errors"
	"options-backtester/internal/models"
)

const chainCSV = `date,underlying,strike,expiration,right,bid,ask,last,volume,open_interest,iv,delta,gamma,theta,vega
2025-06-02,100.00,95,2025-07-18,put,2.00,2.10,2.05,150,400,0.30,-0.20,0.01,-0.05,0.10
2025-06-02,100.00,90,2025-07-18,put,0.90,1.00,0.95,120,300,0.32,-0.08,0.008,-0.03,0.07
2025-06-03,101.50,95,2025-07-18,put,1.70,1.80,1.75,140,410,0.29,-0.17,0.01,-0.05,0.10
2025-06-03,101.50,90,2025-07-18,put,0.75,0.85,0.80,110,310,0.31,-0.07,0.008,-0.03,0.07
`

func writeChain(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTickerSnapshots(t *testing.T) {
	path := writeChain(t, t.TempDir(), "XYZ.csv", chainCSV)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	snaps, err := LoadTickerSnapshots(path, "XYZ", start, end)
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	first := snaps[0]
	assert.Equal(t, "XYZ", first.Ticker)
	assert.Equal(t, 100.0, first.Underlying)
	require.Len(t, first.Quotes, 2)
	assert.Equal(t, models.RightPut, first.Quotes[0].Right)
	assert.Equal(t, 95.0, first.Quotes[0].Strike)
	assert.Equal(t, int64(150), first.Quotes[0].Volume)
	assert.InDelta(t, -0.20, first.Quotes[0].Greeks.Delta, 1e-9)
	assert.False(t, first.Quotes[0].Stale)

	// Chronological order.
	assert.True(t, snaps[0].Date.Before(snaps[1].Date))
}

func TestLoadTickerSnapshotsDateFilter(t *testing.T) {
	path := writeChain(t, t.TempDir(), "XYZ.csv", chainCSV)

	start := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	snaps, err := LoadTickerSnapshots(path, "XYZ", start, end)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 101.5, snaps[0].Underlying)
}

func TestLoadTickerSnapshotsMarksStaleQuotes(t *testing.T) {
	csv := `date,underlying,strike,expiration,right,bid,ask,last,volume,open_interest,iv,delta,gamma,theta,vega
2025-06-02,100.00,95,2025-07-18,put,0,0,2.05,150,400,0.30,-0.20,0.01,-0.05,0.10
`
	path := writeChain(t, t.TempDir(), "XYZ.csv", csv)
	snaps, err := LoadTickerSnapshots(path, "XYZ",
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].Quotes[0].Stale)
}

func TestLoadTickerSnapshotsMissingSchema(t *testing.T) {
	csv := "date,strike,bid,ask\n2025-06-02,95,2.00,2.10\n"
	path := writeChain(t, t.TempDir(), "bad.csv", csv)

	_, err := LoadTickerSnapshots(path, "XYZ", time.Time{}, time.Now())
	require.Error(t, err)
	assert.True(t, goerrors.Is(err, errors.ErrMissingSchema))
}

func TestLoadUniverseSnapshotsMissingFile(t *testing.T) {
	dir := t.TempDir()
	writeChain(t, dir, "XYZ.csv", chainCSV)

	_, err := LoadUniverseSnapshots(dir, []string{"XYZ", "ABSENT"},
		time.Time{}, time.Now())
	assert.Error(t, err)
}

func TestResultStoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "results.db")
	s, err := NewResultStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, 0)
	result := &backtest.Result{
		StartDate:      start,
		EndDate:        end,
		InitialCapital: 10000,
		FinalEquity:    10800,
		Trades: []models.ClosedTrade{
			{
				PositionID: "p1", Ticker: "XYZ", Strategy: "bull_put",
				EntryDate: start, ExitDate: start.AddDate(0, 0, 12),
				EntryPrice: 92, ExitPrice: 36, PremiumCollected: 92,
				RealizedPnL: 56, ExitReason: models.ExitProfitTarget,
				PoP: 0.73, DTEAtEntry: 40, DaysHeld: 12,
			},
		},
		EquityCurve: []models.EquityPoint{
			{Date: start, Equity: 10000, Cash: 9592, Committed: 408},
			{Date: end, Equity: 10800, Cash: 10800},
		},
		Rejections: []models.RejectedCandidate{
			{Date: start, Ticker: "XYZ", Stage: "iv_rank", Reason: "IV rank 40.0 below 60.0"},
		},
	}
	result.Metrics.TotalTrades = 1
	result.Metrics.WinRate = 100
	result.Metrics.TotalReturn = 8

	ctx := context.Background()
	runID, err := s.SaveRun(ctx, result)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, 1, runs[0].TotalTrades)
	assert.InDelta(t, 8.0, runs[0].TotalReturn, 1e-9)

	n, err := s.TradeCount(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
