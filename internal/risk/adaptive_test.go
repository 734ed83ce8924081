package risk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-backtester/internal/models"
)

const testUniverse = `SPY:
  asset_class: ETF
  volatility: Low
QQQ:
  asset_class: ETF
  volatility: Medium
TSLA:
  asset_class: Tech
  volatility: High
NVDA:
  asset_class: Tech
  volatility: High
USO:
  asset_class: Commodity
  volatility: Medium
`

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(zerolog.Nop())
	path := filepath.Join(t.TempDir(), "universe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testUniverse), 0o644))
	require.NoError(t, m.LoadUniverse(path))
	return m
}

func TestClassifyVolatility(t *testing.T) {
	cases := []struct {
		meanIV float64
		want   models.VolatilityCategory
	}{
		{0.45, models.VolHigh},
		{0.40, models.VolHigh},
		{0.399, models.VolMedium},
		{0.25, models.VolMedium},
		{0.249, models.VolLow},
		{0.10, models.VolLow},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyVolatility(tc.meanIV), "meanIV=%v", tc.meanIV)
	}
}

func TestLookupCategoryDefaults(t *testing.T) {
	m := newTestManager(t)

	nvda := m.Lookup("NVDA")
	assert.Equal(t, 25.0, nvda.ProfitTargetPct)
	assert.Equal(t, 200.0, nvda.StopLossPct)
	assert.Equal(t, 42, nvda.DTEMin)
	assert.Equal(t, 49, nvda.DTEMax)
	assert.False(t, nvda.Default)

	uso := m.Lookup("USO")
	assert.Equal(t, 35.0, uso.ProfitTargetPct)
	assert.Equal(t, 150.0, uso.StopLossPct)
	assert.Equal(t, 56, uso.DTEMin)
	assert.Equal(t, 60, uso.DTEMax)
}

func TestLookupOverrides(t *testing.T) {
	m := newTestManager(t)

	// TSLA is High vol (category PT 25) but carries a tighter override.
	assert.Equal(t, 20.0, m.Lookup("TSLA").ProfitTargetPct)
	// SPY is Low vol (category PT 50) with a 30 override.
	assert.Equal(t, 30.0, m.Lookup("SPY").ProfitTargetPct)
	assert.Equal(t, 30.0, m.Lookup("QQQ").ProfitTargetPct)
	// Overrides leave stop loss and the DTE window alone.
	assert.Equal(t, 100.0, m.Lookup("SPY").StopLossPct)
	assert.Equal(t, 49, m.Lookup("SPY").DTEMin)
}

func TestLookupUnknownTicker(t *testing.T) {
	m := newTestManager(t)

	got := m.Lookup("XYZ")
	assert.True(t, got.Default)
	assert.Equal(t, 50.0, got.ProfitTargetPct)
	assert.Equal(t, 200.0, got.StopLossPct)
	assert.Equal(t, 35, got.DTEMin)
	assert.Equal(t, 45, got.DTEMax)

	// Repeated lookups resolve identically.
	assert.Equal(t, got, m.Lookup("XYZ"))
}

func TestCustomParameterTables(t *testing.T) {
	params := DefaultParameters()
	params.ProfitTargets[models.VolHigh] = 40
	params.DTEWindows[models.ClassTech] = [2]int{30, 38}
	params.ProfitTargetOverrides = nil

	m := NewManagerWithParameters(params, zerolog.Nop())
	path := filepath.Join(t.TempDir(), "universe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testUniverse), 0o644))
	require.NoError(t, m.LoadUniverse(path))

	nvda := m.Lookup("NVDA")
	assert.Equal(t, 40.0, nvda.ProfitTargetPct)
	assert.Equal(t, 30, nvda.DTEMin)
	assert.Equal(t, 38, nvda.DTEMax)

	// With the override table cleared TSLA resolves by category alone.
	assert.Equal(t, 40.0, m.Lookup("TSLA").ProfitTargetPct)
}

func TestRefreshCategory(t *testing.T) {
	m := newTestManager(t)

	// SPY starts Low. Feed a sustained high-IV window.
	high := make([]float64, 80)
	for i := range high {
		high[i] = 0.50
	}
	m.RefreshCategory("SPY", high)

	got := m.Lookup("SPY")
	assert.Equal(t, models.VolHigh, got.VolatilityCategory)
	assert.Equal(t, 200.0, got.StopLossPct)
	// Override still applies after reclassification.
	assert.Equal(t, 30.0, got.ProfitTargetPct)
	// Asset class and DTE window never change.
	assert.Equal(t, models.ClassETF, got.AssetClass)
	assert.Equal(t, 49, got.DTEMin)
}

func TestRefreshCategoryUsesTrailingWindow(t *testing.T) {
	m := newTestManager(t)

	// Old high IV beyond the lookback must not count: latest 60 days
	// are all low.
	history := make([]float64, 120)
	for i := 0; i < 60; i++ {
		history[i] = 0.90
	}
	for i := 60; i < 120; i++ {
		history[i] = 0.10
	}
	m.RefreshCategory("QQQ", history)
	assert.Equal(t, models.VolLow, m.Lookup("QQQ").VolatilityCategory)
}

func TestRefreshCategoryIgnoresUnknownAndEmpty(t *testing.T) {
	m := newTestManager(t)
	m.RefreshCategory("XYZ", []float64{0.9, 0.9})
	assert.True(t, m.Lookup("XYZ").Default)

	before := m.Lookup("SPY")
	m.RefreshCategory("SPY", nil)
	assert.Equal(t, before, m.Lookup("SPY"))
}

func TestLoadUniverseRejectsBadFile(t *testing.T) {
	m := NewManager(zerolog.Nop())
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("SPY:\n  asset_class: Crypto\n  volatility: Low\n"), 0o644))
	assert.Error(t, m.LoadUniverse(bad))

	badVol := filepath.Join(dir, "badvol.yaml")
	require.NoError(t, os.WriteFile(badVol, []byte("SPY:\n  asset_class: ETF\n  volatility: Extreme\n"), 0o644))
	assert.Error(t, m.LoadUniverse(badVol))

	assert.Error(t, m.LoadUniverse(filepath.Join(dir, "missing.yaml")))
}
