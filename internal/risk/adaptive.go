// Package risk resolves per-ticker risk parameters: profit target, stop
// loss, and the entry DTE window. Parameters adapt to each ticker's
// volatility regime and asset class rather than applying one global
// setting.
package risk

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"options-backtester/internal/errors"
	"options-backtester/internal/models"
)

// Volatility category thresholds over the trailing mean implied
// volatility.
const (
	HighVolThreshold   = 0.40
	MediumVolThreshold = 0.25

	// IVLookbackDays is the trailing window for category refresh.
	IVLookbackDays = 60
)

// Parameters are the base tables profiles resolve from. They are
// configuration data owned by the manager, not package state.
type Parameters struct {
	// ProfitTargets is the profit target as % of collected premium,
	// keyed by volatility category. Higher-vol names take profits
	// earlier.
	ProfitTargets map[models.VolatilityCategory]float64
	// StopLosses is the stop loss as % of max risk. Higher-vol names
	// get more room before the stop, matching the wider swings of their
	// premium.
	StopLosses map[models.VolatilityCategory]float64
	// DTEWindows is the entry DTE window by asset class.
	DTEWindows map[models.AssetClass][2]int
	// ProfitTargetOverrides are per-ticker profit targets applied after
	// category resolution.
	ProfitTargetOverrides map[string]float64
}

// DefaultParameters returns the standard base tables.
func DefaultParameters() Parameters {
	return Parameters{
		ProfitTargets: map[models.VolatilityCategory]float64{
			models.VolHigh:   25,
			models.VolMedium: 35,
			models.VolLow:    50,
		},
		StopLosses: map[models.VolatilityCategory]float64{
			models.VolHigh:   200,
			models.VolMedium: 150,
			models.VolLow:    100,
		},
		DTEWindows: map[models.AssetClass][2]int{
			models.ClassETF:       {49, 56},
			models.ClassTech:      {42, 49},
			models.ClassCommodity: {56, 60},
		},
		ProfitTargetOverrides: map[string]float64{
			"TSLA": 20,
			"SPY":  30,
			"QQQ":  30,
		},
	}
}

// Defaults for tickers absent from the universe file.
const (
	defaultProfitTarget = 50
	defaultStopLoss     = 200
	defaultDTEMin       = 35
	defaultDTEMax       = 45
)

// universeEntry is the per-ticker record in the universe YAML file.
type universeEntry struct {
	AssetClass string `yaml:"asset_class"`
	Volatility string `yaml:"volatility"`
}

// Manager resolves ticker risk profiles from a classification universe,
// with live volatility-category refresh from observed IV. Safe for
// concurrent use.
type Manager struct {
	mu       sync.RWMutex
	params   Parameters
	universe map[string]models.TickerRiskProfile
	warned   map[string]bool
	log      zerolog.Logger
}

// NewManager returns an empty manager resolving against the default
// base tables. Load a universe with LoadUniverse, or rely on defaults
// for every ticker.
func NewManager(log zerolog.Logger) *Manager {
	return NewManagerWithParameters(DefaultParameters(), log)
}

// NewManagerWithParameters returns an empty manager resolving against
// the given base tables.
func NewManagerWithParameters(params Parameters, log zerolog.Logger) *Manager {
	return &Manager{
		params:   params,
		universe: make(map[string]models.TickerRiskProfile),
		warned:   make(map[string]bool),
		log:      log,
	}
}

// LoadUniverse reads a ticker classification file and replaces the
// manager's universe. The file maps tickers to asset class and starting
// volatility category.
func (m *Manager) LoadUniverse(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading universe file %s", path)
	}

	var entries map[string]universeEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return errors.Wrapf(err, "parsing universe file %s", path)
	}

	universe := make(map[string]models.TickerRiskProfile, len(entries))
	for ticker, e := range entries {
		class := models.AssetClass(e.AssetClass)
		if _, ok := m.params.DTEWindows[class]; !ok {
			return errors.NewInvalidInputError("asset_class", 0,
				"unknown asset class "+e.AssetClass+" for "+ticker)
		}
		category := models.VolatilityCategory(e.Volatility)
		if _, ok := m.params.ProfitTargets[category]; !ok {
			return errors.NewInvalidInputError("volatility", 0,
				"unknown volatility category "+e.Volatility+" for "+ticker)
		}
		universe[ticker] = m.buildProfile(ticker, class, category)
	}

	m.mu.Lock()
	m.universe = universe
	m.mu.Unlock()

	m.log.Info().Int("tickers", len(universe)).Str("path", path).Msg("risk universe loaded")
	return nil
}

// Lookup resolves the risk profile for a ticker. Unknown tickers get
// conservative defaults and a single warning, never an error: the
// backtest must not halt on a missing classification.
func (m *Manager) Lookup(ticker string) models.TickerRiskProfile {
	m.mu.RLock()
	profile, ok := m.universe[ticker]
	m.mu.RUnlock()
	if ok {
		return profile
	}

	m.mu.Lock()
	if !m.warned[ticker] {
		m.warned[ticker] = true
		m.log.Warn().Str("ticker", ticker).Msg("ticker not in universe, applying default risk profile")
	}
	m.mu.Unlock()

	return models.TickerRiskProfile{
		Ticker:          ticker,
		ProfitTargetPct: defaultProfitTarget,
		StopLossPct:     defaultStopLoss,
		DTEMin:          defaultDTEMin,
		DTEMax:          defaultDTEMax,
		Default:         true,
	}
}

// ClassifyVolatility buckets a trailing mean IV into a category.
func ClassifyVolatility(meanIV float64) models.VolatilityCategory {
	switch {
	case meanIV >= HighVolThreshold:
		return models.VolHigh
	case meanIV >= MediumVolThreshold:
		return models.VolMedium
	default:
		return models.VolLow
	}
}

// RefreshCategory reclassifies a known ticker from its trailing IV
// observations, updating profit target and stop loss to the new
// category's values. The asset class and its DTE window never change.
// Unknown tickers and empty histories are left alone.
func (m *Manager) RefreshCategory(ticker string, ivHistory []float64) {
	if len(ivHistory) == 0 {
		return
	}

	window := ivHistory
	if len(window) > IVLookbackDays {
		window = window[len(window)-IVLookbackDays:]
	}
	var sum float64
	for _, iv := range window {
		sum += iv
	}
	category := ClassifyVolatility(sum / float64(len(window)))

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.universe[ticker]
	if !ok || current.VolatilityCategory == category {
		return
	}

	m.log.Info().
		Str("ticker", ticker).
		Str("from", string(current.VolatilityCategory)).
		Str("to", string(category)).
		Msg("volatility category refreshed")
	m.universe[ticker] = m.buildProfile(ticker, current.AssetClass, category)
}

func (m *Manager) buildProfile(ticker string, class models.AssetClass, category models.VolatilityCategory) models.TickerRiskProfile {
	window := m.params.DTEWindows[class]
	pt := m.params.ProfitTargets[category]
	if override, ok := m.params.ProfitTargetOverrides[ticker]; ok {
		pt = override
	}
	return models.TickerRiskProfile{
		Ticker:             ticker,
		AssetClass:         class,
		VolatilityCategory: category,
		ProfitTargetPct:    pt,
		StopLossPct:        m.params.StopLosses[category],
		DTEMin:             window[0],
		DTEMax:             window[1],
	}
}
