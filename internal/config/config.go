// Package config provides configuration management for the backtester.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Backtest  BacktestConfig  `mapstructure:"backtest"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Filters   FilterConfig    `mapstructure:"filters"`
	Valuation ValuationConfig `mapstructure:"valuation"`
	Data      DataConfig      `mapstructure:"data"`
	Log       LogConfig       `mapstructure:"log"`
}

// BacktestConfig holds the replay parameters.
type BacktestConfig struct {
	StartDate      string   `mapstructure:"start_date"` // YYYY-MM-DD
	EndDate        string   `mapstructure:"end_date"`
	InitialCapital float64  `mapstructure:"initial_capital"`
	MaxPositions   int      `mapstructure:"max_positions"`
	Tickers        []string `mapstructure:"tickers"`
	UniverseFile   string   `mapstructure:"universe_file"` // ticker risk classification YAML
}

// ExecutionConfig holds fill simulation parameters.
type ExecutionConfig struct {
	Slippage              float64 `mapstructure:"slippage"`                // fraction, default 0.02
	CommissionPerContract float64 `mapstructure:"commission_per_contract"` // dollars
	MaxSpreadPct          float64 `mapstructure:"max_spread_pct"`          // fraction of mid, default 0.10
}

// ScoringConfig holds the opportunity score weights. Weights must sum
// to 1.0.
type ScoringConfig struct {
	PremiumRisk  float64 `mapstructure:"premium_risk"`
	DTEBias      float64 `mapstructure:"dte_bias"`
	Liquidity    float64 `mapstructure:"liquidity"`
	IVRank       float64 `mapstructure:"iv_rank"`
	Premium      float64 `mapstructure:"premium"`
	DeltaBalance float64 `mapstructure:"delta_balance"`
}

// FilterConfig holds the candidate filter thresholds.
type FilterConfig struct {
	MinVolume       int64   `mapstructure:"min_volume"`
	MinOpenInterest int64   `mapstructure:"min_open_interest"`
	MinIVRank       float64 `mapstructure:"min_iv_rank"`
	MinPoP          float64 `mapstructure:"min_pop"` // fraction, 0 disables the gate
	ShortDeltaMin   float64 `mapstructure:"short_delta_min"`
	ShortDeltaMax   float64 `mapstructure:"short_delta_max"`
	LongDeltaMin    float64 `mapstructure:"long_delta_min"`
	LongDeltaMax    float64 `mapstructure:"long_delta_max"`
}

// ValuationConfig holds pricing model parameters.
type ValuationConfig struct {
	RiskFreeRate float64 `mapstructure:"risk_free_rate"`
	DefaultIV    float64 `mapstructure:"default_iv"`
}

// DataConfig holds input/output locations.
type DataConfig struct {
	SnapshotDir string `mapstructure:"snapshot_dir"` // per-ticker chain CSVs
	ResultsDB   string `mapstructure:"results_db"`   // sqlite output
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Console  bool   `mapstructure:"console"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/options-backtester"
	}
	return filepath.Join(home, ".config", "options-backtester")
}

// Load loads configuration from the given file path. An empty path
// falls back to config.yaml in the default config directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultConfigDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No file: run on defaults.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backtest.initial_capital", 100000.0)
	v.SetDefault("backtest.max_positions", 5)
	v.SetDefault("backtest.tickers", []string{"SPY"})

	v.SetDefault("execution.slippage", 0.02)
	v.SetDefault("execution.commission_per_contract", 1.0)
	v.SetDefault("execution.max_spread_pct", 0.10)

	v.SetDefault("scoring.premium_risk", 0.45)
	v.SetDefault("scoring.dte_bias", 0.20)
	v.SetDefault("scoring.liquidity", 0.15)
	v.SetDefault("scoring.iv_rank", 0.10)
	v.SetDefault("scoring.premium", 0.05)
	v.SetDefault("scoring.delta_balance", 0.05)

	v.SetDefault("filters.min_volume", 10)
	v.SetDefault("filters.min_open_interest", 50)
	v.SetDefault("filters.min_iv_rank", 60.0)
	v.SetDefault("filters.min_pop", 0.0)
	v.SetDefault("filters.short_delta_min", 0.16)
	v.SetDefault("filters.short_delta_max", 0.25)
	v.SetDefault("filters.long_delta_min", 0.05)
	v.SetDefault("filters.long_delta_max", 0.10)

	v.SetDefault("valuation.risk_free_rate", 0.05)
	v.SetDefault("valuation.default_iv", 0.25)

	v.SetDefault("data.snapshot_dir", "data/snapshots")
	v.SetDefault("data.results_db", "backtest.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", false)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be positive")
	}
	if c.Backtest.MaxPositions <= 0 {
		return fmt.Errorf("max_positions must be greater than 0")
	}
	if len(c.Backtest.Tickers) == 0 {
		return fmt.Errorf("at least one ticker is required")
	}
	if c.Backtest.StartDate != "" && c.Backtest.EndDate != "" {
		start, err := time.Parse("2006-01-02", c.Backtest.StartDate)
		if err != nil {
			return fmt.Errorf("invalid start_date: %w", err)
		}
		end, err := time.Parse("2006-01-02", c.Backtest.EndDate)
		if err != nil {
			return fmt.Errorf("invalid end_date: %w", err)
		}
		if !end.After(start) {
			return fmt.Errorf("end_date must be after start_date")
		}
	}
	if c.Execution.Slippage < 0 || c.Execution.Slippage > 1 {
		return fmt.Errorf("slippage must be between 0 and 1")
	}
	if c.Execution.CommissionPerContract < 0 {
		return fmt.Errorf("commission_per_contract must not be negative")
	}
	if c.Execution.MaxSpreadPct <= 0 {
		return fmt.Errorf("max_spread_pct must be positive")
	}
	if c.Valuation.RiskFreeRate < 0 {
		return fmt.Errorf("risk_free_rate must not be negative")
	}
	if c.Valuation.DefaultIV <= 0 {
		return fmt.Errorf("default_iv must be positive")
	}

	sum := c.Scoring.PremiumRisk + c.Scoring.DTEBias + c.Scoring.Liquidity +
		c.Scoring.IVRank + c.Scoring.Premium + c.Scoring.DeltaBalance
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.3f", sum)
	}

	if c.Filters.ShortDeltaMin >= c.Filters.ShortDeltaMax {
		return fmt.Errorf("short_delta_min must be below short_delta_max")
	}
	if c.Filters.MinPoP < 0 || c.Filters.MinPoP >= 1 {
		return fmt.Errorf("min_pop must be a fraction in [0, 1)")
	}
	return nil
}

// DateRange parses the configured start/end dates. Zero times are
// returned for unset bounds, meaning "full extent of the data".
func (c *Config) DateRange() (start, end time.Time, err error) {
	if c.Backtest.StartDate != "" {
		start, err = time.Parse("2006-01-02", c.Backtest.StartDate)
		if err != nil {
			return
		}
	}
	if c.Backtest.EndDate != "" {
		end, err = time.Parse("2006-01-02", c.Backtest.EndDate)
	}
	return
}
