package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Options Backtester Configuration

backtest:
  start_date: "2024-01-02"
  end_date: "2024-06-28"
  initial_capital: 100000.0
  # Maximum concurrent open positions across all tickers
  max_positions: 5
  tickers: [SPY, QQQ, IWM, AAPL, MSFT, NVDA, TSLA, AMZN, GLD, SLV]
  # Ticker risk classification table (asset class + volatility category)
  universe_file: "config/universe.yaml"

execution:
  # Fill slippage as a fraction of the quoted price
  slippage: 0.02
  commission_per_contract: 1.0
  # Reject any leg whose (ask - bid) / mid exceeds this
  max_spread_pct: 0.10

scoring:
  # Weights must sum to 1.0
  premium_risk: 0.45
  dte_bias: 0.20
  liquidity: 0.15
  iv_rank: 0.10
  premium: 0.05
  delta_balance: 0.05

filters:
  min_volume: 10
  min_open_interest: 50
  min_iv_rank: 60.0
  # Minimum model probability of profit at entry, as a fraction.
  # 0 disables the gate.
  min_pop: 0.0
  short_delta_min: 0.16
  short_delta_max: 0.25
  long_delta_min: 0.05
  long_delta_max: 0.10

valuation:
  risk_free_rate: 0.05
  # Used when a chain carries no implied volatility at all
  default_iv: 0.25

data:
  snapshot_dir: "data/snapshots"
  results_db: "backtest.db"

log:
  level: info
  console: true
  file: false
`

const universeTemplate = `# Ticker universe: asset class and volatility category per ticker.
# Categories: High (mean IV >= 0.40), Medium (0.25-0.40), Low (< 0.25).
# Categories refresh during a run from observed IV; unknown tickers
# fall back to a conservative default profile.
SPY:  {asset_class: ETF, volatility: Medium}
QQQ:  {asset_class: ETF, volatility: Medium}
IWM:  {asset_class: ETF, volatility: High}
AAPL: {asset_class: Tech, volatility: High}
MSFT: {asset_class: Tech, volatility: High}
AMZN: {asset_class: Tech, volatility: High}
NVDA: {asset_class: Tech, volatility: High}
TSLA: {asset_class: Tech, volatility: High}
GLD:  {asset_class: Commodity, volatility: High}
SLV:  {asset_class: Commodity, volatility: High}
`

// WriteTemplates writes commented starter config files into dir,
// refusing to overwrite anything that exists.
func WriteTemplates(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	files := map[string]string{
		"config.yaml":   configTemplate,
		"universe.yaml": universeTemplate,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("refusing to overwrite existing %s", path)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}
