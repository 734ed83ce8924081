package cli

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"options-backtester/internal/config"
	"options-backtester/internal/models"
	"options-backtester/internal/probability"
	"options-backtester/internal/quant"
	"options-backtester/internal/risk"
	"options-backtester/internal/store"
)

func newInitCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write starter config and universe templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := config.DefaultConfigDir()
			if err := config.WriteTemplates(dir); err != nil {
				return err
			}
			fmt.Printf("Templates written to %s\n", dir)
			fmt.Println("Edit config.yaml and universe.yaml, then run 'backtester run'.")
			return nil
		},
	}
}

func newValidateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration, universe and pricing diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println("Configuration OK")

			if cfg.Backtest.UniverseFile != "" {
				mgr := risk.NewManager(app.Logger)
				if err := mgr.LoadUniverse(cfg.Backtest.UniverseFile); err != nil {
					return err
				}
				fmt.Printf("Universe OK (%s)\n", cfg.Backtest.UniverseFile)
			}

			return pricingDiagnostics(cfg.Valuation.RiskFreeRate)
		},
	}
}

// pricingDiagnostics runs the model self-checks: put-call parity across
// a moneyness sweep and the model-versus-empirical estimator agreement
// on a synthetic lognormal series.
func pricingDiagnostics(rate float64) error {
	t := quant.DaysToYears(30)
	for _, k := range []float64{80, 90, 100, 110, 120} {
		gap, err := quant.ParityGap(100, k, t, rate, 0.25)
		if err != nil {
			return err
		}
		if math.Abs(gap) > 1e-6 {
			return fmt.Errorf("parity violated at K=%.0f: gap %.2e", k, gap)
		}
	}
	fmt.Println("Put-call parity OK (K 80..120, 30 DTE)")

	// Known-value check at a fixed reference point.
	call, err := quant.Price(100, 105, t, 0.05, 0.25, models.RightCall)
	if err != nil {
		return err
	}
	if math.Abs(call-1.187) > 0.01 {
		return fmt.Errorf("reference call price off: got %.4f, want 1.187", call)
	}
	fmt.Println("Reference pricing OK")

	// Self-consistency: a GBM-generated history and the Monte Carlo
	// model should agree on PoP for the same range.
	history := syntheticGBM(100, 0.25, rate, 500, 7)
	profitable := probability.Range{Lower: 95, Upper: math.Inf(1)}

	empirical, err := probability.Empirical(history, 30, profitable, probability.EmpiricalOptions{})
	if err != nil {
		return err
	}
	model, err := probability.MonteCarlo(history[len(history)-1], 0.25, rate, t, profitable, 20000, 7)
	if err != nil {
		return err
	}

	cmp := probability.Compare(model.PoP, empirical.PoP)
	fmt.Printf("PoP estimators: %s\n", cmp)
	if cmp.Agreement == probability.ModelHigher || cmp.Agreement == probability.EmpiricalHigher {
		return fmt.Errorf("probability estimators diverge: %s", cmp)
	}
	return nil
}

// syntheticGBM generates a deterministic daily lognormal price path.
func syntheticGBM(s0, sigma, r float64, days int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	dt := 1.0 / 365
	out := make([]float64, days)
	price := s0
	for i := range out {
		price *= math.Exp((r-sigma*sigma/2)*dt + sigma*math.Sqrt(dt)*rng.NormFloat64())
		out[i] = price
	}
	return out
}

func newProfilesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles [ticker...]",
		Short: "Show resolved risk profiles for the configured tickers",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := risk.NewManager(app.Logger)
			if app.Config.Backtest.UniverseFile != "" {
				if err := mgr.LoadUniverse(app.Config.Backtest.UniverseFile); err != nil {
					return err
				}
			}

			tickers := args
			if len(tickers) == 0 {
				tickers = app.Config.Backtest.Tickers
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Ticker", "Class", "Volatility", "PT %", "SL %", "DTE", "Source"})
			table.SetBorder(false)
			for _, ticker := range tickers {
				p := mgr.Lookup(ticker)
				source := "universe"
				if p.Default {
					source = "default"
				}
				table.Append([]string{
					p.Ticker,
					string(p.AssetClass),
					string(p.VolatilityCategory),
					fmt.Sprintf("%.0f", p.ProfitTargetPct),
					fmt.Sprintf("%.0f", p.StopLossPct),
					fmt.Sprintf("%d-%d", p.DTEMin, p.DTEMax),
					source,
				})
			}
			table.Render()
			return nil
		},
	}
}

func newResultsCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "results",
		Short: "List saved backtest runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := store.NewResultStore(app.Config.Data.ResultsDB)
			if err != nil {
				return err
			}
			defer rs.Close()

			runs, err := rs.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No saved runs.")
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Run ID", "Created", "Period", "Trades", "Win Rate", "Return"})
			table.SetBorder(false)
			for _, r := range runs {
				table.Append([]string{
					r.ID[:8],
					r.CreatedAt.Format("2006-01-02 15:04"),
					r.StartDate.Format("2006-01-02") + " to " + r.EndDate.Format("2006-01-02"),
					strconv.Itoa(r.TotalTrades),
					fmt.Sprintf("%.1f%%", r.WinRate),
					fmt.Sprintf("%.2f%%", r.TotalReturn),
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}
