package cli

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"options-backtester/internal/backtest"
	"options-backtester/internal/models"
	"options-backtester/internal/risk"
	"options-backtester/internal/store"
	"options-backtester/pkg/utils"
)

func newRunCmd(app *App) *cobra.Command {
	var (
		showTrades bool
		showCurve  bool
		noSave     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a backtest over the configured snapshot data",
		Long: `Run loads per-ticker chain CSVs from the configured snapshot
directory, replays them chronologically through the strategy engine and
prints a performance summary. Results are saved to the results database
unless --no-save is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config

			start, end, err := cfg.DateRange()
			if err != nil {
				return err
			}
			if end.IsZero() {
				end = time.Now()
			}

			riskMgr := risk.NewManager(app.Logger)
			if cfg.Backtest.UniverseFile != "" {
				if err := riskMgr.LoadUniverse(cfg.Backtest.UniverseFile); err != nil {
					return err
				}
			}

			app.Logger.Info().
				Strs("tickers", cfg.Backtest.Tickers).
				Str("snapshot_dir", cfg.Data.SnapshotDir).
				Msg("loading snapshot data")
			byTicker, err := store.LoadUniverseSnapshots(cfg.Data.SnapshotDir, cfg.Backtest.Tickers, start, end)
			if err != nil {
				return err
			}

			ticks := assembleTicks(byTicker)
			if len(ticks) == 0 {
				return fmt.Errorf("no snapshots in range %s to %s",
					start.Format("2006-01-02"), end.Format("2006-01-02"))
			}

			engine := backtest.NewEngine(cfg, riskMgr, app.Logger)
			result, err := engine.Run(cmd.Context(), ticks)
			if err != nil {
				return err
			}

			backtest.WriteSummary(os.Stdout, result)
			if showCurve {
				fmt.Println()
				fmt.Print(backtest.EquityCurveASCII(result.EquityCurve, 70, 12))
			}
			if showTrades {
				fmt.Println()
				backtest.WriteTrades(os.Stdout, result.Trades)
			}

			if !noSave {
				rs, err := store.NewResultStore(cfg.Data.ResultsDB)
				if err != nil {
					return err
				}
				defer rs.Close()
				// Concurrent readers can hold the database briefly.
				runID, err := utils.RetryWithResult(cmd.Context(), utils.DefaultRetryConfig(), func() (string, error) {
					return rs.SaveRun(cmd.Context(), result)
				})
				if err != nil {
					return err
				}
				app.Logger.Info().Str("run_id", runID).Str("db", cfg.Data.ResultsDB).Msg("results saved")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showTrades, "trades", false, "print the closed-trade ledger")
	cmd.Flags().BoolVar(&showCurve, "curve", false, "print an ASCII equity curve")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "skip writing results to the database")
	return cmd
}

// assembleTicks merges per-ticker snapshot series into one
// chronological tick sequence.
func assembleTicks(byTicker map[string][]*models.MarketSnapshot) []backtest.Tick {
	byDate := make(map[time.Time]map[string]*models.MarketSnapshot)
	for ticker, snaps := range byTicker {
		for _, snap := range snaps {
			if byDate[snap.Date] == nil {
				byDate[snap.Date] = make(map[string]*models.MarketSnapshot)
			}
			byDate[snap.Date][ticker] = snap
		}
	}

	ticks := make([]backtest.Tick, 0, len(byDate))
	for date, snaps := range byDate {
		ticks = append(ticks, backtest.Tick{Date: date, Snapshots: snaps})
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i].Date.Before(ticks[j].Date) })
	return ticks
}
