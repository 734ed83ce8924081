package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"options-backtester/internal/models"
	"options-backtester/internal/probability"
	"options-backtester/internal/quant"
)

func newPriceCmd() *cobra.Command {
	var (
		spot, strike, sigma, rate float64
		dte                       int
	)

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price a European option and show its greeks",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := quant.DaysToYears(dte)

			call, err := quant.Price(spot, strike, t, rate, sigma, models.RightCall)
			if err != nil {
				return err
			}
			put, err := quant.Price(spot, strike, t, rate, sigma, models.RightPut)
			if err != nil {
				return err
			}
			greeks, err := quant.Greeks(spot, strike, t, rate, sigma)
			if err != nil {
				return err
			}

			fmt.Printf("S=%.2f K=%.2f DTE=%d r=%.2f%% sigma=%.2f%%\n\n",
				spot, strike, dte, rate*100, sigma*100)
			fmt.Printf("  Call: %.4f   (delta %+.4f, theta %.4f/day)\n", call, greeks.Call.Delta, greeks.Call.Theta)
			fmt.Printf("  Put:  %.4f   (delta %+.4f, theta %.4f/day)\n", put, greeks.Put.Delta, greeks.Put.Theta)
			fmt.Printf("  Gamma %.6f  Vega %.4f/1%%  Rho(call) %.4f/1%%\n",
				greeks.Call.Gamma, greeks.Call.Vega, greeks.Call.Rho)
			return nil
		},
	}

	cmd.Flags().Float64VarP(&spot, "spot", "S", 100, "underlying price")
	cmd.Flags().Float64VarP(&strike, "strike", "K", 100, "strike price")
	cmd.Flags().IntVar(&dte, "dte", 30, "days to expiration")
	cmd.Flags().Float64Var(&sigma, "iv", 0.25, "implied volatility (fraction)")
	cmd.Flags().Float64Var(&rate, "rate", quant.DefaultRiskFreeRate, "risk-free rate (fraction)")
	return cmd
}

func newPopCmd() *cobra.Command {
	var (
		spot, sigma, rate, lower, upper float64
		dte, trials                     int
		seed                            int64
	)

	cmd := &cobra.Command{
		Use:   "pop",
		Short: "Estimate probability of profit by Monte Carlo",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := probability.MonteCarlo(spot, sigma, rate, quant.DaysToYears(dte),
				probability.Range{Lower: lower, Upper: upper}, trials, seed)
			if err != nil {
				return err
			}

			fmt.Printf("PoP: %.1f%%  (%d of %d terminal prices in [%.2f, %.2f])\n",
				res.PoP*100, res.NumProfitable, res.TotalSamples, lower, upper)
			fmt.Printf("Terminal price: mean %.2f, std %.2f\n", res.Mean, res.Std)
			p := res.Percentiles
			fmt.Printf("Percentiles: p5 %.2f  p25 %.2f  p50 %.2f  p75 %.2f  p95 %.2f\n",
				p.P5, p.P25, p.P50, p.P75, p.P95)
			return nil
		},
	}

	cmd.Flags().Float64VarP(&spot, "spot", "S", 100, "underlying price")
	cmd.Flags().Float64Var(&sigma, "iv", 0.25, "implied volatility (fraction)")
	cmd.Flags().Float64Var(&rate, "rate", quant.DefaultRiskFreeRate, "risk-free rate (fraction)")
	cmd.Flags().IntVar(&dte, "dte", 30, "days to horizon")
	cmd.Flags().Float64Var(&lower, "lower", 90, "profitable range lower bound")
	cmd.Flags().Float64Var(&upper, "upper", 110, "profitable range upper bound")
	cmd.Flags().IntVar(&trials, "trials", 10000, "Monte Carlo trials")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	return cmd
}
