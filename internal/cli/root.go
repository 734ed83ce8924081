// Package cli provides the command-line interface for the backtester.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"options-backtester/internal/config"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies shared by all commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "backtester",
		Short: "Options strategy backtester",
		Long: `Backtester replays historical option chain snapshots through a
multi-leg credit spread strategy: adaptive per-ticker risk profiles,
a weighted opportunity score, simulated fills, and a full position
lifecycle from entry to profit target, stop loss or expiration.

Use 'backtester help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/options-backtester/config.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newInitCmd(app))
	rootCmd.AddCommand(newValidateCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newResultsCmd(app))
	rootCmd.AddCommand(newProfilesCmd(app))
	rootCmd.AddCommand(newPriceCmd())
	rootCmd.AddCommand(newPopCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("backtester %s\n", Version)
		},
	}
}
