package main

import (
	"fmt"
	"os"

	"options-backtester/internal/cli"
	"options-backtester/internal/config"
	"options-backtester/internal/logging"
)

func main() {
	cfg, err := config.Load(configPath(os.Args[1:]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLoggerWithConfig(logging.LogConfig{
		Level:      cfg.Log.Level,
		Console:    cfg.Log.Console,
		File:       cfg.Log.File,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	})

	if err := cli.NewRootCmd(cfg, logger).Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// configPath extracts the --config flag before cobra parses the command
// line, so the config is loaded once and shared by every subcommand.
func configPath(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "--config" && i+1 < len(args):
			return args[i+1]
		case len(arg) > len("--config=") && arg[:len("--config=")] == "--config=":
			return arg[len("--config="):]
		}
	}
	return ""
}
