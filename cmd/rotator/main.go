package main

import (
	"fmt"
	"os"
	"time"

	"github.com/newthinker/rotator/internal/app"
	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
	"github.com/newthinker/rotator/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile  string
	debug    bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "rotator",
	Short: "rotator - momentum asset-rotation backtester",
	Long: `rotator backtests momentum-based asset rotation strategies over daily
price history, reports CAPM-style performance metrics, sweeps parameter
spaces and serves backtest jobs over HTTP.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "minimum log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads config and builds the logger and app shared by subcommands.
func setup() (*app.App, *zap.Logger, error) {
	log, err := logger.NewWithLevel(debug, logLevel)
	if err != nil {
		return nil, nil, err
	}

	var cfg *config.Config
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, log, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return nil, log, err
	}
	return a, log, nil
}

// parseRange parses --from/--to flags. Either may be empty for an open bound.
func parseRange(from, to string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if from != "" {
		if start, err = time.Parse(core.DateLayout, from); err != nil {
			return start, end, fmt.Errorf("invalid from date format (expected YYYY-MM-DD): %w", err)
		}
	}
	if to != "" {
		if end, err = time.Parse(core.DateLayout, to); err != nil {
			return start, end, fmt.Errorf("invalid to date format (expected YYYY-MM-DD): %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, fmt.Errorf("end date must be after start date")
	}
	return start, end, nil
}
