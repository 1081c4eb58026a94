package main

import (
	"fmt"
	"os"

	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/report"
	"github.com/spf13/cobra"
)

var (
	backtestFrom      string
	backtestTo        string
	backtestVariant   string
	backtestUniverse  []string
	backtestSafe      string
	backtestLookback  int
	backtestFrequency string
	backtestPositions int
	backtestThreshold float64
	backtestStrength  string
	backtestTrades    bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a rotation backtest",
	Long: `Run the configured rotation strategy against historical data and show
performance statistics. Flags override the strategy section of the config.`,
	RunE: runBacktest,
}

func init() {
	f := backtestCmd.Flags()
	f.StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD (required)")
	f.StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD (required)")
	f.StringVar(&backtestVariant, "variant", "", "Generator: dual_momentum, absolute_momentum or custom")
	f.StringSliceVar(&backtestUniverse, "universe", nil, "Risky assets, comma separated")
	f.StringVar(&backtestSafe, "safe-asset", "", "Asset receiving the unallocated share")
	f.IntVar(&backtestLookback, "lookback", 0, "Lookback in trading days")
	f.StringVar(&backtestFrequency, "frequency", "", "Rebalance frequency: daily, weekly, monthly or quarterly")
	f.IntVar(&backtestPositions, "positions", -1, "Number of assets to hold")
	f.Float64Var(&backtestThreshold, "threshold", 0, "Absolute momentum threshold")
	f.StringVar(&backtestStrength, "strength", "", "Strength method: binary, linear, proportional or momentum_ratio")
	f.BoolVar(&backtestTrades, "trades", false, "Print every trade")

	backtestCmd.MarkFlagRequired("from")
	backtestCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(backtestCmd)
}

// strategyOverrides applies the flags the user actually set.
func strategyOverrides(cmd *cobra.Command, cfg config.StrategyConfig) config.StrategyConfig {
	f := cmd.Flags()
	if f.Changed("variant") {
		cfg.Variant = config.Variant(backtestVariant)
	}
	if f.Changed("universe") {
		cfg.Universe = append([]string(nil), backtestUniverse...)
	}
	if f.Changed("safe-asset") {
		cfg.SafeAsset = backtestSafe
	}
	if f.Changed("lookback") {
		cfg.LookbackPeriod = backtestLookback
	}
	if f.Changed("frequency") {
		cfg.RebalanceFrequency = config.Frequency(backtestFrequency)
	}
	if f.Changed("positions") {
		cfg.PositionCount = backtestPositions
	}
	if f.Changed("threshold") {
		cfg.AbsoluteThreshold = backtestThreshold
	}
	if f.Changed("strength") {
		cfg.StrengthMethod = config.StrengthMethod(backtestStrength)
	}
	return cfg
}

func runBacktest(cmd *cobra.Command, args []string) error {
	start, end, err := parseRange(backtestFrom, backtestTo)
	if err != nil {
		return err
	}

	a, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	cfg := strategyOverrides(cmd, a.Config().Strategy)
	res, err := a.RunBacktest(cmd.Context(), cfg, start, end)
	if err != nil {
		return err
	}

	fmt.Println("=== Rotation Backtest ===")
	if err := report.Print(os.Stdout, res); err != nil {
		return err
	}
	if backtestTrades {
		fmt.Println()
		return report.WriteTradesCSV(os.Stdout, res.Trades)
	}
	return nil
}
