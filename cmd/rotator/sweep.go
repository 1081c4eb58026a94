package main

import (
	"fmt"
	"os"

	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/report"
	"github.com/newthinker/rotator/internal/sweep"
	"github.com/spf13/cobra"
)

var (
	sweepFrom        string
	sweepTo          string
	sweepSearcher    string
	sweepLookbacks   []int
	sweepThresholds  []float64
	sweepPositions   []int
	sweepStrengths   []string
	sweepObjective   string
	sweepParallelism int
	sweepSamples     int
	sweepSeed        int64
	sweepTop         int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Search a parameter space",
	Long: `Backtest every configuration proposed by a searcher over the same price
history and rank them by an objective metric.`,
	RunE: runSweep,
}

func init() {
	f := sweepCmd.Flags()
	f.StringVar(&sweepFrom, "from", "", "Start date YYYY-MM-DD (required)")
	f.StringVar(&sweepTo, "to", "", "End date YYYY-MM-DD (required)")
	f.StringVar(&sweepSearcher, "searcher", "grid", "Search strategy: grid, random or bayesian")
	f.IntSliceVar(&sweepLookbacks, "lookbacks", nil, "Lookback periods to try")
	f.Float64SliceVar(&sweepThresholds, "thresholds", nil, "Absolute thresholds to try")
	f.IntSliceVar(&sweepPositions, "positions", nil, "Position counts to try")
	f.StringSliceVar(&sweepStrengths, "strengths", nil, "Strength methods to try")
	f.StringVar(&sweepObjective, "objective", "", "Metric to rank by (default from config)")
	f.IntVar(&sweepParallelism, "parallelism", 0, "Concurrent trials (default from config)")
	f.IntVar(&sweepSamples, "samples", 0, "Random search sample count (default from config)")
	f.Int64Var(&sweepSeed, "seed", 0, "Random search seed")
	f.IntVar(&sweepTop, "top", 10, "Trials to print, 0 for all")

	sweepCmd.MarkFlagRequired("from")
	sweepCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	start, end, err := parseRange(sweepFrom, sweepTo)
	if err != nil {
		return err
	}

	a, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	sc := &a.Config().Sweep
	if cmd.Flags().Changed("objective") {
		sc.Objective = sweepObjective
	}
	if cmd.Flags().Changed("parallelism") {
		sc.Parallelism = sweepParallelism
	}
	if cmd.Flags().Changed("samples") {
		sc.Samples = sweepSamples
	}
	if cmd.Flags().Changed("seed") {
		sc.Seed = sweepSeed
	}

	searcher, err := sweep.NewSearcher(sweepSearcher, *sc)
	if err != nil {
		return err
	}

	space := sweep.Space{
		LookbackPeriods: sweepLookbacks,
		Thresholds:      sweepThresholds,
		PositionCounts:  sweepPositions,
	}
	for _, s := range sweepStrengths {
		space.StrengthMethods = append(space.StrengthMethods, config.StrengthMethod(s))
	}

	rep, err := a.RunSweep(cmd.Context(), a.Config().Strategy, searcher, space, start, end)
	if err != nil {
		return err
	}

	fmt.Println("=== Parameter Sweep ===")
	return report.PrintSweep(os.Stdout, rep, sweepTop)
}
