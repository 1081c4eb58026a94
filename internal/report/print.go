package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/newthinker/rotator/internal/backtest"
	"github.com/newthinker/rotator/internal/core"
)

// Print writes a human-readable run summary.
func Print(w io.Writer, res *backtest.Result) error {
	m := res.Metrics
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Run:\t%s\n", res.RunID)
	fmt.Fprintf(tw, "Generator:\t%s\n", res.Generator)
	fmt.Fprintf(tw, "Period:\t%s to %s (%d bars)\n",
		res.StartDate.Format(core.DateLayout), res.EndDate.Format(core.DateLayout), len(res.EquityCurve))
	fmt.Fprintf(tw, "Initial capital:\t%.2f\n", res.Config.InitialCapital)
	fmt.Fprintf(tw, "Final value:\t%.2f\n", res.FinalValue())
	fmt.Fprintf(tw, "Rebalances:\t%d\n", len(res.Allocations))
	fmt.Fprintf(tw, "Trades:\t%d\n", len(res.Trades))
	fmt.Fprintf(tw, "Elapsed:\t%s\n", formatDuration(res.Duration))
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "Total return:\t%.2f%%\n", m.TotalReturn*100)
	fmt.Fprintf(tw, "Annual return:\t%.2f%%\n", m.AnnualReturn*100)
	fmt.Fprintf(tw, "Benchmark annual:\t%.2f%%\n", m.BenchmarkAnnualReturn*100)
	fmt.Fprintf(tw, "Volatility:\t%.2f%%\n", m.AnnualVolatility*100)
	fmt.Fprintf(tw, "Max drawdown:\t%.2f%%\n", m.MaxDrawdown*100)
	fmt.Fprintf(tw, "Alpha:\t%.4f\n", m.Alpha)
	fmt.Fprintf(tw, "Beta:\t%.4f\n", m.Beta)
	fmt.Fprintf(tw, "Sharpe:\t%.4f\n", m.Sharpe)
	fmt.Fprintf(tw, "Sortino:\t%.4f\n", m.Sortino)
	fmt.Fprintf(tw, "Calmar:\t%.4f\n", m.Calmar)
	fmt.Fprintf(tw, "Information ratio:\t%.4f\n", m.InformationRatio)
	fmt.Fprintf(tw, "Up/down capture:\t%.2f / %.2f\n", m.UpCapture, m.DownCapture)
	if len(m.Undefined) > 0 {
		fmt.Fprintf(tw, "Undefined:\t%s\n", strings.Join(m.Undefined, ", "))
	}
	if len(res.Unavailable) > 0 {
		fmt.Fprintf(tw, "Unavailable:\t%s\n", strings.Join(res.Unavailable, ", "))
	}
	if len(res.DataGaps) > 0 {
		fmt.Fprintf(tw, "Data gaps:\t%d\n", len(res.DataGaps))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	if alloc, ok := lastAllocation(res); ok {
		fmt.Fprintf(w, "\nLast allocation (%s):\n", alloc.Date.Format(core.DateLayout))
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SYMBOL\tWEIGHT")
		for _, s := range alloc.Symbols() {
			fmt.Fprintf(tw, "%s\t%.2f%%\n", s, alloc.Weights[s]*100)
		}
		fmt.Fprintf(tw, "CASH\t%.2f%%\n", alloc.CashWeight*100)
		return tw.Flush()
	}
	return nil
}

func lastAllocation(res *backtest.Result) (core.AllocationPlan, bool) {
	if len(res.Allocations) == 0 {
		return core.AllocationPlan{}, false
	}
	return res.Allocations[len(res.Allocations)-1], true
}
