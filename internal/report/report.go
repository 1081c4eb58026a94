// Package report renders backtest results as CSV, JSON and text tables and
// archives them.
package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/rotator/internal/backtest"
	"github.com/newthinker/rotator/internal/core"
	"github.com/newthinker/rotator/internal/storage/archive"
)

// Artifact names written under runs/<run_id>/.
const (
	SummaryFile     = "summary.json"
	EquityFile      = "equity.csv"
	TradesFile      = "trades.csv"
	AllocationsFile = "allocations.csv"
)

// RunPrefix is the archive directory for one run.
func RunPrefix(runID string) string {
	return path.Join("runs", runID)
}

// Archive writes the run summary and its CSV tables to store and returns the
// paths written.
func Archive(ctx context.Context, store archive.Storage, res *backtest.Result) ([]string, error) {
	if res == nil || res.RunID == "" {
		return nil, fmt.Errorf("result has no run id")
	}

	summary, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding summary: %w", err)
	}

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{SummaryFile, func(w io.Writer) error { _, err := w.Write(summary); return err }},
		{EquityFile, func(w io.Writer) error { return WriteEquityCSV(w, res.EquityCurve) }},
		{TradesFile, func(w io.Writer) error { return WriteTradesCSV(w, res.Trades) }},
		{AllocationsFile, func(w io.Writer) error { return WriteAllocationsCSV(w, res.Allocations) }},
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		var buf strings.Builder
		if err := f.write(&buf); err != nil {
			return written, fmt.Errorf("rendering %s: %w", f.name, err)
		}
		p := path.Join(RunPrefix(res.RunID), f.name)
		if err := store.Write(ctx, p, []byte(buf.String())); err != nil {
			return written, fmt.Errorf("archiving %s: %w", p, err)
		}
		written = append(written, p)
	}
	return written, nil
}

// LoadSummary reads an archived run back.
func LoadSummary(ctx context.Context, store archive.Storage, runID string) (*backtest.Result, error) {
	data, err := store.Read(ctx, path.Join(RunPrefix(runID), SummaryFile))
	if err != nil {
		return nil, err
	}
	var res backtest.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decoding summary for %s: %w", runID, err)
	}
	return &res, nil
}

// WriteEquityCSV writes one row per marked date.
func WriteEquityCSV(w io.Writer, curve []core.EquityPoint) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"date", "total_value", "cash", "positions_value"})
	for _, p := range curve {
		cw.Write([]string{p.Date.Format(core.DateLayout), ftoa(p.TotalValue), ftoa(p.Cash), ftoa(p.PositionsValue)})
	}
	cw.Flush()
	return cw.Error()
}

// WriteTradesCSV writes one row per executed trade.
func WriteTradesCSV(w io.Writer, trades []core.Trade) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"date", "symbol", "side", "shares", "price", "notional", "commission", "slippage"})
	for _, t := range trades {
		cw.Write([]string{
			t.Date.Format(core.DateLayout), t.Symbol, string(t.Side),
			ftoa(t.Shares), ftoa(t.Price), ftoa(t.Notional()),
			ftoa(t.Commission), ftoa(t.Slippage),
		})
	}
	cw.Flush()
	return cw.Error()
}

// WriteAllocationsCSV writes the plans in long form, one row per weight with
// cash as its own row.
func WriteAllocationsCSV(w io.Writer, plans []core.AllocationPlan) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"date", "symbol", "weight"})
	for _, p := range plans {
		date := p.Date.Format(core.DateLayout)
		for _, s := range p.Symbols() {
			cw.Write([]string{date, s, ftoa(p.Weights[s])})
		}
		cw.Write([]string{date, "CASH", ftoa(p.CashWeight)})
	}
	cw.Flush()
	return cw.Error()
}

func ftoa(x float64) string { return strconv.FormatFloat(x, 'f', 8, 64) }

// formatDuration rounds for display.
func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
