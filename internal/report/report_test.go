package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/rotator/internal/analytics"
	"github.com/newthinker/rotator/internal/backtest"
	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
	"github.com/newthinker/rotator/internal/storage/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func sampleResult() *backtest.Result {
	return &backtest.Result{
		RunID:     "run-1",
		Generator: "dual_momentum",
		Config:    config.DefaultStrategy(),
		StartDate: day(2),
		EndDate:   day(3),
		EquityCurve: []core.EquityPoint{
			{Date: day(2), TotalValue: 100000, Cash: 100, PositionsValue: 99900},
			{Date: day(3), TotalValue: 101000, Cash: 100, PositionsValue: 100900},
		},
		Trades: []core.Trade{
			{Date: day(2), Symbol: "SPY", Side: core.SideBuy, Shares: 999, Price: 100, Commission: 99.9},
		},
		Allocations: []core.AllocationPlan{
			{Date: day(2), Weights: map[string]float64{"SPY": 0.75, "AGG": 0.25}},
		},
		Metrics: analytics.Metrics{TotalReturn: 0.01, Sharpe: 1.5, Undefined: []string{"beta"}},
	}
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestArchive_WritesRunArtifacts(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	paths, err := Archive(ctx, store, sampleResult())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"runs/run-1/summary.json",
		"runs/run-1/equity.csv",
		"runs/run-1/trades.csv",
		"runs/run-1/allocations.csv",
	}, paths)

	listed, err := store.List(ctx, "runs/run-1")
	require.NoError(t, err)
	assert.Len(t, listed, 4)

	data, err := store.Read(ctx, "runs/run-1/equity.csv")
	require.NoError(t, err)
	rows := readCSV(t, data)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"date", "total_value", "cash", "positions_value"}, rows[0])
	assert.Equal(t, "2024-01-03", rows[2][0])
	assert.Equal(t, "101000.00000000", rows[2][1])

	data, err = store.Read(ctx, "runs/run-1/trades.csv")
	require.NoError(t, err)
	rows = readCSV(t, data)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2024-01-02", "SPY", "BUY", "999.00000000", "100.00000000", "99900.00000000", "99.90000000", "0.00000000"}, rows[1])
}

func TestArchive_RequiresRunID(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	res := sampleResult()
	res.RunID = ""
	_, err = Archive(context.Background(), store, res)
	assert.Error(t, err)
}

func TestLoadSummary_RoundTrip(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = Archive(ctx, store, sampleResult())
	require.NoError(t, err)

	got, err := LoadSummary(ctx, store, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 1.5, got.Metrics.Sharpe)
	assert.True(t, got.Metrics.IsUndefined("beta"))
	assert.Equal(t, 101000.0, got.FinalValue())

	_, err = LoadSummary(ctx, store, "missing")
	assert.Error(t, err)
}

func TestWriteAllocationsCSV_LongForm(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAllocationsCSV(&buf, sampleResult().Allocations))

	rows := readCSV(t, buf.Bytes())
	assert.Equal(t, [][]string{
		{"date", "symbol", "weight"},
		{"2024-01-02", "AGG", "0.25000000"},
		{"2024-01-02", "SPY", "0.75000000"},
		{"2024-01-02", "CASH", "0.00000000"},
	}, rows)
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, sampleResult()))

	out := buf.String()
	for _, want := range []string{"run-1", "dual_momentum", "Final value:", "101000.00", "Total return:", "1.00%", "Undefined:", "beta", "Last allocation (2024-01-02)", "SPY", "75.00%"} {
		assert.True(t, strings.Contains(out, want), "output missing %q:\n%s", want, out)
	}
}
