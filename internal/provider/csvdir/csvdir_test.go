package csvdir

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/rotator/internal/core"
	"github.com/newthinker/rotator/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const spyCSV = `Date,Open,High,Low,Close,Adj Close,Volume
2024-01-02,472.16,473.67,470.49,472.65,465.10,123623700
2024-01-03,470.43,471.19,468.17,468.79,461.30,103585900
2024-01-04,468.30,470.96,467.05,467.28,null,84232200
2024-01-05,467.49,470.44,466.43,467.92,460.44,86118900
`

func TestCSVDir_ImplementsProvider(t *testing.T) {
	var _ provider.Provider = (*CSVDir)(nil)
}

func TestParse(t *testing.T) {
	bars, err := Parse(strings.NewReader(spyCSV), "SPY")
	require.NoError(t, err)
	require.Len(t, bars, 4)

	assert.Equal(t, 465.10, bars[0].Close)
	assert.Equal(t, int64(123623700), bars[0].Volume)
	assert.True(t, math.IsNaN(bars[2].Close))
	assert.Equal(t, 470.96, bars[2].High)
}

func TestParse_CloseOnly(t *testing.T) {
	bars, err := Parse(strings.NewReader("date,close\n2024-01-02,10\n2024-01-03,11\n"), "X")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 11.0, bars[1].Close)
}

func TestParse_MissingColumns(t *testing.T) {
	_, err := Parse(strings.NewReader("day,close\n"), "X")
	assert.Error(t, err)
	_, err = Parse(strings.NewReader("date,open\n"), "X")
	assert.Error(t, err)
	_, err = Parse(strings.NewReader("date,close\n01/02/2024,10\n"), "X")
	assert.Error(t, err)
}

func TestCSVDir_FetchHistory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SPY.csv"), []byte(spyCSV), 0644))

	c := New(dir)
	bars, err := c.FetchHistory(context.Background(), "SPY",
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 4, 23, 0, 0, 0, time.UTC), "1d")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "1d", bars[0].Interval)
	assert.Equal(t, 461.30, bars[0].Close)
}

func TestCSVDir_MissingFile(t *testing.T) {
	_, err := New(t.TempDir()).FetchHistory(context.Background(), "AGG", time.Time{}, time.Time{}, "1d")
	assert.True(t, errors.Is(err, core.ErrSymbolNotFound))
}

func TestCSVDir_RejectsPaths(t *testing.T) {
	_, err := New(t.TempDir()).FetchHistory(context.Background(), "../etc/passwd", time.Time{}, time.Time{}, "1d")
	assert.Error(t, err)
}
