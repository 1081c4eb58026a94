package csvdir

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/rotator/internal/core"
)

// CSVDir reads <dir>/<SYMBOL>.csv files in the Yahoo download layout:
// Date,Open,High,Low,Close,Adj Close,Volume. Only Date and Close are
// required; Adj Close is preferred when present.
type CSVDir struct {
	dir string
}

// New creates a provider rooted at dir.
func New(dir string) *CSVDir {
	return &CSVDir{dir: dir}
}

func (c *CSVDir) Name() string {
	return "csv"
}

func (c *CSVDir) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.ContainsAny(symbol, `/\`) || symbol == "" {
		return nil, fmt.Errorf("invalid symbol: %q", symbol)
	}

	f, err := os.Open(filepath.Join(c.dir, symbol+".csv"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("%s: no csv in %s", symbol, c.dir))
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := Parse(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s.csv: %w", symbol, err)
	}

	from, to := core.TruncateDay(start), core.TruncateDay(end)
	out := bars[:0]
	for _, b := range bars {
		if (!start.IsZero() && b.Time.Before(from)) || (!end.IsZero() && b.Time.After(to)) {
			continue
		}
		b.Interval = interval
		out = append(out, b)
	}
	return out, nil
}

// Parse decodes a price csv. Rows whose close is "null" or empty are kept
// with a NaN close so the gap stays visible to the simulator.
func Parse(r io.Reader, symbol string) ([]core.OHLCV, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateCol, ok := cols["date"]
	if !ok {
		return nil, fmt.Errorf("missing date column")
	}
	closeCol, ok := cols["adj close"]
	if !ok {
		if closeCol, ok = cols["close"]; !ok {
			return nil, fmt.Errorf("missing close column")
		}
	}

	var bars []core.OHLCV
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if dateCol >= len(rec) {
			return nil, fmt.Errorf("line %d: short record", line)
		}

		date, err := time.Parse(core.DateLayout, strings.TrimSpace(rec[dateCol]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bar := core.OHLCV{
			Symbol: symbol,
			Time:   date,
			Open:   field(rec, cols, "open"),
			High:   field(rec, cols, "high"),
			Low:    field(rec, cols, "low"),
			Close:  number(rec, closeCol),
			Volume: int64(field(rec, cols, "volume")),
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func field(rec []string, cols map[string]int, name string) float64 {
	i, ok := cols[name]
	if !ok {
		return 0
	}
	v := number(rec, i)
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func number(rec []string, i int) float64 {
	if i >= len(rec) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
