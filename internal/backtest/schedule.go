package backtest

import (
	"sort"
	"time"

	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
)

// TradingCalendar returns the union of bar dates of the given symbols that
// fall within [start, end]. A zero start or end leaves that side open.
func TradingCalendar(prices map[string]core.PriceSeries, symbols []string, start, end time.Time) []time.Time {
	from, to := core.TruncateDay(start), core.TruncateDay(end)
	seen := make(map[time.Time]bool)
	for _, symbol := range symbols {
		series, ok := prices[symbol]
		if !ok {
			continue
		}
		for _, bar := range series.Bars {
			day := core.TruncateDay(bar.Time)
			if !start.IsZero() && day.Before(from) {
				continue
			}
			if !end.IsZero() && day.After(to) {
				continue
			}
			seen[day] = true
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// RebalanceDates marks the first trading date of every new period. The
// first calendar date is always a rebalancing date.
func RebalanceDates(calendar []time.Time, freq config.Frequency) []bool {
	marks := make([]bool, len(calendar))
	for i, d := range calendar {
		marks[i] = i == 0 || periodKey(d, freq) != periodKey(calendar[i-1], freq)
	}
	return marks
}

func periodKey(d time.Time, freq config.Frequency) int {
	switch freq {
	case config.FrequencyDaily:
		return d.Year()*1000 + d.YearDay()
	case config.FrequencyWeekly:
		year, week := d.ISOWeek()
		return year*100 + week
	case config.FrequencyQuarterly:
		return d.Year()*10 + (int(d.Month())-1)/3
	default:
		return d.Year()*100 + int(d.Month())
	}
}
