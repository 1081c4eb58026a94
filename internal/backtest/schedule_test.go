package backtest

import (
	"testing"
	"time"

	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
	"github.com/stretchr/testify/assert"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestRebalanceDates(t *testing.T) {
	calendar := []time.Time{
		d(2024, 3, 27), // Wed
		d(2024, 3, 28), // Thu
		d(2024, 4, 1),  // Mon, new week, month, quarter
		d(2024, 4, 2),
		d(2024, 4, 8), // Mon
		d(2024, 5, 1),
		d(2024, 7, 1),
	}

	tests := []struct {
		freq config.Frequency
		want []bool
	}{
		{config.FrequencyDaily, []bool{true, true, true, true, true, true, true}},
		{config.FrequencyWeekly, []bool{true, false, true, false, true, true, true}},
		{config.FrequencyMonthly, []bool{true, false, true, false, false, true, true}},
		{config.FrequencyQuarterly, []bool{true, false, true, false, false, false, true}},
	}
	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			assert.Equal(t, tt.want, RebalanceDates(calendar, tt.freq))
		})
	}
}

func TestRebalanceDates_ISOWeekAcrossYear(t *testing.T) {
	// 2024-12-30 and 2025-01-02 share ISO week 1 of 2025
	calendar := []time.Time{d(2024, 12, 30), d(2025, 1, 2), d(2025, 1, 6)}
	assert.Equal(t, []bool{true, false, true}, RebalanceDates(calendar, config.FrequencyWeekly))
}

func TestTradingCalendar(t *testing.T) {
	prices := map[string]core.PriceSeries{
		"SPY": core.NewPriceSeries("SPY", []core.OHLCV{
			{Close: 1, Time: d(2024, 1, 2)},
			{Close: 1, Time: d(2024, 1, 3)},
			{Close: 1, Time: d(2024, 1, 5)},
		}),
		"AGG": core.NewPriceSeries("AGG", []core.OHLCV{
			{Close: 1, Time: d(2024, 1, 3).Add(16 * time.Hour)},
			{Close: 1, Time: d(2024, 1, 4)},
		}),
		"QQQ": core.NewPriceSeries("QQQ", []core.OHLCV{{Close: 1, Time: d(2024, 1, 10)}}),
	}

	got := TradingCalendar(prices, []string{"SPY", "AGG", "EFA"}, d(2024, 1, 3), time.Time{})
	assert.Equal(t, []time.Time{d(2024, 1, 3), d(2024, 1, 4), d(2024, 1, 5)}, got)

	got = TradingCalendar(prices, []string{"SPY"}, time.Time{}, d(2024, 1, 3))
	assert.Equal(t, []time.Time{d(2024, 1, 2), d(2024, 1, 3)}, got)
}
