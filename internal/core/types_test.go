package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPriceSeries_Validate(t *testing.T) {
	ok := PriceSeries{Symbol: "SPY", Bars: []OHLCV{
		{Close: 1, Time: day(2024, 1, 2)},
		{Close: 2, Time: day(2024, 1, 3)},
	}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dup := PriceSeries{Symbol: "SPY", Bars: []OHLCV{
		{Close: 1, Time: day(2024, 1, 2)},
		{Close: 2, Time: day(2024, 1, 2)},
	}}
	if err := dup.Validate(); !errors.Is(err, ErrInvalidSeries) {
		t.Errorf("expected ErrInvalidSeries, got %v", err)
	}
}

func TestNewPriceSeries_SortsBars(t *testing.T) {
	s := NewPriceSeries("AGG", []OHLCV{
		{Close: 3, Time: day(2024, 1, 4)},
		{Close: 1, Time: day(2024, 1, 2)},
	})
	if s.Bars[0].Close != 1 || s.Bars[1].Close != 3 {
		t.Errorf("bars not sorted: %+v", s.Bars)
	}
}

func TestPriceSeries_HistoryAndCloseOn(t *testing.T) {
	s := PriceSeries{Symbol: "SPY", Bars: []OHLCV{
		{Close: 10, Time: day(2024, 1, 2)},
		{Close: 11, Time: day(2024, 1, 3)},
		{Close: 12, Time: day(2024, 1, 5)},
	}}

	h := s.History(day(2024, 1, 4))
	if h.Len() != 2 {
		t.Fatalf("expected 2 bars, got %d", h.Len())
	}

	if _, ok := s.CloseOn(day(2024, 1, 4)); ok {
		t.Error("expected no bar on a gap day")
	}
	if c, ok := s.CloseOn(day(2024, 1, 5).Add(15 * time.Hour)); !ok || c != 12 {
		t.Errorf("CloseOn = %v,%v want 12,true", c, ok)
	}
}

func TestIsFinitePrice(t *testing.T) {
	tests := []struct {
		price float64
		want  bool
	}{
		{100, true},
		{0, false},
		{-1, false},
		{math.NaN(), false},
		{math.Inf(1), false},
	}
	for _, tt := range tests {
		if got := IsFinitePrice(tt.price); got != tt.want {
			t.Errorf("IsFinitePrice(%v) = %v, want %v", tt.price, got, tt.want)
		}
	}
}

func TestAllocationPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		plan    AllocationPlan
		wantErr bool
	}{
		{"all cash", AllocationPlan{CashWeight: 1}, false},
		{"split", AllocationPlan{Weights: map[string]float64{"SPY": 0.6, "AGG": 0.4}}, false},
		{"under one", AllocationPlan{Weights: map[string]float64{"SPY": 0.5}}, true},
		{"negative", AllocationPlan{Weights: map[string]float64{"SPY": 1.2}, CashWeight: -0.2}, true},
		{"nan", AllocationPlan{Weights: map[string]float64{"SPY": math.NaN()}, CashWeight: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTrade_CashDelta(t *testing.T) {
	buy := Trade{Side: SideBuy, Shares: 10, Price: 100, Commission: 1, Slippage: 0.5}
	if got := buy.CashDelta(); got != -1001.5 {
		t.Errorf("buy CashDelta = %v, want -1001.5", got)
	}
	sell := Trade{Side: SideSell, Shares: 10, Price: 100, Commission: 1, Slippage: 0.5}
	if got := sell.CashDelta(); got != 998.5 {
		t.Errorf("sell CashDelta = %v, want 998.5", got)
	}
}

func TestDirection_Constants(t *testing.T) {
	if string(DirectionLong) != "LONG" || string(DirectionFlat) != "FLAT" {
		t.Error("unexpected direction constants")
	}
	if !(Signal{Direction: DirectionLong}).IsLong() {
		t.Error("LONG signal should be long")
	}
}
