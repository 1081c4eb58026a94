package core

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// OHLCV represents a candlestick/bar
type OHLCV struct {
	Symbol   string
	Interval string // "1d", "1wk"
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64
	Time     time.Time
}

// PriceSeries is the date-ordered bar history of a single symbol.
// Dates are strictly increasing; gaps are allowed.
type PriceSeries struct {
	Symbol string
	Bars   []OHLCV
}

// NewPriceSeries builds a series, sorting bars by time.
func NewPriceSeries(symbol string, bars []OHLCV) PriceSeries {
	sorted := make([]OHLCV, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	return PriceSeries{Symbol: symbol, Bars: sorted}
}

// Len returns the number of bars.
func (s PriceSeries) Len() int {
	return len(s.Bars)
}

// Validate checks that bar dates are strictly increasing.
func (s PriceSeries) Validate() error {
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i].Time.After(s.Bars[i-1].Time) {
			return WrapError(ErrInvalidSeries,
				fmt.Errorf("%s: bar %d (%s) not after bar %d (%s)",
					s.Symbol, i, s.Bars[i].Time.Format(DateLayout), i-1, s.Bars[i-1].Time.Format(DateLayout)))
		}
	}
	return nil
}

// Closes extracts closing prices.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, bar := range s.Bars {
		closes[i] = bar.Close
	}
	return closes
}

// History returns the prefix of the series with bar dates on or before until.
func (s PriceSeries) History(until time.Time) PriceSeries {
	day := TruncateDay(until)
	n := sort.Search(len(s.Bars), func(i int) bool {
		return TruncateDay(s.Bars[i].Time).After(day)
	})
	return PriceSeries{Symbol: s.Symbol, Bars: s.Bars[:n]}
}

// CloseOn returns the close of the bar dated on the given day.
func (s PriceSeries) CloseOn(date time.Time) (float64, bool) {
	day := TruncateDay(date)
	i := sort.Search(len(s.Bars), func(i int) bool {
		return !TruncateDay(s.Bars[i].Time).Before(day)
	})
	if i < len(s.Bars) && TruncateDay(s.Bars[i].Time).Equal(day) {
		return s.Bars[i].Close, true
	}
	return 0, false
}

// Last returns the final bar.
func (s PriceSeries) Last() (OHLCV, bool) {
	if len(s.Bars) == 0 {
		return OHLCV{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// DateLayout is the day format used in logs, reports and the CLI.
const DateLayout = "2006-01-02"

// TruncateDay drops the time-of-day component in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsFinitePrice reports whether p can be traded or marked.
func IsFinitePrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// Direction is the stance a signal takes on an asset.
type Direction string

const (
	DirectionLong Direction = "LONG"
	DirectionFlat Direction = "FLAT"
)

// Signal is the per-asset output of a signal generator for one rebalancing date.
type Signal struct {
	Symbol    string
	Direction Direction
	Strength  float64 // [0,1]
	Momentum  float64
	Rank      int // 1-based among scored assets
}

// IsLong reports whether the signal asks for a risky allocation.
func (s Signal) IsLong() bool {
	return s.Direction == DirectionLong
}

// WeightTolerance bounds floating error on weight sums.
const WeightTolerance = 1e-6

// AllocationPlan is the target portfolio for one rebalancing date.
type AllocationPlan struct {
	Date       time.Time          `json:"date"`
	Weights    map[string]float64 `json:"weights"`
	CashWeight float64            `json:"cash_weight"`
}

// Total returns the sum of all weights including cash.
func (p AllocationPlan) Total() float64 {
	total := p.CashWeight
	for _, w := range p.Weights {
		total += w
	}
	return total
}

// Symbols returns the symbols with a weight, sorted.
func (p AllocationPlan) Symbols() []string {
	symbols := make([]string, 0, len(p.Weights))
	for s := range p.Weights {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// Validate checks weight bounds and that weights sum to one.
func (p AllocationPlan) Validate() error {
	if p.CashWeight < -WeightTolerance || p.CashWeight > 1+WeightTolerance {
		return fmt.Errorf("cash weight %f out of [0,1]", p.CashWeight)
	}
	for s, w := range p.Weights {
		if math.IsNaN(w) || w < -WeightTolerance || w > 1+WeightTolerance {
			return fmt.Errorf("weight for %s is %f, out of [0,1]", s, w)
		}
	}
	if total := p.Total(); math.Abs(total-1) > WeightTolerance {
		return fmt.Errorf("weights sum to %f, want 1", total)
	}
	return nil
}

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is an immutable execution record.
type Trade struct {
	Date       time.Time `json:"date"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Shares     float64   `json:"shares"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	Slippage   float64   `json:"slippage"`
}

// Notional returns shares × price.
func (t Trade) Notional() float64 {
	return t.Shares * t.Price
}

// Costs returns commission plus slippage.
func (t Trade) Costs() float64 {
	return t.Commission + t.Slippage
}

// CashDelta is the signed effect of the trade on cash.
func (t Trade) CashDelta() float64 {
	if t.Side == SideBuy {
		return -(t.Notional() + t.Costs())
	}
	return t.Notional() - t.Costs()
}

// EquityPoint is the marked portfolio value on one trading date.
type EquityPoint struct {
	Date           time.Time `json:"date"`
	TotalValue     float64   `json:"total_value"`
	Cash           float64   `json:"cash"`
	PositionsValue float64   `json:"positions_value"`
}

// GapPhase says where a data gap was hit.
type GapPhase string

const (
	GapPhaseRebalance GapPhase = "rebalance"
	GapPhaseMark      GapPhase = "mark"
)

// DataGap records a missing or non-finite price that was absorbed.
type DataGap struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Phase  GapPhase  `json:"phase"`
	Reason string    `json:"reason"`
}
