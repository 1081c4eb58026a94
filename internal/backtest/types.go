package backtest

import (
	"time"

	"github.com/newthinker/rotator/internal/analytics"
	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
	"github.com/newthinker/rotator/internal/execution"
	"github.com/newthinker/rotator/internal/strategy"
)

// Result holds the complete, materialized output of one run.
type Result struct {
	RunID       string                `json:"run_id"`
	Generator   string                `json:"generator"`
	Config      config.StrategyConfig `json:"config"`
	StartDate   time.Time             `json:"start_date"`
	EndDate     time.Time             `json:"end_date"`
	EquityCurve []core.EquityPoint    `json:"equity_curve"`
	Trades      []core.Trade          `json:"trades"`
	Allocations []core.AllocationPlan `json:"allocations"`
	Signals     []strategy.SignalSet  `json:"-"`
	Metrics     analytics.Metrics     `json:"metrics"`
	DataGaps    []core.DataGap        `json:"data_gaps,omitempty"`
	Unavailable []string              `json:"unavailable,omitempty"`
	FinalLedger execution.LedgerState `json:"final_ledger"`
	Duration    time.Duration         `json:"duration"`
}

// FinalValue is the last marked portfolio value.
func (r *Result) FinalValue() float64 {
	if len(r.EquityCurve) == 0 {
		return r.Config.InitialCapital
	}
	return r.EquityCurve[len(r.EquityCurve)-1].TotalValue
}

// AllocationOn returns the plan targeted on date.
func (r *Result) AllocationOn(date time.Time) (core.AllocationPlan, bool) {
	day := core.TruncateDay(date)
	for _, p := range r.Allocations {
		if core.TruncateDay(p.Date).Equal(day) {
			return p, true
		}
	}
	return core.AllocationPlan{}, false
}

// Recorder receives run statistics. *metrics.Registry implements it.
type Recorder interface {
	RecordBacktest(status string, duration float64)
	RecordRebalance()
	RecordTrade(side string)
	RecordDataGap(phase string)
}

type nopRecorder struct{}

func (nopRecorder) RecordBacktest(string, float64) {}
func (nopRecorder) RecordRebalance()               {}
func (nopRecorder) RecordTrade(string)             {}
func (nopRecorder) RecordDataGap(string)           {}
