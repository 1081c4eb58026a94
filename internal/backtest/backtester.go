package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/rotator/internal/allocation"
	"github.com/newthinker/rotator/internal/analytics"
	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
	"github.com/newthinker/rotator/internal/execution"
	"github.com/newthinker/rotator/internal/provider"
	"github.com/newthinker/rotator/internal/strategy"
	"go.uber.org/zap"
)

// Backtester runs one strategy configuration over historical prices.
// A Backtester holds no per-run state; Run may be called concurrently.
type Backtester struct {
	cfg       config.StrategyConfig
	generator strategy.Generator
	planner   *allocation.Planner
	logger    *zap.Logger
	recorder  Recorder
	newID     func() string
}

// Option configures a Backtester.
type Option func(*Backtester)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backtester) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(b *Backtester) {
		if r != nil {
			b.recorder = r
		}
	}
}

// WithRunID overrides run ID generation.
func WithRunID(fn func() string) Option {
	return func(b *Backtester) { b.newID = fn }
}

// New validates cfg and returns a Backtester. Configuration errors surface
// here, before any simulation work.
func New(cfg config.StrategyConfig, gen strategy.Generator, opts ...Option) (*Backtester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, core.WrapError(core.ErrConfigMissing, errors.New("signal generator is nil"))
	}

	b := &Backtester{
		cfg:       cfg,
		generator: gen,
		planner:   allocation.NewPlanner(cfg),
		logger:    zap.NewNop(),
		recorder:  nopRecorder{},
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Config returns the validated strategy config.
func (b *Backtester) Config() config.StrategyConfig {
	return b.cfg
}

// WarmupStart is how far before start history must reach so the first
// rebalancing date can be scored.
func (b *Backtester) WarmupStart(start time.Time) time.Time {
	return WarmupStart(start, b.cfg.LookbackPeriod)
}

// WarmupStart converts a lookback in trading days to a calendar start date.
// It assumes about 252 trading days per 365 calendar days plus slack for
// holidays.
func WarmupStart(start time.Time, lookback int) time.Time {
	days := int(math.Ceil(float64(lookback)*365/252)) + 10
	return start.AddDate(0, 0, -days)
}

// RunWithProvider prefetches universe, safe asset and benchmark history and
// runs the simulation. Symbols the provider cannot load are reported in
// Result.Unavailable.
func (b *Backtester) RunWithProvider(ctx context.Context, p provider.Provider, start, end time.Time, opts ...provider.Option) (*Result, error) {
	symbols := b.cfg.Symbols()
	if b.cfg.BenchmarkSymbol != "" {
		symbols = append(symbols, b.cfg.BenchmarkSymbol)
	}
	opts = append([]provider.Option{provider.WithLogger(b.logger)}, opts...)

	prices, failed, err := provider.FetchMultiple(ctx, p, symbols, b.WarmupStart(start), end, opts...)
	if err != nil {
		b.recorder.RecordBacktest("failed", 0)
		return nil, err
	}

	benchmark := prices[b.cfg.BenchmarkSymbol]
	res, err := b.Run(ctx, prices, benchmark, start, end)
	if err != nil {
		return nil, err
	}
	res.Unavailable = failed
	return res, nil
}

// Run simulates the strategy over the trading dates in [start, end]. Bars
// before start only feed the lookback. prices and benchmark are read-only.
func (b *Backtester) Run(ctx context.Context, prices map[string]core.PriceSeries, benchmark core.PriceSeries, start, end time.Time) (*Result, error) {
	began := time.Now()
	res, err := b.run(ctx, prices, benchmark, start, end)
	elapsed := time.Since(began)

	status := "success"
	if err != nil {
		status = "failed"
		if errors.Is(err, core.ErrLedgerInvariant) {
			status = "invariant_violation"
		}
	}
	b.recorder.RecordBacktest(status, elapsed.Seconds())
	if err != nil {
		b.logger.Error("backtest failed", zap.String("generator", b.generator.Name()), zap.Error(err))
		return nil, err
	}

	res.Duration = elapsed
	b.logger.Info("backtest complete",
		zap.String("run_id", res.RunID),
		zap.String("generator", res.Generator),
		zap.Int("days", len(res.EquityCurve)),
		zap.Int("trades", len(res.Trades)),
		zap.Int("data_gaps", len(res.DataGaps)),
		zap.Float64("final_value", res.FinalValue()),
		zap.Float64("annual_return", res.Metrics.AnnualReturn),
		zap.Float64("sharpe", res.Metrics.Sharpe),
		zap.Duration("elapsed", elapsed),
	)
	return res, nil
}

func (b *Backtester) run(ctx context.Context, prices map[string]core.PriceSeries, benchmark core.PriceSeries, start, end time.Time) (*Result, error) {
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("end %s before start %s", end.Format(core.DateLayout), start.Format(core.DateLayout)))
	}

	symbols := b.cfg.Symbols()
	for _, symbol := range symbols {
		if s, ok := prices[symbol]; ok {
			if err := s.Validate(); err != nil {
				return nil, err
			}
		}
	}

	calendar := TradingCalendar(prices, symbols, start, end)
	if len(calendar) == 0 {
		return nil, core.WrapError(core.ErrNoData, errors.New("no trading dates in range"))
	}
	rebalance := RebalanceDates(calendar, b.cfg.RebalanceFrequency)

	sim := execution.NewSimulator(b.cfg, b.logger)
	res := &Result{
		RunID:       b.newID(),
		Generator:   b.generator.Name(),
		Config:      b.cfg,
		StartDate:   calendar[0],
		EndDate:     calendar[len(calendar)-1],
		EquityCurve: make([]core.EquityPoint, 0, len(calendar)),
	}

	for i, date := range calendar {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		closes := closesOn(prices, symbols, date)

		if rebalance[i] {
			if err := b.rebalance(sim, res, prices, date, closes); err != nil {
				return nil, err
			}
		}

		point := sim.MarkToMarket(date, closes)
		res.EquityCurve = append(res.EquityCurve, point)
	}

	res.Trades = sim.Trades()
	res.DataGaps = sim.Gaps()
	for _, gap := range res.DataGaps {
		b.recorder.RecordDataGap(string(gap.Phase))
	}
	for _, t := range res.Trades {
		b.recorder.RecordTrade(string(t.Side))
	}

	snapshot := sim.Ledger().Snapshot()
	snapshot.Date = res.EndDate
	res.FinalLedger = snapshot

	res.Metrics = analytics.Analyze(res.EquityCurve, benchmark, analytics.Params{
		RiskFreeRate:   b.cfg.RiskFreeRate,
		PeriodsPerYear: b.cfg.PeriodsPerYear,
	})
	return res, nil
}

func (b *Backtester) rebalance(sim *execution.Simulator, res *Result, prices map[string]core.PriceSeries, date time.Time, closes map[string]float64) error {
	set, err := b.generator.Generate(strategy.AnalysisContext{Date: date, History: prices})
	if err != nil {
		return fmt.Errorf("generating signals on %s: %w", date.Format(core.DateLayout), err)
	}

	plan, err := b.planner.Plan(date, set.Signals)
	if err != nil {
		return err
	}

	out, err := sim.Rebalance(date, plan, closes)
	if err != nil {
		return err
	}

	res.Signals = append(res.Signals, set)
	res.Allocations = append(res.Allocations, out.Effective)
	b.recorder.RecordRebalance()

	b.logger.Debug("rebalanced",
		zap.Time("date", date),
		zap.Int("selected", set.IncludedCount()),
		zap.Strings("excluded", set.Excluded),
		zap.Any("weights", out.Effective.Weights),
		zap.Float64("cash_weight", out.Effective.CashWeight),
		zap.Int("trades", len(out.Trades)),
	)
	return nil
}

// closesOn collects the close of every symbol with a bar on date. Symbols
// without a bar are absent from the map.
func closesOn(prices map[string]core.PriceSeries, symbols []string, date time.Time) map[string]float64 {
	closes := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		series, ok := prices[symbol]
		if !ok {
			continue
		}
		if c, ok := series.CloseOn(date); ok {
			closes[symbol] = c
		}
	}
	return closes
}
