package sweep

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/rotator/internal/analytics"
	"github.com/newthinker/rotator/internal/backtest"
	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
	"github.com/newthinker/rotator/internal/strategy"
	"github.com/newthinker/rotator/internal/strategy/factory"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Recorder receives run and trial statistics. *metrics.Registry implements it.
type Recorder interface {
	backtest.Recorder
	RecordSweepTrial(status string)
}

// TrialResult is the outcome of one configuration.
type TrialResult struct {
	ID         string                `json:"id"`
	Index      int                   `json:"index"`
	Config     config.StrategyConfig `json:"config"`
	Score      float64               `json:"score"`
	Metrics    analytics.Metrics     `json:"metrics"`
	FinalValue float64               `json:"final_value"`
	Trades     int                   `json:"trades"`
	Error      string                `json:"error,omitempty"`
}

// OK reports whether the trial produced metrics.
func (t TrialResult) OK() bool { return t.Error == "" }

// Report holds every trial ranked by objective, failures last.
type Report struct {
	ID        string        `json:"id"`
	Searcher  string        `json:"searcher"`
	Objective string        `json:"objective"`
	Trials    []TrialResult `json:"trials"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Best returns the top-ranked successful trial.
func (r *Report) Best() (TrialResult, bool) {
	if len(r.Trials) == 0 || !r.Trials[0].OK() {
		return TrialResult{}, false
	}
	return r.Trials[0], true
}

// Runner executes trials concurrently. Each trial owns its own backtester and
// ledger; the price maps are shared read-only.
type Runner struct {
	registry    *strategy.Registry
	parallelism int
	objective   string
	logger      *zap.Logger
	recorder    Recorder
}

// Option configures a Runner.
type Option func(*Runner)

// WithParallelism bounds concurrent trials. Values below 1 mean one.
func WithParallelism(n int) Option {
	return func(r *Runner) { r.parallelism = n }
}

// WithObjective sets the metric trials are ranked by.
func WithObjective(name string) Option {
	return func(r *Runner) { r.objective = name }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithRegistry replaces the generator registry.
func WithRegistry(reg *strategy.Registry) Option {
	return func(r *Runner) {
		if reg != nil {
			r.registry = reg
		}
	}
}

// NewRunner creates a runner ranking by sharpe unless told otherwise.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		parallelism: 1,
		objective:   "sharpe",
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = factory.NewRegistry(r.logger)
	}
	if r.parallelism < 1 {
		r.parallelism = 1
	}
	return r
}

// Run proposes configurations from searcher and backtests each over the same
// prices. Invalid configurations become failed trials; a ledger invariant
// violation or cancellation aborts the sweep.
func (r *Runner) Run(ctx context.Context, base config.StrategyConfig, searcher Searcher, space Space,
	prices map[string]core.PriceSeries, benchmark core.PriceSeries, start, end time.Time) (*Report, error) {

	if _, ok := (analytics.Metrics{}).Objective(r.objective); !ok {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown objective: %q", r.objective))
	}

	configs, err := searcher.Propose(base, space)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ID:        uuid.New().String(),
		Searcher:  searcher.Name(),
		Objective: r.objective,
		Trials:    make([]TrialResult, len(configs)),
	}
	r.logger.Info("sweep started",
		zap.String("sweep_id", report.ID),
		zap.String("searcher", report.Searcher),
		zap.String("objective", r.objective),
		zap.Int("trials", len(configs)),
		zap.Int("parallelism", r.parallelism),
	)

	began := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)

	var mu sync.Mutex
	for i, cfg := range configs {
		i, cfg := i, cfg // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			trial, err := r.runTrial(gctx, i, cfg, prices, benchmark, start, end)
			if err != nil {
				return err
			}
			mu.Lock()
			report.Trials[i] = trial
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rank(report.Trials)
	for _, t := range report.Trials {
		if !t.OK() {
			report.Failed++
		}
	}
	report.Duration = time.Since(began)

	fields := []zap.Field{
		zap.String("sweep_id", report.ID),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", report.Duration),
	}
	if best, ok := report.Best(); ok {
		fields = append(fields, zap.String("best_trial", best.ID), zap.Float64(r.objective, best.Score))
	}
	r.logger.Info("sweep complete", fields...)
	return report, nil
}

func (r *Runner) runTrial(ctx context.Context, index int, cfg config.StrategyConfig,
	prices map[string]core.PriceSeries, benchmark core.PriceSeries, start, end time.Time) (TrialResult, error) {

	id := uuid.New().String()
	trial := TrialResult{ID: id, Index: index, Config: cfg}

	fail := func(err error) (TrialResult, error) {
		r.record("failed")
		trial.Error = err.Error()
		r.logger.Debug("trial failed", zap.String("trial_id", id), zap.Error(err))
		return trial, nil
	}

	gen, err := r.registry.New(cfg)
	if err != nil {
		return fail(err)
	}
	opts := []backtest.Option{
		backtest.WithLogger(r.logger.With(zap.String("trial_id", id))),
		backtest.WithRunID(func() string { return id }),
	}
	if r.recorder != nil {
		opts = append(opts, backtest.WithRecorder(r.recorder))
	}
	bt, err := backtest.New(cfg, gen, opts...)
	if err != nil {
		return fail(err)
	}

	res, err := bt.Run(ctx, prices, benchmark, start, end)
	if err != nil {
		if errors.Is(err, core.ErrLedgerInvariant) || ctx.Err() != nil {
			r.record("aborted")
			return trial, err
		}
		return fail(err)
	}

	trial.Metrics = res.Metrics
	trial.Score, _ = res.Metrics.Objective(r.objective)
	trial.FinalValue = res.FinalValue()
	trial.Trades = len(res.Trades)
	r.record("success")
	return trial, nil
}

func (r *Runner) record(status string) {
	if r.recorder != nil {
		r.recorder.RecordSweepTrial(status)
	}
}

// rank orders successful trials by score descending, ties by proposal order,
// then failed trials in proposal order.
func rank(trials []TrialResult) {
	sort.SliceStable(trials, func(i, j int) bool {
		a, b := trials[i], trials[j]
		if a.OK() != b.OK() {
			return a.OK()
		}
		if a.OK() && a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Index < b.Index
	})
}
