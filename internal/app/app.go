// Package app wires providers, generators, storage and metrics from the
// loaded configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/rotator/internal/backtest"
	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
	"github.com/newthinker/rotator/internal/metrics"
	"github.com/newthinker/rotator/internal/provider"
	"github.com/newthinker/rotator/internal/provider/alpaca"
	"github.com/newthinker/rotator/internal/provider/cache"
	"github.com/newthinker/rotator/internal/provider/csvdir"
	"github.com/newthinker/rotator/internal/provider/yahoo"
	"github.com/newthinker/rotator/internal/report"
	"github.com/newthinker/rotator/internal/storage/archive"
	"github.com/newthinker/rotator/internal/strategy"
	"github.com/newthinker/rotator/internal/strategy/factory"
	"github.com/newthinker/rotator/internal/sweep"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App is the composition root shared by the CLI and the HTTP server.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *metrics.Registry
	providers  *provider.Registry
	provider   provider.Provider
	generators *strategy.Registry
	archive    archive.Storage
	redis      *redis.Client
}

// Option configures an App.
type Option func(*App)

// WithProvider overrides the configured price provider.
func WithProvider(p provider.Provider) Option {
	return func(a *App) { a.provider = p }
}

// WithArchive overrides the configured archive backend.
func WithArchive(s archive.Storage) Option {
	return func(a *App) { a.archive = s }
}

// New creates an App from a validated config.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics.NewRegistry(),
		providers:  provider.NewRegistry(),
		generators: factory.NewRegistry(logger),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.provider == nil {
		p, err := a.buildProvider()
		if err != nil {
			return nil, err
		}
		a.provider = p
	}

	if a.archive == nil {
		store, err := archive.New(cfg.Archive)
		if err != nil {
			return nil, fmt.Errorf("creating archive: %w", err)
		}
		a.archive = store
	}

	logger.Debug("app initialized",
		zap.String("provider", a.provider.Name()),
		zap.Bool("cache", a.redis != nil),
		zap.Bool("archive", a.archive != nil),
		zap.Strings("variants", a.generators.Names()),
	)
	return a, nil
}

func (a *App) buildProvider() (provider.Provider, error) {
	data := a.cfg.Data

	a.providers.Register(yahoo.New(""))
	if data.Alpaca.APIKey != "" {
		a.providers.Register(alpaca.New(data.Alpaca.APIKey, data.Alpaca.APISecret, data.Alpaca.BaseURL))
	}
	if data.CSVDir != "" {
		a.providers.Register(csvdir.New(data.CSVDir))
	}

	p, ok := a.providers.Get(data.Provider)
	if !ok {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("price provider %q is not configured", data.Provider))
	}

	if data.Cache.Addr == "" {
		return p, nil
	}
	a.redis = cache.NewClient(data.Cache.Addr, data.Cache.Password, data.Cache.DB)
	return cache.New(p, a.redis, data.Cache.TTL,
		cache.WithLogger(a.logger),
		cache.WithObserver(a.metrics.RecordCacheLookup),
	), nil
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Metrics returns the metrics registry.
func (a *App) Metrics() *metrics.Registry { return a.metrics }

// Provider returns the price provider, cached when configured.
func (a *App) Provider() provider.Provider { return a.provider }

// Generators returns the signal generator registry.
func (a *App) Generators() *strategy.Registry { return a.generators }

// Archive returns the result archive, nil when archiving is off.
func (a *App) Archive() archive.Storage { return a.archive }

// NewBacktester builds a backtester for cfg.
func (a *App) NewBacktester(cfg config.StrategyConfig) (*backtest.Backtester, error) {
	gen, err := a.generators.New(cfg)
	if err != nil {
		return nil, err
	}
	return backtest.New(cfg, gen,
		backtest.WithLogger(a.logger),
		backtest.WithRecorder(a.metrics),
	)
}

// RunBacktest fetches prices, runs cfg over [start, end] and archives the
// result when an archive is configured.
func (a *App) RunBacktest(ctx context.Context, cfg config.StrategyConfig, start, end time.Time) (*backtest.Result, error) {
	bt, err := a.NewBacktester(cfg)
	if err != nil {
		return nil, err
	}
	res, err := bt.RunWithProvider(ctx, a.provider, start, end, provider.WithInterval(a.cfg.Data.Interval))
	if err != nil {
		return nil, err
	}

	if a.archive != nil {
		paths, err := report.Archive(ctx, a.archive, res)
		if err != nil {
			return res, fmt.Errorf("archiving run %s: %w", res.RunID, err)
		}
		a.logger.Info("run archived", zap.String("run_id", res.RunID), zap.Strings("paths", paths))
	}
	return res, nil
}

// RunSweep prefetches history once for the widest lookback in space and
// evaluates every configuration the searcher proposes.
func (a *App) RunSweep(ctx context.Context, base config.StrategyConfig, searcher sweep.Searcher, space sweep.Space, start, end time.Time) (*sweep.Report, error) {
	lookback := base.LookbackPeriod
	for _, lb := range space.LookbackPeriods {
		lookback = max(lookback, lb)
	}

	symbols := base.Symbols()
	if base.BenchmarkSymbol != "" {
		symbols = append(symbols, base.BenchmarkSymbol)
	}
	prices, failed, err := provider.FetchMultiple(ctx, a.provider, symbols,
		backtest.WarmupStart(start, lookback), end,
		provider.WithInterval(a.cfg.Data.Interval),
		provider.WithParallelism(a.cfg.Sweep.Parallelism),
		provider.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	if len(failed) > 0 {
		a.logger.Warn("sweep running without some symbols", zap.Strings("unavailable", failed))
	}

	runner := sweep.NewRunner(
		sweep.WithParallelism(a.cfg.Sweep.Parallelism),
		sweep.WithObjective(a.cfg.Sweep.Objective),
		sweep.WithLogger(a.logger),
		sweep.WithRecorder(a.metrics),
		sweep.WithRegistry(a.generators),
	)
	rep, err := runner.Run(ctx, base, searcher, space, prices, prices[base.BenchmarkSymbol], start, end)
	if err != nil {
		return nil, err
	}

	if a.archive != nil {
		if _, err := report.ArchiveSweep(ctx, a.archive, rep); err != nil {
			return rep, fmt.Errorf("archiving sweep %s: %w", rep.ID, err)
		}
	}
	return rep, nil
}

// Close releases external connections.
func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
