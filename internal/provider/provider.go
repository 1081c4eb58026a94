// Package provider loads daily price history ahead of a simulation run.
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/newthinker/rotator/internal/core"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Provider fetches bar history for one symbol.
type Provider interface {
	Name() string
	FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.OHLCV, error)
}

// Registry manages price providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

type fetchOptions struct {
	interval    string
	parallelism int
	logger      *zap.Logger
}

// Option tunes FetchMultiple.
type Option func(*fetchOptions)

// WithInterval sets the bar interval, "1d" by default.
func WithInterval(interval string) Option {
	return func(o *fetchOptions) { o.interval = interval }
}

// WithParallelism bounds concurrent fetches.
func WithParallelism(n int) Option {
	return func(o *fetchOptions) { o.parallelism = n }
}

// WithLogger sets the logger used for per-symbol failures.
func WithLogger(l *zap.Logger) Option {
	return func(o *fetchOptions) { o.logger = l }
}

// FetchMultiple loads every symbol concurrently and validates each series.
// Symbols that fail are returned sorted in failed and left out of the map;
// the error is non-nil only when nothing could be loaded or ctx ends.
func FetchMultiple(ctx context.Context, p Provider, symbols []string, start, end time.Time, opts ...Option) (map[string]core.PriceSeries, []string, error) {
	o := fetchOptions{interval: "1d", parallelism: 4, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		mu     sync.Mutex
		series = make(map[string]core.PriceSeries, len(symbols))
		failed []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, o.parallelism))

	for _, symbol := range dedupe(symbols) {
		symbol := symbol // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			s, err := fetchOne(gctx, p, symbol, start, end, o.interval)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.logger.Warn("price fetch failed",
					zap.String("provider", p.Name()),
					zap.String("symbol", symbol),
					zap.Error(err),
				)
				failed = append(failed, symbol)
				return nil
			}
			series[symbol] = s
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sort.Strings(failed)
	if len(series) == 0 && len(failed) > 0 {
		return nil, failed, core.WrapError(core.ErrProviderFailed,
			fmt.Errorf("%s: all %d symbols failed", p.Name(), len(failed)))
	}
	return series, failed, nil
}

func fetchOne(ctx context.Context, p Provider, symbol string, start, end time.Time, interval string) (core.PriceSeries, error) {
	bars, err := p.FetchHistory(ctx, symbol, start, end, interval)
	if err != nil {
		return core.PriceSeries{}, err
	}
	if len(bars) == 0 {
		return core.PriceSeries{}, core.WrapError(core.ErrNoData, fmt.Errorf("%s", symbol))
	}
	s := core.NewPriceSeries(symbol, bars)
	if err := s.Validate(); err != nil {
		return core.PriceSeries{}, err
	}
	return s, nil
}

func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
