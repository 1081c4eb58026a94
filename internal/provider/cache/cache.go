// Package cache wraps a price provider with a Redis read-through cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/rotator/internal/core"
	"github.com/newthinker/rotator/internal/provider"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client is the subset of *redis.Client the cache needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Cached checks Redis before calling the wrapped provider and stores
// fetched history for ttl. Cache failures fall through to the provider.
type Cached struct {
	next     provider.Provider
	rdb      Client
	ttl      time.Duration
	observer func(hit bool)
	logger   *zap.Logger
}

// Option configures a Cached provider.
type Option func(*Cached)

// WithObserver is called on every lookup with the hit/miss result.
func WithObserver(fn func(hit bool)) Option {
	return func(c *Cached) { c.observer = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cached) { c.logger = l }
}

// New wraps next with a read-through cache.
func New(next provider.Provider, rdb Client, ttl time.Duration, opts ...Option) *Cached {
	c := &Cached{
		next:     next,
		rdb:      rdb,
		ttl:      ttl,
		observer: func(bool) {},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClient opens a Redis client for the cache.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (c *Cached) Name() string {
	return c.next.Name()
}

func (c *Cached) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.OHLCV, error) {
	key := historyKey(c.next.Name(), symbol, interval, start, end)

	// Try cache.
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var bars []core.OHLCV
		if json.Unmarshal(data, &bars) == nil {
			c.observer(true)
			return bars, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Debug("price cache unavailable", zap.String("key", key), zap.Error(err))
	}
	c.observer(false)

	// Cache miss: read from the provider.
	bars, err := c.next.FetchHistory(ctx, symbol, start, end, interval)
	if err != nil {
		return nil, err
	}

	// NaN closes cannot be encoded; such series are simply not cached.
	if data, err := json.Marshal(bars); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Debug("price cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return bars, nil
}

func historyKey(providerName, symbol, interval string, start, end time.Time) string {
	return fmt.Sprintf("prices:%s:%s:%s:%s:%s", providerName, symbol, interval,
		start.UTC().Format(core.DateLayout), end.UTC().Format(core.DateLayout))
}
