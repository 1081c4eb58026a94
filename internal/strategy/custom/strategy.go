package custom

import (
	"fmt"
	"sort"

	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
	"github.com/newthinker/rotator/internal/indicator"
	"github.com/newthinker/rotator/internal/strategy"
)

// Built-in scorers selectable by name from config.
var scorers = map[string]strategy.ScoreFunc{
	"trailing_return": strategy.TrailingReturn,
	"sma_distance":    smaDistance,
	"ema_distance":    emaDistance,
}

// Scorers returns the built-in scorer names, sorted.
func Scorers() []string {
	names := make([]string, 0, len(scorers))
	for name := range scorers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// smaDistance scores close / SMA(lookback) - 1 on the latest bar.
func smaDistance(closes []float64, lookback int) (float64, bool) {
	if len(closes) < lookback+1 {
		return 0, false
	}
	return indicator.Distance(closes, indicator.SMA(closes, lookback))
}

// emaDistance scores close / EMA(lookback) - 1 on the latest bar.
func emaDistance(closes []float64, lookback int) (float64, bool) {
	if len(closes) < lookback+1 {
		return 0, false
	}
	return indicator.Distance(closes, indicator.EMA(closes, lookback))
}

// Custom runs dual momentum selection with a pluggable score.
type Custom struct {
	params     strategy.Params
	scorer     strategy.ScoreFunc
	scorerName string
}

// New creates a custom generator with an explicit scorer.
func New(cfg config.StrategyConfig, name string, scorer strategy.ScoreFunc) (*Custom, error) {
	if scorer == nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("custom generator needs a scorer"))
	}
	return &Custom{
		params:     strategy.ParamsFromConfig(cfg),
		scorer:     scorer,
		scorerName: name,
	}, nil
}

// Constructor resolves cfg.Scorer against the built-in scorers.
func Constructor(cfg config.StrategyConfig) (strategy.Generator, error) {
	scorer, ok := scorers[cfg.Scorer]
	if !ok {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown scorer %q, available: %v", cfg.Scorer, Scorers()))
	}
	return New(cfg, cfg.Scorer, scorer)
}

func (c *Custom) Name() string {
	return string(config.VariantCustom)
}

func (c *Custom) Description() string {
	return fmt.Sprintf("Custom %s (lookback %d, threshold %.4f, top %d, %s)",
		c.scorerName, c.params.Lookback, c.params.Threshold, c.params.PositionCount, c.params.Method)
}

func (c *Custom) RequiredData() strategy.DataRequirements {
	return strategy.DataRequirements{
		Symbols:      c.params.Universe,
		PriceHistory: c.params.Lookback + 1,
	}
}

func (c *Custom) Generate(ctx strategy.AnalysisContext) (strategy.SignalSet, error) {
	candidates, excluded := strategy.Score(ctx, c.params.Universe, c.params.Lookback, c.scorer)
	return strategy.Select(ctx.Date, c.Name(), candidates, excluded, c.params, true)
}
