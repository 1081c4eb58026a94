package dual_momentum

import (
	"fmt"

	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/strategy"
)

// DualMomentum combines the absolute momentum filter with a relative
// ranking and keeps the top PositionCount assets.
type DualMomentum struct {
	params strategy.Params
}

// New creates a dual momentum generator from a strategy config.
func New(cfg config.StrategyConfig) *DualMomentum {
	return &DualMomentum{params: strategy.ParamsFromConfig(cfg)}
}

// Constructor adapts New to the registry.
func Constructor(cfg config.StrategyConfig) (strategy.Generator, error) {
	return New(cfg), nil
}

func (d *DualMomentum) Name() string {
	return string(config.VariantDualMomentum)
}

func (d *DualMomentum) Description() string {
	return fmt.Sprintf("Dual Momentum (lookback %d, threshold %.4f, top %d, %s)",
		d.params.Lookback, d.params.Threshold, d.params.PositionCount, d.params.Method)
}

func (d *DualMomentum) RequiredData() strategy.DataRequirements {
	return strategy.DataRequirements{
		Symbols:      d.params.Universe,
		PriceHistory: d.params.Lookback + 1,
	}
}

func (d *DualMomentum) Generate(ctx strategy.AnalysisContext) (strategy.SignalSet, error) {
	candidates, excluded := strategy.Score(ctx, d.params.Universe, d.params.Lookback, strategy.TrailingReturn)
	return strategy.Select(ctx.Date, d.Name(), candidates, excluded, d.params, true)
}
