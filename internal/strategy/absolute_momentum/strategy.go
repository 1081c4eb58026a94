package absolute_momentum

import (
	"fmt"

	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/strategy"
)

// AbsoluteMomentum selects every asset whose own trailing return beats the
// threshold. There is no top-N cut; allocation still caps the risky share
// at PositionCount slots.
type AbsoluteMomentum struct {
	params strategy.Params
}

// New creates an absolute momentum generator.
func New(cfg config.StrategyConfig) *AbsoluteMomentum {
	return &AbsoluteMomentum{params: strategy.ParamsFromConfig(cfg)}
}

// Constructor adapts New to the registry.
func Constructor(cfg config.StrategyConfig) (strategy.Generator, error) {
	return New(cfg), nil
}

func (a *AbsoluteMomentum) Name() string {
	return string(config.VariantAbsoluteMomentum)
}

func (a *AbsoluteMomentum) Description() string {
	return fmt.Sprintf("Absolute Momentum (lookback %d, threshold %.4f, %s)",
		a.params.Lookback, a.params.Threshold, a.params.Method)
}

func (a *AbsoluteMomentum) RequiredData() strategy.DataRequirements {
	return strategy.DataRequirements{
		Symbols:      a.params.Universe,
		PriceHistory: a.params.Lookback + 1,
	}
}

func (a *AbsoluteMomentum) Generate(ctx strategy.AnalysisContext) (strategy.SignalSet, error) {
	candidates, excluded := strategy.Score(ctx, a.params.Universe, a.params.Lookback, strategy.TrailingReturn)
	return strategy.Select(ctx.Date, a.Name(), candidates, excluded, a.params, false)
}
