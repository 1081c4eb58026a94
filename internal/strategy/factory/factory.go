package factory

import (
	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/strategy"
	"github.com/newthinker/rotator/internal/strategy/absolute_momentum"
	"github.com/newthinker/rotator/internal/strategy/custom"
	"github.com/newthinker/rotator/internal/strategy/dual_momentum"
	"go.uber.org/zap"
)

// NewRegistry returns a registry with every built-in variant.
func NewRegistry(logger *zap.Logger) *strategy.Registry {
	r := strategy.NewRegistry(logger)
	r.Register(config.VariantDualMomentum, dual_momentum.Constructor)
	r.Register(config.VariantAbsoluteMomentum, absolute_momentum.Constructor)
	r.Register(config.VariantCustom, custom.Constructor)
	return r
}

// New creates the generator selected by cfg.Variant.
func New(cfg config.StrategyConfig) (strategy.Generator, error) {
	return NewRegistry(nil).New(cfg)
}
