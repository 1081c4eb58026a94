// Package sweep drives many independent backtests over a parameter space.
package sweep

import (
	"fmt"
	"math/rand"

	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
)

// ErrSearcherUnavailable is returned by search strategies whose backing
// optimizer is not built in.
var ErrSearcherUnavailable = core.ErrSearcherUnavailable

// Space lists candidate values per parameter. An empty axis keeps the base
// configuration's value.
type Space struct {
	LookbackPeriods []int                   `json:"lookback_periods,omitempty" mapstructure:"lookback_periods"`
	Thresholds      []float64               `json:"thresholds,omitempty" mapstructure:"thresholds"`
	PositionCounts  []int                   `json:"position_counts,omitempty" mapstructure:"position_counts"`
	StrengthMethods []config.StrengthMethod `json:"strength_methods,omitempty" mapstructure:"strength_methods"`
}

// Size is the number of grid points.
func (s Space) Size() int {
	return max(1, len(s.LookbackPeriods)) *
		max(1, len(s.Thresholds)) *
		max(1, len(s.PositionCounts)) *
		max(1, len(s.StrengthMethods))
}

// Searcher proposes the configurations to evaluate.
type Searcher interface {
	Name() string
	Propose(base config.StrategyConfig, space Space) ([]config.StrategyConfig, error)
}

// Grid enumerates every combination in the space.
type Grid struct{}

func (Grid) Name() string { return "grid" }

// Propose returns the cartesian product in axis order, lookback outermost.
func (Grid) Propose(base config.StrategyConfig, space Space) ([]config.StrategyConfig, error) {
	lookbacks := space.LookbackPeriods
	if len(lookbacks) == 0 {
		lookbacks = []int{base.LookbackPeriod}
	}
	thresholds := space.Thresholds
	if len(thresholds) == 0 {
		thresholds = []float64{base.AbsoluteThreshold}
	}
	counts := space.PositionCounts
	if len(counts) == 0 {
		counts = []int{base.PositionCount}
	}
	methods := space.StrengthMethods
	if len(methods) == 0 {
		methods = []config.StrengthMethod{base.StrengthMethod}
	}

	out := make([]config.StrategyConfig, 0, space.Size())
	for _, lb := range lookbacks {
		for _, th := range thresholds {
			for _, n := range counts {
				for _, m := range methods {
					cfg := base
					cfg.Universe = append([]string(nil), base.Universe...)
					cfg.LookbackPeriod = lb
					cfg.AbsoluteThreshold = th
					cfg.PositionCount = n
					cfg.StrengthMethod = m
					out = append(out, cfg)
				}
			}
		}
	}
	return out, nil
}

// Random draws Samples distinct grid points. The same Seed gives the same
// draw.
type Random struct {
	Samples int
	Seed    int64
}

func (r Random) Name() string { return "random" }

func (r Random) Propose(base config.StrategyConfig, space Space) ([]config.StrategyConfig, error) {
	if r.Samples < 1 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("random search needs at least one sample, got %d", r.Samples))
	}
	grid, err := Grid{}.Propose(base, space)
	if err != nil {
		return nil, err
	}
	if r.Samples >= len(grid) {
		return grid, nil
	}

	rng := rand.New(rand.NewSource(r.Seed))
	out := make([]config.StrategyConfig, 0, r.Samples)
	for _, i := range rng.Perm(len(grid))[:r.Samples] {
		out = append(out, grid[i])
	}
	return out, nil
}

// Bayesian is a placeholder for model-guided search. No optimizer ships with
// the engine, so Propose always fails with ErrSearcherUnavailable.
type Bayesian struct{}

func (Bayesian) Name() string { return "bayesian" }

func (Bayesian) Propose(config.StrategyConfig, Space) ([]config.StrategyConfig, error) {
	return nil, core.WrapError(ErrSearcherUnavailable,
		fmt.Errorf("bayesian search requires an external optimizer"))
}

// NewSearcher resolves a searcher by name.
func NewSearcher(name string, cfg config.SweepConfig) (Searcher, error) {
	switch name {
	case "", "grid":
		return Grid{}, nil
	case "random":
		return Random{Samples: cfg.Samples, Seed: cfg.Seed}, nil
	case "bayesian":
		return Bayesian{}, nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown searcher: %q", name))
	}
}
