package allocation

import (
	"fmt"
	"time"

	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
)

// Planner turns selected signals into target weights.
type Planner struct {
	positionCount int
	safeAsset     string
}

// NewPlanner creates a planner from a strategy config.
func NewPlanner(cfg config.StrategyConfig) *Planner {
	return &Planner{
		positionCount: cfg.PositionCount,
		safeAsset:     cfg.SafeAsset,
	}
}

// RiskShare is the fraction of the portfolio given to risky assets when
// included of desired slots are filled.
func RiskShare(included, desired int) float64 {
	if desired <= 0 || included <= 0 {
		return 0
	}
	if included >= desired {
		return 1
	}
	return float64(included) / float64(desired)
}

// Plan allocates the risk share across the LONG signals in proportion to
// their strengths. The residual goes to the safe asset, or stays in cash
// when none is configured.
func (p *Planner) Plan(date time.Time, signals []core.Signal) (core.AllocationPlan, error) {
	long := make([]core.Signal, 0, len(signals))
	for _, s := range signals {
		if s.IsLong() {
			long = append(long, s)
		}
	}

	plan := core.AllocationPlan{
		Date:    date,
		Weights: make(map[string]float64, len(long)+1),
	}

	riskShare := RiskShare(len(long), p.positionCount)
	if riskShare > 0 {
		var total float64
		for _, s := range long {
			total += s.Strength
		}
		for _, s := range long {
			w := riskShare / float64(len(long))
			if total > 0 {
				w = riskShare * s.Strength / total
			}
			if w > 0 {
				plan.Weights[s.Symbol] += w
			}
		}
	}

	residual := 1 - riskShare
	if residual > 0 {
		if p.safeAsset != "" {
			plan.Weights[p.safeAsset] += residual
		} else {
			plan.CashWeight = residual
		}
	}

	if err := plan.Validate(); err != nil {
		return core.AllocationPlan{}, fmt.Errorf("allocation on %s: %w", date.Format(core.DateLayout), err)
	}
	return plan, nil
}
