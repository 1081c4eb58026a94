package strategy

import (
	"time"

	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
)

// DataRequirements specifies what data a generator needs
type DataRequirements struct {
	Symbols      []string
	PriceHistory int // Bars of history needed before the first signal
}

// AnalysisContext provides price history to generators. Series may extend
// past Date; generators only read bars dated on or before it.
type AnalysisContext struct {
	Date    time.Time
	History map[string]core.PriceSeries
}

// SignalSet is the output of one generator call.
type SignalSet struct {
	Date      time.Time
	Generator string
	// Signals holds every scored asset in rank order. Selected assets are
	// LONG, the rest FLAT with zero strength.
	Signals []core.Signal
	// Excluded lists symbols without enough history to be scored.
	Excluded []string
}

// Long returns the selected signals in rank order.
func (s SignalSet) Long() []core.Signal {
	long := make([]core.Signal, 0, len(s.Signals))
	for _, sig := range s.Signals {
		if sig.IsLong() {
			long = append(long, sig)
		}
	}
	return long
}

// IncludedCount is the number of selected assets.
func (s SignalSet) IncludedCount() int {
	n := 0
	for _, sig := range s.Signals {
		if sig.IsLong() {
			n++
		}
	}
	return n
}

// Generator decides, for one rebalancing date, which assets qualify and
// with what strength. Implementations are stateless: identical inputs give
// identical outputs regardless of call order.
type Generator interface {
	Name() string
	Description() string
	RequiredData() DataRequirements
	Generate(ctx AnalysisContext) (SignalSet, error)
}

// Constructor builds a generator from a validated strategy config.
type Constructor func(cfg config.StrategyConfig) (Generator, error)
