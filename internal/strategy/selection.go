package strategy

import (
	"math"
	"sort"
	"time"

	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
	"github.com/newthinker/rotator/internal/indicator"
)

// ScoreFunc turns a close history (oldest first) into a momentum score.
// ok is false when the history is too short to score.
type ScoreFunc func(closes []float64, lookback int) (score float64, ok bool)

// TrailingReturn is the default momentum score.
func TrailingReturn(closes []float64, lookback int) (float64, bool) {
	return indicator.TrailingReturn(closes, lookback)
}

// Params are the selection settings shared by the momentum generators.
type Params struct {
	Universe      []string
	Lookback      int
	Threshold     float64
	PositionCount int
	Method        config.StrengthMethod
	ScaleRange    float64
}

// ParamsFromConfig extracts selection settings from a strategy config.
func ParamsFromConfig(cfg config.StrategyConfig) Params {
	return Params{
		Universe:      append([]string(nil), cfg.Universe...),
		Lookback:      cfg.LookbackPeriod,
		Threshold:     cfg.AbsoluteThreshold,
		PositionCount: cfg.PositionCount,
		Method:        cfg.StrengthMethod,
		ScaleRange:    cfg.StrengthScaleRange,
	}
}

// Candidate is a scored asset.
type Candidate struct {
	Symbol   string
	Momentum float64
}

// Score evaluates every universe symbol at date. Symbols with no series or
// too little history are returned as excluded, sorted.
func Score(ctx AnalysisContext, universe []string, lookback int, score ScoreFunc) ([]Candidate, []string) {
	candidates := make([]Candidate, 0, len(universe))
	var excluded []string

	for _, symbol := range universe {
		series, ok := ctx.History[symbol]
		if !ok {
			excluded = append(excluded, symbol)
			continue
		}
		closes := series.History(ctx.Date).Closes()
		m, ok := score(closes, lookback)
		if !ok || math.IsNaN(m) || math.IsInf(m, 0) {
			excluded = append(excluded, symbol)
			continue
		}
		candidates = append(candidates, Candidate{Symbol: symbol, Momentum: m})
	}

	sort.Strings(excluded)
	return candidates, excluded
}

// Rank sorts candidates by momentum descending, breaking ties by symbol.
func Rank(candidates []Candidate) []Candidate {
	ranked := append([]Candidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Momentum != ranked[j].Momentum {
			return ranked[i].Momentum > ranked[j].Momentum
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})
	return ranked
}

// Select applies the absolute momentum filter to ranked candidates, keeps
// the top PositionCount when limit is set, and assigns strengths.
func Select(date time.Time, name string, candidates []Candidate, excluded []string, p Params, limit bool) (SignalSet, error) {
	ranked := Rank(candidates)

	selected := 0
	for _, c := range ranked {
		if c.Momentum <= p.Threshold {
			break
		}
		if limit && selected >= p.PositionCount {
			break
		}
		selected++
	}

	momenta := make([]float64, selected)
	for i := 0; i < selected; i++ {
		momenta[i] = ranked[i].Momentum
	}
	strengths, err := Strengths(p.Method, momenta, p.Threshold, p.ScaleRange)
	if err != nil {
		return SignalSet{}, err
	}

	signals := make([]core.Signal, len(ranked))
	for i, c := range ranked {
		sig := core.Signal{
			Symbol:    c.Symbol,
			Direction: core.DirectionFlat,
			Momentum:  c.Momentum,
			Rank:      i + 1,
		}
		if i < selected {
			sig.Direction = core.DirectionLong
			sig.Strength = strengths[i]
		}
		signals[i] = sig
	}

	return SignalSet{
		Date:      date,
		Generator: name,
		Signals:   signals,
		Excluded:  excluded,
	}, nil
}
