package custom

import (
	"errors"
	"testing"
	"time"

	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
	"github.com/newthinker/rotator/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(symbol string, closes ...float64) core.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]core.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = core.OHLCV{Symbol: symbol, Close: c, Time: start.AddDate(0, 0, i)}
	}
	return core.NewPriceSeries(symbol, bars)
}

func customConfig(scorer string) config.StrategyConfig {
	cfg := config.DefaultStrategy()
	cfg.Variant = config.VariantCustom
	cfg.Scorer = scorer
	cfg.Universe = []string{"SPY", "EFA"}
	cfg.LookbackPeriod = 3
	cfg.PositionCount = 1
	return cfg
}

func TestConstructor_UnknownScorer(t *testing.T) {
	_, err := Constructor(customConfig("rsi"))
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestNew_NilScorer(t *testing.T) {
	_, err := New(customConfig(""), "nil", nil)
	assert.True(t, errors.Is(err, core.ErrConfigMissing))
}

func TestScorers(t *testing.T) {
	assert.Equal(t, []string{"ema_distance", "sma_distance", "trailing_return"}, Scorers())
}

func TestCustom_SMADistance(t *testing.T) {
	g, err := Constructor(customConfig("sma_distance"))
	require.NoError(t, err)

	set, err := g.Generate(strategy.AnalysisContext{
		Date: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		History: map[string]core.PriceSeries{
			// SMA(3) of last three = 100, close 100 -> 0
			"SPY": series("SPY", 90, 100, 100, 100),
			// SMA(3) = 110, close 120 -> 0.0909
			"EFA": series("EFA", 100, 100, 110, 120),
		},
	})
	require.NoError(t, err)

	long := set.Long()
	require.Len(t, long, 1)
	assert.Equal(t, "EFA", long[0].Symbol)
	assert.InDelta(t, 120.0/110.0-1, long[0].Momentum, 1e-9)
}

func TestCustom_FuncScorer(t *testing.T) {
	lastClose := func(closes []float64, lookback int) (float64, bool) {
		if len(closes) == 0 {
			return 0, false
		}
		return closes[len(closes)-1], true
	}
	c, err := New(customConfig(""), "last_close", lastClose)
	require.NoError(t, err)

	set, err := c.Generate(strategy.AnalysisContext{
		Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		History: map[string]core.PriceSeries{
			"SPY": series("SPY", 10, 20),
			"EFA": series("EFA", 10, 30),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "EFA", set.Long()[0].Symbol)
	assert.Contains(t, c.Description(), "last_close")
}
