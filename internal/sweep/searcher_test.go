package sweep

import (
	"errors"
	"testing"

	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpace() Space {
	return Space{
		LookbackPeriods: []int{21, 63, 126},
		Thresholds:      []float64{0, 0.02},
		StrengthMethods: []config.StrengthMethod{config.StrengthBinary, config.StrengthProportional},
	}
}

func TestGrid_Propose(t *testing.T) {
	base := config.DefaultStrategy()
	space := testSpace()

	got, err := Grid{}.Propose(base, space)
	require.NoError(t, err)
	require.Len(t, got, 12)
	assert.Equal(t, space.Size(), len(got))

	assert.Equal(t, 21, got[0].LookbackPeriod)
	assert.Equal(t, 0.0, got[0].AbsoluteThreshold)
	assert.Equal(t, config.StrengthBinary, got[0].StrengthMethod)
	assert.Equal(t, config.StrengthProportional, got[1].StrengthMethod)
	assert.Equal(t, 126, got[11].LookbackPeriod)
	assert.Equal(t, 0.02, got[11].AbsoluteThreshold)

	// Axes left empty keep the base value.
	for _, cfg := range got {
		assert.Equal(t, base.PositionCount, cfg.PositionCount)
		assert.Equal(t, base.SafeAsset, cfg.SafeAsset)
	}
}

func TestGrid_EmptySpaceIsBase(t *testing.T) {
	base := config.DefaultStrategy()
	got, err := Grid{}.Propose(base, Space{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, base.LookbackPeriod, got[0].LookbackPeriod)
}

func TestGrid_CopiesUniverse(t *testing.T) {
	base := config.DefaultStrategy()
	got, err := Grid{}.Propose(base, Space{LookbackPeriods: []int{5, 10}})
	require.NoError(t, err)

	got[0].Universe[0] = "QQQ"
	assert.Equal(t, "SPY", got[1].Universe[0])
	assert.Equal(t, "SPY", base.Universe[0])
}

func TestRandom_Propose(t *testing.T) {
	base := config.DefaultStrategy()
	space := testSpace()

	a, err := Random{Samples: 5, Seed: 42}.Propose(base, space)
	require.NoError(t, err)
	b, err := Random{Samples: 5, Seed: 42}.Propose(base, space)
	require.NoError(t, err)
	require.Len(t, a, 5)
	assert.Equal(t, a, b, "same seed must give the same draw")

	type key struct {
		lb int
		th float64
		m  config.StrengthMethod
	}
	seen := map[key]bool{}
	for _, cfg := range a {
		k := key{cfg.LookbackPeriod, cfg.AbsoluteThreshold, cfg.StrengthMethod}
		assert.False(t, seen[k], "duplicate sample %+v", k)
		seen[k] = true
	}

	all, err := Random{Samples: 100, Seed: 1}.Propose(base, space)
	require.NoError(t, err)
	assert.Len(t, all, 12)

	_, err = Random{Samples: 0}.Propose(base, space)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestBayesian_Unavailable(t *testing.T) {
	_, err := Bayesian{}.Propose(config.DefaultStrategy(), testSpace())
	assert.True(t, errors.Is(err, ErrSearcherUnavailable))
}

func TestNewSearcher(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", "grid"},
		{"grid", "grid"},
		{"random", "random"},
		{"bayesian", "bayesian"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			s, err := NewSearcher(tt.name, config.SweepConfig{Samples: 3})
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Name())
		})
	}

	_, err := NewSearcher("annealing", config.SweepConfig{})
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}
