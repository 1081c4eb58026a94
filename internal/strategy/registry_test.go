package strategy

import (
	"errors"
	"testing"

	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGenerator struct {
	name string
}

func (m *mockGenerator) Name() string                   { return m.name }
func (m *mockGenerator) Description() string            { return "mock generator" }
func (m *mockGenerator) RequiredData() DataRequirements { return DataRequirements{PriceHistory: 2} }
func (m *mockGenerator) Generate(ctx AnalysisContext) (SignalSet, error) {
	return SignalSet{Date: ctx.Date, Generator: m.name}, nil
}

func TestRegistry_RegisterAndNew(t *testing.T) {
	r := NewRegistry()
	r.Register(config.VariantDualMomentum, func(cfg config.StrategyConfig) (Generator, error) {
		return &mockGenerator{name: "mock"}, nil
	})

	g, err := r.New(config.DefaultStrategy())
	require.NoError(t, err)
	assert.Equal(t, "mock", g.Name())
	assert.Equal(t, []string{"dual_momentum"}, r.Names())
}

func TestRegistry_Unregistered(t *testing.T) {
	r := NewRegistry()
	_, err := r.New(config.DefaultStrategy())
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestRegistry_ConstructorError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	r.Register(config.VariantCustom, func(cfg config.StrategyConfig) (Generator, error) {
		return nil, boom
	})

	cfg := config.DefaultStrategy()
	cfg.Variant = config.VariantCustom
	_, err := r.New(cfg)
	assert.ErrorIs(t, err, boom)
}
