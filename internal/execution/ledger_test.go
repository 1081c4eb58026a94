package execution

import (
	"testing"
	"time"

	"github.com/newthinker/rotator/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_BuyUpdatesAverageCost(t *testing.T) {
	l := NewLedger(10000)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	l.Apply(core.Trade{Date: day, Symbol: "SPY", Side: core.SideBuy, Shares: 10, Price: 100})
	l.Apply(core.Trade{Date: day, Symbol: "SPY", Side: core.SideBuy, Shares: 10, Price: 110})

	pos, ok := l.Position("SPY")
	require.True(t, ok)
	assert.Equal(t, 20.0, pos.Shares)
	assert.InDelta(t, 105.0, pos.AverageCost, 1e-9)
	assert.InDelta(t, 10000-1000-1100, l.Cash(), 1e-9)
	assert.InDelta(t, 10000-2100+20*110, l.TotalValue(), 1e-9)
}

func TestLedger_SellRealizesAndRemoves(t *testing.T) {
	l := NewLedger(1000)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	l.Apply(core.Trade{Date: day, Symbol: "AGG", Side: core.SideBuy, Shares: 5, Price: 100})
	l.Apply(core.Trade{Date: day, Symbol: "AGG", Side: core.SideSell, Shares: 2, Price: 120, Commission: 1})

	pos, _ := l.Position("AGG")
	assert.InDelta(t, 40.0, pos.RealizedPL, 1e-9)
	assert.Equal(t, 3.0, pos.Shares)
	assert.InDelta(t, 1000-500+240-1, l.Cash(), 1e-9)

	l.Apply(core.Trade{Date: day, Symbol: "AGG", Side: core.SideSell, Shares: 3, Price: 120})
	_, ok := l.Position("AGG")
	assert.False(t, ok)
	assert.Empty(t, l.Symbols())
}

func TestLedger_MarkIgnoresUnheld(t *testing.T) {
	l := NewLedger(100)
	l.Mark("SPY", 500)
	assert.Equal(t, 100.0, l.TotalValue())
}

func TestLedger_Snapshot(t *testing.T) {
	l := NewLedger(1000)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	l.Apply(core.Trade{Date: day, Symbol: "SPY", Side: core.SideBuy, Shares: 1, Price: 100})
	l.Apply(core.Trade{Date: day, Symbol: "AGG", Side: core.SideBuy, Shares: 1, Price: 50})

	snap := l.Snapshot()
	require.Len(t, snap.Positions, 2)
	assert.Equal(t, "AGG", snap.Positions[0].Symbol)
	assert.Equal(t, day, snap.Date)
	assert.InDelta(t, 1000.0, snap.TotalValue, 1e-9)

	// snapshot is a copy
	snap.Positions[0].Shares = 99
	assert.Equal(t, 1.0, l.Shares("AGG"))
}

func TestLedger_FractionalQuantitiesAreExact(t *testing.T) {
	l := NewLedger(1000)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	// 0.1 + 0.1 + 0.1 != 0.3 in float64
	for i := 0; i < 3; i++ {
		l.Apply(core.Trade{Date: day, Symbol: "SPY", Side: core.SideBuy, Shares: 0.1, Price: 100})
	}
	assert.Equal(t, "0.3", l.Quantity("SPY").String())
	assert.Equal(t, 0.3, l.Shares("SPY"))

	l.Apply(core.Trade{Date: day, Symbol: "SPY", Side: core.SideSell, Shares: 0.3, Price: 100})
	_, ok := l.Position("SPY")
	assert.False(t, ok, "position closed exactly")
	assert.True(t, l.Quantity("SPY").IsZero())
	assert.InDelta(t, 1000, l.Cash(), 1e-9)
}
