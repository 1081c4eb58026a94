// Package execution simulates order fills against a cash-and-positions ledger.
package execution

import (
	"sort"
	"time"

	"github.com/newthinker/rotator/internal/core"
	"github.com/shopspring/decimal"
)

// Position is a holding in one symbol. Shares mirrors the exact decimal
// quantity kept by the ledger.
type Position struct {
	Symbol      string  `json:"symbol"`
	Shares      float64 `json:"shares"`
	AverageCost float64 `json:"average_cost"`
	LastPrice   float64 `json:"last_price"`
	RealizedPL  float64 `json:"realized_pl"`

	quantity decimal.Decimal
}

// MarketValue is shares valued at the last mark.
func (p Position) MarketValue() float64 {
	return p.Shares * p.LastPrice
}

// UnrealizedPL is the mark-to-market gain over average cost.
func (p Position) UnrealizedPL() float64 {
	return p.Shares * (p.LastPrice - p.AverageCost)
}

// LedgerState is a point-in-time copy of the ledger.
type LedgerState struct {
	Date       time.Time  `json:"date"`
	Cash       float64    `json:"cash"`
	Positions  []Position `json:"positions"`
	TotalValue float64    `json:"total_value"`
}

// Ledger tracks cash and positions for a single run. It is not safe for
// concurrent use; each run owns its own ledger.
type Ledger struct {
	date      time.Time
	cash      float64
	positions map[string]*Position
}

// NewLedger creates a ledger holding only cash.
func NewLedger(cash float64) *Ledger {
	return &Ledger{
		cash:      cash,
		positions: make(map[string]*Position),
	}
}

// Cash returns the cash balance.
func (l *Ledger) Cash() float64 {
	return l.cash
}

// Shares returns the held shares of symbol, zero if none.
func (l *Ledger) Shares(symbol string) float64 {
	if pos, ok := l.positions[symbol]; ok {
		return pos.Shares
	}
	return 0
}

// Quantity returns the exact held quantity of symbol, zero if none.
func (l *Ledger) Quantity(symbol string) decimal.Decimal {
	if pos, ok := l.positions[symbol]; ok {
		return pos.quantity
	}
	return decimal.Zero
}

// Position returns a copy of the position for symbol.
func (l *Ledger) Position(symbol string) (Position, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return Position{Symbol: symbol}, false
	}
	return *pos, true
}

// Symbols returns held symbols, sorted.
func (l *Ledger) Symbols() []string {
	symbols := make([]string, 0, len(l.positions))
	for s := range l.positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// PositionsValue sums market values at the last marks.
func (l *Ledger) PositionsValue() float64 {
	var total float64
	for _, s := range l.Symbols() {
		total += l.positions[s].MarketValue()
	}
	return total
}

// TotalValue is cash plus positions at the last marks.
func (l *Ledger) TotalValue() float64 {
	return l.cash + l.PositionsValue()
}

// Mark updates the last price of a held symbol. Unheld symbols are ignored.
func (l *Ledger) Mark(symbol string, price float64) {
	if pos, ok := l.positions[symbol]; ok {
		pos.LastPrice = price
	}
}

// Apply books a fill: cash moves by the trade's cash delta, buys update the
// weighted average cost and sells realize P&L against it. Quantities are
// summed in decimal so a position stays on the grid its trades were sized
// on. Positions that reach zero shares are removed.
func (l *Ledger) Apply(t core.Trade) {
	if !(t.Shares > 0) {
		return
	}
	qty := decimal.NewFromFloat(t.Shares)

	pos, exists := l.positions[t.Symbol]
	if !exists {
		pos = &Position{Symbol: t.Symbol}
		l.positions[t.Symbol] = pos
	}

	switch t.Side {
	case core.SideBuy:
		// new avg cost = (old_cost * old_qty + price * qty) / (old_qty + qty)
		totalCost := pos.Shares*pos.AverageCost + t.Price*t.Shares
		pos.quantity = pos.quantity.Add(qty)
		pos.Shares = pos.quantity.InexactFloat64()
		pos.AverageCost = totalCost / pos.Shares
	case core.SideSell:
		pos.RealizedPL += (t.Price - pos.AverageCost) * t.Shares
		pos.quantity = pos.quantity.Sub(qty)
		pos.Shares = pos.quantity.InexactFloat64()
	}

	l.cash += t.CashDelta()
	pos.LastPrice = t.Price
	l.date = t.Date

	if !pos.quantity.IsPositive() {
		delete(l.positions, t.Symbol)
	}
}

// Snapshot copies the ledger state.
func (l *Ledger) Snapshot() LedgerState {
	symbols := l.Symbols()
	positions := make([]Position, 0, len(symbols))
	for _, s := range symbols {
		positions = append(positions, *l.positions[s])
	}
	return LedgerState{
		Date:       l.date,
		Cash:       l.cash,
		Positions:  positions,
		TotalValue: l.TotalValue(),
	}
}
