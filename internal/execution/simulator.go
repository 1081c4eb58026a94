package execution

import (
	"fmt"
	"math"
	"time"

	"github.com/newthinker/rotator/internal/config"
	"github.com/newthinker/rotator/internal/core"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// reconcileTolerance is the relative bound on value drift across a batch.
	reconcileTolerance = 1e-6
	// snapPlaces exceeds the largest allowed share_precision.
	snapPlaces = 10
)

// InvariantError reports a broken ledger invariant. It is fatal for the run.
type InvariantError struct {
	Date     time.Time
	Plan     core.AllocationPlan
	Snapshot LedgerState
	Reason   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("ledger invariant violated on %s: %s (cash=%.6f total=%.6f)",
		e.Date.Format(core.DateLayout), e.Reason, e.Snapshot.Cash, e.Snapshot.TotalValue)
}

// Unwrap lets errors.Is match core.ErrLedgerInvariant.
func (e *InvariantError) Unwrap() error {
	return core.ErrLedgerInvariant
}

// Rebalance is the outcome of one rebalancing date.
type Rebalance struct {
	Trades []core.Trade
	// Effective is the plan actually targeted after weights of unpriced
	// symbols were moved to cash.
	Effective core.AllocationPlan
	Gaps      []core.DataGap
}

// Simulator executes allocation plans against a ledger, one date at a time
// in increasing order.
type Simulator struct {
	ledger     *Ledger
	commission float64
	slippage   float64
	precision  int32
	step       decimal.Decimal
	trades     []core.Trade
	gaps       []core.DataGap
	logger     *zap.Logger
}

// NewSimulator creates a simulator funded with cfg.InitialCapital.
func NewSimulator(cfg config.StrategyConfig, logger ...*zap.Logger) *Simulator {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	precision := int32(cfg.SharePrecision)
	return &Simulator{
		ledger:     NewLedger(cfg.InitialCapital),
		commission: cfg.CommissionRate,
		slippage:   cfg.SlippageRate,
		precision:  precision,
		step:       decimal.New(1, -precision),
		logger:     l,
	}
}

// Ledger exposes the ledger for inspection.
func (s *Simulator) Ledger() *Ledger {
	return s.ledger
}

// Trades returns every executed trade in execution order.
func (s *Simulator) Trades() []core.Trade {
	return s.trades
}

// Gaps returns every data gap absorbed so far.
func (s *Simulator) Gaps() []core.DataGap {
	return s.gaps
}

// MarkToMarket revalues held positions at the given closes. A position with
// no usable price keeps its last mark and a gap is recorded.
func (s *Simulator) MarkToMarket(date time.Time, prices map[string]float64) core.EquityPoint {
	for _, symbol := range s.ledger.Symbols() {
		price, ok := prices[symbol]
		if !core.IsFinitePrice(price) {
			s.recordGap(date, symbol, core.GapPhaseMark, gapReason(price, ok))
			continue
		}
		s.ledger.Mark(symbol, price)
	}
	s.ledger.date = date

	positions := s.ledger.PositionsValue()
	return core.EquityPoint{
		Date:           date,
		TotalValue:     s.ledger.cash + positions,
		Cash:           s.ledger.cash,
		PositionsValue: positions,
	}
}

// Rebalance moves the ledger toward plan at the given closes. It runs
// COMPUTE_TARGETS, SELL_PHASE, BUY_PHASE and RECONCILE in that order.
func (s *Simulator) Rebalance(date time.Time, plan core.AllocationPlan, prices map[string]float64) (Rebalance, error) {
	gapsBefore := len(s.gaps)
	tradesBefore := len(s.trades)

	// COMPUTE_TARGETS
	targets, effective := s.computeTargets(date, plan, prices)
	startTotal := s.ledger.TotalValue()
	var costs float64

	// SELL_PHASE
	for _, symbol := range effective.Symbols() {
		t, ok := s.sizeSell(date, symbol, targets[symbol], prices[symbol])
		if !ok {
			continue
		}
		if err := s.execute(t, plan); err != nil {
			return Rebalance{}, err
		}
		costs += t.Costs()
	}
	for _, symbol := range s.unplannedHoldings(targets) {
		price, ok := prices[symbol]
		if !core.IsFinitePrice(price) {
			continue
		}
		t, ok := s.sizeSell(date, symbol, 0, price)
		if !ok {
			continue
		}
		if err := s.execute(t, plan); err != nil {
			return Rebalance{}, err
		}
		costs += t.Costs()
	}

	// BUY_PHASE
	for _, symbol := range effective.Symbols() {
		t, ok := s.sizeBuy(date, symbol, targets[symbol], prices[symbol])
		if !ok {
			continue
		}
		if err := s.execute(t, plan); err != nil {
			return Rebalance{}, err
		}
		costs += t.Costs()
	}

	// RECONCILE
	if err := s.reconcile(date, plan, startTotal-costs); err != nil {
		return Rebalance{}, err
	}

	return Rebalance{
		Trades:    s.trades[tradesBefore:],
		Effective: effective,
		Gaps:      s.gaps[gapsBefore:],
	}, nil
}

// computeTargets marks priced holdings, drops unpriced plan symbols into
// cash and returns the tradeable target weights.
func (s *Simulator) computeTargets(date time.Time, plan core.AllocationPlan, prices map[string]float64) (map[string]float64, core.AllocationPlan) {
	for _, symbol := range s.ledger.Symbols() {
		if price, ok := prices[symbol]; ok && core.IsFinitePrice(price) {
			s.ledger.Mark(symbol, price)
		}
	}

	effective := core.AllocationPlan{
		Date:       plan.Date,
		Weights:    make(map[string]float64, len(plan.Weights)),
		CashWeight: plan.CashWeight,
	}
	targets := make(map[string]float64, len(plan.Weights))
	for _, symbol := range plan.Symbols() {
		w := plan.Weights[symbol]
		price, ok := prices[symbol]
		if !core.IsFinitePrice(price) {
			s.recordGap(date, symbol, core.GapPhaseRebalance, gapReason(price, ok))
			effective.CashWeight += w
			continue
		}
		targets[symbol] = w
		effective.Weights[symbol] = w
	}

	for _, symbol := range s.ledger.Symbols() {
		if _, planned := plan.Weights[symbol]; planned {
			continue
		}
		if price, ok := prices[symbol]; !core.IsFinitePrice(price) {
			s.recordGap(date, symbol, core.GapPhaseRebalance, gapReason(price, ok)+", position held")
		}
	}
	return targets, effective
}

// unplannedHoldings lists held symbols with no target weight, sorted.
func (s *Simulator) unplannedHoldings(targets map[string]float64) []string {
	var out []string
	for _, symbol := range s.ledger.Symbols() {
		if _, ok := targets[symbol]; !ok {
			out = append(out, symbol)
		}
	}
	return out
}

// targetShares floors weight × current total value / price to the share grid.
func (s *Simulator) targetShares(weight, price float64) decimal.Decimal {
	if weight <= 0 {
		return decimal.Zero
	}
	dollars := weight * s.ledger.TotalValue()
	return s.floor(dollars / price)
}

// floor truncates shares to the share grid. The value is first rounded to
// snapPlaces so float noise like 2.2199999999999997 lands on 2.22.
func (s *Simulator) floor(shares float64) decimal.Decimal {
	if !(shares > 0) || math.IsInf(shares, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(shares).Round(snapPlaces).Truncate(s.precision)
}

func (s *Simulator) sizeSell(date time.Time, symbol string, weight, price float64) (core.Trade, bool) {
	current := s.ledger.Quantity(symbol)
	if !current.IsPositive() {
		return core.Trade{}, false
	}
	target := s.targetShares(weight, price)
	if !current.GreaterThan(target) {
		return core.Trade{}, false
	}
	return s.trade(date, symbol, core.SideSell, current.Sub(target).InexactFloat64(), price), true
}

func (s *Simulator) sizeBuy(date time.Time, symbol string, weight, price float64) (core.Trade, bool) {
	target := s.targetShares(weight, price)
	current := s.ledger.Quantity(symbol)
	if !target.GreaterThan(current) {
		return core.Trade{}, false
	}

	shares := target.Sub(current)
	// cap at what cash can pay for, costs included
	affordable := s.floor(s.ledger.cash / (price * (1 + s.commission + s.slippage)))
	if shares.GreaterThan(affordable) {
		shares = affordable
	}

	for shares.IsPositive() {
		t := s.trade(date, symbol, core.SideBuy, shares.InexactFloat64(), price)
		if -t.CashDelta() <= s.ledger.cash {
			return t, true
		}
		shares = shares.Sub(s.step)
	}
	return core.Trade{}, false
}

func (s *Simulator) trade(date time.Time, symbol string, side core.Side, shares, price float64) core.Trade {
	notional := shares * price
	return core.Trade{
		Date:       date,
		Symbol:     symbol,
		Side:       side,
		Shares:     shares,
		Price:      price,
		Commission: s.commission * notional,
		Slippage:   s.slippage * notional,
	}
}

func (s *Simulator) execute(t core.Trade, plan core.AllocationPlan) error {
	s.ledger.Apply(t)
	s.trades = append(s.trades, t)

	if s.ledger.cash < 0 {
		return &InvariantError{
			Date:     t.Date,
			Plan:     plan,
			Snapshot: s.ledger.Snapshot(),
			Reason:   fmt.Sprintf("cash negative after %s %s", t.Side, t.Symbol),
		}
	}

	s.logger.Debug("trade executed",
		zap.Time("date", t.Date),
		zap.String("symbol", t.Symbol),
		zap.String("side", string(t.Side)),
		zap.Float64("shares", t.Shares),
		zap.Float64("price", t.Price),
		zap.Float64("costs", t.Costs()),
		zap.Float64("cash", s.ledger.cash),
	)
	return nil
}

func (s *Simulator) reconcile(date time.Time, plan core.AllocationPlan, expected float64) error {
	actual := s.ledger.TotalValue()
	snapshot := func() LedgerState {
		st := s.ledger.Snapshot()
		st.Date = date
		return st
	}

	if s.ledger.cash < 0 {
		return &InvariantError{Date: date, Plan: plan, Snapshot: snapshot(), Reason: "negative cash"}
	}
	if math.IsNaN(actual) || math.IsInf(actual, 0) {
		return &InvariantError{Date: date, Plan: plan, Snapshot: snapshot(), Reason: "non-finite total value"}
	}
	if diff := math.Abs(expected - actual); diff >= reconcileTolerance*math.Max(1, math.Abs(expected)) {
		return &InvariantError{
			Date:     date,
			Plan:     plan,
			Snapshot: snapshot(),
			Reason:   fmt.Sprintf("total value %.6f does not reconcile with expected %.6f", actual, expected),
		}
	}
	return nil
}

func (s *Simulator) recordGap(date time.Time, symbol string, phase core.GapPhase, reason string) {
	gap := core.DataGap{Date: date, Symbol: symbol, Phase: phase, Reason: reason}
	s.gaps = append(s.gaps, gap)
	s.logger.Warn("data gap",
		zap.Time("date", date),
		zap.String("symbol", symbol),
		zap.String("phase", string(phase)),
		zap.String("reason", reason),
	)
}

func gapReason(price float64, present bool) string {
	switch {
	case !present:
		return "missing price"
	case math.IsNaN(price) || math.IsInf(price, 0):
		return "non-finite price"
	default:
		return fmt.Sprintf("non-positive price %g", price)
	}
}
