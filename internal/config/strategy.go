package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/newthinker/rotator/internal/core"
)

// Frequency is how often target weights are recomputed.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// StrengthMethod names a signal strength policy.
type StrengthMethod string

const (
	StrengthBinary        StrengthMethod = "binary"
	StrengthLinear        StrengthMethod = "linear"
	StrengthProportional  StrengthMethod = "proportional"
	StrengthMomentumRatio StrengthMethod = "momentum_ratio"
)

// Variant names a signal generator implementation.
type Variant string

const (
	VariantDualMomentum     Variant = "dual_momentum"
	VariantAbsoluteMomentum Variant = "absolute_momentum"
	VariantCustom           Variant = "custom"
)

// StrategyConfig holds every option of a single backtest run.
// It is immutable once handed to the engine.
type StrategyConfig struct {
	Variant            Variant        `mapstructure:"variant" json:"variant"`
	Scorer             string         `mapstructure:"scorer" json:"scorer,omitempty"` // custom variant only
	Universe           []string       `mapstructure:"universe" json:"universe"`
	LookbackPeriod     int            `mapstructure:"lookback_period" json:"lookback_period"`
	RebalanceFrequency Frequency      `mapstructure:"rebalance_frequency" json:"rebalance_frequency"`
	PositionCount      int            `mapstructure:"position_count" json:"position_count"`
	AbsoluteThreshold  float64        `mapstructure:"absolute_threshold" json:"absolute_threshold"`
	SafeAsset          string         `mapstructure:"safe_asset" json:"safe_asset,omitempty"`
	StrengthMethod     StrengthMethod `mapstructure:"strength_method" json:"strength_method"`
	StrengthScaleRange float64        `mapstructure:"strength_scale_range" json:"strength_scale_range,omitempty"`
	CommissionRate     float64        `mapstructure:"commission_rate" json:"commission_rate"`
	SlippageRate       float64        `mapstructure:"slippage_rate" json:"slippage_rate"`
	InitialCapital     float64        `mapstructure:"initial_capital" json:"initial_capital"`
	RiskFreeRate       float64        `mapstructure:"risk_free_rate" json:"risk_free_rate"`
	BenchmarkSymbol    string         `mapstructure:"benchmark_symbol" json:"benchmark_symbol,omitempty"`
	SharePrecision     int            `mapstructure:"share_precision" json:"share_precision"` // decimal places, 0 = whole shares
	PeriodsPerYear     int            `mapstructure:"periods_per_year" json:"periods_per_year"`
}

// DefaultStrategy returns a single-asset monthly dual momentum setup.
func DefaultStrategy() StrategyConfig {
	return StrategyConfig{
		Variant:            VariantDualMomentum,
		Universe:           []string{"SPY"},
		LookbackPeriod:     252,
		RebalanceFrequency: FrequencyMonthly,
		PositionCount:      1,
		SafeAsset:          "AGG",
		StrengthMethod:     StrengthBinary,
		InitialCapital:     100000,
		BenchmarkSymbol:    "SPY",
		PeriodsPerYear:     252,
	}
}

// Symbols returns the universe plus the safe asset, deduplicated, in order.
func (c StrategyConfig) Symbols() []string {
	seen := make(map[string]struct{}, len(c.Universe)+1)
	symbols := make([]string, 0, len(c.Universe)+1)
	for _, s := range append(append([]string{}, c.Universe...), c.SafeAsset) {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		symbols = append(symbols, s)
	}
	return symbols
}

// Validate fails fast on configurations the engine cannot run.
func (c StrategyConfig) Validate() error {
	invalid := func(format string, args ...any) error {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf(format, args...))
	}

	switch c.Variant {
	case VariantDualMomentum, VariantAbsoluteMomentum:
	case VariantCustom:
		if c.Scorer == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("scorer required for custom variant"))
		}
	default:
		return invalid("unknown variant: %q", c.Variant)
	}

	if len(c.Universe) == 0 {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("universe cannot be empty"))
	}
	for _, s := range c.Universe {
		if strings.TrimSpace(s) == "" {
			return invalid("universe contains an empty symbol")
		}
	}
	if c.LookbackPeriod < 1 {
		return invalid("lookback_period must be >= 1, got %d", c.LookbackPeriod)
	}
	switch c.RebalanceFrequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly:
	default:
		return invalid("unknown rebalance_frequency: %q", c.RebalanceFrequency)
	}
	if c.PositionCount < 0 {
		return invalid("position_count cannot be negative, got %d", c.PositionCount)
	}
	if !isFinite(c.AbsoluteThreshold) {
		return invalid("absolute_threshold must be finite")
	}

	switch c.StrengthMethod {
	case StrengthBinary, StrengthProportional, StrengthMomentumRatio:
	case StrengthLinear:
		if c.StrengthScaleRange == 0 {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("strength_scale_range required for linear strength"))
		}
		if c.StrengthScaleRange < 0 || !isFinite(c.StrengthScaleRange) {
			return invalid("strength_scale_range must be positive, got %f", c.StrengthScaleRange)
		}
	default:
		return invalid("unknown strength_method: %q", c.StrengthMethod)
	}

	if !isFinite(c.CommissionRate) || !isFinite(c.SlippageRate) {
		return invalid("commission_rate and slippage_rate must be finite")
	}
	if c.CommissionRate < 0 || c.SlippageRate < 0 || c.CommissionRate+c.SlippageRate >= 1 {
		return invalid("commission_rate and slippage_rate must be >= 0 and sum below 1")
	}
	if c.InitialCapital <= 0 || !isFinite(c.InitialCapital) {
		return invalid("initial_capital must be positive, got %f", c.InitialCapital)
	}
	if !isFinite(c.RiskFreeRate) {
		return invalid("risk_free_rate must be finite")
	}
	if c.SharePrecision < 0 || c.SharePrecision > 8 {
		return invalid("share_precision must be between 0 and 8, got %d", c.SharePrecision)
	}
	if c.PeriodsPerYear < 1 {
		return invalid("periods_per_year must be >= 1, got %d", c.PeriodsPerYear)
	}

	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
