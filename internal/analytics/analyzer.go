package analytics

import (
	"math"

	"github.com/newthinker/rotator/internal/core"
)

// Analyze computes performance metrics for an equity curve against a
// benchmark price series. Returns are inner-joined on date; drawdown uses
// the full curve. The result never holds NaN or Inf.
func Analyze(curve []core.EquityPoint, benchmark core.PriceSeries, p Params) Metrics {
	ppy := p.PeriodsPerYear
	if ppy <= 0 {
		ppy = DefaultPeriodsPerYear
	}
	rf := p.RiskFreeRate

	var m Metrics
	undefined := func(field string) {
		m.Undefined = append(m.Undefined, field)
	}

	values := make([]float64, len(curve))
	for i, pt := range curve {
		values[i] = pt.TotalValue
	}
	if len(curve) > 0 {
		m.StartDate = curve[0].Date
		m.EndDate = curve[len(curve)-1].Date
		if first := values[0]; core.IsFinitePrice(first) {
			m.TotalReturn = values[len(values)-1]/first - 1
		}
	}
	m.MaxDrawdown = MaxDrawdown(values)

	rs, rb, _ := Align(EquityReturns(curve), SeriesReturns(benchmark))
	m.Periods = len(rs)
	if m.Periods == 0 {
		undefined("returns")
	}

	m.AnnualReturn = Annualize(rs, ppy)
	m.BenchmarkAnnualReturn = Annualize(rb, ppy)
	m.ActiveReturn = m.AnnualReturn - m.BenchmarkAnnualReturn
	m.AnnualVolatility = stddev(rs) * math.Sqrt(float64(ppy))

	if v := variance(rb); v > 0 {
		m.Beta = covariance(rs, rb) / v
	} else {
		undefined("beta")
	}
	m.Alpha = Alpha(m.AnnualReturn, m.BenchmarkAnnualReturn, m.Beta, rf)

	active := make([]float64, len(rs))
	for i := range rs {
		active[i] = rs[i] - rb[i]
	}
	m.TrackingError = stddev(active) * math.Sqrt(float64(ppy))
	if m.TrackingError > 0 {
		m.InformationRatio = m.ActiveReturn / m.TrackingError
	} else {
		undefined("information_ratio")
	}

	if m.AnnualVolatility > 0 {
		m.Sharpe = (m.AnnualReturn - rf) / m.AnnualVolatility
	} else {
		undefined("sharpe")
	}

	if dd := downsideDeviation(rs) * math.Sqrt(float64(ppy)); dd > 0 {
		m.Sortino = (m.AnnualReturn - rf) / dd
	} else {
		undefined("sortino")
	}

	if m.MaxDrawdown < 0 {
		m.Calmar = m.AnnualReturn / math.Abs(m.MaxDrawdown)
	} else {
		undefined("calmar")
	}

	if ms, mb, n := conditionalMeans(rs, rb, func(r float64) bool { return r > 0 }); n > 0 && mb != 0 {
		m.UpCapture = ms / mb
	} else {
		undefined("up_capture")
	}
	if ms, mb, n := conditionalMeans(rs, rb, func(r float64) bool { return r < 0 }); n > 0 && mb != 0 {
		m.DownCapture = ms / mb
	} else {
		undefined("down_capture")
	}

	sanitize(&m)
	return m
}

// sanitize replaces any non-finite value left by extreme inputs.
func sanitize(m *Metrics) {
	fields := []struct {
		name string
		v    *float64
	}{
		{"total_return", &m.TotalReturn},
		{"annual_return", &m.AnnualReturn},
		{"benchmark_annual_return", &m.BenchmarkAnnualReturn},
		{"annual_volatility", &m.AnnualVolatility},
		{"alpha", &m.Alpha},
		{"beta", &m.Beta},
		{"active_return", &m.ActiveReturn},
		{"tracking_error", &m.TrackingError},
		{"information_ratio", &m.InformationRatio},
		{"sharpe", &m.Sharpe},
		{"sortino", &m.Sortino},
		{"calmar", &m.Calmar},
		{"max_drawdown", &m.MaxDrawdown},
		{"up_capture", &m.UpCapture},
		{"down_capture", &m.DownCapture},
	}
	for _, f := range fields {
		if math.IsNaN(*f.v) || math.IsInf(*f.v, 0) {
			*f.v = 0
			if !m.IsUndefined(f.name) {
				m.Undefined = append(m.Undefined, f.name)
			}
		}
	}
}
