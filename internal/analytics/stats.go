package analytics

import (
	"math"
	"time"

	"github.com/newthinker/rotator/internal/core"
)

// DatedReturn is a period return keyed by the period's closing date.
type DatedReturn struct {
	Date   time.Time
	Return float64
}

// EquityReturns computes period-over-period returns of an equity curve.
// Periods starting from a non-positive value are dropped.
func EquityReturns(curve []core.EquityPoint) []DatedReturn {
	out := make([]DatedReturn, 0, len(curve))
	for i := 1; i < len(curve); i++ {
		prev, cur := curve[i-1].TotalValue, curve[i].TotalValue
		if !core.IsFinitePrice(prev) || math.IsNaN(cur) || math.IsInf(cur, 0) {
			continue
		}
		out = append(out, DatedReturn{Date: core.TruncateDay(curve[i].Date), Return: cur/prev - 1})
	}
	return out
}

// SeriesReturns computes close-to-close returns, skipping unusable closes.
func SeriesReturns(series core.PriceSeries) []DatedReturn {
	out := make([]DatedReturn, 0, len(series.Bars))
	prev := math.NaN()
	for _, bar := range series.Bars {
		if !core.IsFinitePrice(bar.Close) {
			continue
		}
		if !math.IsNaN(prev) {
			out = append(out, DatedReturn{Date: core.TruncateDay(bar.Time), Return: bar.Close/prev - 1})
		}
		prev = bar.Close
	}
	return out
}

// Align inner-joins two return series on date, keeping a's order.
func Align(a, b []DatedReturn) ([]float64, []float64, []time.Time) {
	index := make(map[time.Time]float64, len(b))
	for _, r := range b {
		index[r.Date] = r.Return
	}

	var xs, ys []float64
	var dates []time.Time
	for _, r := range a {
		y, ok := index[r.Date]
		if !ok {
			continue
		}
		xs = append(xs, r.Return)
		ys = append(ys, y)
		dates = append(dates, r.Date)
	}
	return xs, ys, dates
}

// Annualize compounds returns to an annual rate: (Π(1+r))^(ppy/n) − 1.
func Annualize(returns []float64, periodsPerYear int) float64 {
	if len(returns) == 0 {
		return 0
	}
	growth := 1.0
	for _, r := range returns {
		growth *= 1 + r
	}
	if growth <= 0 {
		return -1
	}
	return math.Pow(growth, float64(periodsPerYear)/float64(len(returns))) - 1
}

// MaxDrawdown returns min(equity/running_peak − 1), a value ≤ 0.
func MaxDrawdown(values []float64) float64 {
	var maxDD float64
	peak := math.Inf(-1)
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := v/peak - 1; dd < maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// Alpha is the annual return in excess of the CAPM expected return.
func Alpha(strategyAnnual, benchmarkAnnual, beta, riskFree float64) float64 {
	expected := riskFree + beta*(benchmarkAnnual-riskFree)
	return strategyAnnual - expected
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// covariance is the sample (n−1) covariance.
func covariance(xs, ys []float64) float64 {
	if len(xs) < 2 || len(xs) != len(ys) {
		return 0
	}
	mx, my := mean(xs), mean(ys)
	var sum float64
	for i := range xs {
		sum += (xs[i] - mx) * (ys[i] - my)
	}
	return sum / float64(len(xs)-1)
}

func variance(xs []float64) float64 {
	return covariance(xs, xs)
}

func stddev(xs []float64) float64 {
	return math.Sqrt(variance(xs))
}

// downsideDeviation is the root mean square of negative returns.
func downsideDeviation(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		if x < 0 {
			sum += x * x
		}
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// conditionalMeans averages xs and ys over periods where keep(y) holds.
func conditionalMeans(xs, ys []float64, keep func(float64) bool) (float64, float64, int) {
	var sx, sy float64
	n := 0
	for i := range ys {
		if keep(ys[i]) {
			sx += xs[i]
			sy += ys[i]
			n++
		}
	}
	if n == 0 {
		return 0, 0, 0
	}
	return sx / float64(n), sy / float64(n), n
}
