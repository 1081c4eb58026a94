// Package analytics scores an equity curve against a benchmark.
package analytics

import "time"

// DefaultPeriodsPerYear annualizes daily returns.
const DefaultPeriodsPerYear = 252

// Metrics holds CAPM-style performance statistics. Ratios whose denominator
// was zero are reported as 0 and named in Undefined.
type Metrics struct {
	StartDate             time.Time `json:"start_date"`
	EndDate               time.Time `json:"end_date"`
	Periods               int       `json:"periods"`
	TotalReturn           float64   `json:"total_return"`
	AnnualReturn          float64   `json:"annual_return"`
	BenchmarkAnnualReturn float64   `json:"benchmark_annual_return"`
	AnnualVolatility      float64   `json:"annual_volatility"`
	Alpha                 float64   `json:"alpha"`
	Beta                  float64   `json:"beta"`
	ActiveReturn          float64   `json:"active_return"`
	TrackingError         float64   `json:"tracking_error"`
	InformationRatio      float64   `json:"information_ratio"`
	Sharpe                float64   `json:"sharpe"`
	Sortino               float64   `json:"sortino"`
	Calmar                float64   `json:"calmar"`
	MaxDrawdown           float64   `json:"max_drawdown"`
	UpCapture             float64   `json:"up_capture"`
	DownCapture           float64   `json:"down_capture"`
	Undefined             []string  `json:"undefined,omitempty"`
}

// IsUndefined reports whether field was substituted.
func (m Metrics) IsUndefined(field string) bool {
	for _, f := range m.Undefined {
		if f == field {
			return true
		}
	}
	return false
}

// Objective looks up a metric by its json name for ranking.
func (m Metrics) Objective(name string) (float64, bool) {
	switch name {
	case "sharpe":
		return m.Sharpe, true
	case "sortino":
		return m.Sortino, true
	case "alpha":
		return m.Alpha, true
	case "annual_return":
		return m.AnnualReturn, true
	case "total_return":
		return m.TotalReturn, true
	case "calmar":
		return m.Calmar, true
	case "information_ratio":
		return m.InformationRatio, true
	case "active_return":
		return m.ActiveReturn, true
	case "max_drawdown":
		return m.MaxDrawdown, true
	default:
		return 0, false
	}
}

// Params configures Analyze.
type Params struct {
	RiskFreeRate   float64
	PeriodsPerYear int
}
