package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Engine metrics
	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	rebalancesTotal  prometheus.Counter
	tradesTotal      *prometheus.CounterVec
	dataGapsTotal    *prometheus.CounterVec
	sweepTrialsTotal *prometheus.CounterVec
	priceCacheTotal  *prometheus.CounterVec
	jobsActive       *prometheus.GaugeVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotator_backtests_total",
			Help: "Total number of backtest runs",
		},
		[]string{"status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rotator_backtest_duration_seconds",
			Help:    "Backtest run duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
	r.rebalancesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rotator_rebalances_total",
			Help: "Total number of rebalancing dates simulated",
		},
	)
	r.tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotator_trades_total",
			Help: "Total number of simulated trades",
		},
		[]string{"side"},
	)
	r.dataGapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotator_data_gaps_total",
			Help: "Missing or non-finite prices absorbed during simulation",
		},
		[]string{"phase"},
	)
	r.sweepTrialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotator_sweep_trials_total",
			Help: "Total number of parameter sweep trials",
		},
		[]string{"status"},
	)
	r.priceCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotator_price_cache_total",
			Help: "Price cache lookups by result",
		},
		[]string{"result"},
	)
	r.jobsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rotator_jobs_active",
			Help: "Number of active jobs",
		},
		[]string{"type"},
	)

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.rebalancesTotal)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.dataGapsTotal)
	reg.MustRegister(r.sweepTrialsTotal)
	reg.MustRegister(r.priceCacheTotal)
	reg.MustRegister(r.jobsActive)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordRebalance counts a rebalancing date.
func (r *Registry) RecordRebalance() {
	r.rebalancesTotal.Inc()
}

// RecordTrade counts a simulated trade.
func (r *Registry) RecordTrade(side string) {
	r.tradesTotal.WithLabelValues(side).Inc()
}

// RecordDataGap counts an absorbed data gap.
func (r *Registry) RecordDataGap(phase string) {
	r.dataGapsTotal.WithLabelValues(phase).Inc()
}

// RecordSweepTrial counts a finished sweep trial.
func (r *Registry) RecordSweepTrial(status string) {
	r.sweepTrialsTotal.WithLabelValues(status).Inc()
}

// RecordCacheLookup counts a price cache hit or miss.
func (r *Registry) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.priceCacheTotal.WithLabelValues(result).Inc()
}

// SetJobsActive sets the number of active jobs of a type.
func (r *Registry) SetJobsActive(jobType string, count int) {
	r.jobsActive.WithLabelValues(jobType).Set(float64(count))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{Registry: r.Registry})
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
