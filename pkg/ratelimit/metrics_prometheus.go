package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements RateLimitMetrics on a private registry so
// several limiter instances (and tests) never collide on metric names.
// Expose it with promhttp.HandlerFor(metrics.Registry(), ...).
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// requestsTotal counts checks by limiter_type, status
	// (allowed/denied), and path.
	requestsTotal *prometheus.CounterVec

	// checkDuration histograms check latency per limiter_type. Buckets
	// are tuned around the sub-5ms target; anything past 100ms means the
	// breaker should be opening.
	checkDuration *prometheus.HistogramVec

	// activeKeys gauges tracked keys per limiter_type, for watching the
	// store approach its eviction cap.
	activeKeys *prometheus.GaugeVec

	// circuitState gauges the breaker as 0 closed, 1 open, 2 half-open.
	circuitState *prometheus.GaugeVec

	// degradationLevel gauges 0 normal through 3 disabled.
	degradationLevel *prometheus.GaugeVec

	// evictionsTotal counts LRU evictions; a sustained rate suggests a
	// scraper cycling addresses or an undersized key cap.
	evictionsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics builds the collector set on a fresh registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_rate_limit_requests_total",
				Help: "Total rate limit requests by limiter type, status, and path",
			},
			[]string{"limiter_type", "status", "path"},
		),
		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_rate_limit_check_duration_seconds",
				Help:    "Duration of rate limit check operations",
				Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"limiter_type"},
		),
		activeKeys: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "http_rate_limit_active_keys",
				Help: "Current number of active keys by limiter type",
			},
			[]string{"limiter_type"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "http_rate_limit_circuit_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"limiter_type"},
		),
		degradationLevel: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "http_rate_limit_degradation_level",
				Help: "Current degradation level (0=normal, 1=relaxed, 2=minimal, 3=disabled)",
			},
			[]string{"limiter_type"},
		),
		evictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_rate_limit_evictions_total",
				Help: "Total LRU evictions by limiter type",
			},
			[]string{"limiter_type"},
		),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.checkDuration,
		m.activeKeys,
		m.circuitState,
		m.degradationLevel,
		m.evictionsTotal,
	)

	return m
}

// Registry returns the registry holding all limiter metrics.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest counts an admitted check.
func (m *PrometheusMetrics) RecordRequest(limiterType, endpoint string) {
	m.requestsTotal.WithLabelValues(limiterType, "allowed", endpoint).Inc()
}

// RecordDenied counts a rejected check.
func (m *PrometheusMetrics) RecordDenied(limiterType, endpoint string) {
	m.requestsTotal.WithLabelValues(limiterType, "denied", endpoint).Inc()
}

// RecordAllowed is an alias for RecordRequest.
func (m *PrometheusMetrics) RecordAllowed(limiterType, endpoint string) {
	m.RecordRequest(limiterType, endpoint)
}

// RecordCheckDuration observes one check's latency.
func (m *PrometheusMetrics) RecordCheckDuration(limiterType string, duration time.Duration) {
	m.checkDuration.WithLabelValues(limiterType).Observe(duration.Seconds())
}

// SetActiveKeys gauges the tracked key count.
func (m *PrometheusMetrics) SetActiveKeys(limiterType string, count int) {
	m.activeKeys.WithLabelValues(limiterType).Set(float64(count))
}

// RecordCircuitState maps the breaker state name onto the numeric gauge.
// Unknown names read as closed.
func (m *PrometheusMetrics) RecordCircuitState(limiterType, state string) {
	var stateValue float64
	switch state {
	case "open":
		stateValue = 1
	case "half-open":
		stateValue = 2
	}
	m.circuitState.WithLabelValues(limiterType).Set(stateValue)
}

// RecordDegradationLevel gauges the limiter's degradation level.
func (m *PrometheusMetrics) RecordDegradationLevel(limiterType string, level int) {
	m.degradationLevel.WithLabelValues(limiterType).Set(float64(level))
}

// RecordEviction adds evicted keys to the counter.
func (m *PrometheusMetrics) RecordEviction(limiterType string, count int) {
	m.evictionsTotal.WithLabelValues(limiterType).Add(float64(count))
}
