// Package slo tracks service level objective attainment for the feed API.
// The HTTP middleware feeds every request outcome into a tracker, and a
// background loop periodically recomputes the SLO gauges from the window
// collected since the previous flush.
package slo

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets define the service level objectives for the application.
// These targets are used to measure and monitor service reliability.
const (
	// AvailabilitySLO defines the target uptime percentage (99.9% = 43 minutes downtime per month)
	AvailabilitySLO = 99.9

	// LatencyP95SLO defines the target for 95th percentile latency in seconds (200ms)
	LatencyP95SLO = 0.200

	// LatencyP99SLO defines the target for 99th percentile latency in seconds (500ms)
	LatencyP99SLO = 0.500

	// ErrorRateSLO defines the maximum acceptable error rate as a ratio (0.1% = 0.001)
	ErrorRateSLO = 0.001
)

// maxWindowSamples bounds the per-window latency buffer. A flooded window
// keeps counting requests but stops collecting latency samples.
const maxWindowSamples = 65536

// SLO tracking metrics. The gauges are recomputed on every flush from the
// measurements of the preceding window.
var (
	// SLOAvailability tracks the current availability ratio (0-1)
	// calculated as: (total_requests - 5xx_errors) / total_requests
	SLOAvailability = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_availability_ratio",
			Help: "Current availability ratio (0-1), target: 0.999",
		},
	)

	// SLOLatencyP95 tracks the current p95 latency in seconds
	SLOLatencyP95 = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_latency_p95_seconds",
			Help: "Current p95 latency in seconds, target: 0.200",
		},
	)

	// SLOLatencyP99 tracks the current p99 latency in seconds
	SLOLatencyP99 = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_latency_p99_seconds",
			Help: "Current p99 latency in seconds, target: 0.500",
		},
	)

	// SLOErrorRate tracks the current error rate ratio (0-1)
	// calculated as: 5xx_errors / total_requests
	SLOErrorRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_error_rate_ratio",
			Help: "Current error rate ratio (0-1), target: 0.001",
		},
	)
)

// Tracker accumulates request outcomes for one flush window.
type Tracker struct {
	mu      sync.Mutex
	total   int64
	errors  int64
	samples []float64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{samples: make([]float64, 0, 1024)}
}

// Observe records one completed request. Responses with 5xx status codes
// count against availability and error rate.
func (t *Tracker) Observe(status int, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	if status >= http.StatusInternalServerError {
		t.errors++
	}
	if len(t.samples) < maxWindowSamples {
		t.samples = append(t.samples, duration.Seconds())
	}
}

// Flush recomputes the SLO gauges from the current window and resets it.
// Windows without traffic leave the gauges untouched so a quiet service
// keeps reporting its last known attainment.
func (t *Tracker) Flush() {
	t.mu.Lock()
	total, errors := t.total, t.errors
	samples := t.samples
	t.total, t.errors = 0, 0
	t.samples = make([]float64, 0, 1024)
	t.mu.Unlock()

	if total == 0 {
		return
	}

	UpdateAvailability(float64(total-errors) / float64(total))
	UpdateErrorRate(float64(errors) / float64(total))

	if len(samples) > 0 {
		sort.Float64s(samples)
		UpdateLatencyP95(quantile(samples, 0.95))
		UpdateLatencyP99(quantile(samples, 0.99))
	}
}

// Run flushes the tracker on the given interval until the context ends.
// A final flush on shutdown publishes the partial window.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Flush()
			return
		case <-ticker.C:
			t.Flush()
		}
	}
}

// quantile returns the q-quantile of sorted samples using nearest-rank.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q*float64(len(sorted))+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// defaultTracker backs the package-level Observe used by the HTTP
// middleware. cmd/api starts its flush loop.
var defaultTracker = NewTracker()

// Observe records a request outcome against the default tracker.
func Observe(status int, duration time.Duration) {
	defaultTracker.Observe(status, duration)
}

// Run starts the default tracker's flush loop.
func Run(ctx context.Context, interval time.Duration) {
	defaultTracker.Run(ctx, interval)
}

// UpdateAvailability updates the availability SLO metric.
func UpdateAvailability(ratio float64) {
	SLOAvailability.Set(ratio)
}

// UpdateLatencyP95 updates the p95 latency SLO metric.
func UpdateLatencyP95(seconds float64) {
	SLOLatencyP95.Set(seconds)
}

// UpdateLatencyP99 updates the p99 latency SLO metric.
func UpdateLatencyP99(seconds float64) {
	SLOLatencyP99.Set(seconds)
}

// UpdateErrorRate updates the error rate SLO metric.
func UpdateErrorRate(ratio float64) {
	SLOErrorRate.Set(ratio)
}
