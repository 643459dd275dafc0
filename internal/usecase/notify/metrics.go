package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Alert delivery metrics, labeled by channel (discord, slack). The alert
// pipeline is best-effort, so dropped counts matter as much as sent ones.
var (
	alertDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_alert_dispatched_total",
			Help: "Generation failure alerts handed to a delivery channel",
		},
		[]string{"channel"},
	)

	alertSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_alert_sent_total",
			Help: "Generation failure alert delivery outcomes",
		},
		[]string{"channel", "status"}, // status: success|failure
	)

	alertDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_alert_duration_seconds",
			Help:    "Alert delivery duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"channel"},
	)

	alertBreakerOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_alert_circuit_breaker_open_total",
			Help: "Alert channel circuit breaker open events",
		},
		[]string{"channel"},
	)

	alertDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_alert_dropped_total",
			Help: "Alerts dropped before reaching a channel",
		},
		[]string{"channel", "reason"}, // reason: pool_full|circuit_open|disabled
	)

	alertGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "generation_alert_active_goroutines",
			Help: "In-flight alert delivery goroutines",
		},
	)

	alertChannelsEnabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "generation_alert_channels_enabled",
			Help: "Configured alert delivery channels",
		},
	)
)

// RecordDispatch counts an alert handed to a channel.
func RecordDispatch(channel string) {
	alertDispatchedTotal.WithLabelValues(channel).Inc()
}

// RecordSuccess counts a delivered alert and its latency.
func RecordSuccess(channel string, duration time.Duration) {
	alertSentTotal.WithLabelValues(channel, "success").Inc()
	alertDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordFailure counts a failed delivery and its latency.
func RecordFailure(channel string, duration time.Duration) {
	alertSentTotal.WithLabelValues(channel, "failure").Inc()
	alertDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordDropped counts an alert that never reached the channel.
func RecordDropped(channel string, reason string) {
	alertDroppedTotal.WithLabelValues(channel, reason).Inc()
}

// RecordCircuitBreakerOpen counts a channel breaker tripping open.
func RecordCircuitBreakerOpen(channel string) {
	alertBreakerOpenTotal.WithLabelValues(channel).Inc()
}

func IncrementActiveGoroutines() {
	alertGoroutines.Inc()
}

func DecrementActiveGoroutines() {
	alertGoroutines.Dec()
}

// SetChannelsEnabled records how many channels are configured, set once
// at service startup.
func SetChannelsEnabled(count float64) {
	alertChannelsEnabled.Set(count)
}
