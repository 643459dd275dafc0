// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestSize measures HTTP request body size in bytes
	HTTPRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// HTTPResponseSize measures HTTP response body size in bytes
	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// ActiveConnections tracks the number of active HTTP connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)
)

// Business metrics track application-specific operations
var (
	// QueueItemsTotal tracks the number of queue items per status
	QueueItemsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_items_total",
			Help: "Number of generation queue items by status",
		},
		[]string{"status"},
	)

	// QueueItemsEnqueuedTotal counts items enqueued by kind
	QueueItemsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_items_enqueued_total",
			Help: "Total number of queue items enqueued",
		},
		[]string{"kind"},
	)

	// QueueItemsProcessedTotal counts processed items by kind and result
	QueueItemsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_items_processed_total",
			Help: "Total number of queue items processed",
		},
		[]string{"kind", "result"},
	)

	// QueueItemsReclaimedTotal counts items released by lease expiry
	QueueItemsReclaimedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_items_reclaimed_total",
			Help: "Total number of queue items reclaimed after lease expiry",
		},
	)

	// ItemProcessingDuration measures time to process a queue item
	ItemProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "item_processing_duration_seconds",
			Help:    "Time taken to process a queue item",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"kind"},
	)

	// SynthesisDuration measures end-to-end video synthesis time
	SynthesisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "synthesis_duration_seconds",
			Help:    "Time taken to synthesize a video",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// DecisionsTotal counts decision engine outcomes
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decisions_total",
			Help: "Total number of decision engine runs by outcome",
		},
		[]string{"outcome"}, // outcome: reuse, generate, deferred, noop
	)

	// FeedEntriesPublishedTotal counts feed entries published
	FeedEntriesPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_entries_published_total",
			Help: "Total number of feed entries published",
		},
	)

	// FeedEntriesEvictedTotal counts feed entries evicted by retention trim
	FeedEntriesEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_entries_evicted_total",
			Help: "Total number of feed entries evicted by retention trims",
		},
	)

	// WorkersActive tracks the number of registered live workers
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "workers_active",
			Help: "Number of workers with a fresh heartbeat",
		},
	)

	// WorkersReapedTotal counts stale worker records removed
	WorkersReapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workers_reaped_total",
			Help: "Total number of stale worker records reaped",
		},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration, requestSize, responseSize int) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())

	if requestSize > 0 {
		HTTPRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
	if responseSize > 0 {
		HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// RecordOperationDuration records the duration of a named operation
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
