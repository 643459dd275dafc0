package pagination

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the offset-paginated admin listings. Page numbers are
// bucketed so deep scrolls don't explode label cardinality.
var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_pagination_requests_total",
			Help: "Total number of pagination requests",
		},
		[]string{"status", "page_range"},
	)

	DurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "admin_pagination_duration_seconds",
			Help:    "Request duration distribution",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0},
		},
		[]string{"operation"}, // handler, service, repository
	)

	TotalCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "admin_pagination_total_count",
			Help: "Current total number of rows in the paginated listing",
		},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_pagination_errors_total",
			Help: "Total number of pagination errors",
		},
		[]string{"type"}, // validation, database, timeout
	)
)

// RecordRequest counts a listing request under its status code and page
// bucket.
func RecordRequest(statusCode int, page int) {
	RequestsTotal.WithLabelValues(strconv.Itoa(statusCode), pageRangeBucket(page)).Inc()
}

// RecordDuration records operation duration in seconds.
func RecordDuration(operation string, duration float64) {
	DurationSeconds.WithLabelValues(operation).Observe(duration)
}

// UpdateTotalCount updates the row count gauge after each COUNT query.
func UpdateTotalCount(count int64) {
	TotalCount.Set(float64(count))
}

// RecordError counts an error by type: validation, database, or timeout.
func RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(errorType).Inc()
}

func pageRangeBucket(page int) string {
	switch {
	case page <= 10:
		return "1-10"
	case page <= 50:
		return "11-50"
	case page <= 100:
		return "51-100"
	default:
		return "100+"
	}
}
