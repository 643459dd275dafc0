package worker

import (
	"infinite-feed/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics provides Prometheus metrics for the worker process. It
// embeds the standard ConfigMetrics for configuration monitoring and adds
// metrics for the polling loop and the maintenance jobs.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp: Unix timestamp of last configuration load
//   - worker_config_validation_errors_total: Total validation errors by field
//   - worker_config_fallbacks_total: Total fallback operations by field
//   - worker_config_fallback_active: 1 if any fallback active, 0 otherwise
//
// Worker-specific metrics:
//   - worker_poll_cycles_total: Poll loop outcomes (claimed/empty/at_capacity/error)
//   - worker_tasks_in_flight: Currently executing generation tasks
//   - worker_maintenance_runs_total: Maintenance job runs by job and status
//   - worker_maintenance_duration_seconds: Duration histogram per maintenance job
//   - worker_maintenance_last_success_timestamp: Last successful run per job
type WorkerMetrics struct {
	*config.ConfigMetrics

	// PollCyclesTotal counts poll loop iterations by outcome.
	// Labels: result (claimed, empty, at_capacity, error)
	PollCyclesTotal *prometheus.CounterVec

	// TasksInFlight tracks the number of currently executing tasks.
	TasksInFlight prometheus.Gauge

	// MaintenanceRunsTotal counts maintenance job runs.
	// Labels: job (reclaim, reap), status (success, failure)
	MaintenanceRunsTotal *prometheus.CounterVec

	// MaintenanceDurationSeconds measures maintenance job execution time.
	// Labels: job (reclaim, reap)
	MaintenanceDurationSeconds *prometheus.HistogramVec

	// MaintenanceLastSuccessTimestamp records the Unix timestamp of the last
	// successful run per maintenance job.
	MaintenanceLastSuccessTimestamp *prometheus.GaugeVec
}

// NewWorkerMetrics creates a new WorkerMetrics instance with all metrics
// initialized and registered via promauto.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		PollCyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_poll_cycles_total",
			Help: "Total poll loop iterations by outcome (claimed/empty/at_capacity/error)",
		}, []string{"result"}),

		TasksInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_tasks_in_flight",
			Help: "Number of generation tasks currently executing",
		}),

		MaintenanceRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_maintenance_runs_total",
			Help: "Total maintenance job runs by job and status",
		}, []string{"job", "status"}),

		MaintenanceDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_maintenance_duration_seconds",
			Help:    "Duration of maintenance job execution in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30}, // maintenance is a couple of SQL statements
		}, []string{"job"}),

		MaintenanceLastSuccessTimestamp: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_maintenance_last_success_timestamp",
			Help: "Unix timestamp of the last successful maintenance run per job",
		}, []string{"job"}),
	}
}

// MustRegister is a no-op method for API compatibility. Metrics are
// automatically registered via promauto when created in NewWorkerMetrics.
func (m *WorkerMetrics) MustRegister() {
	// No-op: metrics are auto-registered via promauto
}

// RecordPollCycle increments the poll cycle counter for the given outcome.
// Result should be one of "claimed", "empty", "at_capacity", "error".
func (m *WorkerMetrics) RecordPollCycle(result string) {
	m.PollCyclesTotal.WithLabelValues(result).Inc()
}

// SetTasksInFlight updates the in-flight task gauge.
func (m *WorkerMetrics) SetTasksInFlight(count int) {
	m.TasksInFlight.Set(float64(count))
}

// RecordMaintenanceRun increments the maintenance run counter.
// Job should be "reclaim" or "reap"; status "success" or "failure".
func (m *WorkerMetrics) RecordMaintenanceRun(job, status string) {
	m.MaintenanceRunsTotal.WithLabelValues(job, status).Inc()
}

// RecordMaintenanceDuration observes the duration of a maintenance run.
func (m *WorkerMetrics) RecordMaintenanceDuration(job string, seconds float64) {
	m.MaintenanceDurationSeconds.WithLabelValues(job).Observe(seconds)
}

// RecordMaintenanceSuccess records the current time as the last successful
// run of the given maintenance job.
func (m *WorkerMetrics) RecordMaintenanceSuccess(job string) {
	m.MaintenanceLastSuccessTimestamp.WithLabelValues(job).SetToCurrentTime()
}
