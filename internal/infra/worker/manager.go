package worker

import (
	"context"
	"log/slog"
	"time"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/observability/metrics"
	"infinite-feed/internal/repository"
	"infinite-feed/internal/resilience/circuitbreaker"
)

// HealthStatus classifies overall system health.
type HealthStatus string

const (
	// HealthHealthy means workers are live and the backlog is bounded.
	HealthHealthy HealthStatus = "healthy"

	// HealthWarning means the system is processing but degraded, typically
	// a pending backlog over the configured limit.
	HealthWarning HealthStatus = "warning"

	// HealthCritical means no work can progress: no live workers or the
	// store is unreachable.
	HealthCritical HealthStatus = "critical"
)

// HealthSummary is the aggregate health view exposed by the pool manager.
// Component-internal errors stay internal; only these aggregates surface.
type HealthSummary struct {
	Status        HealthStatus                `json:"status"`
	QueueDepth    map[entity.ItemStatus]int64 `json:"queue_depth"`
	ActiveWorkers int                         `json:"active_workers"`
	InFlightTasks int                         `json:"in_flight_tasks"`
	Reasons       []string                    `json:"reasons,omitempty"`
	CheckedAt     time.Time                   `json:"checked_at"`
}

// Manager supervises the worker fleet: health aggregation, lease
// reclamation, and stale-worker reaping. Reaping a worker record never
// touches the queue items that worker held; those recover independently
// through ReclaimExpired. The two recovery paths stay separate so either can
// run without the other.
type Manager struct {
	queueRepo     repository.QueueRepository
	workerRepo    repository.WorkerRepository
	storeBreaker  *circuitbreaker.DBCircuitBreaker
	workerMetrics *WorkerMetrics
	config        WorkerConfig
}

// NewManager creates a pool manager. The store breaker is used for the
// health probe and may be nil, in which case store reachability is inferred
// from the queue queries alone.
func NewManager(
	queueRepo repository.QueueRepository,
	workerRepo repository.WorkerRepository,
	storeBreaker *circuitbreaker.DBCircuitBreaker,
	workerMetrics *WorkerMetrics,
	config WorkerConfig,
) *Manager {
	return &Manager{
		queueRepo:     queueRepo,
		workerRepo:    workerRepo,
		storeBreaker:  storeBreaker,
		workerMetrics: workerMetrics,
		config:        config,
	}
}

// HealthSummary aggregates queue depth and worker liveness into a health
// classification. It never returns an error: an unreachable store is itself
// a health state, not a failure of the check.
func (m *Manager) HealthSummary(ctx context.Context) *HealthSummary {
	summary := &HealthSummary{
		Status:    HealthHealthy,
		CheckedAt: time.Now(),
	}

	if !m.probeStore(ctx) {
		summary.Status = HealthCritical
		summary.Reasons = append(summary.Reasons, "store unreachable")
		return summary
	}

	counts, err := m.queueRepo.CountByStatus(ctx)
	if err != nil {
		summary.Status = HealthCritical
		summary.Reasons = append(summary.Reasons, "store unreachable")
		return summary
	}
	summary.QueueDepth = counts
	for status, count := range counts {
		metrics.UpdateQueueDepth(string(status), count)
	}

	workers, err := m.workerRepo.ListActive(ctx, m.config.StaleWorkerAfter)
	if err != nil {
		summary.Status = HealthCritical
		summary.Reasons = append(summary.Reasons, "store unreachable")
		return summary
	}
	summary.ActiveWorkers = len(workers)
	for _, w := range workers {
		summary.InFlightTasks += w.ActiveTasks
	}
	metrics.UpdateWorkersActive(len(workers))

	if len(workers) == 0 {
		summary.Status = HealthCritical
		summary.Reasons = append(summary.Reasons, "no live workers")
		return summary
	}

	if counts[entity.StatusPending] > int64(m.config.PendingBacklogLimit) {
		summary.Status = HealthWarning
		summary.Reasons = append(summary.Reasons, "pending backlog over limit")
	}

	return summary
}

// probeStore checks store reachability through the circuit breaker. An open
// breaker counts as unreachable without issuing a query.
func (m *Manager) probeStore(ctx context.Context) bool {
	if m.storeBreaker == nil {
		return true
	}
	if m.storeBreaker.IsOpen() {
		return false
	}

	var one int
	if err := m.storeBreaker.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		slog.WarnContext(ctx, "store health probe failed", slog.Any("error", err))
		return false
	}
	return true
}

// Reclaim releases items whose claim lease expired, returning them to
// pending with an incremented attempt count. This is the recovery path for
// crashed workers: no item stays in_progress forever.
func (m *Manager) Reclaim(ctx context.Context) {
	start := time.Now()

	count, err := m.queueRepo.ReclaimExpired(ctx, m.config.ClaimLease, m.config.MaxAttempts)
	m.workerMetrics.RecordMaintenanceDuration("reclaim", time.Since(start).Seconds())

	if err != nil {
		m.workerMetrics.RecordMaintenanceRun("reclaim", "failure")
		slog.ErrorContext(ctx, "lease reclamation failed", slog.Any("error", err))
		return
	}

	m.workerMetrics.RecordMaintenanceRun("reclaim", "success")
	m.workerMetrics.RecordMaintenanceSuccess("reclaim")

	if count > 0 {
		metrics.RecordItemsReclaimed(count)
		slog.InfoContext(ctx, "expired claims reclaimed",
			slog.Int64("items", count),
			slog.Duration("lease", m.config.ClaimLease))
	}
}

// Reap deletes worker records whose heartbeat is older than the staleness
// window.
func (m *Manager) Reap(ctx context.Context) {
	start := time.Now()

	count, err := m.workerRepo.ReapStale(ctx, m.config.StaleWorkerAfter)
	m.workerMetrics.RecordMaintenanceDuration("reap", time.Since(start).Seconds())

	if err != nil {
		m.workerMetrics.RecordMaintenanceRun("reap", "failure")
		slog.ErrorContext(ctx, "stale worker reaping failed", slog.Any("error", err))
		return
	}

	m.workerMetrics.RecordMaintenanceRun("reap", "success")
	m.workerMetrics.RecordMaintenanceSuccess("reap")

	if count > 0 {
		metrics.RecordWorkersReaped(count)
		slog.InfoContext(ctx, "stale workers reaped",
			slog.Int64("workers", count),
			slog.Duration("window", m.config.StaleWorkerAfter))
	}
}
