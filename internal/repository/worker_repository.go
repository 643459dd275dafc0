package repository

import (
	"context"
	"time"

	"infinite-feed/internal/domain/entity"
)

// WorkerRepository defines the interface for worker registration and
// heartbeat tracking. The pool manager uses it to observe fleet health and
// to reap workers that stopped heartbeating without deregistering.
type WorkerRepository interface {
	// Register records a worker joining the pool. Re-registering the same
	// worker ID refreshes its heartbeat instead of failing.
	Register(ctx context.Context, record *entity.WorkerRecord) error

	// Heartbeat refreshes the worker's last-seen timestamp and reports its
	// current number of in-flight tasks.
	// Returns entity.ErrNotFound if the worker is not registered.
	Heartbeat(ctx context.Context, workerID string, activeTasks int) error

	// Deregister removes a worker from the pool on graceful shutdown.
	Deregister(ctx context.Context, workerID string) error

	// ListActive retrieves workers whose heartbeat is within the staleness
	// window.
	ListActive(ctx context.Context, staleAfter time.Duration) ([]*entity.WorkerRecord, error)

	// ReapStale deletes workers whose heartbeat is older than the staleness
	// window. Returns the number of deleted records.
	ReapStale(ctx context.Context, staleAfter time.Duration) (int64, error)
}
