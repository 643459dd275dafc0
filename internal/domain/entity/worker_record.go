package entity

import "time"

// WorkerRecord tracks the liveness of a single worker process. The record is
// owned exclusively by the worker that created it: the pool manager only
// reads records and deletes those whose heartbeat is stale. Purging a record
// never touches the queue items that worker held; those are recovered
// independently through lease reclamation.
type WorkerRecord struct {
	WorkerID      string
	Hostname      string
	PID           int
	StartedAt     time.Time
	LastHeartbeat time.Time
	ActiveTasks   int
}

// Stale reports whether the worker's heartbeat is older than the given
// staleness window at the reference time.
func (w *WorkerRecord) Stale(now time.Time, window time.Duration) bool {
	return now.Sub(w.LastHeartbeat) > window
}

// Validate checks structural invariants of the worker record.
func (w *WorkerRecord) Validate() error {
	if w.WorkerID == "" {
		return &ValidationError{Field: "worker_id", Message: "cannot be empty"}
	}
	if w.ActiveTasks < 0 {
		return &ValidationError{Field: "active_tasks", Message: "cannot be negative"}
	}
	return nil
}
