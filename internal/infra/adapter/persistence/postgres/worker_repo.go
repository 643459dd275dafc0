package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/repository"
)

// WorkerRepo implements the WorkerRepository interface for PostgreSQL.
type WorkerRepo struct {
	db *sql.DB
}

// NewWorkerRepo creates a new PostgreSQL-based WorkerRepository.
func NewWorkerRepo(db *sql.DB) repository.WorkerRepository {
	return &WorkerRepo{
		db: db,
	}
}

// Register records a worker joining the pool. A worker restarting with the
// same ID refreshes its row instead of failing on the primary key.
func (repo *WorkerRepo) Register(ctx context.Context, record *entity.WorkerRecord) error {
	if record == nil {
		return fmt.Errorf("Register: record is nil")
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("Register: %w", err)
	}

	const query = `
INSERT INTO worker_records (worker_id, hostname, pid, started_at, last_heartbeat, active_tasks)
VALUES ($1, $2, $3, NOW(), NOW(), 0)
ON CONFLICT (worker_id)
DO UPDATE SET
	hostname = EXCLUDED.hostname,
	pid = EXCLUDED.pid,
	started_at = NOW(),
	last_heartbeat = NOW(),
	active_tasks = 0`

	_, err := repo.db.ExecContext(ctx, query, record.WorkerID, record.Hostname, record.PID)
	if err != nil {
		return fmt.Errorf("Register: %w", err)
	}

	return nil
}

// Heartbeat refreshes the worker's last-seen timestamp.
func (repo *WorkerRepo) Heartbeat(ctx context.Context, workerID string, activeTasks int) error {
	const query = `
UPDATE worker_records
SET last_heartbeat = NOW(), active_tasks = $2
WHERE worker_id = $1`

	result, err := repo.db.ExecContext(ctx, query, workerID, activeTasks)
	if err != nil {
		return fmt.Errorf("Heartbeat: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Heartbeat: RowsAffected: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("Heartbeat: worker %s: %w", workerID, entity.ErrNotFound)
	}

	return nil
}

// Deregister removes a worker from the pool on graceful shutdown.
func (repo *WorkerRepo) Deregister(ctx context.Context, workerID string) error {
	const query = `DELETE FROM worker_records WHERE worker_id = $1`

	if _, err := repo.db.ExecContext(ctx, query, workerID); err != nil {
		return fmt.Errorf("Deregister: %w", err)
	}

	return nil
}

// ListActive retrieves workers seen within the staleness window.
func (repo *WorkerRepo) ListActive(ctx context.Context, staleAfter time.Duration) ([]*entity.WorkerRecord, error) {
	const query = `
SELECT worker_id, hostname, pid, started_at, last_heartbeat, active_tasks
FROM worker_records
WHERE last_heartbeat >= NOW() - make_interval(secs => $1)
ORDER BY worker_id`

	rows, err := repo.db.QueryContext(ctx, query, staleAfter.Seconds())
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*entity.WorkerRecord, 0)
	for rows.Next() {
		record := &entity.WorkerRecord{}
		err := rows.Scan(
			&record.WorkerID,
			&record.Hostname,
			&record.PID,
			&record.StartedAt,
			&record.LastHeartbeat,
			&record.ActiveTasks,
		)
		if err != nil {
			return nil, fmt.Errorf("ListActive: Scan: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}

	return records, nil
}

// ReapStale deletes workers that stopped heartbeating without deregistering.
func (repo *WorkerRepo) ReapStale(ctx context.Context, staleAfter time.Duration) (int64, error) {
	const query = `
DELETE FROM worker_records
WHERE last_heartbeat < NOW() - make_interval(secs => $1)`

	result, err := repo.db.ExecContext(ctx, query, staleAfter.Seconds())
	if err != nil {
		return 0, fmt.Errorf("ReapStale: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ReapStale: RowsAffected: %w", err)
	}

	return count, nil
}
