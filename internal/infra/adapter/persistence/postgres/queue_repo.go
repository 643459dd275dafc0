// Package postgres implements the repository interfaces on PostgreSQL with
// the pgvector extension.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/repository"
)

// QueueRepo implements the QueueRepository interface for PostgreSQL.
type QueueRepo struct {
	db *sql.DB
}

// NewQueueRepo creates a new PostgreSQL-based QueueRepository.
func NewQueueRepo(db *sql.DB) repository.QueueRepository {
	return &QueueRepo{
		db: db,
	}
}

// itemColumns is the column list shared by every query that returns full
// queue items. Scan order in scanItem must match.
const itemColumns = `id, user_id, kind, status, priority, video_id, similarity, source_url, prompt, preference, attempts, claimed_by, claimed_at, result_video_id, result_url, last_error, created_at`

// itemColumnsPrefixed mirrors itemColumns with the q. alias used by ClaimNext.
const itemColumnsPrefixed = `id, q.user_id, q.kind, q.status, q.priority, q.video_id, q.similarity, q.source_url, q.prompt, q.preference, q.attempts, q.claimed_by, q.claimed_at, q.result_video_id, q.result_url, q.last_error, q.created_at`

// nullVector scans a nullable pgvector column.
type nullVector struct {
	vec   pgvector.Vector
	valid bool
}

func (n *nullVector) Scan(src any) error {
	if src == nil {
		n.valid = false
		return nil
	}
	n.valid = true
	return n.vec.Scan(src)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*entity.QueueItem, error) {
	item := &entity.QueueItem{}
	var (
		videoID       sql.NullString
		similarity    sql.NullFloat64
		sourceURL     sql.NullString
		prompt        sql.NullString
		preference    nullVector
		claimedBy     sql.NullString
		claimedAt     sql.NullTime
		resultVideoID sql.NullString
		resultURL     sql.NullString
		lastError     sql.NullString
	)

	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.Kind,
		&item.Status,
		&item.Priority,
		&videoID,
		&similarity,
		&sourceURL,
		&prompt,
		&preference,
		&item.Attempts,
		&claimedBy,
		&claimedAt,
		&resultVideoID,
		&resultURL,
		&lastError,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.VideoID = videoID.String
	if similarity.Valid {
		item.Similarity = similarity.Float64
	}
	item.SourceURL = sourceURL.String
	item.Prompt = prompt.String
	if preference.valid {
		item.Preference = preference.vec.Slice()
	}
	item.ClaimedBy = claimedBy.String
	if claimedAt.Valid {
		t := claimedAt.Time
		item.ClaimedAt = &t
	}
	item.ResultVideoID = resultVideoID.String
	item.ResultURL = resultURL.String
	item.LastError = lastError.String

	return item, nil
}

// preferenceArg converts a preference snapshot to a nullable insert argument.
func preferenceArg(preference []float32) any {
	if len(preference) == 0 {
		return nil
	}
	return pgvector.NewVector(preference)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// EnqueueBatch inserts all items in one transaction so a partially published
// decision never becomes visible to workers.
func (repo *QueueRepo) EnqueueBatch(ctx context.Context, items []*entity.QueueItem) error {
	if len(items) == 0 {
		return nil
	}

	for _, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("EnqueueBatch: %w", err)
		}
	}

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("EnqueueBatch: BeginTx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
INSERT INTO queue_items (id, user_id, kind, status, priority, video_id, similarity, source_url, prompt, preference, attempts, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	for _, item := range items {
		_, err := tx.ExecContext(ctx, query,
			item.ID,
			item.UserID,
			string(item.Kind),
			string(item.Status),
			item.Priority,
			nullString(item.VideoID),
			sql.NullFloat64{Float64: item.Similarity, Valid: item.Kind == entity.KindExistingVideo},
			nullString(item.SourceURL),
			nullString(item.Prompt),
			preferenceArg(item.Preference),
			item.Attempts,
			item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("EnqueueBatch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("EnqueueBatch: Commit: %w", err)
	}

	return nil
}

// ClaimNext atomically claims the highest-priority pending item.
// FOR UPDATE SKIP LOCKED guarantees two concurrent claimers never pick the
// same row; the loser of the race simply moves on to the next item.
func (repo *QueueRepo) ClaimNext(ctx context.Context, workerID string) (*entity.QueueItem, error) {
	const query = `
WITH next AS (
    SELECT id FROM queue_items
    WHERE status = 'pending'
    ORDER BY priority DESC, created_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
UPDATE queue_items q
SET status = 'in_progress', claimed_by = $1, claimed_at = NOW()
FROM next
WHERE q.id = next.id
RETURNING q.` + itemColumnsPrefixed

	item, err := scanItem(repo.db.QueryRowContext(ctx, query, workerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ClaimNext: %w", err)
	}

	return item, nil
}

// Complete transitions an in_progress item to ready with its result.
func (repo *QueueRepo) Complete(ctx context.Context, itemID, videoID, videoURL string) error {
	const query = `
UPDATE queue_items
SET status = 'ready', result_video_id = $2, result_url = $3, claimed_by = NULL, claimed_at = NULL
WHERE id = $1 AND status = 'in_progress'`

	result, err := repo.db.ExecContext(ctx, query, itemID, videoID, videoURL)
	if err != nil {
		return fmt.Errorf("Complete: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Complete: RowsAffected: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("Complete: item %s: %w", itemID, entity.ErrNotFound)
	}

	return nil
}

// Fail returns an in_progress item to pending, or to failed once attempts
// are exhausted. The status decision happens in SQL so that the check and
// the transition are one atomic statement.
func (repo *QueueRepo) Fail(ctx context.Context, itemID, cause string, maxAttempts int) error {
	const query = `
UPDATE queue_items
SET attempts = attempts + 1,
    last_error = $2,
    claimed_by = NULL,
    claimed_at = NULL,
    status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END
WHERE id = $1 AND status = 'in_progress'`

	result, err := repo.db.ExecContext(ctx, query, itemID, cause, maxAttempts)
	if err != nil {
		return fmt.Errorf("Fail: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Fail: RowsAffected: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("Fail: item %s: %w", itemID, entity.ErrNotFound)
	}

	return nil
}

// ReclaimExpired releases items whose lease ran out. Items that exhaust
// their attempts during reclamation go straight to failed so a crashing
// item cannot loop between pending and in_progress forever.
func (repo *QueueRepo) ReclaimExpired(ctx context.Context, lease time.Duration, maxAttempts int) (int64, error) {
	const query = `
UPDATE queue_items
SET attempts = attempts + 1,
    last_error = 'claim lease expired',
    claimed_by = NULL,
    claimed_at = NULL,
    status = CASE WHEN attempts + 1 >= $2 THEN 'failed' ELSE 'pending' END
WHERE status = 'in_progress' AND claimed_at < NOW() - make_interval(secs => $1)`

	result, err := repo.db.ExecContext(ctx, query, lease.Seconds(), maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("ReclaimExpired: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ReclaimExpired: RowsAffected: %w", err)
	}

	return count, nil
}

// CountByStatus returns per-status item counts for health and metrics.
func (repo *QueueRepo) CountByStatus(ctx context.Context) (map[entity.ItemStatus]int64, error) {
	const query = `SELECT status, COUNT(*) FROM queue_items GROUP BY status`

	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("CountByStatus: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[entity.ItemStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("CountByStatus: Scan: %w", err)
		}
		counts[entity.ItemStatus(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("CountByStatus: %w", err)
	}

	return counts, nil
}

// ListByUser retrieves all queue items for a user, newest first.
func (repo *QueueRepo) ListByUser(ctx context.Context, userID string) ([]*entity.QueueItem, error) {
	const query = `
SELECT ` + itemColumns + `
FROM queue_items
WHERE user_id = $1
ORDER BY created_at DESC`

	rows, err := repo.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*entity.QueueItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByUser: Scan: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}

	return items, nil
}
