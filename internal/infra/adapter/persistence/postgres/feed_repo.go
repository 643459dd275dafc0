package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/repository"
)

// FeedRepo implements the FeedRepository interface for PostgreSQL.
type FeedRepo struct {
	db *sql.DB
}

// NewFeedRepo creates a new PostgreSQL-based FeedRepository.
func NewFeedRepo(db *sql.DB) repository.FeedRepository {
	return &FeedRepo{
		db: db,
	}
}

// Upsert publishes a feed entry. Re-publishing the same (user, video) pair
// replaces the score and timestamp instead of creating a duplicate row.
func (repo *FeedRepo) Upsert(ctx context.Context, entry *entity.FeedEntry) error {
	if entry == nil {
		return fmt.Errorf("Upsert: entry is nil")
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}

	const query = `
INSERT INTO feed_entries (user_id, video_id, score, published_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, video_id)
DO UPDATE SET
	score = EXCLUDED.score,
	published_at = EXCLUDED.published_at`

	_, err := repo.db.ExecContext(ctx, query,
		entry.UserID,
		entry.VideoID,
		entry.Score,
		entry.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}

	return nil
}

// Trim evicts the lowest-scored entries beyond the retention cap.
func (repo *FeedRepo) Trim(ctx context.Context, userID string, maxEntries int) (int64, error) {
	if maxEntries < 0 {
		maxEntries = 0
	}

	const query = `
DELETE FROM feed_entries
WHERE user_id = $1 AND video_id IN (
    SELECT video_id FROM feed_entries
    WHERE user_id = $1
    ORDER BY score DESC, video_id DESC
    OFFSET $2
)`

	result, err := repo.db.ExecContext(ctx, query, userID, maxEntries)
	if err != nil {
		return 0, fmt.Errorf("Trim: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("Trim: RowsAffected: %w", err)
	}

	return count, nil
}

// ListPage retrieves one keyset page ordered by score descending.
// (score, video_id) is a total order because video_id breaks score ties.
func (repo *FeedRepo) ListPage(ctx context.Context, userID string, afterScore float64, afterVideoID string, limit int) ([]*entity.FeedEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	var (
		rows *sql.Rows
		err  error
	)
	if afterVideoID == "" {
		const firstPage = `
SELECT user_id, video_id, score, published_at
FROM feed_entries
WHERE user_id = $1
ORDER BY score DESC, video_id DESC
LIMIT $2`
		rows, err = repo.db.QueryContext(ctx, firstPage, userID, limit)
	} else {
		const nextPage = `
SELECT user_id, video_id, score, published_at
FROM feed_entries
WHERE user_id = $1 AND (score, video_id) < ($2, $3)
ORDER BY score DESC, video_id DESC
LIMIT $4`
		rows, err = repo.db.QueryContext(ctx, nextPage, userID, afterScore, afterVideoID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("ListPage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*entity.FeedEntry, 0, limit)
	for rows.Next() {
		entry := &entity.FeedEntry{}
		if err := rows.Scan(&entry.UserID, &entry.VideoID, &entry.Score, &entry.PublishedAt); err != nil {
			return nil, fmt.Errorf("ListPage: Scan: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListPage: %w", err)
	}

	return entries, nil
}

// Size returns the number of feed entries for the user.
func (repo *FeedRepo) Size(ctx context.Context, userID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM feed_entries WHERE user_id = $1`

	var count int64
	if err := repo.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("Size: %w", err)
	}

	return count, nil
}
