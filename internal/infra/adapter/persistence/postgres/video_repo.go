package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/repository"
)

// VideoRepo implements the VideoRepository interface for PostgreSQL.
type VideoRepo struct {
	db *sql.DB
}

// NewVideoRepo creates a new PostgreSQL-based VideoRepository.
func NewVideoRepo(db *sql.DB) repository.VideoRepository {
	return &VideoRepo{
		db: db,
	}
}

// Create records a newly synthesized video.
func (repo *VideoRepo) Create(ctx context.Context, video *entity.Video) error {
	if video == nil {
		return fmt.Errorf("Create: video is nil")
	}
	if err := video.Validate(); err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	const query = `
INSERT INTO videos (id, prompt, source_url, duration_seconds, created_at)
VALUES ($1, $2, $3, $4, NOW())
RETURNING created_at`

	err := repo.db.QueryRowContext(ctx, query,
		video.ID,
		video.Prompt,
		video.SourceURL,
		video.DurationSeconds,
	).Scan(&video.CreatedAt)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	return nil
}

// Get retrieves a video by ID.
func (repo *VideoRepo) Get(ctx context.Context, id string) (*entity.Video, error) {
	const query = `
SELECT id, prompt, source_url, duration_seconds, created_at
FROM videos
WHERE id = $1`

	video := &entity.Video{}
	err := repo.db.QueryRowContext(ctx, query, id).Scan(
		&video.ID,
		&video.Prompt,
		&video.SourceURL,
		&video.DurationSeconds,
		&video.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Get: video %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	return video, nil
}

// GetBatch retrieves videos by ID in one query to avoid N+1 lookups when
// hydrating a feed page.
func (repo *VideoRepo) GetBatch(ctx context.Context, ids []string) (map[string]*entity.Video, error) {
	if len(ids) == 0 {
		return map[string]*entity.Video{}, nil
	}

	const query = `
SELECT id, prompt, source_url, duration_seconds, created_at
FROM videos
WHERE id = ANY($1)`

	rows, err := repo.db.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("GetBatch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	videos := make(map[string]*entity.Video, len(ids))
	for rows.Next() {
		video := &entity.Video{}
		err := rows.Scan(
			&video.ID,
			&video.Prompt,
			&video.SourceURL,
			&video.DurationSeconds,
			&video.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("GetBatch: Scan: %w", err)
		}
		videos[video.ID] = video
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetBatch: %w", err)
	}

	return videos, nil
}
