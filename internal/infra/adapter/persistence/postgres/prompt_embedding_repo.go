package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/repository"
)

// DefaultSearchTimeout is the default timeout for similarity search queries.
const DefaultSearchTimeout = 5 * time.Second

// PromptEmbeddingRepo implements the PromptEmbeddingRepository interface for
// PostgreSQL using pgvector cosine distance.
type PromptEmbeddingRepo struct {
	db *sql.DB
}

// NewPromptEmbeddingRepo creates a new PostgreSQL-based PromptEmbeddingRepository.
func NewPromptEmbeddingRepo(db *sql.DB) repository.PromptEmbeddingRepository {
	return &PromptEmbeddingRepo{
		db: db,
	}
}

// Upsert creates or replaces the embedding for a video's prompt.
func (repo *PromptEmbeddingRepo) Upsert(ctx context.Context, videoID string, embedding []float32) error {
	if videoID == "" {
		return fmt.Errorf("Upsert: %w", entity.ErrEmptyVideoID)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("Upsert: embedding is empty")
	}
	if len(embedding) != entity.PreferenceDimension {
		return fmt.Errorf("Upsert: %w", entity.ErrPreferenceDimension)
	}

	const query = `
INSERT INTO prompt_embeddings (video_id, dimension, embedding, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW())
ON CONFLICT (video_id)
DO UPDATE SET
	dimension = EXCLUDED.dimension,
	embedding = EXCLUDED.embedding,
	updated_at = NOW()`

	_, err := repo.db.ExecContext(ctx, query,
		videoID,
		len(embedding),
		pgvector.NewVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}

	return nil
}

// SearchSimilar finds videos whose prompt embedding is similar to the given
// vector. Uses the cosine distance operator (<=>) so the IVFFlat index is
// eligible; similarity is 1 - distance.
func (repo *PromptEmbeddingRepo) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]repository.SimilarPrompt, error) {
	searchCtx, cancel := context.WithTimeout(ctx, DefaultSearchTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	vector := pgvector.NewVector(embedding)

	const query = `
SELECT pe.video_id, v.prompt, 1 - (pe.embedding <=> $1) AS similarity
FROM prompt_embeddings pe
JOIN videos v ON v.id = pe.video_id
ORDER BY pe.embedding <=> $1
LIMIT $2`

	rows, err := repo.db.QueryContext(searchCtx, query, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("SearchSimilar: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]repository.SimilarPrompt, 0, limit)
	for rows.Next() {
		var result repository.SimilarPrompt
		if err := rows.Scan(&result.VideoID, &result.Prompt, &result.Similarity); err != nil {
			return nil, fmt.Errorf("SearchSimilar: Scan: %w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SearchSimilar: %w", err)
	}

	return results, nil
}

// CountSimilarAbove returns how many prompt embeddings exceed the similarity
// threshold against the given vector.
func (repo *PromptEmbeddingRepo) CountSimilarAbove(ctx context.Context, embedding []float32, threshold float64) (int64, error) {
	searchCtx, cancel := context.WithTimeout(ctx, DefaultSearchTimeout)
	defer cancel()

	vector := pgvector.NewVector(embedding)

	const query = `
SELECT COUNT(*)
FROM prompt_embeddings
WHERE 1 - (embedding <=> $1) > $2`

	var count int64
	if err := repo.db.QueryRowContext(searchCtx, query, vector, threshold).Scan(&count); err != nil {
		return 0, fmt.Errorf("CountSimilarAbove: %w", err)
	}

	return count, nil
}
