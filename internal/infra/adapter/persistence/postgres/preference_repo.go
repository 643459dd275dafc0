package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/repository"
)

// PreferenceRepo implements the PreferenceRepository interface for PostgreSQL.
type PreferenceRepo struct {
	db *sql.DB
}

// NewPreferenceRepo creates a new PostgreSQL-based PreferenceRepository.
func NewPreferenceRepo(db *sql.DB) repository.PreferenceRepository {
	return &PreferenceRepo{
		db: db,
	}
}

// Get retrieves the preference vector for a user.
func (repo *PreferenceRepo) Get(ctx context.Context, userID string) (*entity.PreferenceVector, error) {
	const query = `
SELECT user_id, embedding, dimension, updated_at
FROM user_preferences
WHERE user_id = $1`

	vector := &entity.PreferenceVector{}
	var embedding pgvector.Vector

	err := repo.db.QueryRowContext(ctx, query, userID).Scan(
		&vector.UserID,
		&embedding,
		&vector.Dimension,
		&vector.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Get: user %s: %w", userID, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	vector.Embedding = embedding.Slice()

	return vector, nil
}

// Upsert replaces the stored preference vector wholesale.
func (repo *PreferenceRepo) Upsert(ctx context.Context, vector *entity.PreferenceVector) error {
	if vector == nil {
		return fmt.Errorf("Upsert: vector is nil")
	}
	if err := vector.Validate(); err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}

	const query = `
INSERT INTO user_preferences (user_id, embedding, dimension, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (user_id)
DO UPDATE SET
	embedding = EXCLUDED.embedding,
	dimension = EXCLUDED.dimension,
	updated_at = NOW()`

	_, err := repo.db.ExecContext(ctx, query,
		vector.UserID,
		pgvector.NewVector(vector.Embedding),
		vector.Dimension,
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}

	return nil
}
