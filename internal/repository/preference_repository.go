package repository

import (
	"context"

	"infinite-feed/internal/domain/entity"
)

// PreferenceRepository defines the interface for user preference vectors.
type PreferenceRepository interface {
	// Get retrieves the preference vector for a user.
	// Returns entity.ErrNotFound if the user has no stored preference.
	Get(ctx context.Context, userID string) (*entity.PreferenceVector, error)

	// Upsert stores the preference vector, replacing any previous one.
	Upsert(ctx context.Context, vector *entity.PreferenceVector) error
}
