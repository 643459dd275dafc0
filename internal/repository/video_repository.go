package repository

import (
	"context"

	"infinite-feed/internal/domain/entity"
)

// VideoRepository defines the interface for the video catalog.
type VideoRepository interface {
	// Create records a newly synthesized video.
	Create(ctx context.Context, video *entity.Video) error

	// Get retrieves a video by ID.
	// Returns entity.ErrNotFound if the video does not exist.
	Get(ctx context.Context, id string) (*entity.Video, error)

	// GetBatch retrieves videos by ID, keyed by ID in the result. IDs with
	// no matching video are absent from the map.
	GetBatch(ctx context.Context, ids []string) (map[string]*entity.Video, error)
}
