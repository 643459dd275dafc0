package repository

import (
	"context"

	"infinite-feed/internal/domain/entity"
)

// FeedRepository defines the interface for the per-user ranked feed.
type FeedRepository interface {
	// Upsert publishes a feed entry. Publishing the same (user, video) pair
	// again replaces the score instead of creating a duplicate row.
	Upsert(ctx context.Context, entry *entity.FeedEntry) error

	// Trim evicts the lowest-scored entries beyond the retention cap,
	// keeping at most maxEntries rows for the user.
	// Returns the number of evicted entries.
	Trim(ctx context.Context, userID string, maxEntries int) (int64, error)

	// ListPage retrieves a page of feed entries ordered by score descending.
	// The cursor is the (score, videoID) pair of the last entry on the
	// previous page; pass (0, "") for the first page.
	ListPage(ctx context.Context, userID string, afterScore float64, afterVideoID string, limit int) ([]*entity.FeedEntry, error)

	// Size returns the number of feed entries for the user.
	Size(ctx context.Context, userID string) (int64, error)
}
