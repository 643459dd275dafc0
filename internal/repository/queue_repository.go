package repository

import (
	"context"
	"time"

	"infinite-feed/internal/domain/entity"
)

// QueueRepository defines the interface for the generation queue store.
// All mutating operations are atomic: concurrent workers observe each item
// in exactly one state, and an item is never claimed by two workers at once.
type QueueRepository interface {
	// EnqueueBatch inserts a set of pending items in a single transaction.
	// Either all items become visible to workers or none do.
	// Returns an error if any item fails validation or the transaction fails.
	EnqueueBatch(ctx context.Context, items []*entity.QueueItem) error

	// ClaimNext atomically claims the highest-priority pending item for the
	// given worker, marking it in_progress and stamping the claim time.
	// Items with equal priority are claimed oldest first.
	// Returns (nil, nil) when the queue has no pending items.
	ClaimNext(ctx context.Context, workerID string) (*entity.QueueItem, error)

	// Complete transitions an in_progress item to ready, recording the
	// produced video ID and its playable URL.
	// Returns entity.ErrNotFound if the item is not in_progress.
	Complete(ctx context.Context, itemID, videoID, videoURL string) error

	// Fail records a processing failure. The item returns to pending with an
	// incremented attempt count, or moves to failed once the attempt count
	// reaches maxAttempts. The cause is stored for inspection.
	// Returns entity.ErrNotFound if the item is not in_progress.
	Fail(ctx context.Context, itemID, cause string, maxAttempts int) error

	// ReclaimExpired releases items whose claim is older than the lease.
	// Reclaimed items return to pending with an incremented attempt count,
	// or move to failed once the attempt count reaches maxAttempts.
	// Returns the number of items affected.
	ReclaimExpired(ctx context.Context, lease time.Duration, maxAttempts int) (int64, error)

	// CountByStatus returns the number of items per status. Statuses with no
	// items are absent from the map.
	CountByStatus(ctx context.Context) (map[entity.ItemStatus]int64, error)

	// ListByUser retrieves all queue items for a user, newest first.
	ListByUser(ctx context.Context, userID string) ([]*entity.QueueItem, error)
}
