// Package fixtures provides reusable test data generators shared across
// test suites.
package fixtures

import (
	"time"

	"infinite-feed/internal/domain/entity"
)

// ItemOption is a functional option for customizing test queue items.
type ItemOption func(*entity.QueueItem)

// NewTestItem creates a valid existing_video queue item with sensible
// defaults. Use functional options to customize it for specific test cases.
//
// Example:
//
//	item := NewTestItem()
//	item := NewTestItem(WithKind(entity.KindGenerateVideo), WithPrompt("a cat"))
func NewTestItem(opts ...ItemOption) *entity.QueueItem {
	item := &entity.QueueItem{
		ID:         "item-1",
		UserID:     "user-1",
		Kind:       entity.KindExistingVideo,
		Status:     entity.StatusPending,
		Priority:   0.8,
		VideoID:    "video-1",
		Similarity: 0.8,
		SourceURL:  "https://cdn.example.com/video-1.mp4",
		CreatedAt:  time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}

	for _, opt := range opts {
		opt(item)
	}

	return item
}

// WithItemID sets the item's ID.
func WithItemID(id string) ItemOption {
	return func(i *entity.QueueItem) {
		i.ID = id
	}
}

// WithUserID sets the item's owning user.
func WithUserID(userID string) ItemOption {
	return func(i *entity.QueueItem) {
		i.UserID = userID
	}
}

// WithKind sets the item's kind. Switching to generate_video clears the
// existing-video fields and fills the generation fields with defaults.
func WithKind(kind entity.ItemKind) ItemOption {
	return func(i *entity.QueueItem) {
		i.Kind = kind
		if kind == entity.KindGenerateVideo {
			i.VideoID = ""
			i.Similarity = 0
			i.SourceURL = ""
			i.Prompt = "a sweeping drone shot over a coastline"
			i.Preference = GenerateTestVector(entity.PreferenceDimension, 0.1)
			i.Priority = 1.0
		}
	}
}

// WithStatus sets the item's status.
func WithStatus(status entity.ItemStatus) ItemOption {
	return func(i *entity.QueueItem) {
		i.Status = status
	}
}

// WithPriority sets the item's priority.
func WithPriority(priority float64) ItemOption {
	return func(i *entity.QueueItem) {
		i.Priority = priority
	}
}

// WithPrompt sets the generation prompt.
func WithPrompt(prompt string) ItemOption {
	return func(i *entity.QueueItem) {
		i.Prompt = prompt
	}
}

// WithPreference sets the preference snapshot.
func WithPreference(preference []float32) ItemOption {
	return func(i *entity.QueueItem) {
		i.Preference = preference
	}
}

// WithAttempts sets the attempt count.
func WithAttempts(attempts int) ItemOption {
	return func(i *entity.QueueItem) {
		i.Attempts = attempts
	}
}

// WithClaim marks the item as claimed by the given worker.
func WithClaim(workerID string, at time.Time) ItemOption {
	return func(i *entity.QueueItem) {
		i.Status = entity.StatusInProgress
		i.ClaimedBy = workerID
		i.ClaimedAt = &at
	}
}
