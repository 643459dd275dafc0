// Package entity defines the core domain entities and validation logic for the
// application. It contains the fundamental business objects such as QueueItem,
// FeedEntry and WorkerRecord, along with their validation rules and
// domain-specific errors.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// ItemKind distinguishes between reusing an existing asset and requesting
// synthesis of a new one. Worker dispatch switches exhaustively on this value.
type ItemKind string

const (
	// KindExistingVideo references an already-synthesized asset that only
	// needs to be surfaced into the user's feed.
	KindExistingVideo ItemKind = "existing_video"

	// KindGenerateVideo requests synthesis of a new asset from a prompt.
	KindGenerateVideo ItemKind = "generate_video"
)

// ItemStatus is the queue item state machine:
//
//	Pending -(claim)-> InProgress -(complete)-> Ready
//	InProgress -(fail, attempts < max)-> Pending
//	InProgress -(fail, attempts >= max)-> Failed
//	InProgress -(lease expiry)-> Pending
//
// Ready and Failed are terminal.
type ItemStatus string

const (
	// StatusPending means the item is waiting to be claimed by a worker.
	StatusPending ItemStatus = "pending"

	// StatusInProgress means a worker holds a lease on the item.
	StatusInProgress ItemStatus = "in_progress"

	// StatusReady means the item completed and its result is published.
	StatusReady ItemStatus = "ready"

	// StatusFailed means the item exhausted its retry budget.
	StatusFailed ItemStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s ItemStatus) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// QueueItem is the unit of scheduled work. Depending on Kind it either
// references an existing video (VideoID, Similarity, SourceURL) or carries a
// synthesis request (Prompt, Preference snapshot taken at decision time).
type QueueItem struct {
	ID       string
	UserID   string
	Kind     ItemKind
	Status   ItemStatus
	Priority float64

	// ExistingVideo fields
	VideoID    string
	Similarity float64
	SourceURL  string

	// GenerateVideo fields
	Prompt     string
	Preference []float32

	Attempts  int
	ClaimedBy string
	ClaimedAt *time.Time

	ResultVideoID string
	ResultURL     string
	LastError     string

	CreatedAt time.Time
}

// NewExistingVideoItem creates a pending reuse item for an already-available
// asset. Priority is the similarity score so that closer matches surface first.
func NewExistingVideoItem(userID, videoID string, similarity float64, sourceURL string) *QueueItem {
	return &QueueItem{
		ID:         uuid.NewString(),
		UserID:     userID,
		Kind:       KindExistingVideo,
		Status:     StatusPending,
		Priority:   similarity,
		VideoID:    videoID,
		Similarity: similarity,
		SourceURL:  sourceURL,
		CreatedAt:  time.Now(),
	}
}

// NewGenerateVideoItem creates a pending synthesis item. The preference vector
// is snapshotted so that the eventual synthesis reflects the taste at decision
// time, not at completion time.
func NewGenerateVideoItem(userID, prompt string, preference []float32, priority float64) *QueueItem {
	snapshot := make([]float32, len(preference))
	copy(snapshot, preference)

	return &QueueItem{
		ID:         uuid.NewString(),
		UserID:     userID,
		Kind:       KindGenerateVideo,
		Status:     StatusPending,
		Priority:   priority,
		Prompt:     prompt,
		Preference: snapshot,
		CreatedAt:  time.Now(),
	}
}

// Validate checks structural invariants of the item. Kind-specific fields are
// required only for their own kind.
func (i *QueueItem) Validate() error {
	if i.ID == "" {
		return &ValidationError{Field: "id", Message: "cannot be empty"}
	}
	if i.UserID == "" {
		return ErrEmptyUserID
	}

	switch i.Kind {
	case KindExistingVideo:
		if i.VideoID == "" {
			return ErrEmptyVideoID
		}
	case KindGenerateVideo:
		if i.Prompt == "" {
			return ErrEmptyPrompt
		}
		if len(i.Preference) == 0 {
			return ErrEmptyPreference
		}
	default:
		return ErrInvalidItemKind
	}

	switch i.Status {
	case StatusPending, StatusInProgress, StatusReady, StatusFailed:
	default:
		return ErrInvalidItemStatus
	}

	if i.Attempts < 0 {
		return &ValidationError{Field: "attempts", Message: "cannot be negative"}
	}

	return nil
}

// CanTransition reports whether moving the item to the target status is legal
// under the state machine. Lease-expiry reclamation and fail both map to the
// InProgress -> Pending edge.
func (i *QueueItem) CanTransition(to ItemStatus) bool {
	switch i.Status {
	case StatusPending:
		return to == StatusInProgress
	case StatusInProgress:
		return to == StatusReady || to == StatusFailed || to == StatusPending
	default:
		return false
	}
}
