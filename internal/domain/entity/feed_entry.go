package entity

import "time"

// scoreBase spreads completion timestamps far enough apart that the
// similarity component can never reorder entries across distinct timestamps.
// The similarity component is clamped into [0, 1) and scaled below scoreBase.
const (
	scoreBase       = 1000.0
	similarityScale = 999.0
)

// FeedEntry is a single (user, video) entry in the per-user ordered feed.
// Higher Score means earlier in the feed.
type FeedEntry struct {
	UserID      string
	VideoID     string
	Score       float64
	PublishedAt time.Time
}

// ComputeFeedScore combines completion recency with similarity so that
// recency always dominates: two entries with different completion
// milliseconds never swap order regardless of similarity. Similarity is
// clamped into [0, 1] before scaling to keep it strictly below the gap
// between adjacent timestamps.
func ComputeFeedScore(completedAt time.Time, similarity float64) float64 {
	if similarity < 0 {
		similarity = 0
	}
	if similarity > 1 {
		similarity = 1
	}
	return float64(completedAt.UnixMilli())*scoreBase + similarity*similarityScale
}

// Validate checks structural invariants of the feed entry.
func (e *FeedEntry) Validate() error {
	if e.UserID == "" {
		return ErrEmptyUserID
	}
	if e.VideoID == "" {
		return ErrEmptyVideoID
	}
	if e.Score < 0 {
		return &ValidationError{Field: "score", Message: "cannot be negative"}
	}
	return nil
}
