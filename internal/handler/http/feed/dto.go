// Package feed provides HTTP handlers for per-user feed endpoints.
// It includes the paginated feed read endpoint backed by keyset cursors.
package feed

import "time"

// DTO represents the JSON structure for a single feed entry.
type DTO struct {
	VideoID         string    `json:"video_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	SourceURL       string    `json:"source_url" example:"https://cdn.example.com/videos/550e8400.mp4"`
	Prompt          string    `json:"prompt" example:"a sweeping drone shot over a coastline"`
	DurationSeconds int       `json:"duration_seconds" example:"8"`
	Score           float64   `json:"score"`
	PublishedAt     time.Time `json:"published_at" example:"2026-08-01T10:00:00Z"`
}

// Response is the paginated feed payload. NextCursor is empty on the
// last page.
type Response struct {
	Entries    []DTO  `json:"entries"`
	NextCursor string `json:"next_cursor,omitempty"`
}
