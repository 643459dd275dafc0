package entity

import "time"

// Video is a synthesized asset in the catalog. The prompt that produced it is
// kept alongside so it can be re-embedded and reused as a style seed for
// future decisions.
type Video struct {
	ID              string
	Prompt          string
	SourceURL       string
	DurationSeconds int
	CreatedAt       time.Time
}

// Validate checks structural invariants of the video.
func (v *Video) Validate() error {
	if v.ID == "" {
		return ErrEmptyVideoID
	}
	if v.SourceURL == "" {
		return &ValidationError{Field: "source_url", Message: "cannot be empty"}
	}
	return nil
}
