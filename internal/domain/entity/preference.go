package entity

import "time"

// PreferenceDimension is the fixed length of a preference vector. It matches
// the dimensionality of the prompt embedding model so that preference vectors
// and prompt embeddings live in the same space.
const PreferenceDimension = 1536

// PreferenceVector is a user's aggregated taste embedding. It is owned by the
// user and replaced wholesale on each threshold-crossing update, never
// partially mutated.
type PreferenceVector struct {
	UserID    string
	Embedding []float32
	Dimension int
	UpdatedAt time.Time
}

// NewPreferenceVector builds a preference vector with the dimension derived
// from the embedding length.
func NewPreferenceVector(userID string, embedding []float32) *PreferenceVector {
	return &PreferenceVector{
		UserID:    userID,
		Embedding: embedding,
		Dimension: len(embedding),
		UpdatedAt: time.Now(),
	}
}

// Empty reports whether the vector carries no embedding. An empty vector is
// not an error: the decision engine treats it as a no-op.
func (p *PreferenceVector) Empty() bool {
	return p == nil || len(p.Embedding) == 0
}

// Validate checks structural invariants of the preference vector.
func (p *PreferenceVector) Validate() error {
	if p.UserID == "" {
		return ErrEmptyUserID
	}
	if len(p.Embedding) == 0 {
		return ErrEmptyPreference
	}
	if p.Dimension != len(p.Embedding) {
		return ErrPreferenceDimension
	}
	return nil
}
