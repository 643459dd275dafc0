package repository

import "context"

// SimilarPrompt represents the result of a similarity search over prompt
// embeddings. Similarity is cosine similarity in [0.0, 1.0].
type SimilarPrompt struct {
	VideoID    string
	Prompt     string
	Similarity float64
}

// PromptEmbeddingRepository defines the interface for prompt embeddings.
// Each synthesized video's prompt is embedded once so it can be matched
// against user preference vectors and reused as a style seed.
type PromptEmbeddingRepository interface {
	// Upsert creates or replaces the embedding for a video's prompt.
	// It uses the video ID as the unique key. On conflict it updates the
	// embedding vector, dimension, and updated_at timestamp.
	Upsert(ctx context.Context, videoID string, embedding []float32) error

	// SearchSimilar finds videos whose prompt embedding is similar to the
	// given vector, ordered by similarity descending. The limit parameter
	// controls the maximum number of results.
	// Returns an empty slice (not nil) if nothing matches.
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]SimilarPrompt, error)

	// CountSimilarAbove returns how many prompt embeddings exceed the
	// similarity threshold against the given vector. The decision engine
	// uses this to choose between reusing catalog videos and synthesizing
	// new ones.
	CountSimilarAbove(ctx context.Context, embedding []float32, threshold float64) (int64, error)
}
