package decision

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/infra/promptgen"
	"infinite-feed/internal/observability/metrics"
	"infinite-feed/internal/repository"
)

// Decision outcome labels recorded in metrics.
const (
	outcomeReuse    = "reuse"
	outcomeGenerate = "generate"
	outcomeNoop     = "noop"
	outcomeDeferred = "deferred"
)

// Config holds the tunables of the decision engine.
type Config struct {
	// TopN is how many nearest candidates to fetch from the similarity
	// search. Must be at least ReuseCount.
	TopN int

	// SimilarityThreshold is the minimum cosine similarity for a catalog
	// video to count as a sufficient match.
	SimilarityThreshold float64

	// MinSimilarItems is the number of above-threshold matches required
	// before the engine reuses catalog videos instead of synthesizing.
	MinSimilarItems int

	// ReuseCount is how many ExistingVideo items to emit on the reuse path.
	ReuseCount int
}

// DefaultConfig returns production defaults for the decision engine.
func DefaultConfig() Config {
	return Config{
		TopN:                20,
		SimilarityThreshold: 0.6,
		MinSimilarItems:     3,
		ReuseCount:          3,
	}
}

// Service implements the decision engine. It reads the similarity space
// through the embedding repository and persists its output through the queue
// repository in one atomic batch.
type Service struct {
	QueueRepo      repository.QueueRepository
	PreferenceRepo repository.PreferenceRepository
	EmbeddingRepo  repository.PromptEmbeddingRepository
	VideoRepo      repository.VideoRepository
	PromptGen      promptgen.Generator
	config         Config
}

// NewService creates a new decision Service with the provided dependencies.
func NewService(
	queueRepo repository.QueueRepository,
	preferenceRepo repository.PreferenceRepository,
	embeddingRepo repository.PromptEmbeddingRepository,
	videoRepo repository.VideoRepository,
	promptGen promptgen.Generator,
	config Config,
) Service {
	return Service{
		QueueRepo:      queueRepo,
		PreferenceRepo: preferenceRepo,
		EmbeddingRepo:  embeddingRepo,
		VideoRepo:      videoRepo,
		PromptGen:      promptGen,
		config:         config,
	}
}

// ProcessPreferenceUpdate stores the user's new preference vector and runs a
// decision cycle on it. This is the entry point invoked by the interaction
// tracking collaborator when a user crosses the update threshold.
func (s *Service) ProcessPreferenceUpdate(ctx context.Context, userID string, vector []float32) ([]*entity.QueueItem, error) {
	if userID == "" {
		return nil, entity.ErrEmptyUserID
	}

	if len(vector) > 0 {
		pref := entity.NewPreferenceVector(userID, vector)
		if err := pref.Validate(); err != nil {
			return nil, fmt.Errorf("ProcessPreferenceUpdate: %w", err)
		}
		if err := s.PreferenceRepo.Upsert(ctx, pref); err != nil {
			return nil, fmt.Errorf("ProcessPreferenceUpdate: store preference: %w", err)
		}
	}

	return s.Decide(ctx, userID, vector)
}

// Decide converts a preference vector into queue items and enqueues them
// atomically. An empty vector is a no-op, not an error. A similarity search
// failure returns ErrDecisionDeferred without enqueuing anything.
func (s *Service) Decide(ctx context.Context, userID string, vector []float32) ([]*entity.QueueItem, error) {
	if userID == "" {
		return nil, entity.ErrEmptyUserID
	}
	if len(vector) == 0 {
		slog.InfoContext(ctx, "empty preference vector, skipping decision",
			slog.String("user_id", userID))
		metrics.RecordDecision(outcomeNoop)
		return nil, nil
	}

	candidates, err := s.EmbeddingRepo.SearchSimilar(ctx, vector, s.config.TopN)
	if err != nil {
		metrics.RecordDecision(outcomeDeferred)
		return nil, fmt.Errorf("Decide: %w: %v", ErrDecisionDeferred, err)
	}

	aboveThreshold, err := s.EmbeddingRepo.CountSimilarAbove(ctx, vector, s.config.SimilarityThreshold)
	if err != nil {
		metrics.RecordDecision(outcomeDeferred)
		return nil, fmt.Errorf("Decide: %w: %v", ErrDecisionDeferred, err)
	}

	var items []*entity.QueueItem
	var outcome string

	if aboveThreshold >= int64(s.config.MinSimilarItems) {
		items, err = s.reuseItems(ctx, userID, candidates)
		outcome = outcomeReuse
	} else {
		items, err = s.generateItem(ctx, userID, vector, candidates)
		outcome = outcomeGenerate
	}
	if err != nil {
		return nil, fmt.Errorf("Decide: %w", err)
	}

	if err := s.QueueRepo.EnqueueBatch(ctx, items); err != nil {
		return nil, fmt.Errorf("Decide: enqueue batch: %w", err)
	}

	metrics.RecordDecision(outcome)
	for _, item := range items {
		metrics.RecordItemEnqueued(string(item.Kind))
	}

	slog.InfoContext(ctx, "decision completed",
		slog.String("user_id", userID),
		slog.String("outcome", outcome),
		slog.Int64("above_threshold", aboveThreshold),
		slog.Int("items", len(items)))

	return items, nil
}

// reuseItems emits ExistingVideo items for the top above-threshold
// candidates. Ties on similarity break toward the most recently created
// video.
func (s *Service) reuseItems(ctx context.Context, userID string, candidates []repository.SimilarPrompt) ([]*entity.QueueItem, error) {
	matched := make([]repository.SimilarPrompt, 0, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity > s.config.SimilarityThreshold {
			matched = append(matched, c)
			ids = append(ids, c.VideoID)
		}
	}

	videos, err := s.VideoRepo.GetBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("reuseItems: hydrate videos: %w", err)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Similarity != matched[j].Similarity {
			return matched[i].Similarity > matched[j].Similarity
		}
		vi, vj := videos[matched[i].VideoID], videos[matched[j].VideoID]
		if vi == nil || vj == nil {
			return vj == nil
		}
		return vi.CreatedAt.After(vj.CreatedAt)
	})

	items := make([]*entity.QueueItem, 0, s.config.ReuseCount)
	for _, c := range matched {
		if len(items) == s.config.ReuseCount {
			break
		}
		video := videos[c.VideoID]
		if video == nil {
			// Embedding row without a catalog row. Skip rather than emit an
			// item the worker cannot publish.
			slog.WarnContext(ctx, "similar prompt references missing video",
				slog.String("video_id", c.VideoID))
			continue
		}
		items = append(items, entity.NewExistingVideoItem(userID, c.VideoID, c.Similarity, video.SourceURL))
	}

	return items, nil
}

// generateItem emits a single GenerateVideo item seeded from the nearest
// candidate. The preference vector is snapshotted into the item so the
// eventual synthesis reflects the taste at decision time.
func (s *Service) generateItem(ctx context.Context, userID string, vector []float32, candidates []repository.SimilarPrompt) ([]*entity.QueueItem, error) {
	seeds := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Prompt != "" {
			seeds = append(seeds, c.Prompt)
		}
	}

	prompt, err := s.PromptGen.GeneratePrompt(ctx, seeds)
	if err != nil {
		return nil, fmt.Errorf("generateItem: generate prompt: %w", err)
	}

	priority := 0.0
	if len(candidates) > 0 {
		priority = candidates[0].Similarity
	}

	return []*entity.QueueItem{
		entity.NewGenerateVideoItem(userID, prompt, vector, priority),
	}, nil
}
