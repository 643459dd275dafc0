package decision_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/repository"
	"infinite-feed/internal/usecase/decision"
	"infinite-feed/tests/fixtures"
)

// in-memory QueueRepository stub
type stubQueueRepo struct {
	enqueued [][]*entity.QueueItem
	err      error
}

func (s *stubQueueRepo) EnqueueBatch(_ context.Context, items []*entity.QueueItem) error {
	if s.err != nil {
		return s.err
	}
	s.enqueued = append(s.enqueued, items)
	return nil
}
func (s *stubQueueRepo) ClaimNext(context.Context, string) (*entity.QueueItem, error) {
	return nil, nil
}
func (s *stubQueueRepo) Complete(context.Context, string, string, string) error { return nil }
func (s *stubQueueRepo) Fail(context.Context, string, string, int) error        { return nil }
func (s *stubQueueRepo) ReclaimExpired(context.Context, time.Duration, int) (int64, error) {
	return 0, nil
}
func (s *stubQueueRepo) CountByStatus(context.Context) (map[entity.ItemStatus]int64, error) {
	return nil, nil
}
func (s *stubQueueRepo) ListByUser(context.Context, string) ([]*entity.QueueItem, error) {
	return nil, nil
}

// items returns all enqueued items flattened.
func (s *stubQueueRepo) items() []*entity.QueueItem {
	var out []*entity.QueueItem
	for _, batch := range s.enqueued {
		out = append(out, batch...)
	}
	return out
}

// in-memory PromptEmbeddingRepository stub
type stubEmbeddingRepo struct {
	candidates []repository.SimilarPrompt
	searchErr  error
	countErr   error
}

func (s *stubEmbeddingRepo) Upsert(context.Context, string, []float32) error { return nil }
func (s *stubEmbeddingRepo) SearchSimilar(context.Context, []float32, int) ([]repository.SimilarPrompt, error) {
	return s.candidates, s.searchErr
}
func (s *stubEmbeddingRepo) CountSimilarAbove(_ context.Context, _ []float32, threshold float64) (int64, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	var count int64
	for _, c := range s.candidates {
		if c.Similarity > threshold {
			count++
		}
	}
	return count, nil
}

// in-memory VideoRepository stub
type stubVideoRepo struct {
	videos map[string]*entity.Video
}

func (s *stubVideoRepo) Create(_ context.Context, v *entity.Video) error {
	s.videos[v.ID] = v
	return nil
}
func (s *stubVideoRepo) Get(_ context.Context, id string) (*entity.Video, error) {
	v, ok := s.videos[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return v, nil
}
func (s *stubVideoRepo) GetBatch(_ context.Context, ids []string) (map[string]*entity.Video, error) {
	out := make(map[string]*entity.Video)
	for _, id := range ids {
		if v, ok := s.videos[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

// in-memory PreferenceRepository stub
type stubPreferenceRepo struct {
	stored map[string]*entity.PreferenceVector
}

func (s *stubPreferenceRepo) Get(_ context.Context, userID string) (*entity.PreferenceVector, error) {
	p, ok := s.stored[userID]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return p, nil
}
func (s *stubPreferenceRepo) Upsert(_ context.Context, v *entity.PreferenceVector) error {
	s.stored[v.UserID] = v
	return nil
}

// canned prompt generator
type stubPromptGen struct {
	prompt string
	seeds  []string
	err    error
}

func (s *stubPromptGen) GeneratePrompt(_ context.Context, seeds []string) (string, error) {
	s.seeds = seeds
	return s.prompt, s.err
}

type testDeps struct {
	queue  *stubQueueRepo
	embeds *stubEmbeddingRepo
	videos *stubVideoRepo
	prefs  *stubPreferenceRepo
	gen    *stubPromptGen
}

func newService(cfg decision.Config, candidates []repository.SimilarPrompt) (decision.Service, *testDeps) {
	deps := &testDeps{
		queue:  &stubQueueRepo{},
		embeds: &stubEmbeddingRepo{candidates: candidates},
		videos: &stubVideoRepo{videos: map[string]*entity.Video{}},
		prefs:  &stubPreferenceRepo{stored: map[string]*entity.PreferenceVector{}},
		gen:    &stubPromptGen{prompt: "a canyon flight at dawn"},
	}
	for _, c := range candidates {
		deps.videos.videos[c.VideoID] = &entity.Video{
			ID:        c.VideoID,
			Prompt:    c.Prompt,
			SourceURL: "https://cdn.example.com/" + c.VideoID + ".mp4",
			CreatedAt: time.Now(),
		}
	}
	svc := decision.NewService(deps.queue, deps.prefs, deps.embeds, deps.videos, deps.gen, cfg)
	return svc, deps
}

func TestService_Decide_EmptyVector_Noop(t *testing.T) {
	svc, deps := newService(decision.DefaultConfig(), nil)

	items, err := svc.Decide(context.Background(), "user-1", nil)
	require.NoError(t, err)
	assert.Nil(t, items)
	assert.Empty(t, deps.queue.enqueued)
}

func TestService_Decide_ReuseAboveThreshold(t *testing.T) {
	cfg := decision.DefaultConfig()
	cfg.SimilarityThreshold = 0.6
	cfg.MinSimilarItems = 2

	svc, deps := newService(cfg, []repository.SimilarPrompt{
		{VideoID: "A", Prompt: "prompt a", Similarity: 0.9},
		{VideoID: "B", Prompt: "prompt b", Similarity: 0.85},
		{VideoID: "C", Prompt: "prompt c", Similarity: 0.5},
	})

	items, err := svc.Decide(context.Background(), "user-1", fixtures.GenerateTestVector(entity.PreferenceDimension, 1))
	require.NoError(t, err)

	var gotIDs []string
	for _, item := range items {
		assert.Equal(t, entity.KindExistingVideo, item.Kind)
		assert.Equal(t, entity.StatusPending, item.Status)
		assert.Equal(t, "user-1", item.UserID)
		gotIDs = append(gotIDs, item.VideoID)
	}
	if diff := cmp.Diff([]string{"A", "B"}, gotIDs); diff != "" {
		t.Errorf("reused video ids mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, deps.queue.items(), 2)
}

func TestService_Decide_BelowThreshold_GeneratesOne(t *testing.T) {
	cfg := decision.DefaultConfig()
	vector := fixtures.GenerateTestVector(entity.PreferenceDimension, 2)

	svc, deps := newService(cfg, []repository.SimilarPrompt{
		{VideoID: "A", Prompt: "prompt a", Similarity: 0.4},
		{VideoID: "B", Prompt: "prompt b", Similarity: 0.3},
	})

	items, err := svc.Decide(context.Background(), "user-1", vector)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, entity.KindGenerateVideo, item.Kind)
	assert.Equal(t, "a canyon flight at dawn", item.Prompt)
	assert.Equal(t, 0.4, item.Priority)
	assert.Equal(t, vector, item.Preference)

	// The nearest candidates seed the prompt generator.
	assert.Equal(t, []string{"prompt a", "prompt b"}, deps.gen.seeds)
	assert.Len(t, deps.queue.items(), 1)
}

func TestService_Decide_NoCandidates_GeneratesFromScratch(t *testing.T) {
	svc, deps := newService(decision.DefaultConfig(), nil)

	items, err := svc.Decide(context.Background(), "user-1", fixtures.GenerateTestVector(entity.PreferenceDimension, 3))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, entity.KindGenerateVideo, items[0].Kind)
	assert.Equal(t, 0.0, items[0].Priority)
	assert.Empty(t, deps.gen.seeds)
}

func TestService_Decide_SearchUnavailable_Deferred(t *testing.T) {
	svc, deps := newService(decision.DefaultConfig(), nil)
	deps.embeds.searchErr = errors.New("connection refused")

	_, err := svc.Decide(context.Background(), "user-1", fixtures.GenerateTestVector(entity.PreferenceDimension, 4))
	require.Error(t, err)
	assert.ErrorIs(t, err, decision.ErrDecisionDeferred)
	assert.Empty(t, deps.queue.enqueued)
}

func TestService_Decide_CountUnavailable_Deferred(t *testing.T) {
	svc, deps := newService(decision.DefaultConfig(), []repository.SimilarPrompt{
		{VideoID: "A", Prompt: "prompt a", Similarity: 0.9},
	})
	deps.embeds.countErr = errors.New("connection refused")

	_, err := svc.Decide(context.Background(), "user-1", fixtures.GenerateTestVector(entity.PreferenceDimension, 5))
	assert.ErrorIs(t, err, decision.ErrDecisionDeferred)
	assert.Empty(t, deps.queue.enqueued)
}

func TestService_Decide_TieBreaksOnMostRecentVideo(t *testing.T) {
	cfg := decision.DefaultConfig()
	cfg.MinSimilarItems = 1
	cfg.ReuseCount = 1

	svc, deps := newService(cfg, []repository.SimilarPrompt{
		{VideoID: "old", Prompt: "prompt old", Similarity: 0.8},
		{VideoID: "new", Prompt: "prompt new", Similarity: 0.8},
	})
	deps.videos.videos["old"].CreatedAt = time.Now().Add(-24 * time.Hour)
	deps.videos.videos["new"].CreatedAt = time.Now()

	items, err := svc.Decide(context.Background(), "user-1", fixtures.GenerateTestVector(entity.PreferenceDimension, 6))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "new", items[0].VideoID)
}

func TestService_Decide_SkipsMissingCatalogRows(t *testing.T) {
	cfg := decision.DefaultConfig()
	cfg.MinSimilarItems = 1
	cfg.ReuseCount = 3

	svc, deps := newService(cfg, []repository.SimilarPrompt{
		{VideoID: "A", Prompt: "prompt a", Similarity: 0.9},
		{VideoID: "ghost", Prompt: "prompt ghost", Similarity: 0.8},
	})
	delete(deps.videos.videos, "ghost")

	items, err := svc.Decide(context.Background(), "user-1", fixtures.GenerateTestVector(entity.PreferenceDimension, 7))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "A", items[0].VideoID)
}

func TestService_Decide_EnqueueFailure_Propagates(t *testing.T) {
	svc, deps := newService(decision.DefaultConfig(), nil)
	deps.queue.err = errors.New("deadlock detected")

	_, err := svc.Decide(context.Background(), "user-1", fixtures.GenerateTestVector(entity.PreferenceDimension, 8))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enqueue batch")
}

func TestService_ProcessPreferenceUpdate_StoresVectorThenDecides(t *testing.T) {
	svc, deps := newService(decision.DefaultConfig(), nil)
	vector := fixtures.GenerateTestVector(entity.PreferenceDimension, 9)

	items, err := svc.ProcessPreferenceUpdate(context.Background(), "user-1", vector)
	require.NoError(t, err)
	require.Len(t, items, 1)

	stored, ok := deps.prefs.stored["user-1"]
	require.True(t, ok)
	assert.Equal(t, vector, stored.Embedding)
	assert.Equal(t, entity.PreferenceDimension, stored.Dimension)
}

func TestService_ProcessPreferenceUpdate_EmptyUserID(t *testing.T) {
	svc, _ := newService(decision.DefaultConfig(), nil)

	_, err := svc.ProcessPreferenceUpdate(context.Background(), "", nil)
	assert.ErrorIs(t, err, entity.ErrEmptyUserID)
}
