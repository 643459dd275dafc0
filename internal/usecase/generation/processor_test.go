package generation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/repository"
	"infinite-feed/internal/usecase/generation"
	"infinite-feed/tests/fixtures"
)

// QueueRepository stub recording Complete/Fail calls
type stubQueueRepo struct {
	completed   []completeCall
	failed      []failCall
	completeErr error
}

type completeCall struct {
	itemID, videoID, videoURL string
}

type failCall struct {
	itemID, cause string
	maxAttempts   int
}

func (s *stubQueueRepo) EnqueueBatch(context.Context, []*entity.QueueItem) error { return nil }
func (s *stubQueueRepo) ClaimNext(context.Context, string) (*entity.QueueItem, error) {
	return nil, nil
}
func (s *stubQueueRepo) Complete(_ context.Context, itemID, videoID, videoURL string) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completed = append(s.completed, completeCall{itemID, videoID, videoURL})
	return nil
}
func (s *stubQueueRepo) Fail(_ context.Context, itemID, cause string, maxAttempts int) error {
	s.failed = append(s.failed, failCall{itemID, cause, maxAttempts})
	return nil
}
func (s *stubQueueRepo) ReclaimExpired(context.Context, time.Duration, int) (int64, error) {
	return 0, nil
}
func (s *stubQueueRepo) CountByStatus(context.Context) (map[entity.ItemStatus]int64, error) {
	return nil, nil
}
func (s *stubQueueRepo) ListByUser(context.Context, string) ([]*entity.QueueItem, error) {
	return nil, nil
}

// VideoRepository stub
type stubVideoRepo struct {
	created []*entity.Video
	err     error
}

func (s *stubVideoRepo) Create(_ context.Context, v *entity.Video) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, v)
	return nil
}
func (s *stubVideoRepo) Get(context.Context, string) (*entity.Video, error) {
	return nil, entity.ErrNotFound
}
func (s *stubVideoRepo) GetBatch(context.Context, []string) (map[string]*entity.Video, error) {
	return nil, nil
}

// PromptEmbeddingRepository stub
type stubEmbeddingRepo struct {
	upserts map[string][]float32
	err     error
}

func (s *stubEmbeddingRepo) Upsert(_ context.Context, videoID string, embedding []float32) error {
	if s.err != nil {
		return s.err
	}
	s.upserts[videoID] = embedding
	return nil
}
func (s *stubEmbeddingRepo) SearchSimilar(context.Context, []float32, int) ([]repository.SimilarPrompt, error) {
	return nil, nil
}
func (s *stubEmbeddingRepo) CountSimilarAbove(context.Context, []float32, float64) (int64, error) {
	return 0, nil
}

// Publisher stub
type stubPublisher struct {
	published []publishCall
	err       error
}

type publishCall struct {
	userID, videoID string
	similarity      float64
}

func (s *stubPublisher) Publish(_ context.Context, userID, videoID string, similarity float64, _ time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, publishCall{userID, videoID, similarity})
	return nil
}

// collaborator fakes
type stubSynthesizer struct {
	data   []byte
	err    error
	called int
}

func (s *stubSynthesizer) Synthesize(context.Context, string, int) ([]byte, error) {
	s.called++
	return s.data, s.err
}

type stubStore struct {
	url string
	err error
}

func (s *stubStore) Persist(context.Context, string, []byte) (string, error) {
	return s.url, s.err
}

type stubEmbedder struct {
	embedding []float32
	err       error
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return s.embedding, s.err
}

type procDeps struct {
	queue     *stubQueueRepo
	videos    *stubVideoRepo
	embeds    *stubEmbeddingRepo
	publisher *stubPublisher
	synth     *stubSynthesizer
	store     *stubStore
	embedder  *stubEmbedder
}

func newProcessor(t *testing.T) (generation.Processor, *procDeps) {
	t.Helper()
	deps := &procDeps{
		queue:     &stubQueueRepo{},
		videos:    &stubVideoRepo{},
		embeds:    &stubEmbeddingRepo{upserts: map[string][]float32{}},
		publisher: &stubPublisher{},
		synth:     &stubSynthesizer{data: []byte("video-bytes")},
		store:     &stubStore{url: "https://cdn.example.com/generated.mp4"},
		embedder:  &stubEmbedder{embedding: fixtures.GenerateTestVector(entity.PreferenceDimension, 1)},
	}
	proc := generation.NewProcessor(
		deps.queue, deps.videos, deps.embeds, deps.publisher,
		deps.synth, deps.store, deps.embedder,
		generation.DefaultConfig(),
	)
	return proc, deps
}

func claimedExistingItem() *entity.QueueItem {
	return fixtures.NewTestItem(
		fixtures.WithKind(entity.KindExistingVideo),
		fixtures.WithStatus(entity.StatusInProgress),
	)
}

func claimedGenerateItem() *entity.QueueItem {
	return fixtures.NewTestItem(
		fixtures.WithKind(entity.KindGenerateVideo),
		fixtures.WithStatus(entity.StatusInProgress),
		fixtures.WithPrompt("a canyon flight at dawn"),
		fixtures.WithPreference(fixtures.GenerateTestVector(entity.PreferenceDimension, 2)),
	)
}

func TestProcessor_Process_ExistingVideo(t *testing.T) {
	proc, deps := newProcessor(t)
	item := claimedExistingItem()

	err := proc.Process(context.Background(), item)
	require.NoError(t, err)

	require.Len(t, deps.publisher.published, 1)
	assert.Equal(t, item.UserID, deps.publisher.published[0].userID)
	assert.Equal(t, item.VideoID, deps.publisher.published[0].videoID)
	assert.Equal(t, item.Similarity, deps.publisher.published[0].similarity)

	require.Len(t, deps.queue.completed, 1)
	assert.Equal(t, item.ID, deps.queue.completed[0].itemID)
	assert.Equal(t, item.VideoID, deps.queue.completed[0].videoID)

	// Reuse never touches the synthesis collaborator.
	assert.Zero(t, deps.synth.called)
	assert.Empty(t, deps.queue.failed)
}

func TestProcessor_Process_GenerateVideo(t *testing.T) {
	proc, deps := newProcessor(t)
	item := claimedGenerateItem()

	err := proc.Process(context.Background(), item)
	require.NoError(t, err)

	require.Len(t, deps.videos.created, 1)
	video := deps.videos.created[0]
	assert.Equal(t, "a canyon flight at dawn", video.Prompt)
	assert.Equal(t, "https://cdn.example.com/generated.mp4", video.SourceURL)
	assert.NotEmpty(t, video.ID)

	assert.Contains(t, deps.embeds.upserts, video.ID)

	require.Len(t, deps.publisher.published, 1)
	assert.Equal(t, video.ID, deps.publisher.published[0].videoID)
	assert.Equal(t, 1.0, deps.publisher.published[0].similarity)

	require.Len(t, deps.queue.completed, 1)
	assert.Equal(t, video.ID, deps.queue.completed[0].videoID)
}

func TestProcessor_Process_SynthesisFailure_FailsItem(t *testing.T) {
	proc, deps := newProcessor(t)
	deps.synth.err = errors.New("HTTP 503: overloaded")
	item := claimedGenerateItem()

	err := proc.Process(context.Background(), item)
	require.Error(t, err)

	require.Len(t, deps.queue.failed, 1)
	assert.Equal(t, item.ID, deps.queue.failed[0].itemID)
	assert.Contains(t, deps.queue.failed[0].cause, "synthesize")
	assert.Equal(t, generation.DefaultConfig().MaxAttempts, deps.queue.failed[0].maxAttempts)

	assert.Empty(t, deps.publisher.published)
	assert.Empty(t, deps.queue.completed)
}

func TestProcessor_Process_EmbeddingFailure_NonFatal(t *testing.T) {
	proc, deps := newProcessor(t)
	deps.embedder.err = errors.New("HTTP 500")
	item := claimedGenerateItem()

	err := proc.Process(context.Background(), item)
	require.NoError(t, err)

	assert.Empty(t, deps.embeds.upserts)
	assert.Len(t, deps.publisher.published, 1)
	assert.Len(t, deps.queue.completed, 1)
}

func TestProcessor_Process_PublishFailure_FailsItem(t *testing.T) {
	proc, deps := newProcessor(t)
	deps.publisher.err = errors.New("connection reset")
	item := claimedExistingItem()

	err := proc.Process(context.Background(), item)
	require.Error(t, err)
	require.Len(t, deps.queue.failed, 1)
	assert.Empty(t, deps.queue.completed)
}

func TestProcessor_Process_MalformedItem_FailsItem(t *testing.T) {
	proc, deps := newProcessor(t)
	item := fixtures.NewTestItem(
		fixtures.WithKind(entity.KindGenerateVideo),
		fixtures.WithStatus(entity.StatusInProgress),
		fixtures.WithPrompt(""),
	)

	err := proc.Process(context.Background(), item)
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrEmptyPrompt)
	require.Len(t, deps.queue.failed, 1)
	assert.Zero(t, deps.synth.called)
}

type stubAlerter struct {
	alerted []*entity.QueueItem
}

func (s *stubAlerter) NotifyItemFailed(_ context.Context, item *entity.QueueItem) error {
	s.alerted = append(s.alerted, item)
	return nil
}

func TestProcessor_Process_TerminalFailure_Alerts(t *testing.T) {
	proc, deps := newProcessor(t)
	alerter := &stubAlerter{}
	proc.SetAlerter(alerter)
	deps.synth.err = errors.New("HTTP 503: overloaded")

	// Last allowed attempt: this failure is terminal.
	item := fixtures.NewTestItem(
		fixtures.WithKind(entity.KindGenerateVideo),
		fixtures.WithStatus(entity.StatusInProgress),
		fixtures.WithPrompt("a canyon flight at dawn"),
		fixtures.WithPreference(fixtures.GenerateTestVector(entity.PreferenceDimension, 3)),
		fixtures.WithAttempts(generation.DefaultConfig().MaxAttempts-1),
	)

	err := proc.Process(context.Background(), item)
	require.Error(t, err)

	require.Len(t, alerter.alerted, 1)
	alerted := alerter.alerted[0]
	assert.Equal(t, item.ID, alerted.ID)
	assert.Equal(t, generation.DefaultConfig().MaxAttempts, alerted.Attempts)
	assert.Contains(t, alerted.LastError, "synthesize")
}

func TestProcessor_Process_RetryableFailure_NoAlert(t *testing.T) {
	proc, deps := newProcessor(t)
	alerter := &stubAlerter{}
	proc.SetAlerter(alerter)
	deps.synth.err = errors.New("HTTP 503: overloaded")

	// First attempt: the item goes back to pending, no alert yet.
	item := claimedGenerateItem()

	err := proc.Process(context.Background(), item)
	require.Error(t, err)
	require.Len(t, deps.queue.failed, 1)
	assert.Empty(t, alerter.alerted)
}

func TestProcessor_Process_StorageFailure_FailsItem(t *testing.T) {
	proc, deps := newProcessor(t)
	deps.store.err = errors.New("HTTP 507: insufficient storage")
	item := claimedGenerateItem()

	err := proc.Process(context.Background(), item)
	require.Error(t, err)
	require.Len(t, deps.queue.failed, 1)
	assert.Contains(t, deps.queue.failed[0].cause, "persist artifact")
	assert.Empty(t, deps.videos.created)
}
