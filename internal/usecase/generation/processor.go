// Package generation processes claimed queue items: reuse items publish the
// referenced asset straight to the feed, synthesis items run the full
// prompt-synthesize-persist-publish pipeline.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/infra/embedder"
	"infinite-feed/internal/infra/storage"
	"infinite-feed/internal/infra/synthesis"
	"infinite-feed/internal/observability/metrics"
	"infinite-feed/internal/repository"
)

// Publisher injects a completed video into a user's feed.
type Publisher interface {
	Publish(ctx context.Context, userID, videoID string, similarity float64, completedAt time.Time) error
}

// FailureAlerter is notified when an item exhausts its retry budget and
// lands in the terminal failed state. Implementations must not block.
type FailureAlerter interface {
	NotifyItemFailed(ctx context.Context, item *entity.QueueItem) error
}

// Config holds the tunables of the item processor.
type Config struct {
	// MaxAttempts bounds the retry budget of a queue item. Once reached the
	// item moves to the terminal failed state.
	MaxAttempts int

	// VideoDurationSeconds is the requested length of synthesized videos.
	VideoDurationSeconds int
}

// DefaultConfig returns production defaults for the processor.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:          3,
		VideoDurationSeconds: 8,
	}
}

// Processor executes one claimed queue item at a time. Worker pool slots
// share a single Processor; it keeps no per-item state.
type Processor struct {
	QueueRepo     repository.QueueRepository
	VideoRepo     repository.VideoRepository
	EmbeddingRepo repository.PromptEmbeddingRepository
	Feed          Publisher
	Synthesizer   synthesis.Synthesizer
	Store         storage.Store
	Embedder      embedder.Embedder
	config        Config
	alerter       FailureAlerter
}

// SetAlerter installs the failure alerter. Optional; without it terminal
// failures are only logged and counted.
func (p *Processor) SetAlerter(alerter FailureAlerter) {
	p.alerter = alerter
}

// NewProcessor creates a new item processor with the provided dependencies.
func NewProcessor(
	queueRepo repository.QueueRepository,
	videoRepo repository.VideoRepository,
	embeddingRepo repository.PromptEmbeddingRepository,
	feed Publisher,
	synthesizer synthesis.Synthesizer,
	store storage.Store,
	emb embedder.Embedder,
	config Config,
) Processor {
	return Processor{
		QueueRepo:     queueRepo,
		VideoRepo:     videoRepo,
		EmbeddingRepo: embeddingRepo,
		Feed:          feed,
		Synthesizer:   synthesizer,
		Store:         store,
		Embedder:      emb,
		config:        config,
	}
}

// Process runs one claimed item to completion. On success the item is marked
// ready; on any failure it is failed through the queue store, which decides
// between re-queueing and terminal failure based on the attempt count.
// The returned error reflects the processing outcome; bookkeeping errors are
// logged, not returned.
func (p *Processor) Process(ctx context.Context, item *entity.QueueItem) error {
	start := time.Now()

	if err := item.Validate(); err != nil {
		// Malformed items cannot be fixed by retrying. Fail them through the
		// normal path so attempts saturate, but log loudly for operators.
		slog.ErrorContext(ctx, "claimed item failed validation",
			slog.String("item_id", item.ID),
			slog.String("kind", string(item.Kind)),
			slog.Any("error", err))
		p.failItem(ctx, item, err)
		metrics.RecordItemProcessed(string(item.Kind), false, time.Since(start))
		return fmt.Errorf("Process: %w", err)
	}

	var err error
	switch item.Kind {
	case entity.KindExistingVideo:
		err = p.processExisting(ctx, item)
	case entity.KindGenerateVideo:
		err = p.processGenerate(ctx, item)
	default:
		err = entity.ErrInvalidItemKind
	}

	duration := time.Since(start)
	metrics.RecordItemProcessed(string(item.Kind), err == nil, duration)

	if err != nil {
		slog.WarnContext(ctx, "item processing failed",
			slog.String("item_id", item.ID),
			slog.String("kind", string(item.Kind)),
			slog.Int("attempts", item.Attempts),
			slog.Duration("duration", duration),
			slog.Any("error", err))
		p.failItem(ctx, item, err)
		return fmt.Errorf("Process: %w", err)
	}

	slog.InfoContext(ctx, "item processed",
		slog.String("item_id", item.ID),
		slog.String("kind", string(item.Kind)),
		slog.Duration("duration", duration))

	return nil
}

// processExisting surfaces an already-synthesized asset into the feed.
func (p *Processor) processExisting(ctx context.Context, item *entity.QueueItem) error {
	completedAt := time.Now()

	if err := p.Feed.Publish(ctx, item.UserID, item.VideoID, item.Similarity, completedAt); err != nil {
		return fmt.Errorf("publish feed entry: %w", err)
	}

	if err := p.QueueRepo.Complete(context.WithoutCancel(ctx), item.ID, item.VideoID, item.SourceURL); err != nil {
		return fmt.Errorf("complete item: %w", err)
	}

	return nil
}

// processGenerate runs the synthesis pipeline: synthesize from the prompt,
// persist the artifact, record the catalog row, embed the prompt for future
// similarity searches, then publish and complete.
func (p *Processor) processGenerate(ctx context.Context, item *entity.QueueItem) error {
	synthesisStart := time.Now()

	data, err := p.Synthesizer.Synthesize(ctx, item.Prompt, p.config.VideoDurationSeconds)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	metrics.RecordSynthesisDuration(time.Since(synthesisStart))

	videoID := uuid.NewString()
	videoURL, err := p.Store.Persist(ctx, videoID, data)
	if err != nil {
		return fmt.Errorf("persist artifact: %w", err)
	}

	completedAt := time.Now()
	video := &entity.Video{
		ID:              videoID,
		Prompt:          item.Prompt,
		SourceURL:       videoURL,
		DurationSeconds: p.config.VideoDurationSeconds,
		CreatedAt:       completedAt,
	}
	if err := p.VideoRepo.Create(ctx, video); err != nil {
		return fmt.Errorf("create video: %w", err)
	}

	p.embedPrompt(ctx, videoID, item.Prompt)

	// A freshly synthesized video is a perfect match for the taste that
	// requested it, so it carries the maximum similarity component.
	if err := p.Feed.Publish(ctx, item.UserID, videoID, 1.0, completedAt); err != nil {
		return fmt.Errorf("publish feed entry: %w", err)
	}

	if err := p.QueueRepo.Complete(context.WithoutCancel(ctx), item.ID, videoID, videoURL); err != nil {
		return fmt.Errorf("complete item: %w", err)
	}

	return nil
}

// embedPrompt registers the prompt embedding so future decisions can find
// this video. Embedding failures are non-fatal: the video is already in the
// catalog and the feed, it just won't match similarity searches yet.
func (p *Processor) embedPrompt(ctx context.Context, videoID, prompt string) {
	embedding, err := p.Embedder.Embed(ctx, prompt)
	if err != nil {
		slog.WarnContext(ctx, "prompt embedding failed, video excluded from similarity search",
			slog.String("video_id", videoID),
			slog.Any("error", err))
		return
	}

	if err := p.EmbeddingRepo.Upsert(ctx, videoID, embedding); err != nil {
		slog.WarnContext(ctx, "prompt embedding upsert failed",
			slog.String("video_id", videoID),
			slog.Any("error", err))
	}
}

// failItem records the failure against the queue store. The store decides
// between re-queueing and terminal failure. The surrounding context may
// already be cancelled (task timeout), so bookkeeping runs detached.
func (p *Processor) failItem(ctx context.Context, item *entity.QueueItem, cause error) {
	safeCtx := context.WithoutCancel(ctx)
	if err := p.QueueRepo.Fail(safeCtx, item.ID, cause.Error(), p.config.MaxAttempts); err != nil {
		slog.ErrorContext(ctx, "failed to record item failure",
			slog.String("item_id", item.ID),
			slog.Any("error", err))
		return
	}

	// item.Attempts holds the pre-claim count; the store just incremented it.
	// When the budget is exhausted the item is now terminally failed.
	if p.alerter != nil && item.Attempts+1 >= p.config.MaxAttempts {
		failed := *item
		failed.Attempts = item.Attempts + 1
		failed.LastError = cause.Error()
		if err := p.alerter.NotifyItemFailed(safeCtx, &failed); err != nil {
			slog.WarnContext(ctx, "failure alert dispatch failed",
				slog.String("item_id", item.ID),
				slog.Any("error", err))
		}
	}
}
