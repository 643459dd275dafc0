// Package feed provides the feed publisher and the paginated feed reader.
// Publishing computes the recency-first score, upserts the entry, and trims
// the feed back under its retention cap.
package feed

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/observability/metrics"
	"infinite-feed/internal/repository"
)

// ErrInvalidCursor indicates a pagination cursor that was not produced by
// this service.
var ErrInvalidCursor = errors.New("invalid feed cursor")

// Config holds the tunables of the feed service.
type Config struct {
	// RetentionCap is the maximum number of entries kept per user. Entries
	// beyond the cap are evicted lowest-score first.
	RetentionCap int

	// DefaultPageSize is used when the reader requests no explicit limit.
	DefaultPageSize int

	// MaxPageSize bounds the reader's requested limit.
	MaxPageSize int
}

// DefaultConfig returns production defaults for the feed service.
func DefaultConfig() Config {
	return Config{
		RetentionCap:    50,
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}
}

// Entry is a feed entry hydrated with video metadata for the client.
type Entry struct {
	VideoID         string    `json:"video_id"`
	SourceURL       string    `json:"source_url"`
	Prompt          string    `json:"prompt"`
	DurationSeconds int       `json:"duration_seconds"`
	Score           float64   `json:"score"`
	PublishedAt     time.Time `json:"published_at"`
}

// Page is one page of a user's feed with an opaque continuation cursor.
// NextCursor is empty on the last page.
type Page struct {
	Entries    []Entry `json:"entries"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

// Service provides feed publishing and reading use cases.
type Service struct {
	FeedRepo  repository.FeedRepository
	VideoRepo repository.VideoRepository
	config    Config
}

// NewService creates a new feed Service with the provided dependencies.
func NewService(feedRepo repository.FeedRepository, videoRepo repository.VideoRepository, config Config) Service {
	return Service{
		FeedRepo:  feedRepo,
		VideoRepo: videoRepo,
		config:    config,
	}
}

// Publish inserts or re-scores the (user, video) entry and trims the feed
// back under the retention cap. Publishing the same pair twice with the same
// inputs leaves the feed in the same observable state.
func (s *Service) Publish(ctx context.Context, userID, videoID string, similarity float64, completedAt time.Time) error {
	entry := &entity.FeedEntry{
		UserID:      userID,
		VideoID:     videoID,
		Score:       entity.ComputeFeedScore(completedAt, similarity),
		PublishedAt: completedAt,
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("Publish: %w", err)
	}

	if err := s.FeedRepo.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("Publish: upsert: %w", err)
	}
	metrics.RecordFeedPublished()

	evicted, err := s.FeedRepo.Trim(ctx, userID, s.config.RetentionCap)
	if err != nil {
		return fmt.Errorf("Publish: trim: %w", err)
	}
	if evicted > 0 {
		metrics.RecordFeedEvicted(evicted)
		slog.DebugContext(ctx, "feed trimmed",
			slog.String("user_id", userID),
			slog.Int64("evicted", evicted))
	}

	return nil
}

// GetFeed retrieves one page of the user's feed, highest score first,
// hydrated with video metadata. Pass an empty cursor for the first page.
func (s *Service) GetFeed(ctx context.Context, userID, cursor string, limit int) (*Page, error) {
	if userID == "" {
		return nil, entity.ErrEmptyUserID
	}

	if limit <= 0 {
		limit = s.config.DefaultPageSize
	}
	if limit > s.config.MaxPageSize {
		limit = s.config.MaxPageSize
	}

	afterScore, afterVideoID, err := decodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("GetFeed: %w", err)
	}

	entries, err := s.FeedRepo.ListPage(ctx, userID, afterScore, afterVideoID, limit)
	if err != nil {
		return nil, fmt.Errorf("GetFeed: list page: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.VideoID)
	}
	videos, err := s.VideoRepo.GetBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("GetFeed: hydrate videos: %w", err)
	}

	page := &Page{Entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		out := Entry{
			VideoID:     e.VideoID,
			Score:       e.Score,
			PublishedAt: e.PublishedAt,
		}
		if video := videos[e.VideoID]; video != nil {
			out.SourceURL = video.SourceURL
			out.Prompt = video.Prompt
			out.DurationSeconds = video.DurationSeconds
		} else {
			slog.WarnContext(ctx, "feed entry references missing video",
				slog.String("user_id", userID),
				slog.String("video_id", e.VideoID))
		}
		page.Entries = append(page.Entries, out)
	}

	if len(entries) == limit {
		last := entries[len(entries)-1]
		page.NextCursor = encodeCursor(last.Score, last.VideoID)
	}

	return page, nil
}

// encodeCursor packs the keyset position into an opaque token. The score is
// formatted with full precision so the round trip is exact.
func encodeCursor(score float64, videoID string) string {
	raw := strconv.FormatFloat(score, 'g', -1, 64) + "|" + videoID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// decodeCursor unpacks a cursor. An empty cursor means the first page.
func decodeCursor(cursor string) (float64, string, error) {
	if cursor == "" {
		return 0, "", nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, "", ErrInvalidCursor
	}

	score, videoID, ok := strings.Cut(string(raw), "|")
	if !ok || videoID == "" {
		return 0, "", ErrInvalidCursor
	}

	parsed, err := strconv.ParseFloat(score, 64)
	if err != nil {
		return 0, "", ErrInvalidCursor
	}

	return parsed, videoID, nil
}
