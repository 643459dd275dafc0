package entity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"infinite-feed/internal/domain/entity"
)

func TestComputeFeedScore_RecencyDominates(t *testing.T) {
	earlier := time.UnixMilli(1_700_000_000_000)
	later := earlier.Add(1 * time.Millisecond)

	// A perfect similarity match at the earlier timestamp must still score
	// below a zero-similarity entry completed one millisecond later.
	earlyPerfect := entity.ComputeFeedScore(earlier, 1.0)
	lateWorst := entity.ComputeFeedScore(later, 0.0)

	assert.Less(t, earlyPerfect, lateWorst)
}

func TestComputeFeedScore_SimilarityBreaksTies(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)

	low := entity.ComputeFeedScore(at, 0.2)
	high := entity.ComputeFeedScore(at, 0.9)

	assert.Less(t, low, high)
}

func TestComputeFeedScore_ClampsSimilarity(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)

	// Out-of-range similarity must not break cross-timestamp ordering.
	clampedHigh := entity.ComputeFeedScore(at, 1500.0)
	nextMs := entity.ComputeFeedScore(at.Add(time.Millisecond), 0.0)
	assert.Less(t, clampedHigh, nextMs)

	clampedLow := entity.ComputeFeedScore(at, -3.0)
	assert.Equal(t, entity.ComputeFeedScore(at, 0.0), clampedLow)
}

func TestFeedEntry_Validate(t *testing.T) {
	entry := &entity.FeedEntry{UserID: "user-1", VideoID: "video-1", Score: 100}
	assert.NoError(t, entry.Validate())

	entry = &entity.FeedEntry{VideoID: "video-1"}
	assert.ErrorIs(t, entry.Validate(), entity.ErrEmptyUserID)

	entry = &entity.FeedEntry{UserID: "user-1"}
	assert.ErrorIs(t, entry.Validate(), entity.ErrEmptyVideoID)
}
