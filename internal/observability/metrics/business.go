package metrics

import (
	"time"
)

// RecordItemEnqueued records a queue item being enqueued.
// Kind should be "existing_video" or "generate_video".
func RecordItemEnqueued(kind string) {
	QueueItemsEnqueuedTotal.WithLabelValues(kind).Inc()
}

// RecordItemProcessed records the result of processing a queue item.
// Result should be either "success" or "failure".
func RecordItemProcessed(kind string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	QueueItemsProcessedTotal.WithLabelValues(kind, result).Inc()
	ItemProcessingDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordItemsReclaimed records items released back to pending after their
// claim lease expired.
func RecordItemsReclaimed(count int64) {
	if count > 0 {
		QueueItemsReclaimedTotal.Add(float64(count))
	}
}

// RecordSynthesisDuration records the end-to-end time of one video
// synthesis, from job start to downloaded asset.
func RecordSynthesisDuration(duration time.Duration) {
	SynthesisDuration.Observe(duration.Seconds())
}

// RecordDecision records a decision engine outcome.
// Outcome should be "reuse", "generate", "deferred", or "noop".
func RecordDecision(outcome string) {
	DecisionsTotal.WithLabelValues(outcome).Inc()
}

// RecordFeedPublished records a feed entry being published.
func RecordFeedPublished() {
	FeedEntriesPublishedTotal.Inc()
}

// RecordFeedEvicted records entries evicted by a retention trim.
func RecordFeedEvicted(count int64) {
	if count > 0 {
		FeedEntriesEvictedTotal.Add(float64(count))
	}
}

// UpdateQueueDepth updates the per-status queue depth gauge.
// This gauge should be updated periodically to reflect the current state.
func UpdateQueueDepth(status string, count int64) {
	QueueItemsTotal.WithLabelValues(status).Set(float64(count))
}

// UpdateWorkersActive updates the live worker count gauge.
func UpdateWorkersActive(count int) {
	WorkersActive.Set(float64(count))
}

// RecordWorkersReaped records stale worker records removed by the manager.
func RecordWorkersReaped(count int64) {
	if count > 0 {
		WorkersReapedTotal.Add(float64(count))
	}
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "claim_next", "upsert_feed").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
