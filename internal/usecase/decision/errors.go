// Package decision converts a user's preference vector into queued work
// items: reuse of catalog videos when enough close matches exist, or a
// synthesis request seeded from the nearest match otherwise.
package decision

import "errors"

// Sentinel errors for decision engine operations.
var (
	// ErrDecisionDeferred indicates the similarity search backend was
	// unavailable and no items were enqueued. Callers must not consume the
	// triggering interaction threshold, so the decision retries on the next
	// qualifying interaction.
	ErrDecisionDeferred = errors.New("decision deferred: similarity search unavailable")
)
