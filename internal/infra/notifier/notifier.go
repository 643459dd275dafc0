// Package notifier provides abstraction for sending operational alerts
// about the generation pipeline. It defines the Notifier interface which
// allows different delivery mechanisms (Discord, Slack, email, etc.) to be
// used interchangeably through dependency injection.
//
// The package includes implementations for Discord and Slack webhooks and
// a no-op notifier for when alerting is disabled.
package notifier

import (
	"context"
	"time"
)

// FailureAlert carries the details of a queue item that exhausted its
// retry budget and was marked failed.
type FailureAlert struct {
	ItemID    string
	UserID    string
	Kind      string
	Prompt    string
	Attempts  int
	LastError string
	FailedAt  time.Time
}

// Notifier is an interface for sending failure alerts.
// Implementations should handle rate limiting, retries, and error logging internally.
type Notifier interface {
	// NotifyFailure sends an alert about a permanently failed queue item.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - alert: The failure to alert about (must not be nil)
	//
	// Returns:
	//   - error: Non-nil if the alert failed after all retry attempts
	//
	// Implementations should:
	//   - Generate a unique request ID for tracing
	//   - Apply rate limiting to prevent API abuse
	//   - Retry transient failures with exponential backoff
	//   - Log all attempts with the request ID for debugging
	//   - Respect context cancellation
	NotifyFailure(ctx context.Context, alert *FailureAlert) error
}
