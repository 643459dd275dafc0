// Package notify provides use cases for dispatching failure alerts across
// multiple channels. It implements business logic for alerting operators
// about permanently failed generation jobs via various delivery channels
// (Discord, Slack, etc.) with features like circuit breakers, rate
// limiting, and observability.
package notify

import (
	"context"

	"infinite-feed/internal/domain/entity"
)

// Channel represents an alert delivery channel (Discord, Slack, etc.).
// Each channel implementation handles its own rate limiting, retries, and
// error handling.
//
// Retry Policy Contract:
//   - Transient failures (5xx, network errors): Retry with exponential backoff (max 2 attempts)
//   - Rate limits (429): Sleep for retry_after duration, then retry (max 3 attempts)
//   - Client errors (4xx except 429): No retry
//   - Context timeout: No retry
//
// Thread Safety:
//   - All methods must be safe for concurrent use by multiple goroutines
//
// Context Handling:
//   - Implementations must respect context cancellation and timeout
//   - request_id should be extracted from context for logging
type Channel interface {
	// Name returns the human-readable name of the channel (e.g., "discord", "slack").
	// This is used for logging, metrics, and health check endpoints.
	Name() string

	// IsEnabled returns true if this channel is enabled via configuration.
	// Disabled channels will be skipped during alert dispatching.
	IsEnabled() bool

	// Send sends an alert about a permanently failed queue item to this channel.
	//
	// Implementations must:
	//   - Respect context cancellation/timeout
	//   - Apply rate limiting
	//   - Retry transient failures according to retry policy
	//   - Log all attempts with request_id from context
	//   - Sanitize sensitive data (webhook URLs, API keys) in error messages
	//
	// Parameters:
	//   - ctx: Context with timeout and request_id
	//   - item: The failed queue item to alert about (must not be nil)
	//
	// Returns:
	//   - error: Non-nil if the alert failed after all retries
	//     - ErrChannelDisabled: If Send() called on disabled channel
	//     - ErrInvalidItem: If item is nil or missing required fields
	//     - Network/API errors: Wrapped with context
	Send(ctx context.Context, item *entity.QueueItem) error
}
