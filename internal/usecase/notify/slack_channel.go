package notify

import (
	"context"
	"time"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/infra/notifier"
)

// SlackChannel implements the Channel interface for Slack alerts.
// It wraps the SlackNotifier from the infrastructure layer to provide
// the Channel abstraction for the notify use case.
type SlackChannel struct {
	notifier notifier.Notifier
	enabled  bool
}

// NewSlackChannel creates a new Slack channel with the specified configuration.
//
// If Slack alerts are disabled (config.Enabled = false), a NoOpNotifier
// is used instead to avoid null checks and ensure the Channel interface contract
// is always satisfied.
func NewSlackChannel(config notifier.SlackConfig) *SlackChannel {
	var n notifier.Notifier
	if config.Enabled {
		n = notifier.NewSlackNotifier(config)
	} else {
		n = notifier.NewNoOpNotifier()
	}

	return &SlackChannel{
		notifier: n,
		enabled:  config.Enabled,
	}
}

// Name returns the channel identifier "slack".
// This is used for logging, metrics labels, and health check endpoints.
func (c *SlackChannel) Name() string {
	return "slack"
}

// IsEnabled returns whether Slack alerts are enabled via configuration.
// Disabled channels are skipped during alert dispatching.
func (c *SlackChannel) IsEnabled() bool {
	return c.enabled
}

// Send sends an alert about a permanently failed queue item to Slack.
//
// This method performs input validation and delegates to the underlying
// SlackNotifier for the actual webhook request. The notifier handles:
//   - Rate limiting (1 req/s with burst of 1)
//   - Retry logic (max 2 attempts with exponential backoff)
//   - Context timeout and cancellation
//   - Request ID generation and logging
func (c *SlackChannel) Send(ctx context.Context, item *entity.QueueItem) error {
	if !c.enabled {
		return ErrChannelDisabled
	}

	if item == nil || item.ID == "" {
		return ErrInvalidItem
	}

	return c.notifier.NotifyFailure(ctx, alertFromItem(item))
}

// alertFromItem converts a failed queue item into the payload the
// infrastructure notifiers expect.
func alertFromItem(item *entity.QueueItem) *notifier.FailureAlert {
	return &notifier.FailureAlert{
		ItemID:    item.ID,
		UserID:    item.UserID,
		Kind:      string(item.Kind),
		Prompt:    item.Prompt,
		Attempts:  item.Attempts,
		LastError: item.LastError,
		FailedAt:  time.Now().UTC(),
	}
}
