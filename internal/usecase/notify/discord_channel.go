package notify

import (
	"context"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/infra/notifier"
)

// DiscordChannel implements the Channel interface for Discord alerts.
// It wraps the DiscordNotifier from the infrastructure layer to provide
// the Channel abstraction for the notify use case.
type DiscordChannel struct {
	notifier notifier.Notifier
	enabled  bool
}

// NewDiscordChannel creates a new Discord channel with the specified configuration.
//
// If Discord alerts are disabled (config.Enabled = false), a NoOpNotifier
// is used instead to avoid null checks and ensure the Channel interface contract
// is always satisfied.
func NewDiscordChannel(config notifier.DiscordConfig) *DiscordChannel {
	var n notifier.Notifier
	if config.Enabled {
		n = notifier.NewDiscordNotifier(config)
	} else {
		n = notifier.NewNoOpNotifier()
	}

	return &DiscordChannel{
		notifier: n,
		enabled:  config.Enabled,
	}
}

// Name returns the channel identifier "discord".
// This is used for logging, metrics labels, and health check endpoints.
func (c *DiscordChannel) Name() string {
	return "discord"
}

// IsEnabled returns whether Discord alerts are enabled via configuration.
// Disabled channels are skipped during alert dispatching.
func (c *DiscordChannel) IsEnabled() bool {
	return c.enabled
}

// Send sends an alert about a permanently failed queue item to Discord.
//
// This method performs input validation and delegates to the underlying
// DiscordNotifier for the actual webhook request. The notifier handles:
//   - Rate limiting (0.5 req/s with burst of 3)
//   - Retry logic (max 2 attempts with exponential backoff)
//   - Context timeout and cancellation
//   - Request ID generation and logging
func (c *DiscordChannel) Send(ctx context.Context, item *entity.QueueItem) error {
	if !c.enabled {
		return ErrChannelDisabled
	}

	if item == nil || item.ID == "" {
		return ErrInvalidItem
	}

	return c.notifier.NotifyFailure(ctx, alertFromItem(item))
}
