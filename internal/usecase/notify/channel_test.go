package notify

import (
	"context"
	"errors"
	"testing"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/infra/notifier"
)

// Compile-time interface checks.
var (
	_ Channel = (*SlackChannel)(nil)
	_ Channel = (*DiscordChannel)(nil)
)

func TestSlackChannel(t *testing.T) {
	t.Run("TC-1: should return ErrChannelDisabled when disabled", func(t *testing.T) {
		// Arrange
		ch := NewSlackChannel(notifier.SlackConfig{Enabled: false})

		// Act
		err := ch.Send(context.Background(), failedItem("item-1"))

		// Assert
		if !errors.Is(err, ErrChannelDisabled) {
			t.Errorf("Send() error = %v, want ErrChannelDisabled", err)
		}
		if ch.IsEnabled() {
			t.Error("IsEnabled() = true, want false")
		}
	})

	t.Run("TC-2: should return ErrInvalidItem for nil item", func(t *testing.T) {
		// Arrange
		ch := NewSlackChannel(notifier.SlackConfig{
			Enabled:    true,
			WebhookURL: "https://hooks.slack.com/services/TEST/TEST/test",
		})

		// Act & Assert
		if err := ch.Send(context.Background(), nil); !errors.Is(err, ErrInvalidItem) {
			t.Errorf("Send(nil) error = %v, want ErrInvalidItem", err)
		}
		if err := ch.Send(context.Background(), &entity.QueueItem{}); !errors.Is(err, ErrInvalidItem) {
			t.Errorf("Send(empty ID) error = %v, want ErrInvalidItem", err)
		}
	})

	t.Run("TC-3: should report channel name", func(t *testing.T) {
		ch := NewSlackChannel(notifier.SlackConfig{Enabled: false})
		if got := ch.Name(); got != "slack" {
			t.Errorf("Name() = %q, want %q", got, "slack")
		}
	})
}

func TestDiscordChannel(t *testing.T) {
	t.Run("TC-1: should return ErrChannelDisabled when disabled", func(t *testing.T) {
		// Arrange
		ch := NewDiscordChannel(notifier.DiscordConfig{Enabled: false})

		// Act
		err := ch.Send(context.Background(), failedItem("item-1"))

		// Assert
		if !errors.Is(err, ErrChannelDisabled) {
			t.Errorf("Send() error = %v, want ErrChannelDisabled", err)
		}
	})

	t.Run("TC-2: should return ErrInvalidItem for nil item", func(t *testing.T) {
		// Arrange
		ch := NewDiscordChannel(notifier.DiscordConfig{
			Enabled:    true,
			WebhookURL: "https://discord.com/api/webhooks/123/test",
		})

		// Act & Assert
		if err := ch.Send(context.Background(), nil); !errors.Is(err, ErrInvalidItem) {
			t.Errorf("Send(nil) error = %v, want ErrInvalidItem", err)
		}
	})

	t.Run("TC-3: should report channel name", func(t *testing.T) {
		ch := NewDiscordChannel(notifier.DiscordConfig{Enabled: false})
		if got := ch.Name(); got != "discord" {
			t.Errorf("Name() = %q, want %q", got, "discord")
		}
	})
}

func TestAlertFromItem(t *testing.T) {
	t.Run("TC-1: should map queue item fields onto the alert", func(t *testing.T) {
		// Arrange
		item := failedItem("item-42")

		// Act
		alert := alertFromItem(item)

		// Assert
		if alert.ItemID != item.ID {
			t.Errorf("ItemID = %q, want %q", alert.ItemID, item.ID)
		}
		if alert.UserID != item.UserID {
			t.Errorf("UserID = %q, want %q", alert.UserID, item.UserID)
		}
		if alert.Kind != string(item.Kind) {
			t.Errorf("Kind = %q, want %q", alert.Kind, item.Kind)
		}
		if alert.Prompt != item.Prompt {
			t.Errorf("Prompt = %q, want %q", alert.Prompt, item.Prompt)
		}
		if alert.Attempts != item.Attempts {
			t.Errorf("Attempts = %d, want %d", alert.Attempts, item.Attempts)
		}
		if alert.LastError != item.LastError {
			t.Errorf("LastError = %q, want %q", alert.LastError, item.LastError)
		}
		if alert.FailedAt.IsZero() {
			t.Error("FailedAt should be populated")
		}
	})
}
