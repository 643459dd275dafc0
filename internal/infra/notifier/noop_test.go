package notifier

import (
	"context"
	"testing"
)

func TestNoOpNotifier_NotifyFailure(t *testing.T) {
	t.Run("TC-1: should do nothing and return nil", func(t *testing.T) {
		// Arrange
		n := NewNoOpNotifier()

		// Act
		err := n.NotifyFailure(context.Background(), testAlert())

		// Assert
		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})

	t.Run("TC-2: should handle nil alert without panicking", func(t *testing.T) {
		// Arrange
		n := NewNoOpNotifier()

		// Act
		err := n.NotifyFailure(context.Background(), nil)

		// Assert
		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})
}

// Compile-time interface checks for all implementations.
var (
	_ Notifier = (*SlackNotifier)(nil)
	_ Notifier = (*DiscordNotifier)(nil)
	_ Notifier = (*NoOpNotifier)(nil)
)
