package retry

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   10 * time.Millisecond,
		MaxDelay:       100 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

func TestWithBackoff(t *testing.T) {
	t.Run("first attempt succeeds", func(t *testing.T) {
		attempts := 0
		err := WithBackoff(context.Background(), fastConfig(), func() error {
			attempts++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("transient failures clear within the budget", func(t *testing.T) {
		attempts := 0
		err := WithBackoff(context.Background(), fastConfig(), func() error {
			attempts++
			if attempts < 3 {
				return &HTTPError{StatusCode: 503, Message: "synthesis service unavailable"}
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("persistent failure exhausts the budget", func(t *testing.T) {
		attempts := 0
		upstreamErr := &HTTPError{StatusCode: 500, Message: "generation backend down"}
		err := WithBackoff(context.Background(), fastConfig(), func() error {
			attempts++
			return upstreamErr
		})

		require.Error(t, err)
		assert.Equal(t, 3, attempts)
		assert.ErrorIs(t, err, upstreamErr)
		assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
	})

	t.Run("non-retryable error returns immediately", func(t *testing.T) {
		attempts := 0
		clientErr := &HTTPError{StatusCode: 400, Message: "invalid prompt"}
		err := WithBackoff(context.Background(), fastConfig(), func() error {
			attempts++
			return clientErr
		})

		assert.Equal(t, 1, attempts, "client errors must not burn retry budget")
		assert.Same(t, clientErr, err.(*HTTPError))
	})

	t.Run("cancellation aborts the backoff wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		attempts := 0
		err := WithBackoff(ctx, Config{
			MaxAttempts:    5,
			InitialDelay:   50 * time.Millisecond,
			MaxDelay:       200 * time.Millisecond,
			Multiplier:     2.0,
			JitterFraction: 0.1,
		}, func() error {
			attempts++
			if attempts == 2 {
				cancel()
			}
			return &HTTPError{StatusCode: 500, Message: "still down"}
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.GreaterOrEqual(t, attempts, 2)
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"context deadline", context.DeadlineExceeded, false},
		{"HTTP 500", &HTTPError{StatusCode: 500}, true},
		{"HTTP 502", &HTTPError{StatusCode: 502}, true},
		{"HTTP 503", &HTTPError{StatusCode: 503}, true},
		{"HTTP 429", &HTTPError{StatusCode: 429}, true},
		{"HTTP 408", &HTTPError{StatusCode: 408}, true},
		{"HTTP 400", &HTTPError{StatusCode: 400}, false},
		{"HTTP 404", &HTTPError{StatusCode: 404}, false},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"timed out", syscall.ETIMEDOUT, true},
		{"network unreachable", syscall.ENETUNREACH, true},
		{"plain error", errors.New("queue item not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestConfigs(t *testing.T) {
	assert.Equal(t, Config{
		MaxAttempts:    3,
		InitialDelay:   time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}, DefaultConfig())

	assert.Equal(t, 5, SynthesisConfig().MaxAttempts, "synthesis polls retry hardest")
	assert.Equal(t, 2*time.Second, AIAPIConfig().InitialDelay)
	assert.Equal(t, 10*time.Second, AIAPIConfig().MaxDelay)
	assert.Equal(t, 100*time.Millisecond, DBConfig().InitialDelay)
	assert.Equal(t, time.Second, DBConfig().MaxDelay)
	assert.Equal(t, 3, StorageConfig().MaxAttempts)
}

func TestHTTPError_Error(t *testing.T) {
	err := &HTTPError{StatusCode: 500, Message: "Internal Server Error"}
	assert.Equal(t, "HTTP 500: Internal Server Error", err.Error())
}

func TestAddJitter(t *testing.T) {
	base := 100 * time.Millisecond

	seen := make(map[time.Duration]bool)
	for i := 0; i < 10; i++ {
		got := addJitter(base, 0.2)
		assert.GreaterOrEqual(t, got, base)
		assert.LessOrEqual(t, got, time.Duration(float64(base)*1.2))
		seen[got] = true
	}
	assert.Greater(t, len(seen), 1, "jitter should vary between calls")

	assert.Equal(t, base, addJitter(base, 0), "zero fraction means no jitter")
}
