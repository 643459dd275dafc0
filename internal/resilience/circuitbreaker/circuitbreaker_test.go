package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(timeout time.Duration) Config {
	return Config{
		Name:             "upstream",
		MaxRequests:      3,
		Interval:         10 * time.Second,
		Timeout:          timeout,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

var errUpstream = errors.New("synthesis service unavailable")

func TestNew(t *testing.T) {
	cb := New(testConfig(20 * time.Second))

	assert.Equal(t, "upstream", cb.Name())
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_Execute(t *testing.T) {
	t.Run("success passes the result through", func(t *testing.T) {
		cb := New(testConfig(20 * time.Second))

		result, err := cb.Execute(func() (interface{}, error) {
			return "job-accepted", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "job-accepted", result)
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})

	t.Run("failure passes the error through", func(t *testing.T) {
		cb := New(testConfig(20 * time.Second))

		result, err := cb.Execute(func() (interface{}, error) {
			return nil, errUpstream
		})

		assert.Same(t, errUpstream, err)
		assert.Nil(t, result)
	})
}

func TestCircuitBreaker_TripsOpen(t *testing.T) {
	cb := New(testConfig(time.Second))

	// 4 failures and 1 success reach MinRequests; the next failure puts
	// the ratio over the 60% threshold.
	for i := 0; i < 4; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, errUpstream })
		require.Same(t, errUpstream, err)
	}
	_, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)

	_, err = cb.Execute(func() (interface{}, error) { return nil, errUpstream })
	require.Same(t, errUpstream, err)

	require.Equal(t, gobreaker.StateOpen, cb.State())
	require.True(t, cb.IsOpen())

	// Open circuit rejects without invoking the call.
	_, err = cb.Execute(func() (interface{}, error) {
		t.Error("function must not run while the circuit is open")
		return nil, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cfg := testConfig(100 * time.Millisecond)
	cfg.MaxRequests = 2
	cb := New(cfg)

	for i := 0; i < 6; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, errUpstream })
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	time.Sleep(150 * time.Millisecond)

	_, err := cb.Execute(func() (interface{}, error) { return "recovered", nil })
	require.NoError(t, err, "half-open probe should run")
	assert.NotEqual(t, gobreaker.StateOpen, cb.State())
}

func TestCircuitBreaker_BelowMinRequestsStaysClosed(t *testing.T) {
	cfg := testConfig(time.Second)
	cfg.FailureThreshold = 0.5
	cfg.MinRequests = 10
	cb := New(cfg)

	for i := 0; i < 4; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, errUpstream })
		require.Same(t, errUpstream, err)
	}

	assert.Equal(t, gobreaker.StateClosed, cb.State(),
		"ratio is not evaluated until MinRequests calls have been seen")
}

func TestServiceConfigs(t *testing.T) {
	base := DefaultConfig("feed-upstream")
	assert.Equal(t, "feed-upstream", base.Name)
	assert.Equal(t, uint32(3), base.MaxRequests)
	assert.Equal(t, 30*time.Second, base.Interval)
	assert.Equal(t, 60*time.Second, base.Timeout)
	assert.Equal(t, 0.6, base.FailureThreshold)
	assert.Equal(t, uint32(5), base.MinRequests)

	assert.Equal(t, "prompt-api", PromptAPIConfig().Name)
	assert.Equal(t, "embedding-api", EmbeddingAPIConfig().Name)
	assert.Equal(t, "asset-storage", StorageConfig().Name)

	synthesis := SynthesisConfig()
	assert.Equal(t, "video-synthesis", synthesis.Name)
	assert.Equal(t, uint32(2), synthesis.MaxRequests, "long jobs get fewer half-open probes")
	assert.Equal(t, 0.7, synthesis.FailureThreshold)
	assert.Equal(t, 120*time.Second, synthesis.Timeout)
}
