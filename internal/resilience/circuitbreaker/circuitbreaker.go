// Package circuitbreaker wraps github.com/sony/gobreaker around the
// external services the pipeline depends on, so a failing upstream
// sheds load instead of stalling every worker.
package circuitbreaker

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Config tunes one breaker.
type Config struct {
	Name string

	// MaxRequests caps probe traffic in the half-open state.
	MaxRequests uint32

	// Interval is how often closed-state counts reset.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// FailureThreshold is the failure ratio that trips the breaker,
	// evaluated only once MinRequests calls have been counted.
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultConfig trips at a 60% failure rate over at least 5 calls and
// stays open for a minute.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// PromptAPIConfig covers Claude prompt generation calls.
func PromptAPIConfig() Config {
	return DefaultConfig("prompt-api")
}

// EmbeddingAPIConfig covers OpenAI embedding calls.
func EmbeddingAPIConfig() Config {
	return DefaultConfig("embedding-api")
}

// SynthesisConfig covers the video synthesis service. Jobs run for
// minutes, so the breaker tolerates more failures and recovers slowly.
func SynthesisConfig() Config {
	return Config{
		Name:             "video-synthesis",
		MaxRequests:      2,
		Interval:         60 * time.Second,
		Timeout:          120 * time.Second,
		FailureThreshold: 0.7,
		MinRequests:      5,
	}
}

// StorageConfig covers the asset store that persists downloaded video
// bytes.
func StorageConfig() Config {
	return DefaultConfig("asset-storage")
}

// CircuitBreaker is a thin wrapper keeping the breaker name alongside
// the gobreaker instance.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New builds a breaker from cfg. State transitions are logged; the
// health endpoint reads the state directly.
func New(cfg Config) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// Execute runs fn through the breaker, returning ErrOpenState without
// calling fn while the circuit is open.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.breaker.Execute(fn)
}

func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}
