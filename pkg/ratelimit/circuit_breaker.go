package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

// CircuitState is the circuit breaker's current state.
type CircuitState int

const (
	// StateClosed is normal operation; limiter checks run.
	StateClosed CircuitState = iota

	// StateOpen means the limiter store kept failing. Requests are let
	// through unchecked so feed reads stay available while the store is
	// down.
	StateOpen

	// StateHalfOpen lets one check through to probe recovery.
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a breaker. Zero values take defaults:
// 10 consecutive failures to open, 30s recovery timeout, system clock,
// no-op metrics.
type CircuitBreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	Clock            Clock
	Metrics          RateLimitMetrics

	// LimiterType labels logs and metrics ("ip", "user").
	LimiterType string
}

// CircuitBreaker shields request handling from a failing rate limit
// store. It fails OPEN: when the store is down, requests pass unchecked.
// That trades strict limiting for availability, which is the right trade
// for a feed API where the limiter is DoS protection rather than a
// security boundary.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu                  sync.RWMutex
	state               CircuitState
	consecutiveFailures int
	lastFailureTime     time.Time
	lastStateChange     time.Time
}

// NewCircuitBreaker builds a breaker, applying defaults for zero-valued
// config fields, and records the initial closed state.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 10
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.Clock == nil {
		config.Clock = &SystemClock{}
	}
	if config.Metrics == nil {
		config.Metrics = &NoOpMetrics{}
	}

	cb := &CircuitBreaker{
		config:          config,
		state:           StateClosed,
		lastStateChange: config.Clock.Now(),
	}
	config.Metrics.RecordCircuitState(config.LimiterType, cb.state.String())
	return cb
}

// Execute runs the limiter operation under breaker protection. Closed
// runs it and tracks failures; open skips it entirely and returns nil
// (fail-open); half-open runs it once and closes or reopens on the
// result.
func (cb *CircuitBreaker) Execute(operation func() error) error {
	cb.attemptRecovery()

	cb.mu.RLock()
	currentState := cb.state
	cb.mu.RUnlock()

	switch currentState {
	case StateOpen:
		return nil
	case StateHalfOpen:
		return cb.probe(operation)
	default:
		err := operation()
		if err != nil {
			cb.RecordFailure()
			return err
		}
		cb.RecordSuccess()
		return nil
	}
}

// probe runs the half-open test operation.
func (cb *CircuitBreaker) probe(operation func() error) error {
	if err := operation(); err != nil {
		cb.mu.Lock()
		cb.consecutiveFailures++
		cb.lastFailureTime = cb.config.Clock.Now()
		cb.transitionLocked(StateOpen)
		cb.mu.Unlock()
		return err
	}

	cb.mu.Lock()
	cb.consecutiveFailures = 0
	cb.transitionLocked(StateClosed)
	cb.mu.Unlock()
	return nil
}

// transitionLocked moves to the new state, recording metrics and logging.
// Caller holds cb.mu.
func (cb *CircuitBreaker) transitionLocked(newState CircuitState) {
	oldState := cb.state
	cb.state = newState
	cb.lastStateChange = cb.config.Clock.Now()

	cb.config.Metrics.RecordCircuitState(cb.config.LimiterType, newState.String())

	slog.Warn("circuit breaker state changed",
		slog.String("limiter_type", cb.config.LimiterType),
		slog.String("previous_state", oldState.String()),
		slog.String("new_state", newState.String()),
		slog.Int("consecutive_failures", cb.consecutiveFailures),
		slog.Duration("recovery_timeout", cb.config.RecoveryTimeout),
	)
}

// Allow reports whether the request should proceed. Always true; an open
// circuit means unchecked, not blocked.
func (cb *CircuitBreaker) Allow() bool {
	cb.attemptRecovery()
	return true
}

// RecordSuccess clears the consecutive failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
}

// RecordFailure counts a store failure and opens the circuit when the
// threshold is reached.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++
	cb.lastFailureTime = cb.config.Clock.Now()

	if cb.consecutiveFailures >= cb.config.FailureThreshold && cb.state == StateClosed {
		cb.transitionLocked(StateOpen)
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// IsOpen reports whether the circuit is open.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// IsClosed reports whether the circuit is closed.
func (cb *CircuitBreaker) IsClosed() bool {
	return cb.State() == StateClosed
}

// IsHalfOpen reports whether the circuit is half-open.
func (cb *CircuitBreaker) IsHalfOpen() bool {
	return cb.State() == StateHalfOpen
}

// Reset forces the circuit closed. For tests and manual intervention.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.consecutiveFailures = 0
	cb.lastFailureTime = time.Time{}
	cb.lastStateChange = cb.config.Clock.Now()

	cb.config.Metrics.RecordCircuitState(cb.config.LimiterType, StateClosed.String())
}

// attemptRecovery moves an open circuit to half-open once the recovery
// timeout has elapsed.
func (cb *CircuitBreaker) attemptRecovery() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return
	}

	now := cb.config.Clock.Now()
	if now.Sub(cb.lastStateChange) >= cb.config.RecoveryTimeout {
		cb.state = StateHalfOpen
		cb.lastStateChange = now
		cb.config.Metrics.RecordCircuitState(cb.config.LimiterType, StateHalfOpen.String())
	}
}

// CircuitBreakerStats is a snapshot for health reporting.
type CircuitBreakerStats struct {
	State               CircuitState
	ConsecutiveFailures int
	LastFailureTime     time.Time
	LastStateChange     time.Time
	TimeSinceLastChange time.Duration
}

// Stats snapshots the breaker for the health endpoint.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	now := cb.config.Clock.Now()
	return CircuitBreakerStats{
		State:               cb.state,
		ConsecutiveFailures: cb.consecutiveFailures,
		LastFailureTime:     cb.lastFailureTime,
		LastStateChange:     cb.lastStateChange,
		TimeSinceLastChange: now.Sub(cb.lastStateChange),
	}
}
