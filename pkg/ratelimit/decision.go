package ratelimit

import (
	"fmt"
	"time"
)

// RateLimitDecision is the outcome of one limit check, carrying what the
// middleware needs for the X-RateLimit-* and Retry-After headers.
type RateLimitDecision struct {
	// Key is the subject checked ("ip:..." or "user:...").
	Key string

	// Allowed reports whether the request fit the limit.
	Allowed bool

	// Limit is the window's request budget.
	Limit int

	// Remaining is what's left of the budget; zero once the limit is
	// reached.
	Remaining int

	// ResetAt is when the window rolls over.
	ResetAt time.Time

	// RetryAfter is how long a denied client should wait.
	RetryAfter time.Duration

	// LimiterType is which limiter decided, "ip" or "user".
	LimiterType string
}

func (d *RateLimitDecision) String() string {
	if d.Allowed {
		return fmt.Sprintf(
			"RateLimitDecision{Allowed: true, Key: %s, Type: %s, Remaining: %d/%d, ResetAt: %s}",
			d.Key, d.LimiterType, d.Remaining, d.Limit, d.ResetAt.Format(time.RFC3339),
		)
	}

	return fmt.Sprintf(
		"RateLimitDecision{Allowed: false, Key: %s, Type: %s, Limit: %d, RetryAfter: %s, ResetAt: %s}",
		d.Key, d.LimiterType, d.Limit, d.RetryAfter, d.ResetAt.Format(time.RFC3339),
	)
}

// IsAllowed reports whether the request was admitted.
func (d *RateLimitDecision) IsAllowed() bool {
	return d.Allowed
}

// IsDenied reports whether the request was rejected.
func (d *RateLimitDecision) IsDenied() bool {
	return !d.Allowed
}

// HasRemaining reports whether budget is left in the window.
func (d *RateLimitDecision) HasRemaining() bool {
	return d.Remaining > 0
}

// ResetAtUnix returns the reset time for the X-RateLimit-Reset header.
func (d *RateLimitDecision) ResetAtUnix() int64 {
	return d.ResetAt.Unix()
}

// RetryAfterSeconds returns the delay for the Retry-After header, never
// negative.
func (d *RateLimitDecision) RetryAfterSeconds() int64 {
	seconds := int64(d.RetryAfter.Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}

// NewAllowedDecision builds an admitted decision.
func NewAllowedDecision(key, limiterType string, limit, remaining int, resetAt time.Time) *RateLimitDecision {
	return &RateLimitDecision{
		Key:         key,
		Allowed:     true,
		Limit:       limit,
		Remaining:   remaining,
		ResetAt:     resetAt,
		RetryAfter:  clampedUntil(resetAt),
		LimiterType: limiterType,
	}
}

// NewDeniedDecision builds a rejected decision with zero remaining.
func NewDeniedDecision(key, limiterType string, limit int, resetAt time.Time) *RateLimitDecision {
	return &RateLimitDecision{
		Key:         key,
		Allowed:     false,
		Limit:       limit,
		Remaining:   0,
		ResetAt:     resetAt,
		RetryAfter:  clampedUntil(resetAt),
		LimiterType: limiterType,
	}
}

func clampedUntil(resetAt time.Time) time.Duration {
	retryAfter := time.Until(resetAt)
	if retryAfter < 0 {
		return 0
	}
	return retryAfter
}
