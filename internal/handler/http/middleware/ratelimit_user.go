package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"infinite-feed/pkg/ratelimit"
)

// UserExtractor resolves the requesting user for rate limiting purposes.
// The abstraction keeps the limiter independent of how identity is
// established; in this service the UserContext middleware resolves the user
// from the /users/{id} path segment.
type UserExtractor interface {
	// ExtractUser returns the user identifier and tier, or ok=false when the
	// request carries no user.
	ExtractUser(ctx context.Context) (userID string, tier ratelimit.UserTier, ok bool)
}

// ContextUserExtractor reads the user identifier the UserContext middleware
// stored in the request context.
type ContextUserExtractor struct {
	contextKey   interface{}
	tierProvider UserTierProvider
}

// UserTierProvider looks up the service tier for a user. A nil provider
// means every user is TierBasic.
type UserTierProvider interface {
	GetUserTier(ctx context.Context, userID string) ratelimit.UserTier
}

// DefaultTierProvider assigns TierBasic to all users.
type DefaultTierProvider struct{}

func (p *DefaultTierProvider) GetUserTier(ctx context.Context, userID string) ratelimit.UserTier {
	return ratelimit.TierBasic
}

// NewContextUserExtractor creates a ContextUserExtractor with the specified
// context key. Pass middleware.UserIDContextKey to pair it with the
// UserContext middleware. A nil tierProvider defaults everyone to TierBasic.
func NewContextUserExtractor(contextKey interface{}, tierProvider UserTierProvider) *ContextUserExtractor {
	if tierProvider == nil {
		tierProvider = &DefaultTierProvider{}
	}
	return &ContextUserExtractor{
		contextKey:   contextKey,
		tierProvider: tierProvider,
	}
}

// ExtractUser retrieves the user resolved from the request path.
func (e *ContextUserExtractor) ExtractUser(ctx context.Context) (userID string, tier ratelimit.UserTier, ok bool) {
	userValue := ctx.Value(e.contextKey)
	if userValue == nil {
		return "", "", false
	}
	userID, ok = userValue.(string)
	if !ok || userID == "" {
		return "", "", false
	}
	return userID, e.tierProvider.GetUserTier(ctx, userID), true
}

// UserRateLimiterConfig holds configuration for user-based rate limiting.
type UserRateLimiterConfig struct {
	Store          ratelimit.RateLimitStore
	Algorithm      ratelimit.RateLimitAlgorithm
	Metrics        ratelimit.RateLimitMetrics
	CircuitBreaker *ratelimit.CircuitBreaker
	UserExtractor  UserExtractor

	// TierLimits maps user tiers to their limits; tiers not listed fall
	// back to DefaultLimit/DefaultWindow.
	TierLimits    map[ratelimit.UserTier]TierLimit
	DefaultLimit  int
	DefaultWindow time.Duration

	// SkipUnauthenticated skips rate limiting for requests without a
	// resolved user. Deprecated: use SkipUnauthenticatedPtr.
	SkipUnauthenticated bool

	// SkipUnauthenticatedPtr allows explicit control over requests without a
	// resolved user: nil or *true skips them, *false limits them under the
	// shared "anonymous" key.
	SkipUnauthenticatedPtr *bool

	Clock ratelimit.Clock

	// Degradation optionally relaxes limits under system stress. LevelDisabled
	// bypasses the limiter completely.
	Degradation *DegradationManager
}

// TierLimit defines the rate limit for a specific user tier.
type TierLimit struct {
	Limit  int
	Window time.Duration
}

// UserRateLimiter applies per-user limits keyed by the hashed user id, with
// per-tier overrides. Requests that carry no resolved user are either
// skipped or pooled under "anonymous" depending on configuration.
type UserRateLimiter struct {
	config UserRateLimiterConfig
}

// NewUserRateLimiter creates a new user-based rate limiter.
// Zero DefaultLimit/DefaultWindow fall back to 1000 requests per hour.
func NewUserRateLimiter(config UserRateLimiterConfig) *UserRateLimiter {
	if config.DefaultLimit == 0 {
		config.DefaultLimit = 1000
	}
	if config.DefaultWindow == 0 {
		config.DefaultWindow = 1 * time.Hour
	}
	if config.Clock == nil {
		config.Clock = &ratelimit.SystemClock{}
	}

	// Fold the deprecated bool into the pointer form so an explicit false
	// keeps limiting anonymous users.
	if config.SkipUnauthenticatedPtr == nil {
		config.SkipUnauthenticatedPtr = &config.SkipUnauthenticated
	}

	return &UserRateLimiter{config: config}
}

// Middleware returns the per-user rate limiting handler wrapper.
//
// Responses carry X-RateLimit-* headers; denials return 429 with
// Retry-After. Limiter failures and open circuits fail open so feed reads
// keep working when the limiter itself is unhealthy.
func (rl *UserRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, tier, resolved := rl.config.UserExtractor.ExtractUser(r.Context())
			if !resolved {
				if rl.skipUnauthenticated() {
					slog.Debug("user rate limiter: no user resolved, skipping",
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
					)
					next.ServeHTTP(w, r)
					return
				}
				userID, tier = "anonymous", ratelimit.TierBasic
			}

			limit, window := rl.tierLimit(tier)

			// Degradation can relax or disable the limit under stress.
			if dm := rl.config.Degradation; dm != nil {
				if rl.config.CircuitBreaker != nil {
					if rl.config.CircuitBreaker.IsOpen() {
						dm.OnCircuitOpen()
					} else {
						dm.OnCircuitClose()
					}
				}
				limit = dm.AdjustLimits(limit)
				if limit == 0 {
					next.ServeHTTP(w, r)
					return
				}
			}

			// User ids are hashed before they touch the store.
			key := hashUserID(userID)

			decision, failOpen := rl.check(r, key, tier, limit, window)
			if failOpen {
				next.ServeHTTP(w, r)
				return
			}

			decision.LimiterType = "user"

			slog.Debug("rate limit check completed",
				slog.String("limiter_type", "user"),
				slog.String("key", key[:16]),
				slog.String("tier", tier.String()),
				slog.Int("current", decision.Limit-decision.Remaining),
				slog.Int("limit", decision.Limit),
				slog.Duration("window", window),
				slog.Bool("allowed", decision.Allowed),
				slog.String("path", r.URL.Path),
			)

			rl.setRateLimitHeaders(w, decision)

			if !decision.Allowed {
				rl.config.Metrics.RecordDenied("user", r.URL.Path)
				slog.Warn("rate limit exceeded",
					slog.String("limiter_type", "user"),
					slog.String("key", key[:16]),
					slog.String("tier", tier.String()),
					slog.Int("current", decision.Limit-decision.Remaining),
					slog.Int("limit", decision.Limit),
					slog.Int64("retry_after", decision.RetryAfterSeconds()),
					slog.String("path", r.URL.Path),
					slog.String("method", r.Method),
				)
				rl.writeRateLimitError(w, decision)
				return
			}

			rl.config.Metrics.RecordAllowed("user", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

// check runs the algorithm through the circuit breaker. failOpen is true
// when the request must pass without a decision: open circuit, store
// failure, or a nil decision.
func (rl *UserRateLimiter) check(r *http.Request, key string, tier ratelimit.UserTier, limit int, window time.Duration) (decision *ratelimit.RateLimitDecision, failOpen bool) {
	startTime := rl.config.Clock.Now()

	var checkErr error
	circuitErr := rl.config.CircuitBreaker.Execute(func() error {
		decision, checkErr = rl.config.Algorithm.IsAllowed(
			r.Context(), key, rl.config.Store, limit, window)
		return checkErr
	})

	rl.config.Metrics.RecordCheckDuration("user", rl.config.Clock.Now().Sub(startTime))

	switch {
	case rl.config.CircuitBreaker.IsOpen():
		slog.Warn("user rate limiter: circuit breaker open, allowing request",
			slog.String("user_hash", key[:16]),
			slog.String("tier", tier.String()),
			slog.String("path", r.URL.Path),
		)
		return nil, true
	case circuitErr != nil:
		slog.Error("user rate limiter: check failed, allowing request",
			slog.String("error", circuitErr.Error()),
			slog.String("user_hash", key[:16]),
			slog.String("tier", tier.String()),
		)
		return nil, true
	case decision == nil:
		slog.Error("user rate limiter: nil decision returned",
			slog.String("user_hash", key[:16]),
			slog.String("tier", tier.String()),
		)
		return nil, true
	}
	return decision, false
}

func (rl *UserRateLimiter) skipUnauthenticated() bool {
	if rl.config.SkipUnauthenticatedPtr != nil {
		return *rl.config.SkipUnauthenticatedPtr
	}
	return true
}

// tierLimit returns the limit for a tier, falling back to the defaults
// for unknown tiers.
func (rl *UserRateLimiter) tierLimit(tier ratelimit.UserTier) (int, time.Duration) {
	if tierLimit, ok := rl.config.TierLimits[tier]; ok {
		return tierLimit.Limit, tierLimit.Window
	}
	return rl.config.DefaultLimit, rl.config.DefaultWindow
}

func (rl *UserRateLimiter) setRateLimitHeaders(w http.ResponseWriter, decision *ratelimit.RateLimitDecision) {
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
	w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", decision.ResetAtUnix()))
	w.Header().Set("X-RateLimit-Type", decision.LimiterType)
}

// writeRateLimitError writes the 429 response with a Retry-After header.
func (rl *UserRateLimiter) writeRateLimitError(w http.ResponseWriter, decision *ratelimit.RateLimitDecision) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", decision.RetryAfterSeconds()))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	errorBody := fmt.Sprintf(`{
  "error": "rate limit exceeded",
  "message": "You have exceeded your hourly request quota. Please try again in %d seconds.",
  "retry_after_seconds": %d,
  "limit": %d,
  "window": "%s"
}`,
		decision.RetryAfterSeconds(),
		decision.RetryAfterSeconds(),
		decision.Limit,
		rl.config.DefaultWindow.String(),
	)

	if _, err := w.Write([]byte(errorBody)); err != nil {
		slog.Error("user rate limiter: failed to write error response",
			slog.String("error", err.Error()),
		)
	}
}

// hashUserID hashes the user id so identifiers are never stored in
// plaintext in the rate limit store.
func hashUserID(userID string) string {
	hash := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(hash[:])
}

// NewDefaultTierLimits returns the default per-tier limits.
//
// Per hour: admin 10,000 / premium 5,000 / basic 1,000 / viewer 500.
func NewDefaultTierLimits() map[ratelimit.UserTier]TierLimit {
	return map[ratelimit.UserTier]TierLimit{
		ratelimit.TierAdmin:   {Limit: 10000, Window: 1 * time.Hour},
		ratelimit.TierPremium: {Limit: 5000, Window: 1 * time.Hour},
		ratelimit.TierBasic:   {Limit: 1000, Window: 1 * time.Hour},
		ratelimit.TierViewer:  {Limit: 500, Window: 1 * time.Hour},
	}
}

// BoolPtr returns a pointer to v, for SkipUnauthenticatedPtr.
func BoolPtr(v bool) *bool {
	return &v
}
