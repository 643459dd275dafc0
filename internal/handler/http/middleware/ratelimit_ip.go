package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"infinite-feed/pkg/ratelimit"
)

// IPRateLimiterConfig holds configuration for the IP-based rate limiter.
type IPRateLimiterConfig struct {
	// Limit is the maximum number of requests per IP within the window.
	// Default 100.
	Limit int

	// Window is the time period for rate limiting. Default 1 minute.
	Window time.Duration

	// Enabled controls whether rate limiting is active.
	Enabled bool

	// ExemptPaths lists request paths that bypass rate limiting entirely,
	// typically health probes and the metrics endpoint.
	ExemptPaths []string

	// Degradation optionally relaxes the limit under system stress. When the
	// manager reports LevelDisabled the limiter is bypassed completely.
	Degradation *DegradationManager
}

// DefaultIPRateLimiterConfig returns the default configuration for IP-based rate limiting.
func DefaultIPRateLimiterConfig() IPRateLimiterConfig {
	return IPRateLimiterConfig{
		Limit:   100,
		Window:  1 * time.Minute,
		Enabled: true,
	}
}

// IPRateLimiter enforces per-IP request limits in front of the feed and
// preference endpoints. It is a thin HTTP adapter over pkg/ratelimit: the
// IPExtractor resolves the client address (optionally through trusted
// proxies), the algorithm and store decide, and the circuit breaker fails
// the limiter open so the API stays reachable when the limiter itself is
// unhealthy.
type IPRateLimiter struct {
	config         IPRateLimiterConfig
	ipExtractor    IPExtractor
	store          ratelimit.RateLimitStore
	algorithm      ratelimit.RateLimitAlgorithm
	metrics        ratelimit.RateLimitMetrics
	circuitBreaker *ratelimit.CircuitBreaker
}

// NewIPRateLimiter creates a new IP-based rate limiter middleware.
// Zero Limit/Window fall back to the defaults.
func NewIPRateLimiter(
	config IPRateLimiterConfig,
	ipExtractor IPExtractor,
	store ratelimit.RateLimitStore,
	algorithm ratelimit.RateLimitAlgorithm,
	metrics ratelimit.RateLimitMetrics,
	circuitBreaker *ratelimit.CircuitBreaker,
) *IPRateLimiter {
	if config.Limit <= 0 {
		config.Limit = 100
	}
	if config.Window <= 0 {
		config.Window = 1 * time.Minute
	}

	return &IPRateLimiter{
		config:         config,
		ipExtractor:    ipExtractor,
		store:          store,
		algorithm:      algorithm,
		metrics:        metrics,
		circuitBreaker: circuitBreaker,
	}
}

func (rl *IPRateLimiter) exempt(path string) bool {
	for _, p := range rl.config.ExemptPaths {
		if path == p {
			return true
		}
	}
	return false
}

// Middleware returns the rate limiting handler wrapper.
//
// Responses carry X-RateLimit-Limit/-Remaining/-Reset and X-RateLimit-Type
// headers; denials return 429 with Retry-After. Failures inside the limiter
// never block the request: extraction errors, open circuits, and store
// errors all fail open.
func (rl *IPRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Health probes and metrics scrapes are never limited.
			if !rl.config.Enabled || rl.exempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			ip, err := rl.ipExtractor.ExtractIP(r)
			if err != nil {
				slog.Error("IP rate limiter: failed to extract IP, allowing request",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("path", r.URL.Path),
				)
				next.ServeHTTP(w, r)
				return
			}

			// Feed the breaker state into the degradation manager before
			// deciding how strict to be on this request. A zero limit means
			// degradation has disabled the limiter.
			limit := rl.effectiveLimit()
			if limit == 0 {
				next.ServeHTTP(w, r)
				return
			}

			if rl.circuitBreaker != nil && rl.circuitBreaker.IsOpen() {
				slog.Warn("IP rate limiter: circuit breaker open, allowing request",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				next.ServeHTTP(w, r)
				return
			}

			decision, err := rl.checkRateLimit(context.Background(), ip, limit)

			if rl.metrics != nil {
				rl.metrics.RecordCheckDuration("ip", time.Since(start))
			}

			if err != nil {
				// Fail open: a broken limiter must not take the feed API down.
				slog.Error("IP rate limiter: check failed, allowing request",
					slog.String("error", err.Error()),
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				next.ServeHTTP(w, r)
				return
			}

			slog.Debug("rate limit check completed",
				slog.String("limiter_type", "ip"),
				slog.String("key", ip),
				slog.Int("current", decision.Limit-decision.Remaining),
				slog.Int("limit", decision.Limit),
				slog.Duration("window", rl.config.Window),
				slog.Bool("allowed", decision.Allowed),
				slog.String("path", r.URL.Path),
			)

			rl.setRateLimitHeaders(w, decision)

			if decision.IsDenied() {
				rl.writeRateLimitError(w, r, decision)
				return
			}

			if rl.metrics != nil {
				rl.metrics.RecordAllowed("ip", r.URL.Path)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// effectiveLimit applies the degradation multiplier to the configured limit.
// Returns 0 when rate limiting is disabled by degradation. The breaker state
// is synced into the manager first so sustained limiter failures relax the
// limits automatically.
func (rl *IPRateLimiter) effectiveLimit() int {
	dm := rl.config.Degradation
	if dm == nil {
		return rl.config.Limit
	}

	if rl.circuitBreaker != nil {
		if rl.circuitBreaker.IsOpen() {
			dm.OnCircuitOpen()
		} else {
			dm.OnCircuitClose()
		}
	}

	return dm.AdjustLimits(rl.config.Limit)
}

// checkRateLimit runs the algorithm under circuit breaker protection.
func (rl *IPRateLimiter) checkRateLimit(ctx context.Context, ip string, limit int) (*ratelimit.RateLimitDecision, error) {
	var decision *ratelimit.RateLimitDecision

	check := func() error {
		var err error
		decision, err = rl.algorithm.IsAllowed(ctx, ip, rl.store, limit, rl.config.Window)
		return err
	}

	if rl.circuitBreaker != nil {
		if err := rl.circuitBreaker.Execute(check); err != nil {
			return nil, err
		}
	} else if err := check(); err != nil {
		return nil, err
	}

	if decision != nil {
		decision.LimiterType = "ip"
	}
	return decision, nil
}

func (rl *IPRateLimiter) setRateLimitHeaders(w http.ResponseWriter, decision *ratelimit.RateLimitDecision) {
	if decision == nil {
		return
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAtUnix(), 10))
	w.Header().Set("X-RateLimit-Type", "ip")
}

// writeRateLimitError writes the 429 response with a Retry-After header.
func (rl *IPRateLimiter) writeRateLimitError(w http.ResponseWriter, r *http.Request, decision *ratelimit.RateLimitDecision) {
	retryAfter := decision.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	response := map[string]interface{}{
		"error":       "rate_limit_exceeded",
		"message":     "Too many requests from this IP address",
		"retry_after": retryAfter,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("IP rate limiter: failed to encode JSON response",
			slog.String("error", err.Error()),
		)
	}

	if rl.metrics != nil {
		rl.metrics.RecordDenied("ip", r.URL.Path)
	}

	slog.Warn("rate limit exceeded",
		slog.String("limiter_type", "ip"),
		slog.String("key", decision.Key),
		slog.Int("current", decision.Limit-decision.Remaining),
		slog.Int("limit", decision.Limit),
		slog.Int64("retry_after", retryAfter),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
	)
}
