package config

import (
	"log/slog"
	"time"

	"infinite-feed/pkg/ratelimit"
)

// LoadRateLimitConfig reads the limiter settings from RATELIMIT_*
// variables. Invalid values warn and fall back per field; the returned
// error is always nil so a typo in one variable never blocks startup.
//
// Recognized variables: RATELIMIT_ENABLED, RATELIMIT_IP_LIMIT,
// RATELIMIT_IP_WINDOW, RATELIMIT_USER_LIMIT, RATELIMIT_USER_WINDOW,
// RATELIMIT_MAX_KEYS, RATELIMIT_CLEANUP_INTERVAL,
// RATELIMIT_CB_FAILURE_THRESHOLD, RATELIMIT_CB_RECOVERY_TIMEOUT, and the
// per-tier RATELIMIT_TIER_{ADMIN,PREMIUM,BASIC,VIEWER} limits.
func LoadRateLimitConfig() (*ratelimit.RateLimitConfig, error) {
	config := &ratelimit.RateLimitConfig{
		Enabled:                        GetEnvBool("RATELIMIT_ENABLED", true),
		DefaultIPLimit:                 envNonNegativeInt("RATELIMIT_IP_LIMIT", 100),
		DefaultIPWindow:                envPositiveDuration("RATELIMIT_IP_WINDOW", time.Minute),
		DefaultUserLimit:               envNonNegativeInt("RATELIMIT_USER_LIMIT", 1000),
		DefaultUserWindow:              envPositiveDuration("RATELIMIT_USER_WINDOW", time.Hour),
		TierLimits:                     loadTierLimits(),
		MaxActiveKeys:                  envNonNegativeInt("RATELIMIT_MAX_KEYS", 10000),
		CleanupInterval:                envPositiveDuration("RATELIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		CleanupMaxAge:                  time.Hour,
		CircuitBreakerFailureThreshold: envNonNegativeInt("RATELIMIT_CB_FAILURE_THRESHOLD", 10),
		CircuitBreakerResetTimeout:     envPositiveDuration("RATELIMIT_CB_RECOVERY_TIMEOUT", 30*time.Second),
	}

	if err := config.Validate(); err != nil {
		slog.Warn("rate limit configuration validation failed, applying defaults",
			slog.String("error", err.Error()))
		config.ApplyDefaults()
	}

	return config, nil
}

// loadTierLimits builds the per-tier hourly budgets. Tiers with higher
// budgets poll their feeds more aggressively without tripping the
// limiter.
func loadTierLimits() []ratelimit.TierRateLimitConfig {
	tiers := []struct {
		tier         ratelimit.UserTier
		envKey       string
		defaultLimit int
	}{
		{ratelimit.TierAdmin, "RATELIMIT_TIER_ADMIN", 10000},
		{ratelimit.TierPremium, "RATELIMIT_TIER_PREMIUM", 5000},
		{ratelimit.TierBasic, "RATELIMIT_TIER_BASIC", 1000},
		{ratelimit.TierViewer, "RATELIMIT_TIER_VIEWER", 500},
	}

	tierLimits := make([]ratelimit.TierRateLimitConfig, 0, len(tiers))
	for _, t := range tiers {
		tierLimits = append(tierLimits, ratelimit.TierRateLimitConfig{
			Tier:   t.tier,
			Limit:  envNonNegativeInt(t.envKey, t.defaultLimit),
			Window: time.Hour,
		})
	}

	return tierLimits
}

func envNonNegativeInt(key string, defaultValue int) int {
	value := GetEnvInt(key, defaultValue)
	if value < 0 {
		slog.Warn("negative value for environment variable, using default",
			slog.String("key", key),
			slog.Int("value", value),
			slog.Int("default", defaultValue))
		return defaultValue
	}
	return value
}

func envPositiveDuration(key string, defaultValue time.Duration) time.Duration {
	value := GetEnvDuration(key, defaultValue)
	if err := ValidatePositiveDuration(value); err != nil {
		slog.Warn("non-positive duration for environment variable, using default",
			slog.String("key", key),
			slog.String("value", value.String()),
			slog.String("default", defaultValue.String()))
		return defaultValue
	}
	return value
}

// CSPConfig toggles the Content-Security-Policy middleware.
type CSPConfig struct {
	// Enabled controls whether CSP headers are applied at all.
	Enabled bool

	// ReportOnly switches to the Report-Only header, logging violations
	// without enforcing.
	ReportOnly bool
}

// LoadCSPConfig reads CSP_ENABLED and CSP_REPORT_ONLY.
func LoadCSPConfig() (*CSPConfig, error) {
	return &CSPConfig{
		Enabled:    GetEnvBool("CSP_ENABLED", true),
		ReportOnly: GetEnvBool("CSP_REPORT_ONLY", false),
	}, nil
}
