package ratelimit

import (
	"fmt"
	"time"
)

// RateLimitConfig holds the limiter settings for both dimensions: per-IP
// limits protect the feed and queue endpoints from anonymous scrapers,
// per-user limits keep one account from monopolizing generation capacity.
type RateLimitConfig struct {
	// DefaultIPLimit and DefaultIPWindow bound anonymous traffic per
	// client address.
	DefaultIPLimit  int
	DefaultIPWindow time.Duration

	// DefaultUserLimit and DefaultUserWindow bound authenticated traffic
	// per user, before any tier override.
	DefaultUserLimit  int
	DefaultUserWindow time.Duration

	// TierLimits overrides the user limit per service tier.
	TierLimits []TierRateLimitConfig

	// MaxActiveKeys caps the in-memory store; LRU eviction runs past it.
	MaxActiveKeys int

	// CleanupInterval and CleanupMaxAge drive the background sweep of
	// expired timestamps.
	CleanupInterval time.Duration
	CleanupMaxAge   time.Duration

	// CircuitBreakerFailureThreshold opens the breaker after that many
	// consecutive store failures; CircuitBreakerResetTimeout is how long
	// it stays open before probing again.
	CircuitBreakerFailureThreshold int
	CircuitBreakerResetTimeout     time.Duration

	// Enabled turns limiting off entirely when false.
	Enabled bool
}

// TierRateLimitConfig is one tier's request budget.
type TierRateLimitConfig struct {
	Tier   UserTier
	Limit  int
	Window time.Duration
}

// UserTier is a user's service tier. Tiers trade generation capacity for
// request budget: a premium user may poll their feed far more often than
// a viewer.
type UserTier string

const (
	TierAdmin   UserTier = "admin"
	TierPremium UserTier = "premium"
	TierBasic   UserTier = "basic"
	TierViewer  UserTier = "viewer"
)

func (t UserTier) String() string {
	return string(t)
}

// IsValid reports whether the tier is one of the recognized values.
func (t UserTier) IsValid() bool {
	switch t {
	case TierAdmin, TierPremium, TierBasic, TierViewer:
		return true
	default:
		return false
	}
}

// Validate rejects negative values and unknown tiers.
func (c *RateLimitConfig) Validate() error {
	checks := []struct {
		name string
		ok   bool
		got  interface{}
	}{
		{"DefaultIPLimit", c.DefaultIPLimit >= 0, c.DefaultIPLimit},
		{"DefaultIPWindow", c.DefaultIPWindow >= 0, c.DefaultIPWindow},
		{"DefaultUserLimit", c.DefaultUserLimit >= 0, c.DefaultUserLimit},
		{"DefaultUserWindow", c.DefaultUserWindow >= 0, c.DefaultUserWindow},
		{"MaxActiveKeys", c.MaxActiveKeys >= 0, c.MaxActiveKeys},
		{"CleanupInterval", c.CleanupInterval >= 0, c.CleanupInterval},
		{"CleanupMaxAge", c.CleanupMaxAge >= 0, c.CleanupMaxAge},
		{"CircuitBreakerFailureThreshold", c.CircuitBreakerFailureThreshold >= 0, c.CircuitBreakerFailureThreshold},
		{"CircuitBreakerResetTimeout", c.CircuitBreakerResetTimeout >= 0, c.CircuitBreakerResetTimeout},
	}
	for _, check := range checks {
		if !check.ok {
			return fmt.Errorf("%s must be non-negative, got %v", check.name, check.got)
		}
	}

	for i, tierLimit := range c.TierLimits {
		if !tierLimit.Tier.IsValid() {
			return fmt.Errorf("TierLimits[%d].Tier has invalid value %q", i, tierLimit.Tier)
		}
		if tierLimit.Limit < 0 {
			return fmt.Errorf("TierLimits[%d].Limit must be non-negative, got %d", i, tierLimit.Limit)
		}
		if tierLimit.Window < 0 {
			return fmt.Errorf("TierLimits[%d].Window must be non-negative, got %s", i, tierLimit.Window)
		}
	}

	return nil
}

// ApplyDefaults fills zero-valued fields so a partially configured
// limiter still behaves sensibly.
func (c *RateLimitConfig) ApplyDefaults() {
	if c.DefaultIPLimit == 0 {
		c.DefaultIPLimit = 100
	}
	if c.DefaultIPWindow == 0 {
		c.DefaultIPWindow = 1 * time.Minute
	}
	if c.DefaultUserLimit == 0 {
		c.DefaultUserLimit = 1000
	}
	if c.DefaultUserWindow == 0 {
		c.DefaultUserWindow = 1 * time.Hour
	}
	if c.MaxActiveKeys == 0 {
		c.MaxActiveKeys = 10000
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	if c.CleanupMaxAge == 0 {
		c.CleanupMaxAge = 1 * time.Hour
	}
	if c.CircuitBreakerFailureThreshold == 0 {
		c.CircuitBreakerFailureThreshold = 10
	}
	if c.CircuitBreakerResetTimeout == 0 {
		c.CircuitBreakerResetTimeout = 30 * time.Second
	}
	if !c.Enabled {
		c.Enabled = true
	}
}

// GetTierLimit returns the limit and window for a tier, falling back to
// the default user limit when the tier has no override.
func (c *RateLimitConfig) GetTierLimit(tier UserTier) (limit int, window time.Duration) {
	for _, tierLimit := range c.TierLimits {
		if tierLimit.Tier == tier {
			return tierLimit.Limit, tierLimit.Window
		}
	}

	return c.DefaultUserLimit, c.DefaultUserWindow
}

// DefaultRateLimitConfig returns a config with every default applied.
func DefaultRateLimitConfig() *RateLimitConfig {
	config := &RateLimitConfig{}
	config.ApplyDefaults()
	return config
}
