package middleware

import (
	"strings"
)

// WhitelistValidator allows origins by exact match against a normalized
// whitelist. Origins are lowercased and stripped of trailing slashes on
// both sides of the comparison so "HTTPS://App.Example.Com/" and
// "https://app.example.com" are the same origin.
type WhitelistValidator struct {
	allowedOrigins []string
}

// NewWhitelistValidator normalizes and stores the given origins. Blank
// entries are dropped.
func NewWhitelistValidator(origins []string) *WhitelistValidator {
	normalized := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		origin = strings.ToLower(origin)
		origin = strings.TrimSuffix(origin, "/")
		normalized = append(normalized, origin)
	}

	return &WhitelistValidator{
		allowedOrigins: normalized,
	}
}

// IsAllowed reports whether the origin is in the whitelist.
func (v *WhitelistValidator) IsAllowed(origin string) bool {
	if origin == "" {
		return false
	}

	origin = strings.ToLower(strings.TrimSpace(origin))
	origin = strings.TrimSuffix(origin, "/")

	for _, allowed := range v.allowedOrigins {
		if origin == allowed {
			return true
		}
	}

	return false
}

// GetAllowedOrigins returns a copy of the normalized whitelist.
func (v *WhitelistValidator) GetAllowedOrigins() []string {
	out := make([]string, len(v.allowedOrigins))
	copy(out, v.allowedOrigins)
	return out
}
