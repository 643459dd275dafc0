// Package respond writes JSON responses and keeps internal error detail
// out of client-facing bodies.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// JSON writes v as the response body with the given status code. A nil
// v writes headers only.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			// Headers are already out; all we can do is log.
			slog.Default().Error("failed to encode JSON response",
				slog.Int("status_code", code),
				slog.Any("error", err))
		}
	}
}

// Phrases that mark an error as client-caused and safe to echo back.
// Anything else (driver errors, DSNs, upstream failures) is replaced
// with a generic message and logged instead.
var safeErrorPhrases = []string{
	"required",
	"invalid",
	"not found",
	"already exists",
	"must be",
	"cannot be",
	"too long",
	"too short",
}

// SafeError writes an error body, echoing validation-style messages
// verbatim and masking everything else as "internal server error". 5xx
// codes always mask. Masked errors are logged with credentials redacted.
func SafeError(w http.ResponseWriter, code int, err error) {
	if err == nil {
		return
	}

	msg := err.Error()
	safe := false
	if code < 500 {
		lower := strings.ToLower(msg)
		for _, phrase := range safeErrorPhrases {
			if strings.Contains(lower, phrase) {
				safe = true
				break
			}
		}
	}

	if !safe {
		slog.Default().Error("internal server error",
			slog.String("status", http.StatusText(code)),
			slog.Int("code", code),
			slog.Any("error", SanitizeError(err)))
		msg = "internal server error"
	}
	JSON(w, code, map[string]string{"error": msg})
}
