package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sony/gobreaker"
)

// UpstreamBreaker reports the circuit breaker state of one external
// dependency (synthesis, storage, prompt or embedding API).
// Implemented by *circuitbreaker.CircuitBreaker.
type UpstreamBreaker interface {
	Name() string
	State() gobreaker.State
	IsOpen() bool
}

// UpstreamHealthHandler provides health check endpoints for the external
// dependencies of the generation pipeline.
type UpstreamHealthHandler struct {
	upstreams []UpstreamBreaker
}

// NewUpstreamHealthHandler creates a new upstream health check handler.
func NewUpstreamHealthHandler(upstreams ...UpstreamBreaker) *UpstreamHealthHandler {
	return &UpstreamHealthHandler{
		upstreams: upstreams,
	}
}

// UpstreamStatus describes one upstream's breaker state.
type UpstreamStatus struct {
	State string `json:"state"`
	Open  bool   `json:"open"`
}

// UpstreamHealthResponse represents the response structure for upstream health endpoints.
type UpstreamHealthResponse struct {
	Status    string                    `json:"status"`
	Upstreams map[string]UpstreamStatus `json:"upstreams,omitempty"`
	Ready     *bool                     `json:"ready,omitempty"`
}

// Health returns the circuit breaker state of every upstream.
// GET /health/upstreams
// Always returns 200: an open breaker degrades the generation pipeline but
// the API keeps serving feeds, so it is reported as "degraded", not a failure.
func (h *UpstreamHealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	statuses := make(map[string]UpstreamStatus, len(h.upstreams))
	status := "healthy"
	for _, upstream := range h.upstreams {
		open := upstream.IsOpen()
		statuses[upstream.Name()] = UpstreamStatus{
			State: upstream.State().String(),
			Open:  open,
		}
		if open {
			status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	response := UpstreamHealthResponse{
		Status:    status,
		Upstreams: statuses,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode upstream health response", slog.Any("error", err))
	}
}

// Ready returns readiness of the generation pipeline.
// GET /ready/upstreams
// Returns 200 when all breakers are closed or half-open, 503 when any is
// open. Note: readiness only reflects breaker state, not a live probe of
// the upstream; a half-open breaker counts as ready because the next
// request is allowed through.
func (h *UpstreamHealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ready := true
	for _, upstream := range h.upstreams {
		if upstream.IsOpen() {
			ready = false
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	response := UpstreamHealthResponse{
		Ready: &ready,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode upstream ready response", slog.Any("error", err))
	}
}
