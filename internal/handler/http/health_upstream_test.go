package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sony/gobreaker"
)

type fakeBreaker struct {
	name  string
	state gobreaker.State
}

func (f *fakeBreaker) Name() string           { return f.name }
func (f *fakeBreaker) State() gobreaker.State { return f.state }
func (f *fakeBreaker) IsOpen() bool           { return f.state == gobreaker.StateOpen }

func TestUpstreamHealthHandler_Health_AllClosed(t *testing.T) {
	handler := NewUpstreamHealthHandler(
		&fakeBreaker{name: "synthesis", state: gobreaker.StateClosed},
		&fakeBreaker{name: "storage", state: gobreaker.StateClosed},
	)

	req := httptest.NewRequest(http.MethodGet, "/health/upstreams", nil)
	rr := httptest.NewRecorder()

	handler.Health(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}

	var response UpstreamHealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != "healthy" {
		t.Errorf("status = %q, want %q", response.Status, "healthy")
	}
	if len(response.Upstreams) != 2 {
		t.Fatalf("len(upstreams) = %d, want 2", len(response.Upstreams))
	}
	if response.Upstreams["synthesis"].Open {
		t.Error("synthesis should not be reported open")
	}
}

func TestUpstreamHealthHandler_Health_OneOpen(t *testing.T) {
	handler := NewUpstreamHealthHandler(
		&fakeBreaker{name: "synthesis", state: gobreaker.StateOpen},
		&fakeBreaker{name: "storage", state: gobreaker.StateClosed},
	)

	req := httptest.NewRequest(http.MethodGet, "/health/upstreams", nil)
	rr := httptest.NewRecorder()

	handler.Health(rr, req)

	// An open breaker degrades generation but the API stays up
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}

	var response UpstreamHealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != "degraded" {
		t.Errorf("status = %q, want %q", response.Status, "degraded")
	}
	if !response.Upstreams["synthesis"].Open {
		t.Error("synthesis should be reported open")
	}
	if response.Upstreams["storage"].Open {
		t.Error("storage should not be reported open")
	}
}

func TestUpstreamHealthHandler_Ready_AllClosed(t *testing.T) {
	handler := NewUpstreamHealthHandler(
		&fakeBreaker{name: "synthesis", state: gobreaker.StateClosed},
	)

	req := httptest.NewRequest(http.MethodGet, "/ready/upstreams", nil)
	rr := httptest.NewRecorder()

	handler.Ready(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}

	var response UpstreamHealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Ready == nil || !*response.Ready {
		t.Error("ready should be true")
	}
}

func TestUpstreamHealthHandler_Ready_OpenBreaker(t *testing.T) {
	handler := NewUpstreamHealthHandler(
		&fakeBreaker{name: "synthesis", state: gobreaker.StateOpen},
	)

	req := httptest.NewRequest(http.MethodGet, "/ready/upstreams", nil)
	rr := httptest.NewRecorder()

	handler.Ready(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}

	var response UpstreamHealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Ready == nil || *response.Ready {
		t.Error("ready should be false")
	}
}

func TestUpstreamHealthHandler_Ready_HalfOpenCountsAsReady(t *testing.T) {
	handler := NewUpstreamHealthHandler(
		&fakeBreaker{name: "synthesis", state: gobreaker.StateHalfOpen},
	)

	req := httptest.NewRequest(http.MethodGet, "/ready/upstreams", nil)
	rr := httptest.NewRecorder()

	handler.Ready(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestUpstreamHealthHandler_NoUpstreams(t *testing.T) {
	handler := NewUpstreamHealthHandler()

	req := httptest.NewRequest(http.MethodGet, "/health/upstreams", nil)
	rr := httptest.NewRecorder()

	handler.Health(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}

	var response UpstreamHealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "healthy" {
		t.Errorf("status = %q, want %q", response.Status, "healthy")
	}
}
