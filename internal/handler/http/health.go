// Package http provides HTTP handlers and middleware for the feed API.
// It includes health check endpoints, metrics collection, and the
// middleware stack shared by the feed, preference, and queue handlers.
package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"infinite-feed/pkg/ratelimit"
)

// HealthResponse is the health endpoint's JSON body.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus reports one subsystem's health.
type CheckStatus struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RateLimiterHealthInfo is the per-limiter block in the health payload.
type RateLimiterHealthInfo struct {
	ActiveKeys       int    `json:"active_keys"`
	MemoryBytes      int64  `json:"memory_bytes"`
	CircuitBreaker   string `json:"circuit_breaker"`
	DegradationLevel string `json:"degradation_level"`
}

// CSPHealthInfo reports the CSP middleware configuration.
type CSPHealthInfo struct {
	Enabled    bool `json:"enabled"`
	ReportOnly bool `json:"report_only"`
}

// DegradationManager exposes the current degradation level to the health
// check without pulling in the full limiter degradation machinery.
type DegradationManager interface {
	GetLevel() DegradationLevel
}

// DegradationLevel is the printable degradation level.
type DegradationLevel interface {
	String() string
}

// HealthHandler serves the health endpoint. Database connectivity
// decides healthy versus unhealthy; limiter and CSP blocks are
// informational so an open breaker or a degraded limiter never takes
// the service out of rotation.
type HealthHandler struct {
	DB      *sql.DB
	Version string

	IPRateLimiterStore     ratelimit.RateLimitStore
	UserRateLimiterStore   ratelimit.RateLimitStore
	IPCircuitBreaker       *ratelimit.CircuitBreaker
	UserCircuitBreaker     *ratelimit.CircuitBreaker
	IPDegradationManager   DegradationManager
	UserDegradationManager DegradationManager
	RateLimiterEnabled     bool

	CSPEnabled    bool
	CSPReportOnly bool
}

// ServeHTTP runs the checks and answers 200 when healthy, 503 when the
// database check fails.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckStatus)
	allHealthy := true

	if h.DB != nil {
		dbCheck := h.checkDatabase(ctx)
		checks["database"] = dbCheck
		if dbCheck.Status == "unhealthy" {
			allHealthy = false
		}
	} else {
		checks["database"] = CheckStatus{
			Status:  "unhealthy",
			Message: "not configured",
		}
		allHealthy = false
	}

	if h.RateLimiterEnabled {
		checks["rate_limiter"] = h.checkRateLimiter(ctx)
	}

	if h.CSPEnabled {
		checks["csp"] = h.checkCSP()
	}

	// "degraded" checks stay in the 200 path; the service is still
	// serving feeds, just with reduced headroom.
	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode health response", slog.Any("error", err))
	}
}

// checkDatabase pings the queue database and reports connection pool
// statistics. Utilization at or above 80% degrades the check.
func (h *HealthHandler) checkDatabase(ctx context.Context) CheckStatus {
	if err := h.DB.PingContext(ctx); err != nil {
		return CheckStatus{
			Status:  "unhealthy",
			Message: err.Error(),
		}
	}

	stats := h.DB.Stats()
	details := map[string]interface{}{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_idle_time_closed": stats.MaxIdleTimeClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}

	// MaxOpenConnections of zero means unlimited; utilization is
	// meaningless then.
	if stats.MaxOpenConnections == 0 {
		return CheckStatus{
			Status:  "degraded",
			Message: "connection pool max connections not configured",
			Details: details,
		}
	}

	utilizationPercent := float64(stats.InUse) / float64(stats.MaxOpenConnections) * 100
	details["utilization_percent"] = utilizationPercent

	if utilizationPercent >= 80.0 {
		return CheckStatus{
			Status:  "degraded",
			Message: "connection pool utilization above 80%",
			Details: details,
		}
	}

	return CheckStatus{
		Status:  "healthy",
		Details: details,
	}
}

// checkRateLimiter reports each limiter's key count, memory footprint,
// breaker state, and degradation level. The check is always healthy: an
// open breaker means fail-open and degradation means shed load, both of
// which keep requests flowing.
func (h *HealthHandler) checkRateLimiter(ctx context.Context) CheckStatus {
	details := make(map[string]interface{})

	if h.IPRateLimiterStore != nil {
		details["ip"] = h.limiterInfo(ctx, h.IPRateLimiterStore, h.IPCircuitBreaker, h.IPDegradationManager)
	}
	if h.UserRateLimiterStore != nil {
		details["user"] = h.limiterInfo(ctx, h.UserRateLimiterStore, h.UserCircuitBreaker, h.UserDegradationManager)
	}

	return CheckStatus{
		Status:  "healthy",
		Details: details,
	}
}

func (h *HealthHandler) limiterInfo(
	ctx context.Context,
	store ratelimit.RateLimitStore,
	breaker *ratelimit.CircuitBreaker,
	degradation DegradationManager,
) RateLimiterHealthInfo {
	info := RateLimiterHealthInfo{
		CircuitBreaker:   "not_configured",
		DegradationLevel: "not_configured",
	}

	if keyCount, err := store.KeyCount(ctx); err == nil {
		info.ActiveKeys = keyCount
	}
	if memUsage, err := store.MemoryUsage(ctx); err == nil {
		info.MemoryBytes = memUsage
	}
	if breaker != nil {
		info.CircuitBreaker = breaker.State().String()
	}
	if degradation != nil {
		info.DegradationLevel = degradation.GetLevel().String()
	}

	return info
}

// checkCSP reports the CSP middleware configuration.
func (h *HealthHandler) checkCSP() CheckStatus {
	return CheckStatus{
		Status: "healthy",
		Details: map[string]interface{}{
			"config": CSPHealthInfo{
				Enabled:    h.CSPEnabled,
				ReportOnly: h.CSPReportOnly,
			},
		},
	}
}

// ReadyHandler answers Kubernetes readiness probes. Ready means the
// queue database accepts connections.
type ReadyHandler struct {
	DB *sql.DB
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.DB == nil {
		http.Error(w, "database not configured", http.StatusServiceUnavailable)
		return
	}

	if err := h.DB.PingContext(ctx); err != nil {
		http.Error(w, "database not ready: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ready")); err != nil {
		slog.Error("failed to write ready response", slog.Any("error", err))
	}
}

// LiveHandler answers Kubernetes liveness probes; responding at all is
// the check.
type LiveHandler struct{}

func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("alive")); err != nil {
		slog.Error("failed to write live response", slog.Any("error", err))
	}
}
