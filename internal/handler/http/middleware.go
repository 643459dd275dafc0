package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"infinite-feed/internal/handler/http/requestid"
	"infinite-feed/internal/handler/http/respond"
	"infinite-feed/internal/handler/http/responsewriter"

	"go.opentelemetry.io/otel/trace"
)

// Logging returns middleware that logs each request with its status, size,
// duration, and the request/trace ids so feed and queue calls can be
// correlated with traces.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := responsewriter.Wrap(w)
			next.ServeHTTP(wrapped, r)
			logRequest(logger, r, wrapped, time.Since(start))
		})
	}
}

func logRequest(logger *slog.Logger, r *http.Request, wrapped *responsewriter.ResponseWriter, duration time.Duration) {
	span := trace.SpanFromContext(r.Context())

	logger.Info("request completed",
		slog.String("request_id", requestid.FromContext(r.Context())),
		slog.String("trace_id", span.SpanContext().TraceID().String()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("query", r.URL.RawQuery),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("user_agent", r.Header.Get("User-Agent")),
		slog.Int("status", wrapped.StatusCode()),
		slog.Int("bytes", wrapped.BytesWritten()),
		slog.Duration("duration", duration),
		slog.String("duration_ms", fmt.Sprintf("%.2f", duration.Seconds()*1000)),
	)
}

// Recover returns middleware that catches handler panics, logs the stack,
// and answers 500 without leaking internals.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				respond.SafeError(w, http.StatusInternalServerError, fmt.Errorf("internal error"))

				logger.Error("panic recovered",
					slog.String("request_id", requestid.FromContext(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
				)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// LimitRequestBody caps request body size. Preference vectors are the
// largest payload this API accepts and they fit well under a megabyte.
func LimitRequestBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
