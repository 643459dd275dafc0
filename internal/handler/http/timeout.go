package http

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Timeout caps how long a request may run. The handler executes in its
// own goroutine with a deadline on the request context; if the deadline
// fires first the client gets 504 and any later handler writes are
// discarded. A shared mutex ensures exactly one side writes the
// response.
func Timeout(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			r = r.WithContext(ctx)

			var mu sync.Mutex
			expired := false
			gw := &guardedWriter{ResponseWriter: w, mu: &mu, expired: &expired}

			done := make(chan struct{})
			go func() {
				next.ServeHTTP(gw, r)
				close(done)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				mu.Lock()
				expired = true
				if !gw.wrote {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					_, _ = w.Write([]byte(`{"error":"request timeout"}`))
				}
				mu.Unlock()
			}
		})
	}
}

// guardedWriter drops handler writes that arrive after the 504 has
// already been sent.
type guardedWriter struct {
	http.ResponseWriter
	mu      *sync.Mutex
	expired *bool
	wrote   bool
}

func (w *guardedWriter) WriteHeader(statusCode int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !*w.expired && !w.wrote {
		w.wrote = true
		w.ResponseWriter.WriteHeader(statusCode)
	}
}

func (w *guardedWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if *w.expired {
		return 0, http.ErrHandlerTimeout
	}
	if !w.wrote {
		w.wrote = true
		w.ResponseWriter.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}
