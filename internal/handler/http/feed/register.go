package feed

import (
	"log/slog"
	"net/http"

	feedUC "infinite-feed/internal/usecase/feed"
)

// Register registers the feed read handler with the given mux.
// The route matches any /users/{id}/feed path; the handler rejects
// paths whose suffix does not match.
func Register(mux *http.ServeMux, svc feedUC.Service, logger *slog.Logger) {
	mux.Handle("GET    /users/", GetHandler{
		Svc:    svc,
		Logger: logger,
	})
}
