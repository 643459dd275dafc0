package queue

import (
	"log/slog"
	"net/http"
	"time"

	"infinite-feed/internal/common/pagination"
	"infinite-feed/internal/repository"
)

// Register registers the operational queue handlers with the given mux.
func Register(mux *http.ServeMux, queueRepo repository.QueueRepository, workerRepo repository.WorkerRepository, staleAfter time.Duration, logger *slog.Logger) {
	mux.Handle("GET    /admin/queue/stats", StatsHandler{
		Repo:   queueRepo,
		Logger: logger,
	})
	mux.Handle("GET    /admin/users/", ListHandler{
		Repo:       queueRepo,
		Pagination: pagination.LoadFromEnv(),
		Logger:     logger,
	})
	mux.Handle("GET    /admin/workers", WorkersHandler{
		Repo:       workerRepo,
		StaleAfter: staleAfter,
		Logger:     logger,
	})
}
