package preference

import (
	"log/slog"
	"net/http"

	decisionUC "infinite-feed/internal/usecase/decision"
)

// Register registers the preference update handler with the given mux.
func Register(mux *http.ServeMux, svc decisionUC.Service, logger *slog.Logger) {
	mux.Handle("POST   /users/", UpdateHandler{
		Svc:    svc,
		Logger: logger,
	})
}
