package queue

import (
	"log/slog"
	"net/http"
	"time"

	"infinite-feed/internal/handler/http/requestid"
	"infinite-feed/internal/handler/http/respond"
	"infinite-feed/internal/observability/logging"
	"infinite-feed/internal/repository"
)

type WorkersHandler struct {
	Repo       repository.WorkerRepository
	StaleAfter time.Duration
	Logger     *slog.Logger
}

// ServeHTTP ワーカー一覧取得
// @Summary      ワーカー一覧取得
// @Description  ハートビートが有効なワーカーの一覧を取得します。
// @Tags         workers
// @Produce      json
// @Success      200 {array} WorkerDTO "稼働中のワーカー一覧"
// @Failure      500 {string} string "サーバーエラー"
// @Router       /admin/workers [get]
func (h WorkersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.WithRequestID(ctx, h.Logger)

	workers, err := h.Repo.ListActive(ctx, h.StaleAfter)
	if err != nil {
		logger.Error("Failed to list active workers",
			"error", err.Error(),
			"request_id", requestid.FromContext(ctx))
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	dtos := make([]WorkerDTO, 0, len(workers))
	for _, worker := range workers {
		dtos = append(dtos, WorkerDTO{
			WorkerID:      worker.WorkerID,
			Hostname:      worker.Hostname,
			PID:           worker.PID,
			StartedAt:     worker.StartedAt,
			LastHeartbeat: worker.LastHeartbeat,
			ActiveTasks:   worker.ActiveTasks,
		})
	}

	respond.JSON(w, http.StatusOK, dtos)
}
