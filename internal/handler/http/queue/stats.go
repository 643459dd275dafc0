package queue

import (
	"log/slog"
	"net/http"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/handler/http/requestid"
	"infinite-feed/internal/handler/http/respond"
	"infinite-feed/internal/observability/logging"
	"infinite-feed/internal/repository"
)

type StatsHandler struct {
	Repo   repository.QueueRepository
	Logger *slog.Logger
}

// ServeHTTP キュー統計取得
// @Summary      キュー統計取得
// @Description  ステータスごとのキュー項目数を取得します。
// @Tags         queue
// @Produce      json
// @Success      200 {object} StatsDTO "ステータス別の件数"
// @Failure      500 {string} string "サーバーエラー"
// @Router       /admin/queue/stats [get]
func (h StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.WithRequestID(ctx, h.Logger)

	counts, err := h.Repo.CountByStatus(ctx)
	if err != nil {
		logger.Error("Failed to count queue items",
			"error", err.Error(),
			"request_id", requestid.FromContext(ctx))
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	stats := StatsDTO{
		Pending:    counts[entity.StatusPending],
		InProgress: counts[entity.StatusInProgress],
		Ready:      counts[entity.StatusReady],
		Failed:     counts[entity.StatusFailed],
	}
	stats.Total = stats.Pending + stats.InProgress + stats.Ready + stats.Failed

	respond.JSON(w, http.StatusOK, stats)
}
