package queue

import (
	"log/slog"
	"net/http"

	"infinite-feed/internal/common/pagination"
	"infinite-feed/internal/handler/http/pathutil"
	"infinite-feed/internal/handler/http/requestid"
	"infinite-feed/internal/handler/http/respond"
	"infinite-feed/internal/observability/logging"
	"infinite-feed/internal/repository"
)

type ListHandler struct {
	Repo       repository.QueueRepository
	Pagination pagination.Config
	Logger     *slog.Logger
}

// ServeHTTP ユーザー別キュー項目取得
// @Summary      ユーザー別キュー項目取得
// @Description  指定されたユーザーのキュー項目を新しい順にページ単位で取得します。
// @Tags         queue
// @Produce      json
// @Param        id path string true "ユーザーID"
// @Param        page query int false "ページ番号" default(1)
// @Param        limit query int false "1ページあたりの件数" default(20)
// @Success      200 {object} pagination.Response[ItemDTO] "キュー項目一覧"
// @Failure      400 {string} string "Bad request - invalid user ID or pagination"
// @Failure      500 {string} string "サーバーエラー"
// @Router       /admin/users/{id}/queue [get]
func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.WithRequestID(ctx, h.Logger)

	userID, err := pathutil.ExtractKey(r.URL.Path, "/admin/users/", "/queue")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	params, err := pagination.ParseQueryParams(r, h.Pagination)
	if err != nil {
		pagination.RecordError("validation")
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	items, err := h.Repo.ListByUser(ctx, userID)
	if err != nil {
		pagination.RecordError("database")
		logger.Error("Failed to list queue items",
			"error", err.Error(),
			"user_id", userID,
			"request_id", requestid.FromContext(ctx))
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	total := int64(len(items))
	offset := pagination.CalculateOffset(params.Page, params.Limit)
	if offset > len(items) {
		offset = len(items)
	}
	end := offset + params.Limit
	if end > len(items) {
		end = len(items)
	}
	page := items[offset:end]

	dtos := make([]ItemDTO, 0, len(page))
	for _, item := range page {
		dtos = append(dtos, ItemDTO{
			ID:            item.ID,
			UserID:        item.UserID,
			Kind:          string(item.Kind),
			Status:        string(item.Status),
			Priority:      item.Priority,
			VideoID:       item.VideoID,
			Similarity:    item.Similarity,
			Prompt:        item.Prompt,
			Attempts:      item.Attempts,
			ClaimedBy:     item.ClaimedBy,
			ClaimedAt:     item.ClaimedAt,
			ResultVideoID: item.ResultVideoID,
			LastError:     item.LastError,
			CreatedAt:     item.CreatedAt,
		})
	}

	strategy := pagination.OffsetStrategy{}
	metadata := strategy.BuildMetadata(params, total, end < len(items))
	pagination.RecordRequest(http.StatusOK, params.Page)

	respond.JSON(w, http.StatusOK, pagination.NewResponse(dtos, metadata))
}
