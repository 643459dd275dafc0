package feed

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/handler/http/pathutil"
	"infinite-feed/internal/handler/http/requestid"
	"infinite-feed/internal/handler/http/respond"
	"infinite-feed/internal/observability/logging"
	feedUC "infinite-feed/internal/usecase/feed"
)

type GetHandler struct {
	Svc    feedUC.Service
	Logger *slog.Logger
}

// ServeHTTP フィード取得
// @Summary      フィード取得（カーソルページネーション対応）
// @Description  指定されたユーザーのランク付きフィードを取得します。カーソルを指定すると続きのページを取得できます。
// @Tags         feed
// @Produce      json
// @Param        id     path     string  true   "ユーザーID"
// @Param        cursor query    string  false  "前ページのnext_cursor"
// @Param        limit  query    int     false  "1ページあたりの件数" default(20) minimum(1) maximum(100)
// @Success      200 {object} Response "スコア降順のフィード"
// @Failure      400 {string} string "Bad request - invalid user ID, cursor, or limit"
// @Failure      500 {string} string "サーバーエラー"
// @Router       /users/{id}/feed [get]
func (h GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	reqID := requestid.FromContext(ctx)
	logger := logging.WithRequestID(ctx, h.Logger)

	userID, err := pathutil.ExtractKey(r.URL.Path, "/users/", "/feed")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			respond.SafeError(w, http.StatusBadRequest,
				errors.New("limit must be a positive integer"))
			return
		}
	}

	page, err := h.Svc.GetFeed(ctx, userID, cursor, limit)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, feedUC.ErrInvalidCursor) || errors.Is(err, entity.ErrEmptyUserID) {
			code = http.StatusBadRequest
		}
		if code == http.StatusInternalServerError {
			logger.Error("Failed to read feed",
				"error", err.Error(),
				"user_id", userID,
				"request_id", reqID)
		}
		respond.SafeError(w, code, err)
		return
	}

	dtos := make([]DTO, 0, len(page.Entries))
	for _, entry := range page.Entries {
		dtos = append(dtos, DTO{
			VideoID:         entry.VideoID,
			SourceURL:       entry.SourceURL,
			Prompt:          entry.Prompt,
			DurationSeconds: entry.DurationSeconds,
			Score:           entry.Score,
			PublishedAt:     entry.PublishedAt,
		})
	}

	logger.Info("Feed page served",
		"user_id", userID,
		"returned_count", len(dtos),
		"has_next", page.NextCursor != "",
		"duration_ms", time.Since(startTime).Milliseconds(),
		"request_id", reqID)

	respond.JSON(w, http.StatusOK, Response{
		Entries:    dtos,
		NextCursor: page.NextCursor,
	})
}
