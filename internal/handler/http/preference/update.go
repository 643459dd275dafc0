// Package preference provides HTTP handlers for preference vector updates.
// A preference update triggers a decision cycle that enqueues reuse or
// generation work for the user.
package preference

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/handler/http/pathutil"
	"infinite-feed/internal/handler/http/requestid"
	"infinite-feed/internal/handler/http/respond"
	"infinite-feed/internal/observability/logging"
	decisionUC "infinite-feed/internal/usecase/decision"
)

// retryAfterSeconds is returned with deferred decisions so clients back off
// instead of hammering the similarity search backend.
const retryAfterSeconds = 30

type UpdateHandler struct {
	Svc    decisionUC.Service
	Logger *slog.Logger
}

// updateResponse acknowledges an accepted preference update.
type updateResponse struct {
	Enqueued int `json:"enqueued"`
}

// ServeHTTP 嗜好ベクトル更新
// @Summary      嗜好ベクトル更新
// @Description  ユーザーの嗜好ベクトルを保存し、判定サイクルを実行してキューにアイテムを投入します。
// @Tags         preference
// @Accept       json
// @Produce      json
// @Param        id         path  string  true  "ユーザーID"
// @Param        preference body  object  true  "嗜好ベクトル"
// @Success      202 {object} updateResponse "受理されたアイテム数"
// @Failure      400 {string} string "Bad request - invalid user ID or embedding"
// @Failure      503 {string} string "Similarity search unavailable - retry later" headers(Retry-After=integer)
// @Router       /users/{id}/preference [post]
func (h UpdateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	reqID := requestid.FromContext(ctx)
	logger := logging.WithRequestID(ctx, h.Logger)

	userID, err := pathutil.ExtractKey(r.URL.Path, "/users/", "/preference")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Embedding) == 0 {
		respond.SafeError(w, http.StatusBadRequest,
			errors.New("embedding is required"))
		return
	}
	if len(req.Embedding) != entity.PreferenceDimension {
		respond.SafeError(w, http.StatusBadRequest,
			fmt.Errorf("embedding must be %d dimensions", entity.PreferenceDimension))
		return
	}

	items, err := h.Svc.ProcessPreferenceUpdate(ctx, userID, req.Embedding)
	if err != nil {
		if errors.Is(err, decisionUC.ErrDecisionDeferred) {
			logger.Warn("Decision deferred",
				"user_id", userID,
				"request_id", reqID)
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSeconds))
			respond.JSON(w, http.StatusServiceUnavailable,
				map[string]string{"error": "decision deferred, retry later"})
			return
		}
		code := http.StatusInternalServerError
		if errors.Is(err, entity.ErrEmptyUserID) || errors.Is(err, entity.ErrPreferenceDimension) {
			code = http.StatusBadRequest
		}
		if code == http.StatusInternalServerError {
			logger.Error("Failed to process preference update",
				"error", err.Error(),
				"user_id", userID,
				"request_id", reqID)
		}
		respond.SafeError(w, code, err)
		return
	}

	logger.Info("Preference update accepted",
		"user_id", userID,
		"enqueued", len(items),
		"duration_ms", time.Since(startTime).Milliseconds(),
		"request_id", reqID)

	respond.JSON(w, http.StatusAccepted, updateResponse{Enqueued: len(items)})
}
