package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/flowboard/backend/api/transport"
	"github.com/flowboard/backend/domain"
	"github.com/flowboard/backend/pkg/httpcontext"
	activityUC "github.com/flowboard/backend/usecase/activity"
)

type ActivityHandler struct {
	baseHandler
	recorder *activityUC.Recorder
}

func NewActivityHandler(recorder *activityUC.Recorder, adapter *httpcontext.Adapter, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		baseHandler: newBaseHandler(adapter, logger),
		recorder:    recorder,
	}
}

// @Summary Recent activity feed, newest first
// @Tags activity
// @Router /api/v1/activities [get]
func (h *ActivityHandler) Recent(ctx *fasthttp.RequestCtx) {
	if _, ok := h.principal(ctx); !ok {
		return
	}

	limit := parseInt(string(ctx.QueryArgs().Peek("limit")), 0)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	activities, err := h.recorder.Recent(stdCtx, limit)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, activities)
}

// @Summary Prune old low-severity activity (admin only)
// @Tags activity
// @Router /api/v1/activities/prune [post]
func (h *ActivityHandler) Prune(ctx *fasthttp.RequestCtx) {
	principal, ok := h.principal(ctx)
	if !ok {
		return
	}
	if !principal.IsAdmin() {
		h.respondError(ctx, domain.ErrForbidden)
		return
	}

	var req transport.ActivityPruneRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.OlderThanDays <= 0 {
		h.respondInvalid(ctx, "older_than_days must be positive")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	olderThan := time.Now().AddDate(0, 0, -req.OlderThanDays)
	pruned, err := h.recorder.Prune(stdCtx, olderThan)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]int64{"pruned": pruned})
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}
