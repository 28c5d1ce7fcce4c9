package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/flowboard/backend/api/transport"
	"github.com/flowboard/backend/internal/infrastructure/monitor"
	"github.com/flowboard/backend/pkg/httpcontext"
)

type HealthHandler struct {
	baseHandler
	monitor *monitor.Monitor
}

type healthReport struct {
	Timestamp time.Time      `json:"timestamp"`
	Services  healthServices `json:"services"`
}

type healthServices struct {
	PostgreSQL bool         `json:"postgresql"`
	Redis      bool         `json:"redis"`
	Outbox     outboxHealth `json:"outbox"`
}

type outboxHealth struct {
	Online bool `json:"online"`
	Size   int  `json:"size"`
}

func NewHealthHandler(mon *monitor.Monitor, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	report := healthReport{
		Timestamp: time.Now().UTC(),
		Services: healthServices{
			PostgreSQL: status.PostgreSQL,
			Redis:      status.Redis,
			Outbox: outboxHealth{
				Online: status.Outbox,
				Size:   status.OutboxSize,
			},
		},
	}

	if status.PostgreSQL && status.Redis {
		h.respondSuccess(ctx, http.StatusOK, report)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "dependencies unhealthy", report))
}
