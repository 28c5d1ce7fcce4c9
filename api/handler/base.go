package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/flowboard/backend/api/transport"
	"github.com/flowboard/backend/domain"
	"github.com/flowboard/backend/pkg/httpcontext"
)

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	return context.WithCancel(context.Background())
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(payload)
	ctx.SetBody(body)
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	h.respondJSON(ctx, status, transport.NewSuccess(data, nil))
}

// respondError maps a domain error onto the envelope. Conflict errors
// carry the descriptor in the error payload so clients can open the
// resolution flow without a second round trip.
func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, err error) {
	status, code := mapError(err)
	if details := domain.DetailsOf(err); details != nil {
		h.respondJSON(ctx, status, transport.NewError(code, err.Error(), details))
		return
	}
	h.respondJSON(ctx, status, transport.NewError(code, err.Error(), nil))
}

func (h baseHandler) respondInvalid(ctx *fasthttp.RequestCtx, message string) {
	h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), message, nil))
}

// principal is attached by the auth middleware on protected routes.
func (h baseHandler) principal(ctx *fasthttp.RequestCtx) (domain.Principal, bool) {
	p, ok := ctx.UserValue("principal").(*domain.Principal)
	if !ok || p == nil {
		h.respondJSON(ctx, http.StatusUnauthorized, transport.NewError(string(domain.ErrCodeUnauthorized), "missing principal", nil))
		return domain.Principal{}, false
	}
	return *p, true
}

func (h baseHandler) pathID(ctx *fasthttp.RequestCtx, name string) (string, bool) {
	id, _ := ctx.UserValue(name).(string)
	if id == "" {
		h.respondInvalid(ctx, "missing "+name)
		return "", false
	}
	return id, true
}

func mapError(err error) (int, string) {
	switch {
	case domain.IsDomainError(err, domain.ErrCodeUnauthorized):
		return http.StatusUnauthorized, string(domain.ErrCodeUnauthorized)
	case domain.IsDomainError(err, domain.ErrCodeForbidden):
		return http.StatusForbidden, string(domain.ErrCodeForbidden)
	case domain.IsDomainError(err, domain.ErrCodeInvalid):
		return http.StatusBadRequest, string(domain.ErrCodeInvalid)
	case domain.IsDomainError(err, domain.ErrCodeInvalidAssignee):
		return http.StatusBadRequest, string(domain.ErrCodeInvalidAssignee)
	case domain.IsDomainError(err, domain.ErrCodeNotFound):
		return http.StatusNotFound, string(domain.ErrCodeNotFound)
	case domain.IsDomainError(err, domain.ErrCodeUnknownConflict):
		return http.StatusNotFound, string(domain.ErrCodeUnknownConflict)
	case domain.IsDomainError(err, domain.ErrCodeConflict):
		return http.StatusConflict, string(domain.ErrCodeConflict)
	case domain.IsDomainError(err, domain.ErrCodeDuplicateTitle):
		return http.StatusConflict, string(domain.ErrCodeDuplicateTitle)
	case domain.IsDomainError(err, domain.ErrCodeReservedTitle):
		return http.StatusConflict, string(domain.ErrCodeReservedTitle)
	case domain.IsDomainError(err, domain.ErrCodeNoEligibleUser):
		return http.StatusConflict, string(domain.ErrCodeNoEligibleUser)
	default:
		return http.StatusInternalServerError, string(domain.ErrCodeInternal)
	}
}
