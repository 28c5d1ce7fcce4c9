package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/flowboard/backend/domain"
)

// Verifier resolves a bearer token to a principal. Revoked sessions
// and deactivated users fail verification even when the token itself
// is still within its validity window.
type Verifier interface {
	Verify(ctx context.Context, token string) (*domain.Principal, error)
}

// Auth guards protected routes. On success the principal is attached
// to the request as the "principal" user value.
func Auth(verifier Verifier, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			token := extractToken(ctx)
			if token == "" {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			verifyCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			principal, err := verifier.Verify(verifyCtx, token)
			cancel()
			if err != nil {
				logger.Warn("token verification failed", zap.Error(err))
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			ctx.SetUserValue("principal", principal)
			next(ctx)
		}
	}
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}
