package httpserver

import (
	"context"

	"github.com/and161185/makerhub/internal/service"
)

type ctxKey string

const (
	principalKey ctxKey = "mh.principal"
	requestIDKey ctxKey = "mh.requestID"
)

// WithPrincipal stores the authenticated caller in ctx.
func WithPrincipal(ctx context.Context, p service.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromCtx returns the caller, or nil for anonymous requests.
func PrincipalFromCtx(ctx context.Context) *service.Principal {
	p, ok := ctx.Value(principalKey).(service.Principal)
	if !ok {
		return nil
	}
	return &p
}

// RequestIDFromCtx returns the request id set by the RequestID middleware.
func RequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
