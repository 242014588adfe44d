package http

import (
	"context"
	"log/slog"

	"github.com/example/carebook/internal/application"
	"github.com/example/carebook/internal/logging"
)

type contextKey string

const (
	principalContextKey contextKey = "principal"
	handleContextKey    contextKey = "handle"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithHandle stores the case-folded caller handle.
func ContextWithHandle(ctx context.Context, handle string) context.Context {
	return context.WithValue(ctx, handleContextKey, handle)
}

// HandleFromContext returns the caller handle set by IdentifyCaller.
func HandleFromContext(ctx context.Context) (string, bool) {
	handle, ok := ctx.Value(handleContextKey).(string)
	return handle, ok && handle != ""
}

// LoggerFromContext returns the request scoped logger, if any.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
