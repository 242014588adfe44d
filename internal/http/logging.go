package http

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5/middleware"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger prefers the request-scoped logger installed by RequestLogger
// and falls back to the handler's own logger, tagging the request id when the
// fallback is used.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	pairs := []any{"handler", handlerName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}

	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
		if id := middleware.GetReqID(ctx); id != "" {
			pairs = append(pairs, "request_id", id)
		}
	}
	return logger.With(append(pairs, attrs...)...)
}
