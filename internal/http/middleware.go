package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/carebook/internal/application"
	"github.com/example/carebook/internal/logging"
)

// HandleHeader carries the chat handle of the acting user.
const HandleHeader = "X-Carebook-Handle"

// UserLookup resolves a registered user by handle.
type UserLookup interface {
	GetUser(ctx context.Context, handle string) (application.User, error)
}

// RequireAPIToken rejects requests whose bearer token does not match token.
func RequireAPIToken(token string, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)
	expected := []byte(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := bearerToken(r)
			if presented == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, "MISSING_TOKEN", errMissingToken)
				return
			}
			if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, "INVALID_TOKEN", errInvalidToken)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentifyCaller reads the handle header into the request context.
func IdentifyCaller(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handle := application.NormalizeHandle(r.Header.Get(HandleHeader))
			if handle == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, "MISSING_HANDLE", errMissingHandle)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithHandle(r.Context(), handle)))
		})
	}
}

// RequirePrincipal resolves the caller handle to a registered principal.
// Unknown handles are rejected with 401.
func RequirePrincipal(users UserLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handle, ok := HandleFromContext(r.Context())
			if !ok {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, "MISSING_HANDLE", errMissingHandle)
				return
			}

			user, err := users.GetUser(r.Context(), handle)
			if err != nil {
				if errors.Is(err, application.ErrNotFound) {
					responder.writeError(r.Context(), w, http.StatusUnauthorized, "UNKNOWN_USER", errUnknownUser)
					return
				}
				responder.handleServiceError(r.Context(), w, err)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), user.Principal())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger attaches a request scoped logger and logs request completion.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With(
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.InfoContext(ctx, "request completed",
				"route", routeLabel(r),
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

// routeLabel returns the matched chi pattern, which chi fills in while
// routing. Unmatched requests are not logged by path.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
