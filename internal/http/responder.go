package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/carebook/internal/application"
)

var (
	errBadRequestBody = errors.New("request body is not valid JSON")
	errMissingToken   = errors.New("missing bearer token")
	errInvalidToken   = errors.New("invalid bearer token")
	errMissingHandle  = errors.New("missing " + HandleHeader + " header")
	errUnknownUser    = errors.New("user is not registered")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, "INTERNAL", errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "request has invalid fields",
			Errors:    vErr.FieldErrors,
		})
		return
	}

	var overlap *application.OverlapError
	if errors.As(err, &overlap) {
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "OVERLAP",
			Message:   overlap.Error(),
			Conflict: &conflictDTO{
				ActivityID: overlap.ActivityID,
				Title:      overlap.Title,
				Start:      formatInstant(overlap.Start),
				End:        formatInstant(overlap.End),
				Window:     overlap.Window,
			},
		})
		return
	}

	status, code, message := classify(err)
	if status == http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
	}
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, application.ErrUnauthorized):
		return http.StatusForbidden, "FORBIDDEN", "you are not allowed to perform this action"
	case errors.Is(err, application.ErrNotOwned):
		return http.StatusForbidden, "NOT_OWNED", "you cannot act for this person"
	case errors.Is(err, application.ErrInvalidSecret):
		return http.StatusForbidden, "INVALID_SECRET", "secret was not accepted"
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, application.ErrFull):
		return http.StatusConflict, "FULL", "activity is full"
	case errors.Is(err, application.ErrAlreadyBooked):
		return http.StatusConflict, "ALREADY_BOOKED", "already booked"
	case errors.Is(err, application.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION", "confirmation can only be answered while pending"
	case errors.Is(err, application.ErrInvalidWindow):
		return http.StatusUnprocessableEntity, "INVALID_WINDOW", "end must be after start"
	case errors.Is(err, application.ErrInvalidCapacity):
		return http.StatusUnprocessableEntity, "INVALID_CAPACITY", "capacity must be positive"
	default:
		return http.StatusInternalServerError, "INTERNAL", "internal server error"
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

type errorResponse struct {
	ErrorCode string            `json:"error_code"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflict  *conflictDTO      `json:"conflict,omitempty"`
}

type conflictDTO struct {
	ActivityID string `json:"activity_id"`
	Title      string `json:"title"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Window     string `json:"window"`
}
