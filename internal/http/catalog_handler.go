package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/carebook/internal/application"
	"github.com/example/carebook/internal/timecodec"
)

type catalogService interface {
	CreateActivity(ctx context.Context, params application.CreateActivityParams) (application.Activity, error)
	GetActivity(ctx context.Context, id string) (application.Activity, error)
	ListActivities(ctx context.Context) ([]application.ActivitySummary, error)
	Occupancy(ctx context.Context, id string) (int, error)
}

type rosterService interface {
	AttendeeRoster(ctx context.Context, principal application.Principal, activityID string) ([]application.RosterEntry, error)
}

// CatalogHandler serves the activity catalog and attendee rosters.
type CatalogHandler struct {
	catalog   catalogService
	roster    rosterService
	codec     *timecodec.Codec
	responder responder
	logger    *slog.Logger
}

func NewCatalogHandler(catalog catalogService, roster rosterService, codec *timecodec.Codec, logger *slog.Logger) *CatalogHandler {
	base := defaultLogger(logger)
	if codec == nil {
		codec = timecodec.New(nil)
	}
	return &CatalogHandler{
		catalog:   catalog,
		roster:    roster,
		codec:     codec,
		responder: newResponder(base),
		logger:    base,
	}
}

func (h *CatalogHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CatalogHandler", operation, attrs...)
}

// List returns every activity soonest first with its occupancy.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.catalog == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	summaries, err := h.catalog.ListActivities(r.Context())
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "activity list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]activityDTO, 0, len(summaries))
	for _, s := range summaries {
		occupancy := s.Occupancy
		out = append(out, toActivityDTO(h.codec, s.Activity, &occupancy))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listActivitiesResponse{Activities: out})
}

// Create adds an activity. Only administrators may create.
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.catalog == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	var req activityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "handle", principal.Handle).WarnContext(r.Context(), "failed to decode activity", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	input, vErr := req.toInput(h.codec)
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	activity, err := h.catalog.CreateActivity(r.Context(), application.CreateActivityParams{Principal: principal, Input: input})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	zero := 0
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, activityResponse{Activity: toActivityDTO(h.codec, activity, &zero)})
}

// Get returns one activity with its live occupancy.
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.catalog == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := chi.URLParam(r, "activityID")
	activity, err := h.catalog.GetActivity(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	occupancy, err := h.catalog.Occupancy(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, activityResponse{Activity: toActivityDTO(h.codec, activity, &occupancy)})
}

// Roster returns the attendee list for organizers.
func (h *CatalogHandler) Roster(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.roster == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	id := chi.URLParam(r, "activityID")
	entries, err := h.roster.AttendeeRoster(r.Context(), principal, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]rosterEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toRosterEntryDTO(e))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, rosterResponse{ActivityID: id, Attendees: out})
}

type activityRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Capacity    int    `json:"capacity"`
}

func (req activityRequest) toInput(codec *timecodec.Codec) (application.ActivityInput, *application.ValidationError) {
	vErr := &application.ValidationError{}
	start, ok := parseInstant(codec, req.Start)
	if !ok {
		vErr.FieldErrors = map[string]string{"start": "start must be RFC 3339 or " + timecodec.Layout}
	}
	end, ok := parseInstant(codec, req.End)
	if !ok {
		if vErr.FieldErrors == nil {
			vErr.FieldErrors = map[string]string{}
		}
		vErr.FieldErrors["end"] = "end must be RFC 3339 or " + timecodec.Layout
	}
	return application.ActivityInput{
		Title:       req.Title,
		Description: req.Description,
		Start:       start,
		End:         end,
		Capacity:    req.Capacity,
	}, vErr
}

type activityResponse struct {
	Activity activityDTO `json:"activity"`
}

type listActivitiesResponse struct {
	Activities []activityDTO `json:"activities"`
}

type rosterResponse struct {
	ActivityID string           `json:"activity_id"`
	Attendees  []rosterEntryDTO `json:"attendees"`
}
