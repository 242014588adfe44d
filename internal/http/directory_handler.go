package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/carebook/internal/application"
)

type directoryService interface {
	RegisterUser(ctx context.Context, params application.RegisterUserParams) (application.User, error)
	GetUser(ctx context.Context, handle string) (application.User, error)
	ElevateToAdmin(ctx context.Context, handle, secret string) (application.User, error)
	ResolvePerson(ctx context.Context, principal application.Principal) (application.Person, error)
	ListManagedPersons(ctx context.Context, principal application.Principal) ([]application.Person, error)
	RegisterPerson(ctx context.Context, params application.RegisterPersonParams) (application.Person, error)
}

// DirectoryHandler serves user registration and the person directory.
type DirectoryHandler struct {
	service   directoryService
	responder responder
	logger    *slog.Logger
}

func NewDirectoryHandler(service directoryService, logger *slog.Logger) *DirectoryHandler {
	base := defaultLogger(logger)
	return &DirectoryHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *DirectoryHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "DirectoryHandler", operation, attrs...)
}

// Register creates or overwrites the caller's registration.
func (h *DirectoryHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	handle, _ := HandleFromContext(r.Context())
	logger := h.log(r.Context(), "Register", "handle", handle)

	var req registerUserRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode registration", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	user, err := h.service.RegisterUser(r.Context(), application.RegisterUserParams{
		Handle:        handle,
		Role:          application.Role(req.Role),
		DisplayName:   req.DisplayName,
		Phone:         req.Phone,
		NotifyAddress: req.NotifyAddress,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

// Me returns the caller's registration.
func (h *DirectoryHandler) Me(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	user, err := h.service.GetUser(r.Context(), principal.Handle)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

// Elevate grants the caller the admin role when the secret matches.
func (h *DirectoryHandler) Elevate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	var req elevateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Elevate", "handle", principal.Handle).WarnContext(r.Context(), "failed to decode elevation", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	user, err := h.service.ElevateToAdmin(r.Context(), principal.Handle, req.Secret)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

// SelfPerson resolves the individual caller's own person record.
func (h *DirectoryHandler) SelfPerson(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	person, err := h.service.ResolvePerson(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, personResponse{Person: toPersonDTO(person)})
}

// ListPersons returns the caregiver's dependents.
func (h *DirectoryHandler) ListPersons(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	persons, err := h.service.ListManagedPersons(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]personDTO, 0, len(persons))
	for _, p := range persons {
		out = append(out, toPersonDTO(p))
	}
	h.log(r.Context(), "ListPersons", "handle", principal.Handle).With("result_count", len(out)).DebugContext(r.Context(), "persons listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listPersonsResponse{Persons: out})
}

// RegisterPerson adds a dependent for the caregiver.
func (h *DirectoryHandler) RegisterPerson(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	var req registerPersonRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "RegisterPerson", "handle", principal.Handle).WarnContext(r.Context(), "failed to decode person", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	person, err := h.service.RegisterPerson(r.Context(), application.RegisterPersonParams{
		Principal: principal,
		Name:      req.Name,
		NRICLast4: req.NRICLast4,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, personResponse{Person: toPersonDTO(person)})
}

type registerUserRequest struct {
	Role          string  `json:"role"`
	DisplayName   string  `json:"display_name"`
	Phone         string  `json:"phone"`
	NotifyAddress *string `json:"notify_address"`
}

type elevateRequest struct {
	Secret string `json:"secret"`
}

type registerPersonRequest struct {
	Name      string  `json:"name"`
	NRICLast4 *string `json:"nric_last4"`
}

type userResponse struct {
	User userDTO `json:"user"`
}

type personResponse struct {
	Person personDTO `json:"person"`
}

type listPersonsResponse struct {
	Persons []personDTO `json:"persons"`
}
