package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/carebook/internal/application"
	"github.com/example/carebook/internal/timecodec"
)

type ledgerService interface {
	CreateBooking(ctx context.Context, params application.BookingParams) (application.Booking, error)
	CancelBooking(ctx context.Context, params application.BookingParams) (bool, error)
	ListBookings(ctx context.Context, principal application.Principal, personID string) ([]application.BookingDetail, error)
	AttachCaregiver(ctx context.Context, params application.AttachCaregiverParams) error
	SetConfirmationStatus(ctx context.Context, params application.SetConfirmationParams) (application.Booking, error)
}

// BookingHandler serves the booking ledger.
type BookingHandler struct {
	service   ledgerService
	codec     *timecodec.Codec
	responder responder
	logger    *slog.Logger
}

func NewBookingHandler(service ledgerService, codec *timecodec.Codec, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	if codec == nil {
		codec = timecodec.New(nil)
	}
	return &BookingHandler{service: service, codec: codec, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

// Create books a person onto an activity.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "handle", principal.Handle).WarnContext(r.Context(), "failed to decode booking", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), application.BookingParams{
		Principal:  principal,
		ActivityID: req.ActivityID,
		PersonID:   req.PersonID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookingResponse{Booking: toBookingDTO(booking)})
}

// Cancel removes a booking. A missing booking is reported as cancelled=false.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	removed, err := h.service.CancelBooking(r.Context(), h.bookingParams(r))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, cancelResponse{Cancelled: removed})
}

// ListForPerson returns the person's bookings in start order.
func (h *BookingHandler) ListForPerson(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	details, err := h.service.ListBookings(r.Context(), principal, chi.URLParam(r, "personID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]bookingDTO, 0, len(details))
	for _, d := range details {
		out = append(out, toBookingDetailDTO(h.codec, d))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: out})
}

// AttachCaregiver invites a caregiver to confirm attendance.
func (h *BookingHandler) AttachCaregiver(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req attachCaregiverRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "AttachCaregiver").WarnContext(r.Context(), "failed to decode caregiver", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	err := h.service.AttachCaregiver(r.Context(), application.AttachCaregiverParams{
		BookingParams:   h.bookingParams(r),
		CaregiverHandle: req.CaregiverHandle,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// SetConfirmation records the attached caregiver's answer.
func (h *BookingHandler) SetConfirmation(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req confirmationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "SetConfirmation").WarnContext(r.Context(), "failed to decode confirmation", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	booking, err := h.service.SetConfirmationStatus(r.Context(), application.SetConfirmationParams{
		BookingParams: h.bookingParams(r),
		Status:        application.ConfirmationStatus(req.Status),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) bookingParams(r *http.Request) application.BookingParams {
	principal, _ := PrincipalFromContext(r.Context())
	return application.BookingParams{
		Principal:  principal,
		ActivityID: chi.URLParam(r, "activityID"),
		PersonID:   chi.URLParam(r, "personID"),
	}
}

type createBookingRequest struct {
	ActivityID string `json:"activity_id"`
	PersonID   string `json:"person_id"`
}

type attachCaregiverRequest struct {
	CaregiverHandle string `json:"caregiver_handle"`
}

type confirmationRequest struct {
	Status string `json:"status"`
}

type bookingResponse struct {
	Booking bookingDTO `json:"booking"`
}

type listBookingsResponse struct {
	Bookings []bookingDTO `json:"bookings"`
}

type cancelResponse struct {
	Cancelled bool `json:"cancelled"`
}
