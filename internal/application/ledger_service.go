package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/carebook/internal/persistence"
	"github.com/example/carebook/internal/scheduler"
	"github.com/example/carebook/internal/timecodec"
)

// BookingStore captures the booking persistence operations.
type BookingStore interface {
	InBookingTx(ctx context.Context, fn func(tx persistence.BookingTx) error) error
	DeleteBooking(ctx context.Context, activityID, personID string) (bool, error)
	GetBooking(ctx context.Context, activityID, personID string) (persistence.Booking, error)
	ListPersonBookings(ctx context.Context, personID string) ([]persistence.BookingDetail, error)
	AttachCaregiver(ctx context.Context, activityID, personID, caregiverHandle string) error
	TransitionConfirmation(ctx context.Context, activityID, personID, caregiverHandle, from, to string) (bool, error)
	ListRoster(ctx context.Context, activityID string) ([]persistence.RosterRow, error)
}

// Authorizer decides whether a principal may act for a person.
type Authorizer interface {
	Authorize(ctx context.Context, principal Principal, personID string) error
}

// BookingObserver receives the outcome label of every booking attempt.
type BookingObserver interface {
	BookingAttempt(outcome string)
}

// LedgerOption customizes a LedgerService.
type LedgerOption func(*LedgerService)

// WithEventPublisher routes committed ledger changes to publisher.
func WithEventPublisher(publisher EventPublisher) LedgerOption {
	return func(s *LedgerService) {
		if publisher != nil {
			s.events = publisher
		}
	}
}

// WithBookingObserver records booking outcomes on observer.
func WithBookingObserver(observer BookingObserver) LedgerOption {
	return func(s *LedgerService) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// WithTimeCodec sets the codec used to render conflicting windows.
func WithTimeCodec(codec *timecodec.Codec) LedgerOption {
	return func(s *LedgerService) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// LedgerService creates, cancels and lists bookings and tracks caregiver
// confirmation on them.
type LedgerService struct {
	bookings    BookingStore
	authorizer  Authorizer
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
	events      EventPublisher
	observer    BookingObserver
	codec       *timecodec.Codec
}

// NewLedgerService constructs a ledger service with the provided dependencies.
func NewLedgerService(bookings BookingStore, authorizer Authorizer, idGenerator func() string, now func() time.Time, opts ...LedgerOption) *LedgerService {
	return NewLedgerServiceWithLogger(bookings, authorizer, idGenerator, now, nil, opts...)
}

// NewLedgerServiceWithLogger constructs a ledger service with a specified logger.
func NewLedgerServiceWithLogger(bookings BookingStore, authorizer Authorizer, idGenerator func() string, now func() time.Time, logger *slog.Logger, opts ...LedgerOption) *LedgerService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	s := &LedgerService{
		bookings:    bookings,
		authorizer:  authorizer,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
		codec:       timecodec.New(time.UTC),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LedgerService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "LedgerService", operation, attrs...)
}

// CreateBooking reserves a place for the person. The existence, duplicate,
// capacity and overlap checks run in the same transaction as the insert, in
// that order, and nothing is written when any of them fails.
func (s *LedgerService) CreateBooking(ctx context.Context, params BookingParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("LedgerService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateBooking",
		"principal", params.Principal.Handle,
		"activity_id", params.ActivityID,
		"person_id", params.PersonID,
	)
	defer func() {
		s.recordOutcome(err)
		if err != nil {
			logFailure(ctx, logger, "booking rejected", err)
			return
		}
		logger.With("booking_id", booking.ID).InfoContext(ctx, "booking created")
	}()

	if err = s.authorizer.Authorize(ctx, params.Principal, params.PersonID); err != nil {
		return
	}

	record := persistence.Booking{
		ID:         s.idGenerator(),
		ActivityID: params.ActivityID,
		PersonID:   params.PersonID,
		BookedBy:   NormalizeHandle(params.Principal.Handle),
		CreatedAt:  s.now(),
	}
	if params.Principal.Role == RoleCaregiver {
		caregiver := record.BookedBy
		confirmed := string(ConfirmationConfirmed)
		record.CaregiverHandle = &caregiver
		record.Confirmation = &confirmed
	}

	err = s.bookings.InBookingTx(ctx, func(tx persistence.BookingTx) error {
		activity, err := tx.GetActivity(ctx, params.ActivityID)
		if err != nil {
			return err
		}

		exists, err := tx.BookingExists(ctx, params.ActivityID, params.PersonID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyBooked
		}

		booked, err := tx.CountBookings(ctx, params.ActivityID)
		if err != nil {
			return err
		}
		if booked >= activity.Capacity {
			return ErrFull
		}

		held, err := tx.ListPersonBookings(ctx, params.PersonID)
		if err != nil {
			return err
		}
		if blocking, ok := scheduler.FirstConflict(commitments(held), scheduler.Commitment{
			ActivityID: activity.ID,
			Title:      activity.Title,
			Window:     scheduler.Window{Start: activity.Start, End: activity.End},
		}); ok {
			return &OverlapError{
				ActivityID: blocking.ActivityID,
				Title:      blocking.Title,
				Start:      blocking.Window.Start,
				End:        blocking.Window.End,
				Window:     s.codec.FormatWindow(blocking.Window.Start, blocking.Window.End),
			}
		}

		return tx.InsertBooking(ctx, record)
	})
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	booking = toBooking(record)
	s.publish(ctx, logger, SubjectBookingCreated, BookingCreatedEvent{
		BookingID:       booking.ID,
		ActivityID:      booking.ActivityID,
		PersonID:        booking.PersonID,
		BookedBy:        booking.BookedBy,
		CaregiverHandle: booking.CaregiverHandle,
		Confirmation:    booking.Confirmation,
		Timestamp:       booking.CreatedAt,
	})
	return
}

// CancelBooking removes the person's booking for the activity. It reports
// false without error when there was nothing to cancel.
func (s *LedgerService) CancelBooking(ctx context.Context, params BookingParams) (removed bool, err error) {
	if s == nil {
		err = fmt.Errorf("LedgerService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CancelBooking",
		"principal", params.Principal.Handle,
		"activity_id", params.ActivityID,
		"person_id", params.PersonID,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to cancel booking", err)
			return
		}
		logger.InfoContext(ctx, "booking cancel processed", "removed", removed)
	}()

	if err = s.authorizer.Authorize(ctx, params.Principal, params.PersonID); err != nil {
		return
	}

	removed, err = s.bookings.DeleteBooking(ctx, params.ActivityID, params.PersonID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if removed {
		s.publish(ctx, logger, SubjectBookingCancelled, BookingCancelledEvent{
			ActivityID:  params.ActivityID,
			PersonID:    params.PersonID,
			CancelledBy: NormalizeHandle(params.Principal.Handle),
			Timestamp:   s.now(),
		})
	}
	return
}

// ListBookings returns the person's bookings ordered by activity start.
func (s *LedgerService) ListBookings(ctx context.Context, principal Principal, personID string) ([]BookingDetail, error) {
	if s == nil {
		return nil, fmt.Errorf("LedgerService is nil")
	}
	if err := s.authorizer.Authorize(ctx, principal, personID); err != nil {
		return nil, err
	}

	stored, err := s.bookings.ListPersonBookings(ctx, personID)
	if err != nil {
		return nil, mapBookingRepoError(err)
	}
	details := make([]BookingDetail, 0, len(stored))
	for _, d := range stored {
		details = append(details, BookingDetail{
			Booking:       toBooking(d.Booking),
			ActivityTitle: d.ActivityTitle,
			Start:         d.Start,
			End:           d.End,
		})
	}
	return details, nil
}

// AttachCaregiver invites a caregiver to confirm attendance on an existing
// booking. Any earlier caregiver or answer is replaced and the status resets
// to pending.
func (s *LedgerService) AttachCaregiver(ctx context.Context, params AttachCaregiverParams) (err error) {
	if s == nil {
		return fmt.Errorf("LedgerService is nil")
	}

	caregiver := NormalizeHandle(params.CaregiverHandle)
	logger := s.loggerWith(ctx, "AttachCaregiver",
		"principal", params.Principal.Handle,
		"activity_id", params.ActivityID,
		"person_id", params.PersonID,
		"caregiver", caregiver,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to attach caregiver", err)
			return
		}
		logger.InfoContext(ctx, "caregiver attached")
	}()

	if err = s.authorizer.Authorize(ctx, params.Principal, params.PersonID); err != nil {
		return
	}
	if caregiver == "" {
		vErr := &ValidationError{}
		vErr.add("caregiver_handle", "caregiver handle is required")
		err = vErr
		return
	}

	if err = s.bookings.AttachCaregiver(ctx, params.ActivityID, params.PersonID, caregiver); err != nil {
		err = mapBookingRepoError(err)
		return
	}

	s.publish(ctx, logger, SubjectCaregiverAttached, CaregiverAttachedEvent{
		ActivityID:      params.ActivityID,
		PersonID:        params.PersonID,
		CaregiverHandle: caregiver,
		AttachedBy:      NormalizeHandle(params.Principal.Handle),
		Timestamp:       s.now(),
	})
	return
}

// SetConfirmationStatus records the attached caregiver's answer. Only a
// pending booking can be answered.
func (s *LedgerService) SetConfirmationStatus(ctx context.Context, params SetConfirmationParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("LedgerService is nil")
		return
	}

	handle := NormalizeHandle(params.Principal.Handle)
	logger := s.loggerWith(ctx, "SetConfirmationStatus",
		"principal", handle,
		"activity_id", params.ActivityID,
		"person_id", params.PersonID,
		"status", params.Status,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "confirmation update rejected", err)
			return
		}
		logger.InfoContext(ctx, "confirmation updated")
	}()

	if params.Status != ConfirmationConfirmed && params.Status != ConfirmationDeclined {
		vErr := &ValidationError{}
		vErr.add("status", "status must be confirmed or declined")
		err = vErr
		return
	}

	var stored persistence.Booking
	stored, err = s.bookings.GetBooking(ctx, params.ActivityID, params.PersonID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if stored.CaregiverHandle == nil || *stored.CaregiverHandle != handle {
		err = ErrUnauthorized
		return
	}
	if stored.Confirmation == nil || ConfirmationStatus(*stored.Confirmation) != ConfirmationPending {
		err = ErrInvalidTransition
		return
	}

	var applied bool
	applied, err = s.bookings.TransitionConfirmation(ctx, params.ActivityID, params.PersonID, handle,
		string(ConfirmationPending), string(params.Status))
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if !applied {
		// Answered or re-attached concurrently.
		err = ErrInvalidTransition
		return
	}

	status := string(params.Status)
	stored.Confirmation = &status
	booking = toBooking(stored)

	s.publish(ctx, logger, SubjectConfirmationUpdated, ConfirmationUpdatedEvent{
		ActivityID:      params.ActivityID,
		PersonID:        params.PersonID,
		CaregiverHandle: handle,
		Status:          params.Status,
		Timestamp:       s.now(),
	})
	return
}

func (s *LedgerService) publish(ctx context.Context, logger *slog.Logger, subject string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "event publish failed", "subject", subject, "error", err)
	}
}

func (s *LedgerService) recordOutcome(err error) {
	if s.observer == nil {
		return
	}
	outcome := "created"
	if err != nil {
		outcome = ErrorKind(err)
	}
	s.observer.BookingAttempt(outcome)
}

func commitments(held []persistence.BookingDetail) []scheduler.Commitment {
	out := make([]scheduler.Commitment, 0, len(held))
	for _, b := range held {
		out = append(out, scheduler.Commitment{
			ActivityID: b.ActivityID,
			Title:      b.ActivityTitle,
			Window:     scheduler.Window{Start: b.Start, End: b.End},
		})
	}
	return out
}

func mapBookingRepoError(err error) error {
	var overlap *OverlapError
	switch {
	case errors.As(err, &overlap):
		return overlap
	case errors.Is(err, ErrAlreadyBooked), errors.Is(err, ErrFull):
		return err
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyBooked
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	default:
		return err
	}
}
