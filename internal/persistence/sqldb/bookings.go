package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/carebook/internal/persistence"
	"github.com/example/carebook/internal/timecodec"
)

const bookingColumns = `id, activity_id, person_id, booked_by, created_at, caregiver_handle, confirmation`

// InBookingTx runs fn inside one write transaction, retrying the whole
// transaction on lock contention or serialization failure.
func (s *Store) InBookingTx(ctx context.Context, fn func(tx persistence.BookingTx) error) error {
	return s.pool.WithRetryingTransaction(ctx, func(tx *sql.Tx) error {
		return fn(queries{h: s.pool.txHelper(tx), mapper: s.pool.mapper})
	})
}

// DeleteBooking removes the booking for the pair, reporting whether one existed.
func (s *Store) DeleteBooking(ctx context.Context, activityID, personID string) (bool, error) {
	q := s.queries()
	result, err := q.h.Exec(ctx, "delete_booking",
		`DELETE FROM bookings WHERE activity_id = ? AND person_id = ?`, activityID, personID)
	if err != nil {
		return false, fmt.Errorf("delete booking: %w", q.mapper.MapError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete booking: rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetBooking loads the booking for the pair.
func (s *Store) GetBooking(ctx context.Context, activityID, personID string) (persistence.Booking, error) {
	q := s.queries()
	row := q.h.QueryRow(ctx, "get_booking",
		`SELECT `+bookingColumns+` FROM bookings WHERE activity_id = ? AND person_id = ?`, activityID, personID)

	var (
		booking                 persistence.Booking
		created                 int64
		caregiver, confirmation sql.NullString
	)
	if err := row.Scan(&booking.ID, &booking.ActivityID, &booking.PersonID, &booking.BookedBy, &created, &caregiver, &confirmation); err != nil {
		mapped := q.mapper.MapError(err)
		if errors.Is(mapped, persistence.ErrNotFound) {
			return persistence.Booking{}, persistence.ErrNotFound
		}
		return persistence.Booking{}, fmt.Errorf("get booking: %w", mapped)
	}
	booking.CreatedAt = timecodec.FromEpoch(created)
	booking.CaregiverHandle = ptr(caregiver)
	booking.Confirmation = ptr(confirmation)
	return booking, nil
}

// ListPersonBookings returns the person's bookings joined with activity
// details, ordered by activity start then activity id.
func (s *Store) ListPersonBookings(ctx context.Context, personID string) ([]persistence.BookingDetail, error) {
	return s.queries().ListPersonBookings(ctx, personID)
}

// AttachCaregiver links a caregiver to the booking and resets confirmation to pending.
func (s *Store) AttachCaregiver(ctx context.Context, activityID, personID, caregiverHandle string) error {
	q := s.queries()
	result, err := q.h.Exec(ctx, "attach_caregiver", `
		UPDATE bookings SET caregiver_handle = ?, confirmation = 'pending'
		WHERE activity_id = ? AND person_id = ?`,
		caregiverHandle, activityID, personID)
	if err != nil {
		return fmt.Errorf("attach caregiver: %w", q.mapper.MapError(err))
	}
	return requireRow(result)
}

// TransitionConfirmation performs a compare-and-set on the confirmation status.
func (s *Store) TransitionConfirmation(ctx context.Context, activityID, personID, caregiverHandle, from, to string) (bool, error) {
	q := s.queries()
	result, err := q.h.Exec(ctx, "transition_confirmation", `
		UPDATE bookings SET confirmation = ?
		WHERE activity_id = ? AND person_id = ? AND caregiver_handle = ? AND confirmation = ?`,
		to, activityID, personID, caregiverHandle, from)
	if err != nil {
		return false, fmt.Errorf("transition confirmation: %w", q.mapper.MapError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition confirmation: rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListRoster returns the attendees of an activity ordered by case-insensitive
// person name then person id.
func (s *Store) ListRoster(ctx context.Context, activityID string) ([]persistence.RosterRow, error) {
	q := s.queries()
	rows, err := q.h.Query(ctx, "list_roster", `
		SELECT p.id, p.name, b.booked_by, b.created_at, b.caregiver_handle, b.confirmation
		FROM bookings b
		JOIN persons p ON p.id = b.person_id
		WHERE b.activity_id = ?
		ORDER BY LOWER(p.name) ASC, p.id ASC`, activityID)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", q.mapper.MapError(err))
	}
	defer rows.Close()

	var roster []persistence.RosterRow
	for rows.Next() {
		var (
			entry                   persistence.RosterRow
			created                 int64
			caregiver, confirmation sql.NullString
		)
		if err := rows.Scan(&entry.PersonID, &entry.PersonName, &entry.BookedBy, &created, &caregiver, &confirmation); err != nil {
			return nil, fmt.Errorf("scan roster row: %w", q.mapper.MapError(err))
		}
		entry.CreatedAt = timecodec.FromEpoch(created)
		entry.CaregiverHandle = ptr(caregiver)
		entry.Confirmation = ptr(confirmation)
		roster = append(roster, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", q.mapper.MapError(err))
	}
	return roster, nil
}

// BookingExists reports whether the pair already holds a booking.
func (q queries) BookingExists(ctx context.Context, activityID, personID string) (bool, error) {
	var one int
	err := q.h.QueryRow(ctx, "booking_exists",
		`SELECT 1 FROM bookings WHERE activity_id = ? AND person_id = ?`, activityID, personID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check booking: %w", q.mapper.MapError(err))
	}
	return true, nil
}

// ListPersonBookings returns the person's bookings joined with activity details.
func (q queries) ListPersonBookings(ctx context.Context, personID string) ([]persistence.BookingDetail, error) {
	rows, err := q.h.Query(ctx, "list_person_bookings", `
		SELECT b.id, b.activity_id, b.person_id, b.booked_by, b.created_at, b.caregiver_handle, b.confirmation,
			a.title, a.start_ts, a.end_ts
		FROM bookings b
		JOIN activities a ON a.id = b.activity_id
		WHERE b.person_id = ?
		ORDER BY a.start_ts ASC, a.id ASC`, personID)
	if err != nil {
		return nil, fmt.Errorf("list bookings for %s: %w", personID, q.mapper.MapError(err))
	}
	defer rows.Close()

	var details []persistence.BookingDetail
	for rows.Next() {
		var (
			detail                  persistence.BookingDetail
			created, start, end     int64
			caregiver, confirmation sql.NullString
		)
		if err := rows.Scan(
			&detail.ID, &detail.ActivityID, &detail.PersonID, &detail.BookedBy, &created, &caregiver, &confirmation,
			&detail.ActivityTitle, &start, &end,
		); err != nil {
			return nil, fmt.Errorf("scan booking: %w", q.mapper.MapError(err))
		}
		detail.CreatedAt = timecodec.FromEpoch(created)
		detail.CaregiverHandle = ptr(caregiver)
		detail.Confirmation = ptr(confirmation)
		detail.Start = timecodec.FromEpoch(start)
		detail.End = timecodec.FromEpoch(end)
		details = append(details, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", q.mapper.MapError(err))
	}
	return details, nil
}

// InsertBooking writes a new booking row. A second row for the same pair
// fails with persistence.ErrDuplicate.
func (q queries) InsertBooking(ctx context.Context, booking persistence.Booking) error {
	_, err := q.h.Exec(ctx, "insert_booking", `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		booking.ID,
		booking.ActivityID,
		booking.PersonID,
		booking.BookedBy,
		timecodec.ToEpoch(booking.CreatedAt),
		nullable(booking.CaregiverHandle),
		nullable(booking.Confirmation),
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", q.mapper.MapError(err))
	}
	return nil
}
