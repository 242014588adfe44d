package persistence

import (
	"context"
	"time"
)

// UserRepository stores registered users.
type UserRepository interface {
	// UpsertUser inserts the user or overwrites role and profile of an existing
	// handle, keeping its original CreatedAt. The stored record is returned.
	UpsertUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, handle string) (User, error)
	UpdateUserRole(ctx context.Context, handle, role string, updatedAt time.Time) error
}

// PersonRepository stores bookable persons.
type PersonRepository interface {
	// EnsureSelfPerson returns the person whose SelfOf matches candidate.SelfOf,
	// inserting candidate when none exists yet.
	EnsureSelfPerson(ctx context.Context, candidate Person) (Person, error)
	CreatePerson(ctx context.Context, person Person) error
	GetPerson(ctx context.Context, id string) (Person, error)
	// ListManagedPersons returns persons owned by the handle, excluding its self record.
	ListManagedPersons(ctx context.Context, ownerHandle string) ([]Person, error)
}

// ActivityRepository stores the activity catalog.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity Activity) error
	GetActivity(ctx context.Context, id string) (Activity, error)
	ListActivities(ctx context.Context) ([]ActivityOccupancy, error)
	CountBookings(ctx context.Context, activityID string) (int, error)
	CountActivities(ctx context.Context) (int, error)
}

// BookingTx is the view of the store available inside a booking transaction.
// Every call runs on the same transaction.
type BookingTx interface {
	GetActivity(ctx context.Context, id string) (Activity, error)
	BookingExists(ctx context.Context, activityID, personID string) (bool, error)
	CountBookings(ctx context.Context, activityID string) (int, error)
	// ListPersonBookings returns the person's bookings ordered by activity start.
	ListPersonBookings(ctx context.Context, personID string) ([]BookingDetail, error)
	InsertBooking(ctx context.Context, booking Booking) error
}

// BookingRepository stores bookings and their caregiver confirmation state.
type BookingRepository interface {
	// InBookingTx runs fn inside one transaction; fn's error rolls it back.
	InBookingTx(ctx context.Context, fn func(tx BookingTx) error) error
	DeleteBooking(ctx context.Context, activityID, personID string) (bool, error)
	GetBooking(ctx context.Context, activityID, personID string) (Booking, error)
	ListPersonBookings(ctx context.Context, personID string) ([]BookingDetail, error)
	// AttachCaregiver sets the caregiver handle and resets confirmation to pending.
	AttachCaregiver(ctx context.Context, activityID, personID, caregiverHandle string) error
	// TransitionConfirmation moves confirmation from one status to another for
	// the given caregiver, reporting whether the row matched.
	TransitionConfirmation(ctx context.Context, activityID, personID, caregiverHandle, from, to string) (bool, error)
	ListRoster(ctx context.Context, activityID string) ([]RosterRow, error)
}
