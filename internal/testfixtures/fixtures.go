package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/carebook/internal/persistence"
)

var (
	userCounter     uint64
	personCounter   uint64
	activityCounter uint64
	bookingCounter  uint64
)

// Monday 2 June 2025, 08:00 UTC. Activity fixtures start from here.
var referenceTime = time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

func stringPtr(s string) *string {
	return &s
}

// ----------------------------- User fixtures -----------------------------

// UserOption configures a generated user.
type UserOption func(*persistence.User)

// NewUser returns a deterministic individual user with optional overrides.
func NewUser(opts ...UserOption) persistence.User {
	idx := atomic.AddUint64(&userCounter, 1)
	user := persistence.User{
		Handle:      fmt.Sprintf("user%03d", idx),
		Role:        "individual",
		DisplayName: fmt.Sprintf("User %03d", idx),
		Phone:       fmt.Sprintf("+65 9000 %04d", idx),
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithHandle overrides the generated handle.
func WithHandle(handle string) UserOption {
	return func(u *persistence.User) {
		u.Handle = handle
	}
}

// WithRole overrides the role.
func WithRole(role string) UserOption {
	return func(u *persistence.User) {
		u.Role = role
	}
}

// WithDisplayName overrides the generated display name.
func WithDisplayName(name string) UserOption {
	return func(u *persistence.User) {
		u.DisplayName = name
	}
}

// WithNotifyAddress sets the out-of-band notification address.
func WithNotifyAddress(address string) UserOption {
	return func(u *persistence.User) {
		u.NotifyAddress = stringPtr(address)
	}
}

// ---------------------------- Person fixtures ----------------------------

// PersonOption configures a generated person.
type PersonOption func(*persistence.Person)

// NewPerson returns a deterministic dependent owned by ownerHandle.
func NewPerson(ownerHandle string, opts ...PersonOption) persistence.Person {
	idx := atomic.AddUint64(&personCounter, 1)
	person := persistence.Person{
		ID:          fmt.Sprintf("person-%04d", idx),
		OwnerHandle: ownerHandle,
		Name:        fmt.Sprintf("Person %03d", idx),
		CreatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&person)
	}
	return person
}

// NewSelfPerson returns the self record of an individual.
func NewSelfPerson(handle string, opts ...PersonOption) persistence.Person {
	return NewPerson(handle, append([]PersonOption{WithSelfOf(handle)}, opts...)...)
}

// WithPersonID overrides the generated identifier.
func WithPersonID(id string) PersonOption {
	return func(p *persistence.Person) {
		p.ID = id
	}
}

// WithPersonName overrides the generated name.
func WithPersonName(name string) PersonOption {
	return func(p *persistence.Person) {
		p.Name = name
	}
}

// WithSelfOf marks the person as the self record of handle.
func WithSelfOf(handle string) PersonOption {
	return func(p *persistence.Person) {
		p.SelfOf = stringPtr(handle)
	}
}

// WithNRICLast4 sets the identity suffix.
func WithNRICLast4(suffix string) PersonOption {
	return func(p *persistence.Person) {
		p.NRICLast4 = stringPtr(suffix)
	}
}

// --------------------------- Activity fixtures ---------------------------

// ActivityOption configures a generated activity.
type ActivityOption func(*persistence.Activity)

// NewActivity returns a one hour activity with capacity 10 starting at
// ReferenceTime.
func NewActivity(opts ...ActivityOption) persistence.Activity {
	idx := atomic.AddUint64(&activityCounter, 1)
	activity := persistence.Activity{
		ID:        fmt.Sprintf("activity-%04d", idx),
		Title:     fmt.Sprintf("Activity %03d", idx),
		Start:     referenceTime,
		End:       referenceTime.Add(time.Hour),
		Capacity:  10,
		CreatedBy: "organizer",
		CreatedAt: referenceTime.Add(-24 * time.Hour),
	}
	for _, opt := range opts {
		opt(&activity)
	}
	return activity
}

// WithActivityID overrides the generated identifier.
func WithActivityID(id string) ActivityOption {
	return func(a *persistence.Activity) {
		a.ID = id
	}
}

// WithTitle overrides the generated title.
func WithTitle(title string) ActivityOption {
	return func(a *persistence.Activity) {
		a.Title = title
	}
}

// WithDescription sets the description.
func WithDescription(description string) ActivityOption {
	return func(a *persistence.Activity) {
		a.Description = stringPtr(description)
	}
}

// WithWindow sets the half-open [start, end) window.
func WithWindow(start, end time.Time) ActivityOption {
	return func(a *persistence.Activity) {
		a.Start = start
		a.End = end
	}
}

// WithCapacity overrides the capacity.
func WithCapacity(capacity int) ActivityOption {
	return func(a *persistence.Activity) {
		a.Capacity = capacity
	}
}

// ---------------------------- Booking fixtures ----------------------------

// BookingOption configures a generated booking.
type BookingOption func(*persistence.Booking)

// NewBooking returns a booking of personID at activityID.
func NewBooking(activityID, personID string, opts ...BookingOption) persistence.Booking {
	idx := atomic.AddUint64(&bookingCounter, 1)
	booking := persistence.Booking{
		ID:         fmt.Sprintf("booking-%04d", idx),
		ActivityID: activityID,
		PersonID:   personID,
		BookedBy:   "organizer",
		CreatedAt:  referenceTime.Add(time.Duration(idx) * time.Second),
	}
	for _, opt := range opts {
		opt(&booking)
	}
	return booking
}

// WithBookedBy overrides the booking principal.
func WithBookedBy(handle string) BookingOption {
	return func(b *persistence.Booking) {
		b.BookedBy = handle
	}
}

// WithCaregiver attaches a caregiver with the given confirmation status.
func WithCaregiver(handle, confirmation string) BookingOption {
	return func(b *persistence.Booking) {
		b.CaregiverHandle = stringPtr(handle)
		b.Confirmation = stringPtr(confirmation)
	}
}

// WithBookedAt overrides the creation timestamp.
func WithBookedAt(t time.Time) BookingOption {
	return func(b *persistence.Booking) {
		b.CreatedAt = t
	}
}
