package application

import (
	"strings"
	"time"

	"github.com/example/carebook/internal/persistence"
)

// Role is the single role a user holds at a time.
type Role string

const (
	// RoleIndividual books for themselves through a self person record.
	RoleIndividual Role = "individual"
	// RoleCaregiver books for the persons they registered.
	RoleCaregiver Role = "caregiver"
	// RoleAdmin manages the catalog and reads rosters.
	RoleAdmin Role = "admin"
)

// ConfirmationStatus is the caregiver attendance acknowledgment on a booking.
type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "pending"
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
	ConfirmationDeclined  ConfirmationStatus = "declined"
)

// Principal represents the user invoking a service method.
type Principal struct {
	Handle string
	Role   Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// SystemPrincipal is used for catalog writes that originate from the service
// itself, such as seeding.
var SystemPrincipal = Principal{Handle: "system", Role: RoleAdmin}

// NormalizeHandle case-folds a chat handle: it trims whitespace, drops a
// leading "@" and lower-cases the rest.
func NormalizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	handle = strings.TrimPrefix(handle, "@")
	return strings.ToLower(handle)
}

// User is a registered participant.
type User struct {
	Handle        string
	Role          Role
	DisplayName   string
	Phone         string
	NotifyAddress *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Principal returns the principal acting as this user.
func (u User) Principal() Principal {
	return Principal{Handle: u.Handle, Role: u.Role}
}

// RegisterUserParams captures a registration or re-registration.
type RegisterUserParams struct {
	Handle        string
	Role          Role
	DisplayName   string
	Phone         string
	NotifyAddress *string
}

// Person is a bookable subject.
type Person struct {
	ID          string
	OwnerHandle string
	Name        string
	NRICLast4   *string
	Self        bool
	CreatedAt   time.Time
}

// RegisterPersonParams captures a caregiver adding a dependent.
type RegisterPersonParams struct {
	Principal Principal
	Name      string
	NRICLast4 *string
}

// ActivityInput captures caller provided activity fields.
type ActivityInput struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Capacity    int
}

// Activity is a capacity-limited, time-boxed catalog entry.
type Activity struct {
	ID          string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Capacity    int
	CreatedBy   string
	CreatedAt   time.Time
}

// ActivitySummary pairs an activity with its occupancy at read time.
type ActivitySummary struct {
	Activity
	Occupancy int
}

// CreateActivityParams wraps the data required to create an activity.
type CreateActivityParams struct {
	Principal Principal
	Input     ActivityInput
}

// Booking reserves one person at one activity.
type Booking struct {
	ID              string
	ActivityID      string
	PersonID        string
	BookedBy        string
	CreatedAt       time.Time
	CaregiverHandle *string
	Confirmation    *ConfirmationStatus
}

// BookingDetail is a booking joined with its activity title and window.
type BookingDetail struct {
	Booking
	ActivityTitle string
	Start         time.Time
	End           time.Time
}

// BookingParams identifies a booking acted on by a principal.
type BookingParams struct {
	Principal  Principal
	ActivityID string
	PersonID   string
}

// AttachCaregiverParams wraps the data required to invite a caregiver.
type AttachCaregiverParams struct {
	BookingParams
	CaregiverHandle string
}

// SetConfirmationParams wraps a caregiver's attendance answer.
type SetConfirmationParams struct {
	BookingParams
	Status ConfirmationStatus
}

// RosterEntry is one attendee line of an activity roster.
type RosterEntry struct {
	PersonName      string
	PersonID        string
	BookedBy        string
	CreatedAt       time.Time
	CaregiverHandle *string
	Confirmation    *ConfirmationStatus
}

func toUser(u persistence.User) User {
	return User{
		Handle:        u.Handle,
		Role:          Role(u.Role),
		DisplayName:   u.DisplayName,
		Phone:         u.Phone,
		NotifyAddress: u.NotifyAddress,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func toPerson(p persistence.Person) Person {
	return Person{
		ID:          p.ID,
		OwnerHandle: p.OwnerHandle,
		Name:        p.Name,
		NRICLast4:   p.NRICLast4,
		Self:        p.SelfOf != nil,
		CreatedAt:   p.CreatedAt,
	}
}

func toActivity(a persistence.Activity) Activity {
	activity := Activity{
		ID:        a.ID,
		Title:     a.Title,
		Start:     a.Start,
		End:       a.End,
		Capacity:  a.Capacity,
		CreatedBy: a.CreatedBy,
		CreatedAt: a.CreatedAt,
	}
	if a.Description != nil {
		activity.Description = *a.Description
	}
	return activity
}

func fromActivity(a Activity) persistence.Activity {
	return persistence.Activity{
		ID:          a.ID,
		Title:       a.Title,
		Description: optionalString(a.Description),
		Start:       a.Start,
		End:         a.End,
		Capacity:    a.Capacity,
		CreatedBy:   a.CreatedBy,
		CreatedAt:   a.CreatedAt,
	}
}

func toBooking(b persistence.Booking) Booking {
	return Booking{
		ID:              b.ID,
		ActivityID:      b.ActivityID,
		PersonID:        b.PersonID,
		BookedBy:        b.BookedBy,
		CreatedAt:       b.CreatedAt,
		CaregiverHandle: b.CaregiverHandle,
		Confirmation:    toConfirmation(b.Confirmation),
	}
}

func toConfirmation(status *string) *ConfirmationStatus {
	if status == nil {
		return nil
	}
	s := ConfirmationStatus(*status)
	return &s
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
