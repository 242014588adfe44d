package persistence

import "time"

// User is a registered chat participant keyed by its case-folded handle.
type User struct {
	Handle        string
	Role          string
	DisplayName   string
	Phone         string
	NotifyAddress *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Person is a bookable subject. SelfOf is set only for an individual's own
// record and holds that individual's handle.
type Person struct {
	ID          string
	OwnerHandle string
	Name        string
	SelfOf      *string
	NRICLast4   *string
	CreatedAt   time.Time
}

// Activity is a capacity-limited, time-boxed catalog entry.
type Activity struct {
	ID          string
	Title       string
	Description *string
	Start       time.Time
	End         time.Time
	Capacity    int
	CreatedBy   string
	CreatedAt   time.Time
}

// ActivityOccupancy pairs an activity with its live booking count.
type ActivityOccupancy struct {
	Activity
	Booked int
}

// Booking reserves one person at one activity.
type Booking struct {
	ID              string
	ActivityID      string
	PersonID        string
	BookedBy        string
	CreatedAt       time.Time
	CaregiverHandle *string
	Confirmation    *string
}

// BookingDetail is a booking joined with its activity title and window.
type BookingDetail struct {
	Booking
	ActivityTitle string
	Start         time.Time
	End           time.Time
}

// RosterRow is one attendee line for an activity.
type RosterRow struct {
	PersonID        string
	PersonName      string
	BookedBy        string
	CreatedAt       time.Time
	CaregiverHandle *string
	Confirmation    *string
}
