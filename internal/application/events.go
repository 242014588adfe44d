package application

import (
	"context"
	"time"
)

// Event subjects published by the ledger after a committed change.
const (
	SubjectBookingCreated      = "carebook.booking.created"
	SubjectBookingCancelled    = "carebook.booking.cancelled"
	SubjectCaregiverAttached   = "carebook.caregiver.attached"
	SubjectConfirmationUpdated = "carebook.confirmation.updated"
)

// EventPublisher delivers ledger events. Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// BookingCreatedEvent is published when a booking is committed.
type BookingCreatedEvent struct {
	BookingID       string              `json:"booking_id"`
	ActivityID      string              `json:"activity_id"`
	PersonID        string              `json:"person_id"`
	BookedBy        string              `json:"booked_by"`
	CaregiverHandle *string             `json:"caregiver_handle,omitempty"`
	Confirmation    *ConfirmationStatus `json:"confirmation,omitempty"`
	Timestamp       time.Time           `json:"timestamp"`
}

// BookingCancelledEvent is published when a booking row is removed.
type BookingCancelledEvent struct {
	ActivityID  string    `json:"activity_id"`
	PersonID    string    `json:"person_id"`
	CancelledBy string    `json:"cancelled_by"`
	Timestamp   time.Time `json:"timestamp"`
}

// CaregiverAttachedEvent asks the caregiver to confirm attendance.
type CaregiverAttachedEvent struct {
	ActivityID      string    `json:"activity_id"`
	PersonID        string    `json:"person_id"`
	CaregiverHandle string    `json:"caregiver_handle"`
	AttachedBy      string    `json:"attached_by"`
	Timestamp       time.Time `json:"timestamp"`
}

// ConfirmationUpdatedEvent reports a caregiver's answer.
type ConfirmationUpdatedEvent struct {
	ActivityID      string             `json:"activity_id"`
	PersonID        string             `json:"person_id"`
	CaregiverHandle string             `json:"caregiver_handle"`
	Status          ConfirmationStatus `json:"status"`
	Timestamp       time.Time          `json:"timestamp"`
}
