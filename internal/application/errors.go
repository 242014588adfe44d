package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrNotOwned is returned when the principal may not act for the requested person.
	ErrNotOwned = errors.New("application: person not owned by principal")
	// ErrInvalidWindow is returned when an activity does not end after it starts.
	ErrInvalidWindow = errors.New("application: end must be after start")
	// ErrInvalidCapacity is returned when an activity capacity is not positive.
	ErrInvalidCapacity = errors.New("application: capacity must be positive")
	// ErrFull is returned when an activity has no free places.
	ErrFull = errors.New("application: activity is full")
	// ErrOverlap is returned when a booking would overlap another booking of the same person.
	ErrOverlap = errors.New("application: booking overlaps an existing booking")
	// ErrAlreadyBooked is returned when the person already holds a booking for the activity.
	ErrAlreadyBooked = errors.New("application: already booked")
	// ErrInvalidTransition is returned when a confirmation change is not allowed from the current status.
	ErrInvalidTransition = errors.New("application: invalid confirmation transition")
	// ErrInvalidSecret is returned when admin elevation is rejected.
	ErrInvalidSecret = errors.New("application: invalid secret")
)

// OverlapError identifies the existing booking that blocks a new one.
type OverlapError struct {
	ActivityID string
	Title      string
	Start      time.Time
	End        time.Time
	// Window is the display rendering of Start and End.
	Window string
}

// Error implements the error interface.
func (e *OverlapError) Error() string {
	return fmt.Sprintf("conflicts with: %s (%s)", e.Title, e.Window)
}

// Unwrap lets errors.Is match ErrOverlap.
func (e *OverlapError) Unwrap() error {
	return ErrOverlap
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
