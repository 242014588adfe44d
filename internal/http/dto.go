package http

import (
	"strings"
	"time"

	"github.com/example/carebook/internal/application"
	"github.com/example/carebook/internal/timecodec"
)

func formatInstant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseInstant accepts RFC 3339 or the codec's wall-clock layout.
func parseInstant(codec *timecodec.Codec, value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	t, err := codec.Parse(value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type userDTO struct {
	Handle        string  `json:"handle"`
	Role          string  `json:"role"`
	DisplayName   string  `json:"display_name"`
	Phone         string  `json:"phone"`
	NotifyAddress *string `json:"notify_address,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

func toUserDTO(user application.User) userDTO {
	return userDTO{
		Handle:        user.Handle,
		Role:          string(user.Role),
		DisplayName:   user.DisplayName,
		Phone:         user.Phone,
		NotifyAddress: user.NotifyAddress,
		CreatedAt:     formatInstant(user.CreatedAt),
		UpdatedAt:     formatInstant(user.UpdatedAt),
	}
}

type personDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	OwnerHandle string  `json:"owner_handle"`
	NRICLast4   *string `json:"nric_last4,omitempty"`
	Self        bool    `json:"self"`
	CreatedAt   string  `json:"created_at"`
}

func toPersonDTO(p application.Person) personDTO {
	return personDTO{
		ID:          p.ID,
		Name:        p.Name,
		OwnerHandle: p.OwnerHandle,
		NRICLast4:   p.NRICLast4,
		Self:        p.Self,
		CreatedAt:   formatInstant(p.CreatedAt),
	}
}

type activityDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Window      string `json:"window"`
	Capacity    int    `json:"capacity"`
	Occupancy   *int   `json:"occupancy,omitempty"`
	CreatedBy   string `json:"created_by"`
}

func toActivityDTO(codec *timecodec.Codec, a application.Activity, occupancy *int) activityDTO {
	return activityDTO{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		Start:       formatInstant(a.Start),
		End:         formatInstant(a.End),
		Window:      codec.FormatWindow(a.Start, a.End),
		Capacity:    a.Capacity,
		Occupancy:   occupancy,
		CreatedBy:   a.CreatedBy,
	}
}

type bookingDTO struct {
	ID              string  `json:"id"`
	ActivityID      string  `json:"activity_id"`
	PersonID        string  `json:"person_id"`
	BookedBy        string  `json:"booked_by"`
	CreatedAt       string  `json:"created_at"`
	CaregiverHandle *string `json:"caregiver_handle,omitempty"`
	Confirmation    *string `json:"confirmation,omitempty"`
	ActivityTitle   string  `json:"activity_title,omitempty"`
	Start           string  `json:"start,omitempty"`
	End             string  `json:"end,omitempty"`
	Window          string  `json:"window,omitempty"`
}

func toBookingDTO(b application.Booking) bookingDTO {
	return bookingDTO{
		ID:              b.ID,
		ActivityID:      b.ActivityID,
		PersonID:        b.PersonID,
		BookedBy:        b.BookedBy,
		CreatedAt:       formatInstant(b.CreatedAt),
		CaregiverHandle: b.CaregiverHandle,
		Confirmation:    confirmationString(b.Confirmation),
	}
}

func toBookingDetailDTO(codec *timecodec.Codec, d application.BookingDetail) bookingDTO {
	dto := toBookingDTO(d.Booking)
	dto.ActivityTitle = d.ActivityTitle
	dto.Start = formatInstant(d.Start)
	dto.End = formatInstant(d.End)
	dto.Window = codec.FormatWindow(d.Start, d.End)
	return dto
}

type rosterEntryDTO struct {
	PersonName      string  `json:"person_name"`
	PersonID        string  `json:"person_id"`
	BookedBy        string  `json:"booked_by"`
	CreatedAt       string  `json:"created_at"`
	CaregiverHandle *string `json:"caregiver_handle,omitempty"`
	Confirmation    *string `json:"confirmation,omitempty"`
}

func toRosterEntryDTO(e application.RosterEntry) rosterEntryDTO {
	return rosterEntryDTO{
		PersonName:      e.PersonName,
		PersonID:        e.PersonID,
		BookedBy:        e.BookedBy,
		CreatedAt:       formatInstant(e.CreatedAt),
		CaregiverHandle: e.CaregiverHandle,
		Confirmation:    confirmationString(e.Confirmation),
	}
}

func confirmationString(status *application.ConfirmationStatus) *string {
	if status == nil {
		return nil
	}
	s := string(*status)
	return &s
}
