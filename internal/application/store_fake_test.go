package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/carebook/internal/persistence"
)

// memoryStore is an in-memory catalog and ledger used by service tests.
type memoryStore struct {
	mu         sync.Mutex
	activities map[string]persistence.Activity
	persons    map[string]persistence.Person
	bookings   []persistence.Booking
	txCalls    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		activities: make(map[string]persistence.Activity),
		persons:    make(map[string]persistence.Person),
	}
}

func (m *memoryStore) addActivity(id, title string, start, end time.Time, capacity int) {
	m.activities[id] = persistence.Activity{ID: id, Title: title, Start: start, End: end, Capacity: capacity, CreatedBy: "system"}
}

func (m *memoryStore) addPerson(id, name string) {
	m.persons[id] = persistence.Person{ID: id, Name: name}
}

func (m *memoryStore) CreateActivity(ctx context.Context, activity persistence.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.activities[activity.ID]; ok {
		return persistence.ErrDuplicate
	}
	m.activities[activity.ID] = activity
	return nil
}

func (m *memoryStore) GetActivity(ctx context.Context, id string) (persistence.Activity, error) {
	a, ok := m.activities[id]
	if !ok {
		return persistence.Activity{}, persistence.ErrNotFound
	}
	return a, nil
}

func (m *memoryStore) ListActivities(ctx context.Context) ([]persistence.ActivityOccupancy, error) {
	out := make([]persistence.ActivityOccupancy, 0, len(m.activities))
	for _, a := range m.activities {
		n, _ := m.CountBookings(ctx, a.ID)
		out = append(out, persistence.ActivityOccupancy{Activity: a, Booked: n})
	}
	return out, nil
}

func (m *memoryStore) CountBookings(ctx context.Context, activityID string) (int, error) {
	n := 0
	for _, b := range m.bookings {
		if b.ActivityID == activityID {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) CountActivities(ctx context.Context) (int, error) {
	return len(m.activities), nil
}

func (m *memoryStore) InBookingTx(ctx context.Context, fn func(tx persistence.BookingTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCalls++
	return fn(m)
}

func (m *memoryStore) BookingExists(ctx context.Context, activityID, personID string) (bool, error) {
	return m.find(activityID, personID) >= 0, nil
}

func (m *memoryStore) InsertBooking(ctx context.Context, booking persistence.Booking) error {
	if m.find(booking.ActivityID, booking.PersonID) >= 0 {
		return persistence.ErrDuplicate
	}
	m.bookings = append(m.bookings, booking)
	return nil
}

func (m *memoryStore) DeleteBooking(ctx context.Context, activityID, personID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(activityID, personID)
	if i < 0 {
		return false, nil
	}
	m.bookings = append(m.bookings[:i], m.bookings[i+1:]...)
	return true, nil
}

func (m *memoryStore) GetBooking(ctx context.Context, activityID, personID string) (persistence.Booking, error) {
	i := m.find(activityID, personID)
	if i < 0 {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return m.bookings[i], nil
}

func (m *memoryStore) ListPersonBookings(ctx context.Context, personID string) ([]persistence.BookingDetail, error) {
	var out []persistence.BookingDetail
	for _, b := range m.bookings {
		if b.PersonID != personID {
			continue
		}
		a := m.activities[b.ActivityID]
		out = append(out, persistence.BookingDetail{Booking: b, ActivityTitle: a.Title, Start: a.Start, End: a.End})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ActivityID < out[j].ActivityID
	})
	return out, nil
}

func (m *memoryStore) AttachCaregiver(ctx context.Context, activityID, personID, caregiverHandle string) error {
	i := m.find(activityID, personID)
	if i < 0 {
		return persistence.ErrNotFound
	}
	pending := string(ConfirmationPending)
	m.bookings[i].CaregiverHandle = &caregiverHandle
	m.bookings[i].Confirmation = &pending
	return nil
}

func (m *memoryStore) TransitionConfirmation(ctx context.Context, activityID, personID, caregiverHandle, from, to string) (bool, error) {
	i := m.find(activityID, personID)
	if i < 0 {
		return false, nil
	}
	b := m.bookings[i]
	if b.CaregiverHandle == nil || *b.CaregiverHandle != caregiverHandle || b.Confirmation == nil || *b.Confirmation != from {
		return false, nil
	}
	m.bookings[i].Confirmation = &to
	return true, nil
}

func (m *memoryStore) ListRoster(ctx context.Context, activityID string) ([]persistence.RosterRow, error) {
	var out []persistence.RosterRow
	for _, b := range m.bookings {
		if b.ActivityID != activityID {
			continue
		}
		out = append(out, persistence.RosterRow{
			PersonID:        b.PersonID,
			PersonName:      m.persons[b.PersonID].Name,
			BookedBy:        b.BookedBy,
			CreatedAt:       b.CreatedAt,
			CaregiverHandle: b.CaregiverHandle,
			Confirmation:    b.Confirmation,
		})
	}
	return out, nil
}

func (m *memoryStore) find(activityID, personID string) int {
	for i, b := range m.bookings {
		if b.ActivityID == activityID && b.PersonID == personID {
			return i
		}
	}
	return -1
}

// allowAll authorizes every principal for every person unless denied lists it.
type allowAll struct {
	denied map[string]bool
}

func (a allowAll) Authorize(ctx context.Context, principal Principal, personID string) error {
	if a.denied[personID] {
		return ErrNotOwned
	}
	return nil
}

type publisherStub struct {
	subjects []string
	payloads []any
	err      error
}

func (p *publisherStub) Publish(ctx context.Context, subject string, payload any) error {
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, payload)
	return p.err
}

type observerStub struct {
	outcomes []string
}

func (o *observerStub) BookingAttempt(outcome string) {
	o.outcomes = append(o.outcomes, outcome)
}
