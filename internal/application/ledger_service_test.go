package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	day      = time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)
	at       = func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }
	solo     = Principal{Handle: "ivy", Role: RoleIndividual}
	guardian = Principal{Handle: "carl", Role: RoleCaregiver}
)

func newLedgerFixture(t *testing.T, opts ...LedgerOption) (*LedgerService, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	svc := NewLedgerService(store, allowAll{}, sequence("b"), fixedNow, opts...)
	return svc, store
}

func book(t *testing.T, svc *LedgerService, principal Principal, activityID, personID string) (Booking, error) {
	t.Helper()
	return svc.CreateBooking(context.Background(), BookingParams{Principal: principal, ActivityID: activityID, PersonID: personID})
}

func TestLedgerService_CreateBooking(t *testing.T) {
	t.Run("rejects persons the principal does not own", func(t *testing.T) {
		store := newMemoryStore()
		store.addActivity("a1", "Yoga", at(10, 0), at(11, 0), 5)
		svc := NewLedgerService(store, allowAll{denied: map[string]bool{"p1": true}}, nil, fixedNow)

		if _, err := book(t, svc, solo, "a1", "p1"); !errors.Is(err, ErrNotOwned) {
			t.Fatalf("expected ErrNotOwned, got %v", err)
		}
		if store.txCalls != 0 {
			t.Fatalf("expected no transaction, got %d", store.txCalls)
		}
	})

	t.Run("unknown activity is not found", func(t *testing.T) {
		svc, _ := newLedgerFixture(t)
		if _, err := book(t, svc, solo, "missing", "p1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("second booking of the same pair is already booked", func(t *testing.T) {
		svc, store := newLedgerFixture(t)
		store.addActivity("a1", "Yoga", at(10, 0), at(11, 0), 1)

		booking, err := book(t, svc, solo, "a1", "p1")
		if err != nil {
			t.Fatalf("first booking: %v", err)
		}
		if booking.BookedBy != "ivy" || booking.CaregiverHandle != nil || booking.Confirmation != nil {
			t.Fatalf("unexpected solo booking %+v", booking)
		}
		if n, _ := store.CountBookings(context.Background(), "a1"); n != 1 {
			t.Fatalf("expected occupancy 1, got %d", n)
		}

		if _, err := book(t, svc, solo, "a1", "p1"); !errors.Is(err, ErrAlreadyBooked) {
			t.Fatalf("expected ErrAlreadyBooked, got %v", err)
		}
		if n, _ := store.CountBookings(context.Background(), "a1"); n != 1 {
			t.Fatalf("expected occupancy to stay 1, got %d", n)
		}
	})

	t.Run("full activity rejects new persons", func(t *testing.T) {
		svc, store := newLedgerFixture(t)
		store.addActivity("a1", "Yoga", at(10, 0), at(11, 0), 2)
		for _, p := range []string{"p1", "p2"} {
			if _, err := book(t, svc, solo, "a1", p); err != nil {
				t.Fatalf("book %s: %v", p, err)
			}
		}
		if _, err := book(t, svc, solo, "a1", "p3"); !errors.Is(err, ErrFull) {
			t.Fatalf("expected ErrFull, got %v", err)
		}
	})

	t.Run("full is reported before overlap", func(t *testing.T) {
		svc, store := newLedgerFixture(t)
		store.addActivity("a1", "Yoga", at(10, 0), at(11, 0), 5)
		store.addActivity("a2", "Tai Chi", at(10, 30), at(11, 30), 1)
		if _, err := book(t, svc, solo, "a2", "p2"); err != nil {
			t.Fatalf("fill a2: %v", err)
		}
		if _, err := book(t, svc, solo, "a1", "p1"); err != nil {
			t.Fatalf("book a1: %v", err)
		}
		if _, err := book(t, svc, solo, "a2", "p1"); !errors.Is(err, ErrFull) {
			t.Fatalf("expected ErrFull, got %v", err)
		}
	})

	t.Run("back to back windows do not overlap", func(t *testing.T) {
		svc, store := newLedgerFixture(t)
		store.addActivity("a1", "Morning", at(10, 0), at(11, 0), 5)
		store.addActivity("a2", "Late Morning", at(11, 0), at(12, 0), 5)
		if _, err := book(t, svc, solo, "a1", "p1"); err != nil {
			t.Fatalf("book a1: %v", err)
		}
		if _, err := book(t, svc, solo, "a2", "p1"); err != nil {
			t.Fatalf("expected touching windows to be allowed, got %v", err)
		}
	})

	t.Run("overlap names the conflicting activity and window", func(t *testing.T) {
		svc, store := newLedgerFixture(t)
		store.addActivity("a", "Music Therapy", at(10, 0), at(11, 0), 5)
		store.addActivity("b", "Art Jam", at(10, 30), at(11, 30), 5)
		if _, err := book(t, svc, solo, "a", "p1"); err != nil {
			t.Fatalf("book a: %v", err)
		}

		_, err := book(t, svc, solo, "b", "p1")
		if !errors.Is(err, ErrOverlap) {
			t.Fatalf("expected ErrOverlap, got %v", err)
		}
		var overlap *OverlapError
		if !errors.As(err, &overlap) {
			t.Fatalf("expected OverlapError, got %T", err)
		}
		if overlap.ActivityID != "a" || overlap.Title != "Music Therapy" {
			t.Fatalf("unexpected conflict %+v", overlap)
		}
		if want := "conflicts with: Music Therapy (2025-06-02 10:00-11:00)"; overlap.Error() != want {
			t.Fatalf("expected %q, got %q", want, overlap.Error())
		}
		if n, _ := store.CountBookings(context.Background(), "b"); n != 0 {
			t.Fatalf("expected no booking row after overlap, got %d", n)
		}
	})

	t.Run("caregiver booking is confirmed immediately", func(t *testing.T) {
		svc, store := newLedgerFixture(t)
		store.addActivity("a1", "Physio", at(14, 0), at(15, 0), 3)

		booking, err := book(t, svc, Principal{Handle: "@Carl", Role: RoleCaregiver}, "a1", "dep")
		if err != nil {
			t.Fatalf("book: %v", err)
		}
		if booking.CaregiverHandle == nil || *booking.CaregiverHandle != "carl" {
			t.Fatalf("expected caregiver carl, got %v", booking.CaregiverHandle)
		}
		if booking.Confirmation == nil || *booking.Confirmation != ConfirmationConfirmed {
			t.Fatalf("expected confirmed, got %v", booking.Confirmation)
		}
	})

	t.Run("publishes after commit and records outcomes", func(t *testing.T) {
		events := &publisherStub{err: errors.New("broker down")}
		observer := &observerStub{}
		svc, store := newLedgerFixture(t, WithEventPublisher(events), WithBookingObserver(observer))
		store.addActivity("a1", "Yoga", at(10, 0), at(11, 0), 1)

		if _, err := book(t, svc, solo, "a1", "p1"); err != nil {
			t.Fatalf("expected publish failure to be ignored, got %v", err)
		}
		if _, err := book(t, svc, solo, "a1", "p2"); !errors.Is(err, ErrFull) {
			t.Fatalf("expected ErrFull, got %v", err)
		}

		if len(events.subjects) != 1 || events.subjects[0] != SubjectBookingCreated {
			t.Fatalf("unexpected events %v", events.subjects)
		}
		created, ok := events.payloads[0].(BookingCreatedEvent)
		if !ok || created.ActivityID != "a1" || created.PersonID != "p1" {
			t.Fatalf("unexpected payload %+v", events.payloads[0])
		}
		if len(observer.outcomes) != 2 || observer.outcomes[0] != "created" || observer.outcomes[1] != "full" {
			t.Fatalf("unexpected outcomes %v", observer.outcomes)
		}
	})
}

func TestLedgerService_CapacityOneScenario(t *testing.T) {
	ctx := context.Background()
	svc, store := newLedgerFixture(t)
	start := fixedNow().Add(time.Hour)
	store.addActivity("m", "Music", start, start.Add(time.Hour), 1)

	if _, err := book(t, svc, solo, "m", "p1"); err != nil {
		t.Fatalf("p1 books: %v", err)
	}
	if _, err := book(t, svc, solo, "m", "p2"); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull for p2, got %v", err)
	}

	removed, err := svc.CancelBooking(ctx, BookingParams{Principal: solo, ActivityID: "m", PersonID: "p1"})
	if err != nil || !removed {
		t.Fatalf("expected cancel to remove a row, got %v %v", removed, err)
	}
	if n, _ := store.CountBookings(ctx, "m"); n != 0 {
		t.Fatalf("expected occupancy 0, got %d", n)
	}

	if _, err := book(t, svc, solo, "m", "p2"); err != nil {
		t.Fatalf("p2 books after cancel: %v", err)
	}
}

func TestLedgerService_CancelBooking(t *testing.T) {
	ctx := context.Background()
	events := &publisherStub{}
	svc, store := newLedgerFixture(t, WithEventPublisher(events))
	store.addActivity("a1", "Yoga", at(10, 0), at(11, 0), 2)

	removed, err := svc.CancelBooking(ctx, BookingParams{Principal: solo, ActivityID: "a1", PersonID: "p1"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if removed {
		t.Fatalf("expected nothing to cancel")
	}
	if len(events.subjects) != 0 {
		t.Fatalf("expected no event for a no-op cancel, got %v", events.subjects)
	}

	if _, err := book(t, svc, solo, "a1", "p1"); err != nil {
		t.Fatalf("book: %v", err)
	}
	removed, err = svc.CancelBooking(ctx, BookingParams{Principal: solo, ActivityID: "a1", PersonID: "p1"})
	if err != nil || !removed {
		t.Fatalf("expected removal, got %v %v", removed, err)
	}
	if events.subjects[len(events.subjects)-1] != SubjectBookingCancelled {
		t.Fatalf("expected cancelled event, got %v", events.subjects)
	}

	if _, err := book(t, svc, solo, "a1", "p1"); err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}

	denied := NewLedgerService(store, allowAll{denied: map[string]bool{"p1": true}}, nil, fixedNow)
	if _, err := denied.CancelBooking(ctx, BookingParams{Principal: solo, ActivityID: "a1", PersonID: "p1"}); !errors.Is(err, ErrNotOwned) {
		t.Fatalf("expected ErrNotOwned, got %v", err)
	}
}

func TestLedgerService_ListBookings(t *testing.T) {
	svc, store := newLedgerFixture(t)
	store.addActivity("late", "Evening", at(18, 0), at(19, 0), 5)
	store.addActivity("early", "Morning", at(8, 0), at(9, 0), 5)
	store.addActivity("noon", "Lunch", at(12, 0), at(13, 0), 5)
	for _, id := range []string{"late", "early", "noon"} {
		if _, err := book(t, svc, solo, id, "p1"); err != nil {
			t.Fatalf("book %s: %v", id, err)
		}
	}

	list, err := svc.ListBookings(context.Background(), solo, "p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got []string
	for _, b := range list {
		got = append(got, b.ActivityID)
	}
	if len(got) != 3 || got[0] != "early" || got[1] != "noon" || got[2] != "late" {
		t.Fatalf("expected start ordering, got %v", got)
	}
	if list[0].ActivityTitle != "Morning" || !list[0].Start.Equal(at(8, 0)) {
		t.Fatalf("expected joined activity data, got %+v", list[0])
	}
}

func TestLedgerService_ConfirmationStateMachine(t *testing.T) {
	ctx := context.Background()
	events := &publisherStub{}
	svc, store := newLedgerFixture(t, WithEventPublisher(events))
	store.addActivity("a1", "Yoga", at(10, 0), at(11, 0), 2)
	key := BookingParams{Principal: solo, ActivityID: "a1", PersonID: "p1"}

	if err := svc.AttachCaregiver(ctx, AttachCaregiverParams{BookingParams: key, CaregiverHandle: "c2"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before booking, got %v", err)
	}

	if _, err := book(t, svc, solo, "a1", "p1"); err != nil {
		t.Fatalf("book: %v", err)
	}

	var vErr *ValidationError
	if err := svc.AttachCaregiver(ctx, AttachCaregiverParams{BookingParams: key, CaregiverHandle: " @ "}); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for empty handle, got %v", err)
	}

	if err := svc.AttachCaregiver(ctx, AttachCaregiverParams{BookingParams: key, CaregiverHandle: "@C2"}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	stored, _ := store.GetBooking(ctx, "a1", "p1")
	if *stored.CaregiverHandle != "c2" || *stored.Confirmation != string(ConfirmationPending) {
		t.Fatalf("expected pending for c2, got %+v", stored)
	}

	c2 := Principal{Handle: "c2", Role: RoleCaregiver}
	answer := func(p Principal, status ConfirmationStatus) error {
		_, err := svc.SetConfirmationStatus(ctx, SetConfirmationParams{
			BookingParams: BookingParams{Principal: p, ActivityID: "a1", PersonID: "p1"},
			Status:        status,
		})
		return err
	}

	if err := answer(c2, ConfirmationPending); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for pending target, got %v", err)
	}
	if err := answer(guardian, ConfirmationConfirmed); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for another caregiver, got %v", err)
	}
	if err := answer(c2, ConfirmationDeclined); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if err := answer(c2, ConfirmationConfirmed); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from declined, got %v", err)
	}

	if err := svc.AttachCaregiver(ctx, AttachCaregiverParams{BookingParams: key, CaregiverHandle: "c3"}); err != nil {
		t.Fatalf("re-attach: %v", err)
	}
	stored, _ = store.GetBooking(ctx, "a1", "p1")
	if *stored.CaregiverHandle != "c3" || *stored.Confirmation != string(ConfirmationPending) {
		t.Fatalf("expected re-attach to reset to pending, got %+v", stored)
	}

	booking, err := svc.SetConfirmationStatus(ctx, SetConfirmationParams{
		BookingParams: BookingParams{Principal: Principal{Handle: "C3", Role: RoleCaregiver}, ActivityID: "a1", PersonID: "p1"},
		Status:        ConfirmationConfirmed,
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if *booking.Confirmation != ConfirmationConfirmed {
		t.Fatalf("expected confirmed, got %v", *booking.Confirmation)
	}

	want := []string{SubjectBookingCreated, SubjectCaregiverAttached, SubjectConfirmationUpdated, SubjectCaregiverAttached, SubjectConfirmationUpdated}
	if len(events.subjects) != len(want) {
		t.Fatalf("expected events %v, got %v", want, events.subjects)
	}
	for i := range want {
		if events.subjects[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, events.subjects)
		}
	}
}

func TestLedgerService_DirectCaregiverBookingCannotBeReanswered(t *testing.T) {
	svc, store := newLedgerFixture(t)
	store.addActivity("a1", "Physio", at(9, 0), at(10, 0), 2)
	if _, err := book(t, svc, guardian, "a1", "dep"); err != nil {
		t.Fatalf("book: %v", err)
	}

	_, err := svc.SetConfirmationStatus(context.Background(), SetConfirmationParams{
		BookingParams: BookingParams{Principal: guardian, ActivityID: "a1", PersonID: "dep"},
		Status:        ConfirmationDeclined,
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}
