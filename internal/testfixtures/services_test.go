package testfixtures

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/carebook/internal/application"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func register(t *testing.T, svc *application.DirectoryService, handle string, role application.Role) application.Principal {
	t.Helper()
	user, err := svc.RegisterUser(context.Background(), application.RegisterUserParams{
		Handle:      handle,
		Role:        role,
		DisplayName: handle,
		Phone:       "+65 8000 0000",
	})
	if err != nil {
		t.Fatalf("register %s: %v", handle, err)
	}
	return user.Principal()
}

func TestServiceFactoryWiresServicesOverSQLite(t *testing.T) {
	ctx := context.Background()
	harness := NewSQLiteHarness(t)
	factory := NewServiceFactory(WithClock(NewClock(ReferenceTime())))
	services := factory.NewServices(harness.Store, quietLogger(), application.WithOrganizerHandles("olga"))

	organizer := register(t, services.Directory, "@Olga", application.RoleIndividual)
	if !organizer.IsAdmin() {
		t.Fatalf("organizer handle should register as admin, got %q", organizer.Role)
	}
	ivy := register(t, services.Directory, "ivy", application.RoleIndividual)
	carl := register(t, services.Directory, "carl", application.RoleCaregiver)

	start := ReferenceTime().Add(2 * time.Hour)
	music, err := services.Catalog.CreateActivity(ctx, application.CreateActivityParams{
		Principal: organizer,
		Input:     application.ActivityInput{Title: "Music Therapy", Start: start, End: start.Add(time.Hour), Capacity: 2},
	})
	if err != nil {
		t.Fatalf("create activity: %v", err)
	}
	if music.ID != "id-0001" || !music.CreatedAt.Equal(ReferenceTime()) {
		t.Fatalf("factory defaults not applied: %+v", music)
	}

	self, err := services.Directory.ResolvePerson(ctx, ivy)
	if err != nil {
		t.Fatalf("resolve self: %v", err)
	}
	mum, err := services.Directory.RegisterPerson(ctx, application.RegisterPersonParams{Principal: carl, Name: "Mum"})
	if err != nil {
		t.Fatalf("register dependent: %v", err)
	}

	if _, err := services.Ledger.CreateBooking(ctx, application.BookingParams{Principal: ivy, ActivityID: music.ID, PersonID: self.ID}); err != nil {
		t.Fatalf("book self: %v", err)
	}
	booked, err := services.Ledger.CreateBooking(ctx, application.BookingParams{Principal: carl, ActivityID: music.ID, PersonID: mum.ID})
	if err != nil {
		t.Fatalf("book dependent: %v", err)
	}
	if booked.Confirmation == nil || *booked.Confirmation != application.ConfirmationConfirmed {
		t.Fatalf("caregiver booking should be confirmed, got %+v", booked.Confirmation)
	}
	if _, err := services.Ledger.CreateBooking(ctx, application.BookingParams{Principal: ivy, ActivityID: music.ID, PersonID: mum.ID}); !errors.Is(err, application.ErrNotOwned) {
		t.Fatalf("expected ErrNotOwned, got %v", err)
	}

	occupancy, err := services.Catalog.Occupancy(ctx, music.ID)
	if err != nil || occupancy != 2 {
		t.Fatalf("expected occupancy 2, got %d (%v)", occupancy, err)
	}

	roster, err := services.Reporter.AttendeeRoster(ctx, organizer, music.ID)
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if len(roster) != 2 || roster[0].PersonName != "ivy" || roster[1].PersonName != "Mum" {
		t.Fatalf("unexpected roster %+v", roster)
	}
}

func TestLedgerAdmitsExactlyCapacityUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	harness := NewSQLiteHarness(t)
	services := NewServiceFactory().NewServices(harness.Store, quietLogger())

	start, end := Window(9, 0, 10, 0)
	activity, err := services.Catalog.CreateActivity(ctx, application.CreateActivityParams{
		Principal: application.SystemPrincipal,
		Input:     application.ActivityInput{Title: "Physio", Start: start, End: end, Capacity: 3},
	})
	if err != nil {
		t.Fatalf("create activity: %v", err)
	}

	const bookers = 10
	type attempt struct {
		principal application.Principal
		personID  string
	}
	attempts := make([]attempt, 0, bookers)
	for i := 0; i < bookers; i++ {
		principal := register(t, services.Directory, fmt.Sprintf("guest%02d", i), application.RoleIndividual)
		person, err := services.Directory.ResolvePerson(ctx, principal)
		if err != nil {
			t.Fatalf("resolve person: %v", err)
		}
		attempts = append(attempts, attempt{principal: principal, personID: person.ID})
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		full    int
		other   []error
	)
	for _, a := range attempts {
		wg.Add(1)
		go func(a attempt) {
			defer wg.Done()
			_, err := services.Ledger.CreateBooking(ctx, application.BookingParams{Principal: a.principal, ActivityID: activity.ID, PersonID: a.personID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, application.ErrFull):
				full++
			default:
				other = append(other, err)
			}
		}(a)
	}
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if created != 3 || full != bookers-3 {
		t.Fatalf("expected 3 created and %d full, got %d and %d", bookers-3, created, full)
	}
	occupancy, err := services.Catalog.Occupancy(ctx, activity.ID)
	if err != nil || occupancy != 3 {
		t.Fatalf("expected occupancy 3, got %d (%v)", occupancy, err)
	}
}

func TestCatalogKeepsStoredAndReturnedWindowsEqual(t *testing.T) {
	ctx := context.Background()
	harness := NewSQLiteHarness(t)
	services := NewServiceFactory().NewServices(harness.Store, quietLogger())
	start, end := Window(10, 0, 11, 0)

	_, err := services.Catalog.CreateActivity(ctx, application.CreateActivityParams{
		Principal: application.SystemPrincipal,
		Input:     application.ActivityInput{Title: "Blink", Start: start, End: start.Add(500 * time.Millisecond), Capacity: 1},
	})
	if !errors.Is(err, application.ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow for a sub-second window, got %v", err)
	}

	created, err := services.Catalog.CreateActivity(ctx, application.CreateActivityParams{
		Principal: application.SystemPrincipal,
		Input:     application.ActivityInput{Title: "Music", Start: start, End: end.Add(700 * time.Millisecond), Capacity: 1},
	})
	if err != nil {
		t.Fatalf("create activity: %v", err)
	}
	stored, err := harness.Store.GetActivity(ctx, created.ID)
	if err != nil {
		t.Fatalf("get stored activity: %v", err)
	}
	if !stored.Start.Equal(created.Start) || !stored.End.Equal(created.End) {
		t.Fatalf("stored window %v-%v differs from returned %v-%v", stored.Start, stored.End, created.Start, created.End)
	}
}
