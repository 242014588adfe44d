package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/carebook/internal/persistence"
	"github.com/example/carebook/internal/persistence/sqldb"
)

// SQLiteHarness provides a migrated store backed by a temporary SQLite file
// for integration-style persistence tests.
type SQLiteHarness struct {
	Store *sqldb.Store
	Path  string

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens a fresh database file under tb.TempDir. Close is
// optional; the harness also registers a cleanup callback with tb.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "carebook.db")
	cfg := sqldb.DefaultConfig()
	cfg.DSN = "file:" + path

	store, err := sqldb.Open(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	harness := &SQLiteHarness{
		Store: store,
		Path:  path,
		cleanup: func() {
			_ = store.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}

// SeedUsers upserts users, failing the test on error.
func (h *SQLiteHarness) SeedUsers(tb testing.TB, users ...persistence.User) {
	tb.Helper()
	for _, user := range users {
		if _, err := h.Store.UpsertUser(context.Background(), user); err != nil {
			tb.Fatalf("seed user %s: %v", user.Handle, err)
		}
	}
}

// SeedPersons inserts persons, failing the test on error.
func (h *SQLiteHarness) SeedPersons(tb testing.TB, persons ...persistence.Person) {
	tb.Helper()
	for _, person := range persons {
		if err := h.Store.CreatePerson(context.Background(), person); err != nil {
			tb.Fatalf("seed person %s: %v", person.ID, err)
		}
	}
}

// SeedActivities inserts activities, failing the test on error.
func (h *SQLiteHarness) SeedActivities(tb testing.TB, activities ...persistence.Activity) {
	tb.Helper()
	for _, activity := range activities {
		if err := h.Store.CreateActivity(context.Background(), activity); err != nil {
			tb.Fatalf("seed activity %s: %v", activity.ID, err)
		}
	}
}

// SeedBookings inserts bookings without capacity or overlap checks.
func (h *SQLiteHarness) SeedBookings(tb testing.TB, bookings ...persistence.Booking) {
	tb.Helper()
	err := h.Store.InBookingTx(context.Background(), func(tx persistence.BookingTx) error {
		for _, booking := range bookings {
			if err := tx.InsertBooking(context.Background(), booking); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		tb.Fatalf("seed bookings: %v", err)
	}
}
