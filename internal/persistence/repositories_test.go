package persistence_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/carebook/internal/persistence"
	"github.com/example/carebook/internal/testfixtures"
)

func TestUserRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testfixtures.NewSQLiteHarness(t).Store

	t.Run("upsert keeps created_at and overwrites the profile", func(t *testing.T) {
		original := testfixtures.NewUser(testfixtures.WithHandle("ivy"), testfixtures.WithNotifyAddress("ivy@example.com"))
		stored, err := store.UpsertUser(ctx, original)
		require.NoError(t, err)
		assert.Equal(t, "individual", stored.Role)
		require.NotNil(t, stored.NotifyAddress)
		assert.Equal(t, "ivy@example.com", *stored.NotifyAddress)

		later := original.CreatedAt.Add(time.Hour)
		replacement := testfixtures.NewUser(
			testfixtures.WithHandle("ivy"),
			testfixtures.WithRole("caregiver"),
			testfixtures.WithDisplayName("Ivy Tan"),
		)
		replacement.CreatedAt = later
		replacement.UpdatedAt = later

		stored, err = store.UpsertUser(ctx, replacement)
		require.NoError(t, err)
		assert.Equal(t, "caregiver", stored.Role)
		assert.Equal(t, "Ivy Tan", stored.DisplayName)
		assert.Nil(t, stored.NotifyAddress)
		assert.True(t, stored.CreatedAt.Equal(original.CreatedAt))
		assert.True(t, stored.UpdatedAt.Equal(later))
	})

	t.Run("role update", func(t *testing.T) {
		_, err := store.UpsertUser(ctx, testfixtures.NewUser(testfixtures.WithHandle("olga")))
		require.NoError(t, err)

		require.NoError(t, store.UpdateUserRole(ctx, "olga", "admin", testfixtures.ReferenceTime().Add(time.Minute)))
		user, err := store.GetUser(ctx, "olga")
		require.NoError(t, err)
		assert.Equal(t, "admin", user.Role)

		assert.ErrorIs(t, store.UpdateUserRole(ctx, "nobody", "admin", time.Now()), persistence.ErrNotFound)
	})

	t.Run("unknown handle", func(t *testing.T) {
		_, err := store.GetUser(ctx, "ghost")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("invalid role violates the check constraint", func(t *testing.T) {
		_, err := store.UpsertUser(ctx, testfixtures.NewUser(testfixtures.WithRole("superuser")))
		assert.ErrorIs(t, err, persistence.ErrConstraintViolation)
	})
}

func TestPersonRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	store := harness.Store
	harness.SeedUsers(t,
		testfixtures.NewUser(testfixtures.WithHandle("ivy")),
		testfixtures.NewUser(testfixtures.WithHandle("carl"), testfixtures.WithRole("caregiver")),
	)

	t.Run("self person is created once", func(t *testing.T) {
		first, err := store.EnsureSelfPerson(ctx, testfixtures.NewSelfPerson("ivy", testfixtures.WithPersonID("self-a"), testfixtures.WithPersonName("Ivy")))
		require.NoError(t, err)
		second, err := store.EnsureSelfPerson(ctx, testfixtures.NewSelfPerson("ivy", testfixtures.WithPersonID("self-b")))
		require.NoError(t, err)

		assert.Equal(t, "self-a", first.ID)
		assert.Equal(t, first.ID, second.ID)
		require.NotNil(t, second.SelfOf)
		assert.Equal(t, "ivy", *second.SelfOf)
	})

	t.Run("concurrent self resolution converges", func(t *testing.T) {
		harness.SeedUsers(t, testfixtures.NewUser(testfixtures.WithHandle("dora")))

		var wg sync.WaitGroup
		ids := make([]string, 6)
		errs := make([]error, 6)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				person, err := store.EnsureSelfPerson(ctx, testfixtures.NewSelfPerson("dora"))
				ids[i], errs[i] = person.ID, err
			}(i)
		}
		wg.Wait()

		for i := range ids {
			require.NoError(t, errs[i])
			assert.Equal(t, ids[0], ids[i])
		}
	})

	t.Run("managed persons exclude self and sort by name", func(t *testing.T) {
		harness.SeedPersons(t,
			testfixtures.NewPerson("carl", testfixtures.WithPersonID("p-2"), testfixtures.WithPersonName("mum")),
			testfixtures.NewPerson("carl", testfixtures.WithPersonID("p-1"), testfixtures.WithPersonName("Dad"), testfixtures.WithNRICLast4("123A")),
			testfixtures.NewPerson("carl", testfixtures.WithPersonID("p-0"), testfixtures.WithPersonName("Mum")),
		)
		_, err := store.EnsureSelfPerson(ctx, testfixtures.NewSelfPerson("carl"))
		require.NoError(t, err)

		persons, err := store.ListManagedPersons(ctx, "carl")
		require.NoError(t, err)
		ids := make([]string, 0, len(persons))
		for _, p := range persons {
			ids = append(ids, p.ID)
		}
		assert.Equal(t, []string{"p-1", "p-0", "p-2"}, ids)
		require.NotNil(t, persons[0].NRICLast4)
		assert.Equal(t, "123A", *persons[0].NRICLast4)
	})

	t.Run("owner must exist", func(t *testing.T) {
		err := store.CreatePerson(ctx, testfixtures.NewPerson("ghost"))
		assert.ErrorIs(t, err, persistence.ErrForeignKeyViolation)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.GetPerson(ctx, "missing")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})
}

func TestActivityRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	store := harness.Store
	base := testfixtures.ReferenceTime()

	count, err := store.CountActivities(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	harness.SeedUsers(t, testfixtures.NewUser(testfixtures.WithHandle("organizer"), testfixtures.WithRole("admin")))
	harness.SeedActivities(t,
		testfixtures.NewActivity(testfixtures.WithActivityID("b"), testfixtures.WithWindow(base.Add(time.Hour), base.Add(2*time.Hour))),
		testfixtures.NewActivity(testfixtures.WithActivityID("a"), testfixtures.WithWindow(base.Add(time.Hour), base.Add(3*time.Hour)), testfixtures.WithDescription("Bring shoes")),
		testfixtures.NewActivity(testfixtures.WithActivityID("c"), testfixtures.WithWindow(base, base.Add(time.Hour)), testfixtures.WithCapacity(1)),
	)
	harness.SeedPersons(t, testfixtures.NewPerson("organizer", testfixtures.WithPersonID("p1")))
	harness.SeedBookings(t, testfixtures.NewBooking("a", "p1"))

	t.Run("list orders by start then id with occupancy", func(t *testing.T) {
		items, err := store.ListActivities(ctx)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, "c", items[0].ID)
		assert.Equal(t, "a", items[1].ID)
		assert.Equal(t, "b", items[2].ID)
		assert.Equal(t, 1, items[1].Booked)
		assert.Zero(t, items[2].Booked)
	})

	t.Run("get round-trips the window in UTC", func(t *testing.T) {
		activity, err := store.GetActivity(ctx, "a")
		require.NoError(t, err)
		assert.True(t, activity.Start.Equal(base.Add(time.Hour)))
		assert.Equal(t, time.UTC, activity.Start.Location())
		require.NotNil(t, activity.Description)
		assert.Equal(t, "Bring shoes", *activity.Description)

		_, err = store.GetActivity(ctx, "zzz")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("counts", func(t *testing.T) {
		n, err := store.CountBookings(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = store.CountActivities(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("duplicate id and bad window are rejected", func(t *testing.T) {
		err := store.CreateActivity(ctx, testfixtures.NewActivity(testfixtures.WithActivityID("a")))
		assert.ErrorIs(t, err, persistence.ErrDuplicate)

		err = store.CreateActivity(ctx, testfixtures.NewActivity(testfixtures.WithWindow(base, base)))
		assert.ErrorIs(t, err, persistence.ErrConstraintViolation)
	})
}

func TestBookingRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	store := harness.Store
	base := testfixtures.ReferenceTime()

	harness.SeedUsers(t,
		testfixtures.NewUser(testfixtures.WithHandle("organizer"), testfixtures.WithRole("admin")),
		testfixtures.NewUser(testfixtures.WithHandle("carl"), testfixtures.WithRole("caregiver")),
	)
	harness.SeedActivities(t,
		testfixtures.NewActivity(testfixtures.WithActivityID("late"), testfixtures.WithTitle("Art Jam"), testfixtures.WithWindow(base.Add(3*time.Hour), base.Add(4*time.Hour))),
		testfixtures.NewActivity(testfixtures.WithActivityID("early"), testfixtures.WithTitle("Music"), testfixtures.WithWindow(base, base.Add(time.Hour))),
	)
	harness.SeedPersons(t,
		testfixtures.NewPerson("carl", testfixtures.WithPersonID("p1"), testfixtures.WithPersonName("zed")),
		testfixtures.NewPerson("carl", testfixtures.WithPersonID("p2"), testfixtures.WithPersonName("Amy")),
	)
	harness.SeedBookings(t,
		testfixtures.NewBooking("late", "p1", testfixtures.WithBookedBy("carl")),
		testfixtures.NewBooking("early", "p1", testfixtures.WithBookedBy("carl"), testfixtures.WithCaregiver("carl", "confirmed")),
		testfixtures.NewBooking("early", "p2"),
	)

	t.Run("person bookings are ordered by start", func(t *testing.T) {
		details, err := store.ListPersonBookings(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, details, 2)
		assert.Equal(t, "Music", details[0].ActivityTitle)
		assert.Equal(t, "Art Jam", details[1].ActivityTitle)
		assert.True(t, details[0].End.Equal(base.Add(time.Hour)))
		require.NotNil(t, details[0].Confirmation)
		assert.Equal(t, "confirmed", *details[0].Confirmation)
	})

	t.Run("transaction view sees the same rows", func(t *testing.T) {
		err := store.InBookingTx(ctx, func(tx persistence.BookingTx) error {
			exists, err := tx.BookingExists(ctx, "early", "p2")
			require.NoError(t, err)
			assert.True(t, exists)

			exists, err = tx.BookingExists(ctx, "late", "p2")
			require.NoError(t, err)
			assert.False(t, exists)

			n, err := tx.CountBookings(ctx, "early")
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("duplicate pair is rejected and rolled back", func(t *testing.T) {
		err := store.InBookingTx(ctx, func(tx persistence.BookingTx) error {
			return tx.InsertBooking(ctx, testfixtures.NewBooking("early", "p2"))
		})
		assert.ErrorIs(t, err, persistence.ErrDuplicate)

		n, err := store.CountBookings(ctx, "early")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("unknown activity violates the foreign key", func(t *testing.T) {
		err := store.InBookingTx(ctx, func(tx persistence.BookingTx) error {
			return tx.InsertBooking(ctx, testfixtures.NewBooking("missing", "p2"))
		})
		assert.ErrorIs(t, err, persistence.ErrForeignKeyViolation)
	})

	t.Run("roster is ordered by case-insensitive name", func(t *testing.T) {
		roster, err := store.ListRoster(ctx, "early")
		require.NoError(t, err)
		require.Len(t, roster, 2)
		assert.Equal(t, "Amy", roster[0].PersonName)
		assert.Equal(t, "zed", roster[1].PersonName)
		assert.Nil(t, roster[0].CaregiverHandle)
		require.NotNil(t, roster[1].CaregiverHandle)
		assert.Equal(t, "carl", *roster[1].CaregiverHandle)
	})

	t.Run("confirmation compare-and-set", func(t *testing.T) {
		require.NoError(t, store.AttachCaregiver(ctx, "late", "p1", "carl"))
		booking, err := store.GetBooking(ctx, "late", "p1")
		require.NoError(t, err)
		require.NotNil(t, booking.Confirmation)
		assert.Equal(t, "pending", *booking.Confirmation)

		applied, err := store.TransitionConfirmation(ctx, "late", "p1", "someone", "pending", "confirmed")
		require.NoError(t, err)
		assert.False(t, applied)

		applied, err = store.TransitionConfirmation(ctx, "late", "p1", "carl", "pending", "declined")
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = store.TransitionConfirmation(ctx, "late", "p1", "carl", "pending", "confirmed")
		require.NoError(t, err)
		assert.False(t, applied)

		booking, err = store.GetBooking(ctx, "late", "p1")
		require.NoError(t, err)
		assert.Equal(t, "declined", *booking.Confirmation)

		assert.ErrorIs(t, store.AttachCaregiver(ctx, "late", "p2", "carl"), persistence.ErrNotFound)
	})

	t.Run("delete reports whether a row was removed", func(t *testing.T) {
		removed, err := store.DeleteBooking(ctx, "late", "p1")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = store.DeleteBooking(ctx, "late", "p1")
		require.NoError(t, err)
		assert.False(t, removed)

		_, err = store.GetBooking(ctx, "late", "p1")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})
}
