package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/carebook/internal/persistence"
	"github.com/example/carebook/internal/timecodec"
)

const activityColumns = `id, title, description, start_ts, end_ts, capacity, created_by, created_at`

// CreateActivity inserts a catalog entry.
func (s *Store) CreateActivity(ctx context.Context, activity persistence.Activity) error {
	if activity.ID == "" {
		return persistence.ErrConstraintViolation
	}

	q := s.queries()
	_, err := q.h.Exec(ctx, "create_activity", `
		INSERT INTO activities (`+activityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		activity.ID,
		activity.Title,
		nullable(activity.Description),
		timecodec.ToEpoch(activity.Start),
		timecodec.ToEpoch(activity.End),
		activity.Capacity,
		activity.CreatedBy,
		timecodec.ToEpoch(activity.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create activity %s: %w", activity.ID, q.mapper.MapError(err))
	}
	return nil
}

// GetActivity loads an activity by id.
func (s *Store) GetActivity(ctx context.Context, id string) (persistence.Activity, error) {
	return s.queries().GetActivity(ctx, id)
}

// ListActivities returns every activity with its live booking count, soonest first.
func (s *Store) ListActivities(ctx context.Context) ([]persistence.ActivityOccupancy, error) {
	q := s.queries()
	rows, err := q.h.Query(ctx, "list_activities", `
		SELECT a.id, a.title, a.description, a.start_ts, a.end_ts, a.capacity, a.created_by, a.created_at,
			(SELECT COUNT(*) FROM bookings b WHERE b.activity_id = a.id)
		FROM activities a
		ORDER BY a.start_ts ASC, a.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", q.mapper.MapError(err))
	}
	defer rows.Close()

	var activities []persistence.ActivityOccupancy
	for rows.Next() {
		var (
			item                  persistence.ActivityOccupancy
			description           sql.NullString
			start, end, createdAt int64
		)
		if err := rows.Scan(&item.ID, &item.Title, &description, &start, &end, &item.Capacity, &item.CreatedBy, &createdAt, &item.Booked); err != nil {
			return nil, fmt.Errorf("scan activity: %w", q.mapper.MapError(err))
		}
		item.Description = ptr(description)
		item.Start = timecodec.FromEpoch(start)
		item.End = timecodec.FromEpoch(end)
		item.CreatedAt = timecodec.FromEpoch(createdAt)
		activities = append(activities, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", q.mapper.MapError(err))
	}
	return activities, nil
}

// CountBookings returns the live occupancy of an activity.
func (s *Store) CountBookings(ctx context.Context, activityID string) (int, error) {
	return s.queries().CountBookings(ctx, activityID)
}

// CountActivities returns the catalog size.
func (s *Store) CountActivities(ctx context.Context) (int, error) {
	q := s.queries()
	var count int
	if err := q.h.QueryRow(ctx, "count_activities", `SELECT COUNT(*) FROM activities`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count activities: %w", q.mapper.MapError(err))
	}
	return count, nil
}

// GetActivity loads an activity by id.
func (q queries) GetActivity(ctx context.Context, id string) (persistence.Activity, error) {
	row := q.h.QueryRow(ctx, "get_activity", `SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)

	var (
		activity              persistence.Activity
		description           sql.NullString
		start, end, createdAt int64
	)
	if err := row.Scan(&activity.ID, &activity.Title, &description, &start, &end, &activity.Capacity, &activity.CreatedBy, &createdAt); err != nil {
		mapped := q.mapper.MapError(err)
		if errors.Is(mapped, persistence.ErrNotFound) {
			return persistence.Activity{}, persistence.ErrNotFound
		}
		return persistence.Activity{}, fmt.Errorf("get activity %s: %w", id, mapped)
	}
	activity.Description = ptr(description)
	activity.Start = timecodec.FromEpoch(start)
	activity.End = timecodec.FromEpoch(end)
	activity.CreatedAt = timecodec.FromEpoch(createdAt)
	return activity, nil
}

// CountBookings returns the live occupancy of an activity.
func (q queries) CountBookings(ctx context.Context, activityID string) (int, error) {
	var count int
	if err := q.h.QueryRow(ctx, "count_bookings", `SELECT COUNT(*) FROM bookings WHERE activity_id = ?`, activityID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count bookings for %s: %w", activityID, q.mapper.MapError(err))
	}
	return count, nil
}
