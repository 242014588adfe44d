package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/carebook/internal/persistence"
	"github.com/example/carebook/internal/timecodec"
)

const userColumns = `handle, role, display_name, phone, notify_address, created_at, updated_at`

// UpsertUser inserts or overwrites a user keyed by handle.
func (s *Store) UpsertUser(ctx context.Context, user persistence.User) (persistence.User, error) {
	if user.Handle == "" {
		return persistence.User{}, persistence.ErrConstraintViolation
	}

	q := s.queries()
	_, err := q.h.Exec(ctx, "upsert_user", `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (handle) DO UPDATE SET
			role = excluded.role,
			display_name = excluded.display_name,
			phone = excluded.phone,
			notify_address = excluded.notify_address,
			updated_at = excluded.updated_at`,
		user.Handle,
		user.Role,
		user.DisplayName,
		user.Phone,
		nullable(user.NotifyAddress),
		timecodec.ToEpoch(user.CreatedAt),
		timecodec.ToEpoch(user.UpdatedAt),
	)
	if err != nil {
		return persistence.User{}, fmt.Errorf("upsert user %s: %w", user.Handle, q.mapper.MapError(err))
	}
	return s.GetUser(ctx, user.Handle)
}

// GetUser loads a user by handle.
func (s *Store) GetUser(ctx context.Context, handle string) (persistence.User, error) {
	q := s.queries()
	row := q.h.QueryRow(ctx, "get_user", `SELECT `+userColumns+` FROM users WHERE handle = ?`, handle)

	var (
		user             persistence.User
		created, updated int64
		notify           sql.NullString
	)
	if err := row.Scan(&user.Handle, &user.Role, &user.DisplayName, &user.Phone, &notify, &created, &updated); err != nil {
		mapped := q.mapper.MapError(err)
		if errors.Is(mapped, persistence.ErrNotFound) {
			return persistence.User{}, persistence.ErrNotFound
		}
		return persistence.User{}, fmt.Errorf("get user %s: %w", handle, mapped)
	}
	user.NotifyAddress = ptr(notify)
	user.CreatedAt = timecodec.FromEpoch(created)
	user.UpdatedAt = timecodec.FromEpoch(updated)
	return user, nil
}

// UpdateUserRole changes the role of an existing user.
func (s *Store) UpdateUserRole(ctx context.Context, handle, role string, updatedAt time.Time) error {
	q := s.queries()
	result, err := q.h.Exec(ctx, "update_user_role",
		`UPDATE users SET role = ?, updated_at = ? WHERE handle = ?`,
		role, timecodec.ToEpoch(updatedAt), handle)
	if err != nil {
		return fmt.Errorf("update role for %s: %w", handle, q.mapper.MapError(err))
	}
	return requireRow(result)
}
