package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/carebook/internal/persistence"
	"github.com/example/carebook/internal/timecodec"
)

const personColumns = `id, owner_handle, name, self_of, nric_last4, created_at`

// EnsureSelfPerson returns the self record for candidate.SelfOf, inserting
// candidate if it does not exist yet. Concurrent callers converge on one row.
func (s *Store) EnsureSelfPerson(ctx context.Context, candidate persistence.Person) (persistence.Person, error) {
	if candidate.SelfOf == nil || *candidate.SelfOf == "" {
		return persistence.Person{}, persistence.ErrConstraintViolation
	}

	q := s.queries()
	_, err := q.h.Exec(ctx, "ensure_self_person", `
		INSERT INTO persons (`+personColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (self_of) DO NOTHING`,
		candidate.ID,
		candidate.OwnerHandle,
		candidate.Name,
		*candidate.SelfOf,
		nullable(candidate.NRICLast4),
		timecodec.ToEpoch(candidate.CreatedAt),
	)
	if err != nil {
		return persistence.Person{}, fmt.Errorf("ensure self person for %s: %w", *candidate.SelfOf, q.mapper.MapError(err))
	}

	row := q.h.QueryRow(ctx, "get_self_person", `SELECT `+personColumns+` FROM persons WHERE self_of = ?`, *candidate.SelfOf)
	return q.scanPerson(row)
}

// CreatePerson inserts a caregiver-managed person.
func (s *Store) CreatePerson(ctx context.Context, person persistence.Person) error {
	if person.ID == "" || person.OwnerHandle == "" {
		return persistence.ErrConstraintViolation
	}

	q := s.queries()
	_, err := q.h.Exec(ctx, "create_person", `
		INSERT INTO persons (`+personColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		person.ID,
		person.OwnerHandle,
		person.Name,
		nullable(person.SelfOf),
		nullable(person.NRICLast4),
		timecodec.ToEpoch(person.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create person %s: %w", person.ID, q.mapper.MapError(err))
	}
	return nil
}

// GetPerson loads a person by id.
func (s *Store) GetPerson(ctx context.Context, id string) (persistence.Person, error) {
	q := s.queries()
	row := q.h.QueryRow(ctx, "get_person", `SELECT `+personColumns+` FROM persons WHERE id = ?`, id)
	return q.scanPerson(row)
}

// ListManagedPersons lists the non-self persons owned by a handle, ordered by
// case-insensitive name then id.
func (s *Store) ListManagedPersons(ctx context.Context, ownerHandle string) ([]persistence.Person, error) {
	q := s.queries()
	rows, err := q.h.Query(ctx, "list_managed_persons", `
		SELECT `+personColumns+`
		FROM persons
		WHERE owner_handle = ? AND self_of IS NULL
		ORDER BY LOWER(name) ASC, id ASC`, ownerHandle)
	if err != nil {
		return nil, fmt.Errorf("list persons for %s: %w", ownerHandle, q.mapper.MapError(err))
	}
	defer rows.Close()

	var persons []persistence.Person
	for rows.Next() {
		person, err := q.scanPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, person)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", q.mapper.MapError(err))
	}
	return persons, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (q queries) scanPerson(row scanner) (persistence.Person, error) {
	var (
		person       persistence.Person
		selfOf, nric sql.NullString
		created      int64
	)
	if err := row.Scan(&person.ID, &person.OwnerHandle, &person.Name, &selfOf, &nric, &created); err != nil {
		mapped := q.mapper.MapError(err)
		if errors.Is(mapped, persistence.ErrNotFound) {
			return persistence.Person{}, persistence.ErrNotFound
		}
		return persistence.Person{}, fmt.Errorf("scan person: %w", mapped)
	}
	person.SelfOf = ptr(selfOf)
	person.NRICLast4 = ptr(nric)
	person.CreatedAt = timecodec.FromEpoch(created)
	return person, nil
}
