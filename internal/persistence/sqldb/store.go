// Package sqldb implements the persistence repositories on database/sql with
// interchangeable SQLite and Postgres backends.
package sqldb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/example/carebook/internal/persistence"
	"github.com/example/carebook/internal/persistence/sqldb/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationFiles returns the embedded schema migrations.
func MigrationFiles() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(fmt.Sprintf("sqldb: embedded migrations missing: %v", err))
	}
	return sub
}

// Store implements every persistence repository on one connection pool.
type Store struct {
	pool *ConnectionPool
}

var (
	_ persistence.UserRepository     = (*Store)(nil)
	_ persistence.PersonRepository   = (*Store)(nil)
	_ persistence.ActivityRepository = (*Store)(nil)
	_ persistence.BookingRepository  = (*Store)(nil)
)

// NewStore wraps an open pool.
func NewStore(pool *ConnectionPool) *Store {
	return &Store{pool: pool}
}

// Open connects to the configured database and applies pending migrations.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	pool, err := NewConnectionPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := NewStore(pool)
	if err := store.Migrate(ctx, logger); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return store, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context, logger *slog.Logger) error {
	executor := migration.NewExecutor(s.pool.DB(), s.pool.Dialect().Rebind)
	manager := migration.NewManager(migration.NewFileScanner(MigrationFiles()), executor, logger)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqldb: migrate: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Pool exposes the underlying connection pool.
func (s *Store) Pool() *ConnectionPool {
	return s.pool
}

func (s *Store) queries() queries {
	return queries{h: s.pool.helper(), mapper: s.pool.mapper}
}

// queries holds statements shared by pool-level and transaction-level access.
type queries struct {
	h      QueryHelper
	mapper *ErrorMapper
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func ptr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// requireRow reports ErrNotFound when a statement touched no rows.
func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
