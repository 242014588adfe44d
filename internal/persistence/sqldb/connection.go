package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/example/carebook/internal/metrics"
	"github.com/example/carebook/internal/persistence"
)

// Config describes how to reach the database.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
	Retry           RetryConfig
}

// DefaultConfig returns a configuration for a local SQLite file.
func DefaultConfig() Config {
	return Config{
		Driver:          string(DialectSQLite),
		DSN:             "file:carebook.db",
		MaxOpenConns:    4,
		MaxIdleConns:    4,
		ConnMaxLifetime: 30 * time.Minute,
		BusyTimeout:     5 * time.Second,
		Retry:           DefaultRetryConfig(),
	}
}

// ConnectionPool manages database connections with transaction support
type ConnectionPool struct {
	db      *sql.DB
	dialect Dialect
	mapper  *ErrorMapper
	retry   *RetryHelper
}

// NewConnectionPool opens and pings the configured database.
func NewConnectionPool(ctx context.Context, cfg Config) (*ConnectionPool, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	defaults := DefaultConfig()
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = defaults.MaxOpenConns
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = defaults.BusyTimeout
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = defaults.Retry
	}

	dsn := cfg.DSN
	if dialect == DialectSQLite {
		dsn = sqliteDSN(dsn, cfg.BusyTimeout)
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect, err)
	}

	mapper := NewErrorMapper(dialect)
	return &ConnectionPool{
		db:      db,
		dialect: dialect,
		mapper:  mapper,
		retry:   NewRetryHelper(cfg.Retry, mapper),
	}, nil
}

// DB returns the underlying database handle
func (cp *ConnectionPool) DB() *sql.DB {
	return cp.db
}

// Dialect reports the backend in use.
func (cp *ConnectionPool) Dialect() Dialect {
	return cp.dialect
}

// Close closes the connection pool
func (cp *ConnectionPool) Close() error {
	if cp.db != nil {
		return cp.db.Close()
	}
	return nil
}

// Ping tests the database connection
func (cp *ConnectionPool) Ping(ctx context.Context) error {
	return cp.db.PingContext(ctx)
}

// TransactionFunc represents a function that executes within a transaction
type TransactionFunc func(tx *sql.Tx) error

// WithTransaction executes fn within a database transaction. If fn returns an
// error or panics the transaction is rolled back, otherwise it is committed.
func (cp *ConnectionPool) WithTransaction(ctx context.Context, fn TransactionFunc) (err error) {
	tx, err := cp.db.BeginTx(ctx, cp.dialect.txOptions())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", cp.mapper.MapError(err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", cp.mapper.MapError(err))
	}
	return nil
}

// WithRetryingTransaction runs WithTransaction and retries it on busy or
// serialization failures.
func (cp *ConnectionPool) WithRetryingTransaction(ctx context.Context, fn TransactionFunc) error {
	return cp.retry.WithRetry(ctx, func() error {
		return cp.WithTransaction(ctx, fn)
	})
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// QueryHelper rebinds placeholders and times every statement.
type QueryHelper struct {
	q       queryer
	dialect Dialect
}

func (cp *ConnectionPool) helper() QueryHelper {
	return QueryHelper{q: cp.db, dialect: cp.dialect}
}

func (cp *ConnectionPool) txHelper(tx *sql.Tx) QueryHelper {
	return QueryHelper{q: tx, dialect: cp.dialect}
}

// QueryRow executes a query that returns a single row
func (qh QueryHelper) QueryRow(ctx context.Context, op, query string, args ...any) *sql.Row {
	defer observeDB(ctx, op)()
	return qh.q.QueryRowContext(ctx, qh.dialect.Rebind(query), args...)
}

// Query executes a query that returns multiple rows
func (qh QueryHelper) Query(ctx context.Context, op, query string, args ...any) (*sql.Rows, error) {
	defer observeDB(ctx, op)()
	return qh.q.QueryContext(ctx, qh.dialect.Rebind(query), args...)
}

// Exec executes a query that doesn't return rows
func (qh QueryHelper) Exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	defer observeDB(ctx, op)()
	return qh.q.ExecContext(ctx, qh.dialect.Rebind(query), args...)
}

func observeDB(ctx context.Context, operation string) func() {
	start := time.Now()
	return func() {
		metrics.ObserveDBLatency(ctx, operation, start)
	}
}

// errRetryable marks lock contention and serialization failures.
var errRetryable = errors.New("sqldb: transient contention")

// ErrorMapper maps driver errors to persistence layer errors
type ErrorMapper struct {
	dialect Dialect
}

// NewErrorMapper creates a new error mapper
func NewErrorMapper(dialect Dialect) *ErrorMapper {
	return &ErrorMapper{dialect: dialect}
}

// MapError maps driver-specific errors to persistence sentinels. Errors that
// are already persistence sentinels, or unknown, pass through unchanged.
// Typed driver errors are classified by code, then by their own message.
// Other errors are matched by message only when they wrap nothing.
func (em *ErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", persistence.ErrNotFound, err)
	}

	var (
		liteErr *sqlite.Error
		pqErr   *pq.Error
	)
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %w", persistence.ErrDuplicate, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %w", persistence.ErrForeignKeyViolation, err)
		case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return fmt.Errorf("%w: %w", persistence.ErrConstraintViolation, err)
		}
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %w", errRetryable, err)
		}
	}

	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %w", persistence.ErrDuplicate, err)
		case "23503":
			return fmt.Errorf("%w: %w", persistence.ErrForeignKeyViolation, err)
		case "23514", "23502":
			return fmt.Errorf("%w: %w", persistence.ErrConstraintViolation, err)
		case "40001", "40P01":
			return fmt.Errorf("%w: %w", errRetryable, err)
		}
	}

	// Only driver text is matched. Wrapped errors may carry domain messages
	// that quote user data, such as activity titles.
	var errStr string
	switch {
	case liteErr != nil:
		errStr = liteErr.Error()
	case pqErr != nil:
		errStr = pqErr.Message
	case isLeaf(err):
		errStr = err.Error()
	default:
		return err
	}
	switch {
	case containsAny(errStr, "UNIQUE constraint failed", "duplicate key value"):
		return fmt.Errorf("%w: %w", persistence.ErrDuplicate, err)
	case containsAny(errStr, "FOREIGN KEY constraint failed", "violates foreign key constraint"):
		return fmt.Errorf("%w: %w", persistence.ErrForeignKeyViolation, err)
	case containsAny(errStr, "CHECK constraint failed", "violates check constraint"):
		return fmt.Errorf("%w: %w", persistence.ErrConstraintViolation, err)
	case containsAny(errStr, "database is locked", "database table is locked", "SQLITE_BUSY"):
		return fmt.Errorf("%w: %w", errRetryable, err)
	}
	return err
}

func isLeaf(err error) bool {
	switch err.(type) {
	case interface{ Unwrap() error }, interface{ Unwrap() []error }:
		return false
	}
	return true
}

func containsAny(s string, substrings ...string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

// RetryConfig configures retry behavior for database operations
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns a retry configuration with sensible defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    5,
		InitialDelay:  20 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryHelper provides retry functionality for database operations
type RetryHelper struct {
	config RetryConfig
	mapper *ErrorMapper
}

// NewRetryHelper creates a new retry helper
func NewRetryHelper(config RetryConfig, mapper *ErrorMapper) *RetryHelper {
	return &RetryHelper{config: config, mapper: mapper}
}

// WithRetry executes fn, retrying transient contention with exponential backoff.
func (rh *RetryHelper) WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := rh.config.InitialDelay

	for attempt := 0; attempt <= rh.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * rh.config.BackoffFactor)
				if delay > rh.config.MaxDelay {
					delay = rh.config.MaxDelay
				}
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = rh.mapper.MapError(err)
		if !errors.Is(lastErr, errRetryable) {
			return lastErr
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", rh.config.MaxRetries, lastErr)
}
