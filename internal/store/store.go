// Package store reads and writes kbtrend rows with explicit SQL.
//
// Constraint enforcement is left to the storage engine: unique keys,
// foreign keys and NOT NULL columns are declared in the schema and the
// engine's errors are returned wrapped in the db sentinels
// (db.ErrDuplicateKey, db.ErrDanglingReference, db.ErrNotNull).
// Deleting a journal or query removes its counts and queue items through
// ON DELETE CASCADE.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/tordrt/kbtrend/internal/db"
	"github.com/tordrt/kbtrend/internal/schema"
)

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store provides row-level access to the kbtrend tables
type Store struct {
	db      *sql.DB
	q       querier
	dialect schema.Dialect
	logger  *slog.Logger
	now     func() time.Time
}

// Option customises a Store
type Option func(*Store)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// WithClock sets the time source used for updated_at and completed_at.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// New wraps an open database speaking dialect
func New(sqlDB *sql.DB, dialect schema.Dialect, opts ...Option) *Store {
	s := &Store{
		db:      sqlDB,
		q:       sqlDB,
		dialect: dialect,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dialect returns the SQL dialect of the underlying database
func (s *Store) Dialect() schema.Dialect {
	return s.dialect
}

// WithTx runs fn against a Store bound to a single transaction. The
// transaction commits if fn returns nil and rolls back otherwise. Calling
// WithTx on a transaction-bound Store reuses the open transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if _, inTx := s.q.(*sql.Tx); inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	bound := *s
	bound.q = tx
	if err := fn(&bound); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", db.Classify(err))
	}
	return nil
}

// Migrate creates any missing tables and indexes. It is safe to run
// against an already migrated database.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := schema.CreateStatements(s.dialect)
	for _, stmt := range stmts {
		if _, err := s.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	s.logger.Debug("schema migrated", "dialect", s.dialect, "statements", len(stmts))
	return nil
}

// Drop removes every kbtrend table and the rows in it
func (s *Store) Drop(ctx context.Context) error {
	for _, stmt := range schema.Declared().DropStatements(s.dialect) {
		if _, err := s.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("dropping schema: %w", err)
		}
	}
	s.logger.Warn("schema dropped", "dialect", s.dialect)
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := s.q.ExecContext(ctx, s.dialect.Rebind(query), args...)
	return res, db.Classify(err)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := s.q.QueryContext(ctx, s.dialect.Rebind(query), args...)
	return rows, db.Classify(err)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

// insert runs an INSERT and returns the generated id
func (s *Store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if s.dialect.SupportsReturning() {
		var id int64
		err := s.queryRow(ctx, query+" RETURNING id", args...).Scan(&id)
		return id, db.Classify(err)
	}

	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// deleteByID deletes one row and reports ErrNotFound when nothing matched
func (s *Store) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := s.exec(ctx, "DELETE FROM "+s.dialect.Quote(table)+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting %s %d: %w", table, id, err)
	}
	return expectAffected(res, fmt.Sprintf("%s %d", table, id))
}

func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, db.ErrNotFound)
	}
	return nil
}

// nullIfEmpty stores an empty required string as NULL so the engine
// rejects it with a NOT NULL violation
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *Store) utcNow() time.Time {
	return s.now().UTC()
}
