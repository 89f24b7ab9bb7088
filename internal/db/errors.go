package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	sqlite3 "github.com/mattn/go-sqlite3"
	modernc "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// Storage errors. Driver errors are wrapped, so both the sentinel and the
// original driver error remain reachable through errors.Is / errors.As.
var (
	// ErrDuplicateKey is returned when a write violates a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrDanglingReference is returned when a foreign key does not resolve.
	ErrDanglingReference = errors.New("dangling reference")
	// ErrNotNull is returned when a required column is absent.
	ErrNotNull = errors.New("not null violation")
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("not found")
)

// PostgreSQL SQLSTATE codes for integrity violations
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
)

// MySQL server error numbers for integrity violations
const (
	myDupEntry         = 1062
	myNoReferencedRow  = 1216
	myNoReferencedRow2 = 1452
	myBadNull          = 1048
	myNoDefaultField   = 1364
)

// Classify maps a driver error onto the storage sentinels. Errors it does
// not recognise are returned unchanged; nil stays nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if kind := constraintKind(err); kind != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return err
}

func constraintKind(err error) error {
	var mattnErr sqlite3.Error
	if errors.As(err, &mattnErr) {
		switch mattnErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return ErrDuplicateKey
		case sqlite3.ErrConstraintForeignKey:
			return ErrDanglingReference
		case sqlite3.ErrConstraintNotNull:
			return ErrNotNull
		}
		return nil
	}

	var moderncErr *modernc.Error
	if errors.As(err, &moderncErr) {
		switch moderncErr.Code() {
		case sqlitelib.SQLITE_CONSTRAINT_UNIQUE, sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return ErrDuplicateKey
		case sqlitelib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return ErrDanglingReference
		case sqlitelib.SQLITE_CONSTRAINT_NOTNULL:
			return ErrNotNull
		}
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrDuplicateKey
		case pgForeignKeyViolation:
			return ErrDanglingReference
		case pgNotNullViolation:
			return ErrNotNull
		}
		return nil
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case myDupEntry:
			return ErrDuplicateKey
		case myNoReferencedRow, myNoReferencedRow2:
			return ErrDanglingReference
		case myBadNull, myNoDefaultField:
			return ErrNotNull
		}
	}

	return nil
}
