package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// database/sql driver names for the two SQLite implementations
const (
	driverMattn   = "sqlite3"
	driverModernc = "sqlite"
)

// SQLiteClient manages the connection to SQLite
type SQLiteClient struct {
	db *sql.DB
}

// NewSQLiteClient opens path with the cgo driver and foreign keys enforced
func NewSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	dsn := withParams(path, "_foreign_keys=on", "_busy_timeout=5000")
	return openSQLite(ctx, driverMattn, dsn, path)
}

// NewPureSQLiteClient opens path with the pure Go driver and foreign keys enforced
func NewPureSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	dsn := withParams(path, "_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)", "_time_format=sqlite")
	return openSQLite(ctx, driverModernc, dsn, path)
}

func openSQLite(ctx context.Context, driver, dsn, path string) (*SQLiteClient, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to :memory: is a separate database.
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteClient{db: db}, nil
}

// Close closes the database connection
func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *SQLiteClient) GetDB() *sql.DB {
	return c.db
}

func withParams(path string, params ...string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}
