// Package db opens kbtrend databases, introspects their catalogs and maps
// driver errors onto storage sentinels.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tordrt/kbtrend/internal/schema"
)

// Kind selects a driver
type Kind string

const (
	KindSQLite        Kind = "sqlite"
	KindSQLiteModernc Kind = "sqlite+modernc"
	KindPostgres      Kind = "postgres"
	KindMySQL         Kind = "mysql"
)

// SchemaExtractor reads the live catalog of a database
type SchemaExtractor interface {
	ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error)
}

// Connection bundles an open database with its dialect and extractor
type Connection struct {
	DB        *sql.DB
	Dialect   schema.Dialect
	Extractor SchemaExtractor
	close     func() error
}

// Close releases the connection
func (c *Connection) Close() error {
	return c.close()
}

// Connect opens dsn with the driver selected by kind. schemaName scopes
// introspection: PostgreSQL defaults to "public", MySQL to the DSN's
// database; SQLite ignores it.
func Connect(ctx context.Context, kind Kind, dsn, schemaName string) (*Connection, error) {
	switch kind {
	case KindSQLite, KindSQLiteModernc:
		open := NewSQLiteClient
		if kind == KindSQLiteModernc {
			open = NewPureSQLiteClient
		}
		client, err := open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
		}
		return &Connection{
			DB:        client.GetDB(),
			Dialect:   schema.SQLite,
			Extractor: NewSQLiteExtractor(client),
			close:     client.Close,
		}, nil

	case KindPostgres:
		client, err := NewPostgresClient(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		if schemaName == "" {
			schemaName = "public"
		}
		return &Connection{
			DB:        client.GetDB(),
			Dialect:   schema.Postgres,
			Extractor: NewPostgresExtractor(client, schemaName),
			close:     client.Close,
		}, nil

	case KindMySQL:
		if schemaName == "" {
			name, err := ParseDatabaseName(dsn)
			if err != nil {
				return nil, fmt.Errorf("failed to determine database name: %w", err)
			}
			schemaName = name
		}
		client, err := NewMySQLClient(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		return &Connection{
			DB:        client.GetDB(),
			Dialect:   schema.MySQL,
			Extractor: NewMySQLExtractor(client, schemaName),
			close:     client.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", kind)
	}
}
