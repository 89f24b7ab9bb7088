package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// PostgresClient manages the connection pool to PostgreSQL
type PostgresClient struct {
	pool *pgxpool.Pool
	db   *sql.DB
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(ctx context.Context, connString string) (*PostgresClient, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{pool: pool, db: stdlib.OpenDBFromPool(pool)}, nil
}

// Close closes the database/sql handle and the pool beneath it
func (c *PostgresClient) Close() error {
	err := c.db.Close()
	c.pool.Close()
	return err
}

// GetPool returns the underlying pgx pool
func (c *PostgresClient) GetPool() *pgxpool.Pool {
	return c.pool
}

// GetDB returns a database/sql view of the pool
func (c *PostgresClient) GetDB() *sql.DB {
	return c.db
}
