package store

import (
	"context"
	"fmt"

	"github.com/tordrt/kbtrend/internal/db"
	"github.com/tordrt/kbtrend/internal/model"
	"github.com/tordrt/kbtrend/internal/schema"
)

// GetMetadata returns the entry stored under key
func (s *Store) GetMetadata(ctx context.Context, key string) (*model.Metadata, error) {
	d := s.dialect
	query := fmt.Sprintf("SELECT %s, value, updated_at FROM %s WHERE %s = ?",
		d.Quote("key"), d.Quote(schema.MetadataTable), d.Quote("key"))

	var m model.Metadata
	var updatedAt nullTime
	err := s.queryRow(ctx, query, key).Scan(&m.Key, &m.Value, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("getting metadata %q: %w", key, db.Classify(err))
	}
	m.UpdatedAt = updatedAt.Time
	return &m, nil
}

// SetMetadata inserts or replaces the value stored under key and stamps
// updated_at with the current time
func (s *Store) SetMetadata(ctx context.Context, key, value string) (*model.Metadata, error) {
	d := s.dialect
	now := s.utcNow()
	query := fmt.Sprintf("INSERT INTO %s (%s, value, updated_at) VALUES (?, ?, ?)",
		d.Quote(schema.MetadataTable), d.Quote("key")) +
		d.Upsert([]string{"key"}, []string{"value", "updated_at"})

	if _, err := s.exec(ctx, query, nullIfEmpty(key), nullIfEmpty(value), now); err != nil {
		return nil, fmt.Errorf("setting metadata %q: %w", key, err)
	}
	return &model.Metadata{Key: key, Value: value, UpdatedAt: now}, nil
}

// ListMetadata returns every entry ordered by key
func (s *Store) ListMetadata(ctx context.Context) ([]model.Metadata, error) {
	d := s.dialect
	query := fmt.Sprintf("SELECT %s, value, updated_at FROM %s ORDER BY %s",
		d.Quote("key"), d.Quote(schema.MetadataTable), d.Quote("key"))

	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing metadata: %w", err)
	}
	defer rows.Close()

	var entries []model.Metadata
	for rows.Next() {
		var m model.Metadata
		var updatedAt nullTime
		if err := rows.Scan(&m.Key, &m.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning metadata: %w", err)
		}
		m.UpdatedAt = updatedAt.Time
		entries = append(entries, m)
	}
	return entries, rows.Err()
}

// DeleteMetadata removes the entry stored under key
func (s *Store) DeleteMetadata(ctx context.Context, key string) error {
	d := s.dialect
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", d.Quote(schema.MetadataTable), d.Quote("key"))

	res, err := s.exec(ctx, query, key)
	if err != nil {
		return fmt.Errorf("deleting metadata %q: %w", key, err)
	}
	return expectAffected(res, fmt.Sprintf("metadata %q", key))
}
