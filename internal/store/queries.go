package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tordrt/kbtrend/internal/db"
	"github.com/tordrt/kbtrend/internal/model"
)

// ErrInvalidMetadata is returned when a query's metadata is not valid JSON.
var ErrInvalidMetadata = errors.New("query metadata is not valid JSON")

const queryColumns = `id, search_string, keyword, metadata_json`

// metadataArg converts a JSON payload into a query argument; empty means NULL
func metadataArg(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, ErrInvalidMetadata
	}
	return string(raw), nil
}

func scanQuery(row interface{ Scan(...any) error }) (*model.Query, error) {
	var q model.Query
	var meta sql.NullString
	if err := row.Scan(&q.ID, &q.SearchString, &q.Keyword, &meta); err != nil {
		return nil, err
	}
	if meta.Valid {
		q.Metadata = json.RawMessage(meta.String)
	}
	return &q, nil
}

// CreateQuery inserts a search definition. An existing
// (search_string, keyword) pair fails with db.ErrDuplicateKey.
func (s *Store) CreateQuery(ctx context.Context, q model.Query) (*model.Query, error) {
	meta, err := metadataArg(q.Metadata)
	if err != nil {
		return nil, err
	}

	id, err := s.insert(ctx,
		`INSERT INTO query (search_string, keyword, metadata_json) VALUES (?, ?, ?)`,
		nullIfEmpty(q.SearchString), nullIfEmpty(q.Keyword), meta)
	if err != nil {
		return nil, fmt.Errorf("creating query (%q, %q): %w", q.SearchString, q.Keyword, err)
	}

	q.ID = id
	return &q, nil
}

// GetQuery returns the query with the given id
func (s *Store) GetQuery(ctx context.Context, id int64) (*model.Query, error) {
	q, err := scanQuery(s.queryRow(ctx, `SELECT `+queryColumns+` FROM query WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("getting query %d: %w", id, db.Classify(err))
	}
	return q, nil
}

// FindQuery returns the query identified by its natural key
func (s *Store) FindQuery(ctx context.Context, searchString, keyword string) (*model.Query, error) {
	q, err := scanQuery(s.queryRow(ctx,
		`SELECT `+queryColumns+` FROM query WHERE search_string = ? AND keyword = ?`,
		searchString, keyword))
	if err != nil {
		return nil, fmt.Errorf("finding query (%q, %q): %w", searchString, keyword, db.Classify(err))
	}
	return q, nil
}

// EnsureQuery returns the query matching q's natural key, creating it if
// needed. The metadata of an existing query is left untouched.
func (s *Store) EnsureQuery(ctx context.Context, q model.Query) (*model.Query, error) {
	existing, err := s.FindQuery(ctx, q.SearchString, q.Keyword)
	if err == nil || !errors.Is(err, db.ErrNotFound) {
		return existing, err
	}

	meta, err := metadataArg(q.Metadata)
	if err != nil {
		return nil, err
	}
	_, err = s.exec(ctx,
		`INSERT INTO query (search_string, keyword, metadata_json) VALUES (?, ?, ?)`+
			s.dialect.IgnoreConflict([]string{"search_string", "keyword"}),
		nullIfEmpty(q.SearchString), nullIfEmpty(q.Keyword), meta)
	if err != nil {
		return nil, fmt.Errorf("creating query (%q, %q): %w", q.SearchString, q.Keyword, err)
	}
	return s.FindQuery(ctx, q.SearchString, q.Keyword)
}

// ListQueries returns queries ordered by id. A non-empty keyword restricts
// the result to that keyword.
func (s *Store) ListQueries(ctx context.Context, keyword string) ([]model.Query, error) {
	query := `SELECT ` + queryColumns + ` FROM query`
	var args []any
	if keyword != "" {
		query += ` WHERE keyword = ?`
		args = append(args, keyword)
	}
	query += ` ORDER BY id`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing queries: %w", err)
	}
	defer rows.Close()

	var queries []model.Query
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning query: %w", err)
		}
		queries = append(queries, *q)
	}
	return queries, rows.Err()
}

// SetQueryMetadata replaces a query's metadata; nil clears it
func (s *Store) SetQueryMetadata(ctx context.Context, id int64, metadata json.RawMessage) error {
	meta, err := metadataArg(metadata)
	if err != nil {
		return err
	}

	res, err := s.exec(ctx, `UPDATE query SET metadata_json = ? WHERE id = ?`, meta, id)
	if err != nil {
		return fmt.Errorf("updating query %d metadata: %w", id, err)
	}
	return expectAffected(res, fmt.Sprintf("query %d", id))
}

// DeleteQuery deletes a query together with its counts and queue items
func (s *Store) DeleteQuery(ctx context.Context, id int64) error {
	if err := s.deleteByID(ctx, "query", id); err != nil {
		return err
	}
	s.logger.Debug("query deleted", "query_id", id)
	return nil
}
