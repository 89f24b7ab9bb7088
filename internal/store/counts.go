package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tordrt/kbtrend/internal/db"
	"github.com/tordrt/kbtrend/internal/model"
)

const countColumns = `id, year, query_id, journal_id, count, rel`

// CountFilter narrows ListCounts. Zero fields match everything; a stored
// count always has a positive year, so Year 0 never hides a row.
type CountFilter struct {
	Year      int
	QueryID   int64
	JournalID int64
}

func scanCount(row interface{ Scan(...any) error }) (*model.Count, error) {
	var c model.Count
	var rel sql.NullFloat64
	if err := row.Scan(&c.ID, &c.Year, &c.QueryID, &c.JournalID, &c.Count, &rel); err != nil {
		return nil, err
	}
	if rel.Valid {
		c.Rel = &rel.Float64
	}
	return &c, nil
}

func relArg(rel *float64) any {
	if rel == nil {
		return nil
	}
	return *rel
}

// CreateCount records an observation. A second observation for the same
// (year, query, journal) fails with db.ErrDuplicateKey; an unknown query or
// journal fails with db.ErrDanglingReference.
func (s *Store) CreateCount(ctx context.Context, c model.Count) (*model.Count, error) {
	if !model.ValidYear(c.Year) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidYear, c.Year)
	}
	id, err := s.insert(ctx,
		`INSERT INTO counts (year, query_id, journal_id, count, rel) VALUES (?, ?, ?, ?, ?)`,
		c.Year, c.QueryID, c.JournalID, c.Count, relArg(c.Rel))
	if err != nil {
		return nil, fmt.Errorf("creating count %d/%d/%d: %w", c.Year, c.QueryID, c.JournalID, err)
	}
	c.ID = id
	return &c, nil
}

// UpsertCount records an observation, replacing count and rel when the
// (year, query, journal) triple already exists
func (s *Store) UpsertCount(ctx context.Context, c model.Count) (*model.Count, error) {
	if !model.ValidYear(c.Year) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidYear, c.Year)
	}
	query := `INSERT INTO counts (year, query_id, journal_id, count, rel) VALUES (?, ?, ?, ?, ?)` +
		s.dialect.Upsert([]string{"year", "query_id", "journal_id"}, []string{"count", "rel"})

	if _, err := s.exec(ctx, query, c.Year, c.QueryID, c.JournalID, c.Count, relArg(c.Rel)); err != nil {
		return nil, fmt.Errorf("upserting count %d/%d/%d: %w", c.Year, c.QueryID, c.JournalID, err)
	}
	return s.GetCount(ctx, c.Year, c.QueryID, c.JournalID)
}

// GetCount returns the observation for one (year, query, journal) triple
func (s *Store) GetCount(ctx context.Context, year int, queryID, journalID int64) (*model.Count, error) {
	c, err := scanCount(s.queryRow(ctx,
		`SELECT `+countColumns+` FROM counts WHERE year = ? AND query_id = ? AND journal_id = ?`,
		year, queryID, journalID))
	if err != nil {
		return nil, fmt.Errorf("getting count %d/%d/%d: %w", year, queryID, journalID, db.Classify(err))
	}
	return c, nil
}

// ListCounts returns observations matching f ordered by year, query and journal
func (s *Store) ListCounts(ctx context.Context, f CountFilter) ([]model.Count, error) {
	var where []string
	var args []any
	if f.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, f.Year)
	}
	if f.QueryID != 0 {
		where = append(where, "query_id = ?")
		args = append(args, f.QueryID)
	}
	if f.JournalID != 0 {
		where = append(where, "journal_id = ?")
		args = append(args, f.JournalID)
	}

	query := `SELECT ` + countColumns + ` FROM counts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY year, query_id, journal_id"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing counts: %w", err)
	}
	defer rows.Close()

	var counts []model.Count
	for rows.Next() {
		c, err := scanCount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts = append(counts, *c)
	}
	return counts, rows.Err()
}

// DeleteCount removes one observation
func (s *Store) DeleteCount(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "counts", id)
}
