package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/tordrt/kbtrend/internal/db"
	"github.com/tordrt/kbtrend/internal/model"
)

const journalColumns = `id, name`

// CreateJournal inserts a journal. A name already in use fails with
// db.ErrDuplicateKey.
func (s *Store) CreateJournal(ctx context.Context, name string) (*model.Journal, error) {
	id, err := s.insert(ctx, `INSERT INTO journal (name) VALUES (?)`, nullIfEmpty(name))
	if err != nil {
		return nil, fmt.Errorf("creating journal %q: %w", name, err)
	}
	return &model.Journal{ID: id, Name: name}, nil
}

// GetJournal returns the journal with the given id
func (s *Store) GetJournal(ctx context.Context, id int64) (*model.Journal, error) {
	var j model.Journal
	err := s.queryRow(ctx, `SELECT `+journalColumns+` FROM journal WHERE id = ?`, id).Scan(&j.ID, &j.Name)
	if err != nil {
		return nil, fmt.Errorf("getting journal %d: %w", id, db.Classify(err))
	}
	return &j, nil
}

// GetJournalByName returns the journal with the given name
func (s *Store) GetJournalByName(ctx context.Context, name string) (*model.Journal, error) {
	var j model.Journal
	err := s.queryRow(ctx, `SELECT `+journalColumns+` FROM journal WHERE name = ?`, name).Scan(&j.ID, &j.Name)
	if err != nil {
		return nil, fmt.Errorf("getting journal %q: %w", name, db.Classify(err))
	}
	return &j, nil
}

// EnsureJournal returns the journal named name, creating it if needed.
// A concurrent insert of the same name is absorbed by the conflict clause,
// so the call is safe inside a PostgreSQL transaction.
func (s *Store) EnsureJournal(ctx context.Context, name string) (*model.Journal, error) {
	j, err := s.GetJournalByName(ctx, name)
	if err == nil || !errors.Is(err, db.ErrNotFound) {
		return j, err
	}

	_, err = s.exec(ctx,
		`INSERT INTO journal (name) VALUES (?)`+s.dialect.IgnoreConflict([]string{"name"}),
		nullIfEmpty(name))
	if err != nil {
		return nil, fmt.Errorf("creating journal %q: %w", name, err)
	}
	return s.GetJournalByName(ctx, name)
}

// ListJournals returns every journal ordered by name
func (s *Store) ListJournals(ctx context.Context) ([]model.Journal, error) {
	rows, err := s.query(ctx, `SELECT `+journalColumns+` FROM journal ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing journals: %w", err)
	}
	defer rows.Close()

	var journals []model.Journal
	for rows.Next() {
		var j model.Journal
		if err := rows.Scan(&j.ID, &j.Name); err != nil {
			return nil, fmt.Errorf("scanning journal: %w", err)
		}
		journals = append(journals, j)
	}
	return journals, rows.Err()
}

// RenameJournal changes a journal's name
func (s *Store) RenameJournal(ctx context.Context, id int64, name string) error {
	res, err := s.exec(ctx, `UPDATE journal SET name = ? WHERE id = ?`, nullIfEmpty(name), id)
	if err != nil {
		return fmt.Errorf("renaming journal %d: %w", id, err)
	}
	return expectAffected(res, fmt.Sprintf("journal %d", id))
}

// DeleteJournal deletes a journal together with its counts and queue items
func (s *Store) DeleteJournal(ctx context.Context, id int64) error {
	if err := s.deleteByID(ctx, "journal", id); err != nil {
		return err
	}
	s.logger.Debug("journal deleted", "journal_id", id)
	return nil
}
