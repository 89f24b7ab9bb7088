package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tordrt/kbtrend/internal/db"
	"github.com/tordrt/kbtrend/internal/model"
)

// ErrInvalidYear is returned for a year that is not positive, or for a
// queue year that is neither "all" nor such a year.
var ErrInvalidYear = errors.New("invalid year")

const queueColumns = `id, query_id, journal_id, year, status, completed_at, error_message`

// QueueFilter narrows ListQueue. Zero fields match everything.
type QueueFilter struct {
	Status    string
	QueryID   int64
	JournalID int64
	Limit     int
}

func scanQueueItem(row interface{ Scan(...any) error }) (*model.QueueItem, error) {
	var item model.QueueItem
	var status, errMsg sql.NullString
	var completedAt nullTime
	if err := row.Scan(&item.ID, &item.QueryID, &item.JournalID, &item.Year, &status, &completedAt, &errMsg); err != nil {
		return nil, err
	}
	item.Status = status.String
	item.CompletedAt = completedAt.Ptr()
	if errMsg.Valid {
		item.ErrorMessage = &errMsg.String
	}
	return &item, nil
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func stringArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// Enqueue inserts a unit of work. An empty status becomes pending. A second
// item for the same (query, journal, year) fails with db.ErrDuplicateKey.
func (s *Store) Enqueue(ctx context.Context, item model.QueueItem) (*model.QueueItem, error) {
	if !model.ValidQueueYear(item.Year) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidYear, item.Year)
	}
	if item.Status == "" {
		item.Status = model.StatusPending
	}

	id, err := s.insert(ctx,
		`INSERT INTO queue (query_id, journal_id, year, status, completed_at, error_message) VALUES (?, ?, ?, ?, ?, ?)`,
		item.QueryID, item.JournalID, item.Year, item.Status, timeArg(item.CompletedAt), stringArg(item.ErrorMessage))
	if err != nil {
		return nil, fmt.Errorf("enqueueing %d/%d/%s: %w", item.QueryID, item.JournalID, item.Year, err)
	}
	item.ID = id
	return &item, nil
}

// GetQueueItem returns the queue item with the given id
func (s *Store) GetQueueItem(ctx context.Context, id int64) (*model.QueueItem, error) {
	item, err := scanQueueItem(s.queryRow(ctx, `SELECT `+queueColumns+` FROM queue WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("getting queue item %d: %w", id, db.Classify(err))
	}
	return item, nil
}

// FindQueueItem returns the queue item identified by its natural key
func (s *Store) FindQueueItem(ctx context.Context, queryID, journalID int64, year string) (*model.QueueItem, error) {
	item, err := scanQueueItem(s.queryRow(ctx,
		`SELECT `+queueColumns+` FROM queue WHERE query_id = ? AND journal_id = ? AND year = ?`,
		queryID, journalID, year))
	if err != nil {
		return nil, fmt.Errorf("finding queue item %d/%d/%s: %w", queryID, journalID, year, db.Classify(err))
	}
	return item, nil
}

// ListQueue returns queue items matching f ordered by id
func (s *Store) ListQueue(ctx context.Context, f QueueFilter) ([]model.QueueItem, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.QueryID != 0 {
		where = append(where, "query_id = ?")
		args = append(args, f.QueryID)
	}
	if f.JournalID != 0 {
		where = append(where, "journal_id = ?")
		args = append(args, f.JournalID)
	}

	query := `SELECT ` + queueColumns + ` FROM queue`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing queue: %w", err)
	}
	defer rows.Close()

	var items []model.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning queue item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateQueueItem writes item's status, completed_at and error_message.
// The (query, journal, year) key is never changed.
func (s *Store) UpdateQueueItem(ctx context.Context, item model.QueueItem) error {
	res, err := s.exec(ctx,
		`UPDATE queue SET status = ?, completed_at = ?, error_message = ? WHERE id = ?`,
		nullIfEmpty(item.Status), timeArg(item.CompletedAt), stringArg(item.ErrorMessage), item.ID)
	if err != nil {
		return fmt.Errorf("updating queue item %d: %w", item.ID, err)
	}
	return expectAffected(res, fmt.Sprintf("queue item %d", item.ID))
}

// CompleteQueueItem marks an item completed now and clears any error
func (s *Store) CompleteQueueItem(ctx context.Context, id int64) (*model.QueueItem, error) {
	return s.finishQueueItem(ctx, id, model.StatusCompleted, nil)
}

// FailQueueItem marks an item failed now with the given message
func (s *Store) FailQueueItem(ctx context.Context, id int64, message string) (*model.QueueItem, error) {
	return s.finishQueueItem(ctx, id, model.StatusFailed, &message)
}

// finishQueueItem moves an item to a terminal status in one UPDATE so
// concurrent workers never hold a read lock they need to upgrade
func (s *Store) finishQueueItem(ctx context.Context, id int64, status string, message *string) (*model.QueueItem, error) {
	now := s.utcNow()
	res, err := s.exec(ctx,
		`UPDATE queue SET status = ?, completed_at = ?, error_message = ? WHERE id = ?`,
		status, timeArg(&now), stringArg(message), id)
	if err != nil {
		return nil, fmt.Errorf("updating queue item %d: %w", id, err)
	}
	if err := expectAffected(res, fmt.Sprintf("queue item %d", id)); err != nil {
		return nil, err
	}

	s.logger.Debug("queue item finished", "queue_id", id, "status", status)
	return s.GetQueueItem(ctx, id)
}

// QueueStatusCounts returns the number of queue items per status
func (s *Store) QueueStatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.query(ctx, `SELECT status, COUNT(*) FROM queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting queue statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status sql.NullString
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning queue status: %w", err)
		}
		counts[status.String] += n
	}
	return counts, rows.Err()
}

// DeleteQueueItem removes one queue item
func (s *Store) DeleteQueueItem(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "queue", id)
}
