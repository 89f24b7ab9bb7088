// Package model holds the plain records stored in the kbtrend tables.
package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// Queue item statuses. Workers outside this module own the transitions.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// YearAll is the queue year selector covering every year.
const YearAll = "all"

// Metadata is a key/value bookkeeping entry, e.g. a config hash.
type Metadata struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Journal is a publication source.
type Journal struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Query is a search definition. (SearchString, Keyword) is unique.
type Query struct {
	ID           int64           `json:"id"`
	SearchString string          `json:"search_string"`
	Keyword      string          `json:"keyword"`
	Metadata     json.RawMessage `json:"metadata_json,omitempty"`
}

// Count is the hit count observed for a query in a journal in one year.
type Count struct {
	ID        int64    `json:"id"`
	Year      int      `json:"year"`
	QueryID   int64    `json:"query_id"`
	JournalID int64    `json:"journal_id"`
	Count     int      `json:"count"`
	Rel       *float64 `json:"rel"`
}

// QueueItem is one unit of scraping work for a query/journal/year selector.
type QueueItem struct {
	ID           int64      `json:"id"`
	QueryID      int64      `json:"query_id"`
	JournalID    int64      `json:"journal_id"`
	Year         string     `json:"year"`
	Status       string     `json:"status"`
	CompletedAt  *time.Time `json:"completed_at"`
	ErrorMessage *string    `json:"error_message"`
}

// AllYears reports whether the item selects every year rather than one.
func (q QueueItem) AllYears() bool {
	return q.Year == YearAll
}

// ValidYear reports whether year can name a publication year. Zero is
// reserved for "any year" in filters.
func ValidYear(year int) bool {
	return year > 0
}

// ValidQueueYear reports whether year is YearAll or a positive decimal year.
func ValidQueueYear(year string) bool {
	if year == YearAll {
		return true
	}
	n, err := strconv.Atoi(year)
	return err == nil && ValidYear(n) && strconv.Itoa(n) == year
}
