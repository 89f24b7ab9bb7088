package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/kbtrend/internal/db"
	"github.com/tordrt/kbtrend/internal/model"
)

var fixedNow = time.Date(2024, 3, 14, 9, 26, 53, 0, time.UTC)

// sqliteKinds runs every test against both SQLite drivers
var sqliteKinds = []db.Kind{db.KindSQLite, db.KindSQLiteModernc}

func newTestStore(t *testing.T, kind db.Kind) *Store {
	t.Helper()

	ctx := context.Background()
	conn, err := db.Connect(ctx, kind, filepath.Join(t.TempDir(), "kbtrend.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	s := New(conn.DB, conn.Dialect, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, s.Migrate(ctx))
	return s
}

func forEachDriver(t *testing.T, fn func(t *testing.T, s *Store)) {
	for _, kind := range sqliteKinds {
		t.Run(string(kind), func(t *testing.T) {
			fn(t, newTestStore(t, kind))
		})
	}
}

// seed creates the Nature / (cats, feline) pair used by most tests
func seed(t *testing.T, s *Store) (*model.Journal, *model.Query) {
	t.Helper()
	ctx := context.Background()

	j, err := s.CreateJournal(ctx, "Nature")
	require.NoError(t, err)
	q, err := s.CreateQuery(ctx, model.Query{SearchString: "cats", Keyword: "feline"})
	require.NoError(t, err)
	return j, q
}

func ptr[T any](v T) *T { return &v }

func TestMigrateIsIdempotent(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		require.NoError(t, s.Migrate(context.Background()))
	})
}

func TestJournalUniqueName(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		_, err := s.CreateJournal(ctx, "Nature")
		require.NoError(t, err)

		_, err = s.CreateJournal(ctx, "Nature")
		require.ErrorIs(t, err, db.ErrDuplicateKey)

		_, err = s.CreateJournal(ctx, "Science")
		require.NoError(t, err)
	})
}

func TestJournalLifecycle(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		j, err := s.EnsureJournal(ctx, "Nature")
		require.NoError(t, err)
		again, err := s.EnsureJournal(ctx, "Nature")
		require.NoError(t, err)
		assert.Equal(t, j.ID, again.ID)

		got, err := s.GetJournal(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, "Nature", got.Name)

		require.NoError(t, s.RenameJournal(ctx, j.ID, "Nature Genetics"))
		got, err = s.GetJournalByName(ctx, "Nature Genetics")
		require.NoError(t, err)
		assert.Equal(t, j.ID, got.ID)

		_, err = s.CreateJournal(ctx, "Cell")
		require.NoError(t, err)
		journals, err := s.ListJournals(ctx)
		require.NoError(t, err)
		require.Len(t, journals, 2)
		assert.Equal(t, "Cell", journals[0].Name)

		require.NoError(t, s.DeleteJournal(ctx, j.ID))
		_, err = s.GetJournal(ctx, j.ID)
		require.ErrorIs(t, err, db.ErrNotFound)
		require.ErrorIs(t, s.DeleteJournal(ctx, j.ID), db.ErrNotFound)
	})
}

func TestRequiredFieldsRejected(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		_, err := s.CreateJournal(ctx, "")
		require.ErrorIs(t, err, db.ErrNotNull)

		_, err = s.CreateQuery(ctx, model.Query{SearchString: "cats"})
		require.ErrorIs(t, err, db.ErrNotNull)

		_, err = s.CreateQuery(ctx, model.Query{Keyword: "feline"})
		require.ErrorIs(t, err, db.ErrNotNull)

		_, err = s.SetMetadata(ctx, "config_hash", "")
		require.ErrorIs(t, err, db.ErrNotNull)

		_, err = s.EnsureJournal(ctx, "")
		require.ErrorIs(t, err, db.ErrNotNull)

		_, err = s.EnsureQuery(ctx, model.Query{SearchString: "cats"})
		require.ErrorIs(t, err, db.ErrNotNull)
	})
}

func TestEnsureInsideTx(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		j, q := seed(t, s)

		var science *model.Journal
		err := s.WithTx(ctx, func(tx *Store) error {
			existing, err := tx.EnsureJournal(ctx, "Nature")
			require.NoError(t, err)
			assert.Equal(t, j.ID, existing.ID)

			science, err = tx.EnsureJournal(ctx, "Science")
			require.NoError(t, err)

			again, err := tx.EnsureJournal(ctx, "Science")
			require.NoError(t, err)
			assert.Equal(t, science.ID, again.ID)

			ensured, err := tx.EnsureQuery(ctx, model.Query{SearchString: "cats", Keyword: "feline"})
			require.NoError(t, err)
			assert.Equal(t, q.ID, ensured.ID)
			return nil
		})
		require.NoError(t, err)

		got, err := s.GetJournalByName(ctx, "Science")
		require.NoError(t, err)
		assert.Equal(t, science.ID, got.ID)
	})
}

func TestQueryUniqueSearchKeyword(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		_, err := s.CreateQuery(ctx, model.Query{SearchString: "cats", Keyword: "feline"})
		require.NoError(t, err)

		_, err = s.CreateQuery(ctx, model.Query{SearchString: "cats", Keyword: "feline"})
		require.ErrorIs(t, err, db.ErrDuplicateKey)

		// Either half alone is not unique.
		_, err = s.CreateQuery(ctx, model.Query{SearchString: "cats", Keyword: "pets"})
		require.NoError(t, err)
		_, err = s.CreateQuery(ctx, model.Query{SearchString: "kittens", Keyword: "feline"})
		require.NoError(t, err)
	})
}

func TestQueryMetadata(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		q, err := s.CreateQuery(ctx, model.Query{
			SearchString: "cats",
			Keyword:      "feline",
			Metadata:     json.RawMessage(`{"lang":"sv","tags":["animal"]}`),
		})
		require.NoError(t, err)

		got, err := s.FindQuery(ctx, "cats", "feline")
		require.NoError(t, err)
		assert.Equal(t, q.ID, got.ID)
		assert.JSONEq(t, `{"lang":"sv","tags":["animal"]}`, string(got.Metadata))

		require.NoError(t, s.SetQueryMetadata(ctx, q.ID, nil))
		got, err = s.GetQuery(ctx, q.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Metadata)

		err = s.SetQueryMetadata(ctx, q.ID, json.RawMessage(`{not json`))
		require.ErrorIs(t, err, ErrInvalidMetadata)

		ensured, err := s.EnsureQuery(ctx, model.Query{SearchString: "cats", Keyword: "feline"})
		require.NoError(t, err)
		assert.Equal(t, q.ID, ensured.ID)

		_, err = s.EnsureQuery(ctx, model.Query{SearchString: "dogs", Keyword: "canine"})
		require.NoError(t, err)

		feline, err := s.ListQueries(ctx, "feline")
		require.NoError(t, err)
		require.Len(t, feline, 1)
		all, err := s.ListQueries(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 2)
	})
}

func TestCountScenario(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		j, q := seed(t, s)

		c, err := s.CreateCount(ctx, model.Count{Year: 2020, QueryID: q.ID, JournalID: j.ID, Count: 5, Rel: ptr(0.2)})
		require.NoError(t, err)
		assert.NotZero(t, c.ID)

		_, err = s.CreateCount(ctx, model.Count{Year: 2020, QueryID: q.ID, JournalID: j.ID, Count: 7})
		require.ErrorIs(t, err, db.ErrDuplicateKey)

		_, err = s.CreateCount(ctx, model.Count{Year: 2021, QueryID: q.ID, JournalID: j.ID, Count: 3})
		require.NoError(t, err)

		got, err := s.GetCount(ctx, 2020, q.ID, j.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.Count)
		require.NotNil(t, got.Rel)
		assert.InDelta(t, 0.2, *got.Rel, 1e-9)

		counts, err := s.ListCounts(ctx, CountFilter{QueryID: q.ID})
		require.NoError(t, err)
		require.Len(t, counts, 2)
		assert.Equal(t, 2020, counts[0].Year)
		assert.Nil(t, counts[1].Rel)

		byYear, err := s.ListCounts(ctx, CountFilter{Year: 2021})
		require.NoError(t, err)
		require.Len(t, byYear, 1)
	})
}

func TestUpsertCount(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		j, q := seed(t, s)

		first, err := s.UpsertCount(ctx, model.Count{Year: 2020, QueryID: q.ID, JournalID: j.ID, Count: 5, Rel: ptr(0.2)})
		require.NoError(t, err)

		second, err := s.UpsertCount(ctx, model.Count{Year: 2020, QueryID: q.ID, JournalID: j.ID, Count: 9})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 9, second.Count)
		assert.Nil(t, second.Rel)

		counts, err := s.ListCounts(ctx, CountFilter{})
		require.NoError(t, err)
		assert.Len(t, counts, 1)

		_, err = s.UpsertCount(ctx, model.Count{Year: 0, QueryID: q.ID, JournalID: j.ID, Count: 1})
		require.ErrorIs(t, err, ErrInvalidYear)

		require.NoError(t, s.DeleteCount(ctx, second.ID))
		_, err = s.GetCount(ctx, 2020, q.ID, j.ID)
		assert.ErrorIs(t, err, db.ErrNotFound)
		assert.ErrorIs(t, s.DeleteCount(ctx, second.ID), db.ErrNotFound)
	})
}

func TestDanglingReference(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		j, q := seed(t, s)

		_, err := s.CreateCount(ctx, model.Count{Year: 2020, QueryID: q.ID + 100, JournalID: j.ID})
		require.ErrorIs(t, err, db.ErrDanglingReference)

		_, err = s.Enqueue(ctx, model.QueueItem{QueryID: q.ID, JournalID: j.ID + 100, Year: model.YearAll})
		require.ErrorIs(t, err, db.ErrDanglingReference)
	})
}

func TestQueueUniqueKey(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		j, q := seed(t, s)

		all, err := s.Enqueue(ctx, model.QueueItem{QueryID: q.ID, JournalID: j.ID, Year: model.YearAll})
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, all.Status)

		_, err = s.Enqueue(ctx, model.QueueItem{QueryID: q.ID, JournalID: j.ID, Year: "2020"})
		require.NoError(t, err)

		_, err = s.Enqueue(ctx, model.QueueItem{QueryID: q.ID, JournalID: j.ID, Year: model.YearAll})
		require.ErrorIs(t, err, db.ErrDuplicateKey)

		_, err = s.Enqueue(ctx, model.QueueItem{QueryID: q.ID, JournalID: j.ID, Year: "twenty"})
		require.ErrorIs(t, err, ErrInvalidYear)
	})
}

func TestQueueCompletion(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		j, q := seed(t, s)

		item, err := s.Enqueue(ctx, model.QueueItem{QueryID: q.ID, JournalID: j.ID, Year: model.YearAll, Status: model.StatusPending})
		require.NoError(t, err)

		item.Status = model.StatusCompleted
		item.CompletedAt = ptr(fixedNow)
		require.NoError(t, s.UpdateQueueItem(ctx, *item))

		got, err := s.GetQueueItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)
		assert.True(t, fixedNow.Equal(*got.CompletedAt), "completed_at = %v", got.CompletedAt)
		assert.Equal(t, q.ID, got.QueryID)
		assert.Equal(t, j.ID, got.JournalID)
		assert.Equal(t, model.YearAll, got.Year)
		assert.Nil(t, got.ErrorMessage)

		found, err := s.FindQueueItem(ctx, q.ID, j.ID, model.YearAll)
		require.NoError(t, err)
		assert.Equal(t, item.ID, found.ID)
	})
}

func TestQueueFailAndStats(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		j, q := seed(t, s)

		var ids []int64
		for _, year := range []string{"2019", "2020", "2021"} {
			item, err := s.Enqueue(ctx, model.QueueItem{QueryID: q.ID, JournalID: j.ID, Year: year})
			require.NoError(t, err)
			ids = append(ids, item.ID)
		}

		done, err := s.CompleteQueueItem(ctx, ids[0])
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, done.Status)

		failed, err := s.FailQueueItem(ctx, ids[1], "HTTP 503")
		require.NoError(t, err)
		require.NotNil(t, failed.ErrorMessage)

		got, err := s.GetQueueItem(ctx, ids[1])
		require.NoError(t, err)
		assert.Equal(t, model.StatusFailed, got.Status)
		require.NotNil(t, got.ErrorMessage)
		assert.Equal(t, "HTTP 503", *got.ErrorMessage)
		require.NotNil(t, got.CompletedAt)

		pending, err := s.ListQueue(ctx, QueueFilter{Status: model.StatusPending})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, ids[2], pending[0].ID)

		limited, err := s.ListQueue(ctx, QueueFilter{QueryID: q.ID, Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		stats, err := s.QueueStatusCounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{
			model.StatusPending:   1,
			model.StatusCompleted: 1,
			model.StatusFailed:    1,
		}, stats)

		_, err = s.CompleteQueueItem(ctx, 9999)
		require.ErrorIs(t, err, db.ErrNotFound)

		require.NoError(t, s.DeleteQueueItem(ctx, ids[2]))
		_, err = s.GetQueueItem(ctx, ids[2])
		require.ErrorIs(t, err, db.ErrNotFound)
	})
}

func TestConcurrentQueueCompletion(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		j, q := seed(t, s)

		var ids []int64
		for year := 2013; year <= 2020; year++ {
			item, err := s.Enqueue(ctx, model.QueueItem{QueryID: q.ID, JournalID: j.ID, Year: strconv.Itoa(year)})
			require.NoError(t, err)
			ids = append(ids, item.ID)
		}

		const workers = 4
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			errs []error
		)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for _, id := range ids {
					if _, err := s.CompleteQueueItem(ctx, id); err != nil {
						mu.Lock()
						errs = append(errs, err)
						mu.Unlock()
					}
					if _, err := s.EnsureJournal(ctx, "Science"); err != nil {
						mu.Lock()
						errs = append(errs, err)
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()
		require.Empty(t, errs)

		stats, err := s.QueueStatusCounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{model.StatusCompleted: len(ids)}, stats)

		journals, err := s.ListJournals(ctx)
		require.NoError(t, err)
		assert.Len(t, journals, 2)
	})
}

func TestDeleteJournalCascades(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		j, q := seed(t, s)
		other, err := s.CreateJournal(ctx, "Science")
		require.NoError(t, err)

		for _, jid := range []int64{j.ID, other.ID} {
			_, err := s.CreateCount(ctx, model.Count{Year: 2020, QueryID: q.ID, JournalID: jid, Count: 1})
			require.NoError(t, err)
			_, err = s.Enqueue(ctx, model.QueueItem{QueryID: q.ID, JournalID: jid, Year: model.YearAll})
			require.NoError(t, err)
		}

		require.NoError(t, s.DeleteJournal(ctx, j.ID))

		counts, err := s.ListCounts(ctx, CountFilter{JournalID: j.ID})
		require.NoError(t, err)
		assert.Empty(t, counts)
		items, err := s.ListQueue(ctx, QueueFilter{JournalID: j.ID})
		require.NoError(t, err)
		assert.Empty(t, items)

		// The other journal's rows and the query survive.
		counts, err = s.ListCounts(ctx, CountFilter{})
		require.NoError(t, err)
		assert.Len(t, counts, 1)
		items, err = s.ListQueue(ctx, QueueFilter{})
		require.NoError(t, err)
		assert.Len(t, items, 1)
		_, err = s.GetQuery(ctx, q.ID)
		require.NoError(t, err)
	})
}

func TestDeleteQueryCascades(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		j, q := seed(t, s)
		other, err := s.CreateQuery(ctx, model.Query{SearchString: "dogs", Keyword: "canine"})
		require.NoError(t, err)

		for _, qid := range []int64{q.ID, other.ID} {
			_, err := s.CreateCount(ctx, model.Count{Year: 2020, QueryID: qid, JournalID: j.ID, Count: 1})
			require.NoError(t, err)
			_, err = s.Enqueue(ctx, model.QueueItem{QueryID: qid, JournalID: j.ID, Year: "2020"})
			require.NoError(t, err)
		}

		require.NoError(t, s.DeleteQuery(ctx, q.ID))

		counts, err := s.ListCounts(ctx, CountFilter{})
		require.NoError(t, err)
		require.Len(t, counts, 1)
		assert.Equal(t, other.ID, counts[0].QueryID)

		items, err := s.ListQueue(ctx, QueueFilter{})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, other.ID, items[0].QueryID)

		_, err = s.GetJournal(ctx, j.ID)
		require.NoError(t, err)
	})
}

func TestMetadata(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		_, err := s.GetMetadata(ctx, "config_hash")
		require.ErrorIs(t, err, db.ErrNotFound)

		_, err = s.SetMetadata(ctx, "config_hash", "abc123")
		require.NoError(t, err)
		_, err = s.SetMetadata(ctx, "config_hash", "def456")
		require.NoError(t, err)
		_, err = s.SetMetadata(ctx, "schema_version", "1")
		require.NoError(t, err)

		m, err := s.GetMetadata(ctx, "config_hash")
		require.NoError(t, err)
		assert.Equal(t, "def456", m.Value)
		assert.True(t, fixedNow.Equal(m.UpdatedAt), "updated_at = %v", m.UpdatedAt)

		entries, err := s.ListMetadata(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "config_hash", entries[0].Key)

		require.NoError(t, s.DeleteMetadata(ctx, "config_hash"))
		require.ErrorIs(t, s.DeleteMetadata(ctx, "config_hash"), db.ErrNotFound)
	})
}

func TestWithTxRollsBack(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		err := s.WithTx(ctx, func(tx *Store) error {
			if _, err := tx.CreateJournal(ctx, "Nature"); err != nil {
				return err
			}
			_, err := tx.CreateJournal(ctx, "Nature")
			return err
		})
		require.ErrorIs(t, err, db.ErrDuplicateKey)

		journals, err := s.ListJournals(ctx)
		require.NoError(t, err)
		assert.Empty(t, journals)

		err = s.WithTx(ctx, func(tx *Store) error {
			_, err := tx.CreateJournal(ctx, "Nature")
			return err
		})
		require.NoError(t, err)

		journals, err = s.ListJournals(ctx)
		require.NoError(t, err)
		assert.Len(t, journals, 1)
	})
}

func TestDrop(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		seed(t, s)

		require.NoError(t, s.Drop(ctx))
		_, err := s.ListJournals(ctx)
		require.Error(t, err)

		require.NoError(t, s.Migrate(ctx))
		journals, err := s.ListJournals(ctx)
		require.NoError(t, err)
		assert.Empty(t, journals)
	})
}
