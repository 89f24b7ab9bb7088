//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/kbtrend"
	"github.com/tordrt/kbtrend/internal/db"
	"github.com/tordrt/kbtrend/internal/model"
	"github.com/tordrt/kbtrend/internal/schema"
	"github.com/tordrt/kbtrend/internal/store"
)

// openFromEnv opens the database named by env, or skips the test
func openFromEnv(t *testing.T, env string) *kbtrend.Store {
	t.Helper()

	url := os.Getenv(env)
	if url == "" {
		t.Skipf("%s not set", env)
	}
	return openClean(t, url)
}

// openClean opens url and drops any kbtrend tables left by an earlier run
func openClean(t *testing.T, url string) *kbtrend.Store {
	t.Helper()
	ctx := context.Background()

	st, err := kbtrend.Open(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	dropAll(t, st)
	return st
}

// dropAll removes every kbtrend table
func dropAll(t *testing.T, st *kbtrend.Store) {
	t.Helper()

	require.NoError(t, st.Drop(context.Background()))
}

// verifyTablesExist checks that all expected tables are present in the schema
func verifyTablesExist(t *testing.T, s *schema.Schema, expectedTables []string) {
	t.Helper()

	for _, tableName := range expectedTables {
		if s.Table(tableName) == nil {
			t.Errorf("Expected table %s not found in schema", tableName)
		}
	}
}

// verifyForeignKey checks that a cascading foreign key exists
func verifyForeignKey(t *testing.T, s *schema.Schema, tableName, sourceColumn, targetTable string) {
	t.Helper()

	table := s.Table(tableName)
	if table == nil {
		t.Fatalf("Table %s not found", tableName)
	}

	for _, rel := range table.Relations {
		if rel.TargetTable == targetTable && rel.SourceColumn == sourceColumn {
			if rel.OnDelete != schema.Cascade {
				t.Errorf("%s.%s -> %s ON DELETE %q, want CASCADE", tableName, sourceColumn, targetTable, rel.OnDelete)
			}
			return
		}
	}

	t.Errorf("Expected foreign key relationship from %s.%s to %s not found", tableName, sourceColumn, targetTable)
}

// verifyIndex checks that an index exists with the expected columns
func verifyIndex(t *testing.T, s *schema.Schema, tableName, indexName string, expectedColumns []string) {
	t.Helper()

	table := s.Table(tableName)
	if table == nil {
		t.Fatalf("Table %s not found", tableName)
	}

	for _, idx := range table.Indexes {
		if idx.Name == indexName {
			assert.Equal(t, expectedColumns, idx.Columns, "index %s", indexName)
			return
		}
	}

	t.Errorf("Expected index %s on %s table not found", indexName, tableName)
}

// runSchemaSuite migrates st and checks the live catalog
func runSchemaSuite(t *testing.T, st *kbtrend.Store) {
	ctx := context.Background()

	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Migrate(ctx), "second Migrate")

	problems, err := st.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, problems)

	s, err := st.Describe(ctx, schema.Declared().TableNames(), nil)
	require.NoError(t, err)

	verifyTablesExist(t, s, schema.Declared().TableNames())
	verifyForeignKey(t, s, schema.CountsTable, "query_id", schema.QueryTable)
	verifyForeignKey(t, s, schema.CountsTable, "journal_id", schema.JournalTable)
	verifyForeignKey(t, s, schema.QueueTable, "query_id", schema.QueryTable)
	verifyForeignKey(t, s, schema.QueueTable, "journal_id", schema.JournalTable)
	verifyIndex(t, s, schema.QueueTable, "idx_queue_status", []string{"status"})
	verifyIndex(t, s, schema.CountsTable, "idx_count_year", []string{"year"})
}

// runStoreSuite exercises the integrity rules against a migrated database
func runStoreSuite(t *testing.T, st *kbtrend.Store) {
	ctx := context.Background()

	j, err := st.CreateJournal(ctx, "Nature")
	require.NoError(t, err)
	_, err = st.CreateJournal(ctx, "Nature")
	require.ErrorIs(t, err, db.ErrDuplicateKey)
	_, err = st.CreateJournal(ctx, "")
	require.ErrorIs(t, err, db.ErrNotNull)

	err = st.WithTx(ctx, func(tx *store.Store) error {
		// Hits the existing row, then inserts a new one, in one transaction.
		if _, err := tx.EnsureJournal(ctx, "Nature"); err != nil {
			return err
		}
		_, err := tx.EnsureJournal(ctx, "Science")
		return err
	})
	require.NoError(t, err)

	q, err := st.CreateQuery(ctx, model.Query{SearchString: "cats", Keyword: "feline", Metadata: []byte(`{"lang":"sv"}`)})
	require.NoError(t, err)
	_, err = st.CreateQuery(ctx, model.Query{SearchString: "cats", Keyword: "feline"})
	require.ErrorIs(t, err, db.ErrDuplicateKey)

	got, err := st.GetQuery(ctx, q.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"lang":"sv"}`, string(got.Metadata))

	rel := 0.2
	_, err = st.CreateCount(ctx, model.Count{Year: 2020, QueryID: q.ID, JournalID: j.ID, Count: 5, Rel: &rel})
	require.NoError(t, err)
	_, err = st.CreateCount(ctx, model.Count{Year: 2020, QueryID: q.ID, JournalID: j.ID, Count: 6})
	require.ErrorIs(t, err, db.ErrDuplicateKey)
	_, err = st.CreateCount(ctx, model.Count{Year: 2021, QueryID: q.ID, JournalID: j.ID, Count: 6})
	require.NoError(t, err)
	_, err = st.CreateCount(ctx, model.Count{Year: 2020, QueryID: q.ID + 1000, JournalID: j.ID})
	require.ErrorIs(t, err, db.ErrDanglingReference)

	upserted, err := st.UpsertCount(ctx, model.Count{Year: 2021, QueryID: q.ID, JournalID: j.ID, Count: 9})
	require.NoError(t, err)
	assert.Equal(t, 9, upserted.Count)

	all, err := st.Enqueue(ctx, model.QueueItem{QueryID: q.ID, JournalID: j.ID, Year: model.YearAll})
	require.NoError(t, err)
	_, err = st.Enqueue(ctx, model.QueueItem{QueryID: q.ID, JournalID: j.ID, Year: "2020"})
	require.NoError(t, err)
	_, err = st.Enqueue(ctx, model.QueueItem{QueryID: q.ID, JournalID: j.ID, Year: model.YearAll})
	require.ErrorIs(t, err, db.ErrDuplicateKey)

	done, err := st.CompleteQueueItem(ctx, all.ID)
	require.NoError(t, err)
	reread, err := st.GetQueueItem(ctx, all.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, reread.Status)
	require.NotNil(t, reread.CompletedAt)
	assert.WithinDuration(t, *done.CompletedAt, *reread.CompletedAt, time.Second)
	assert.Equal(t, model.YearAll, reread.Year)

	_, err = st.SetMetadata(ctx, "config_hash", "abc")
	require.NoError(t, err)
	_, err = st.SetMetadata(ctx, "config_hash", "def")
	require.NoError(t, err)
	m, err := st.GetMetadata(ctx, "config_hash")
	require.NoError(t, err)
	assert.Equal(t, "def", m.Value)

	require.NoError(t, st.DeleteJournal(ctx, j.ID))
	counts, err := st.ListCounts(ctx, store.CountFilter{})
	require.NoError(t, err)
	assert.Empty(t, counts, "counts should cascade")
	items, err := st.ListQueue(ctx, store.QueueFilter{})
	require.NoError(t, err)
	assert.Empty(t, items, "queue items should cascade")

	_, err = st.GetQuery(ctx, q.ID)
	require.NoError(t, err, "query must survive journal deletion")
}
