package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tordrt/kbtrend/internal/schema"
)

func TestWithParams(t *testing.T) {
	tests := []struct {
		path   string
		params []string
		want   string
	}{
		{"kbtrend.db", []string{"_foreign_keys=on"}, "kbtrend.db?_foreign_keys=on"},
		{"file:kb.db?mode=ro", []string{"a=1", "b=2"}, "file:kb.db?mode=ro&a=1&b=2"},
	}
	for _, tt := range tests {
		if got := withParams(tt.path, tt.params...); got != tt.want {
			t.Errorf("withParams(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParseDatabaseName(t *testing.T) {
	name, err := ParseDatabaseName("user:pass@tcp(localhost:3306)/kbtrend?parseTime=true")
	if err != nil {
		t.Fatalf("ParseDatabaseName() error = %v", err)
	}
	if name != "kbtrend" {
		t.Errorf("ParseDatabaseName() = %q, want kbtrend", name)
	}

	if _, err := ParseDatabaseName("user:pass@tcp(localhost:3306)/"); err == nil {
		t.Error("expected an error for a DSN without a database")
	}
}

func TestConnectUnsupported(t *testing.T) {
	if _, err := Connect(context.Background(), Kind("oracle"), "x", ""); err == nil {
		t.Error("expected an error for an unsupported kind")
	}
}

func TestConnectMySQLNeedsDatabase(t *testing.T) {
	// The name is resolved before dialing, so no server is needed.
	_, err := Connect(context.Background(), KindMySQL, "user:pass@tcp(127.0.0.1:1)/", "")
	if err == nil || !strings.Contains(err.Error(), "database name") {
		t.Errorf("Connect() error = %v, want a database name error", err)
	}
}

// A migrated database must introspect back to the declared schema.
func TestSQLiteRoundTrip(t *testing.T) {
	for _, kind := range []Kind{KindSQLite, KindSQLiteModernc} {
		t.Run(string(kind), func(t *testing.T) {
			ctx := context.Background()
			conn, err := Connect(ctx, kind, filepath.Join(t.TempDir(), "kbtrend.db"), "")
			if err != nil {
				t.Fatalf("Connect() error = %v", err)
			}
			defer conn.Close()

			got, err := conn.Extractor.ExtractSchema(ctx, nil)
			if err != nil {
				t.Fatalf("ExtractSchema() error = %v", err)
			}
			if problems := schema.Diff(schema.Declared(), got); len(problems) != 5 {
				t.Errorf("empty database: got %d problems, want 5 missing tables: %v", len(problems), problems)
			}

			for _, stmt := range schema.CreateStatements(conn.Dialect) {
				if _, err := conn.DB.ExecContext(ctx, stmt); err != nil {
					t.Fatalf("exec %q: %v", stmt, err)
				}
			}

			got, err = conn.Extractor.ExtractSchema(ctx, nil)
			if err != nil {
				t.Fatalf("ExtractSchema() error = %v", err)
			}
			if problems := schema.Diff(schema.Declared(), got); len(problems) > 0 {
				t.Errorf("Diff() after migration = %v", problems)
			}

			counts := got.Table(schema.CountsTable)
			if counts == nil {
				t.Fatal("counts table not extracted")
			}
			if len(counts.Relations) != 2 {
				t.Errorf("counts relations = %d, want 2", len(counts.Relations))
			}
			journal := got.Table(schema.JournalTable)
			if col := journal.Column("name"); col == nil || !col.IsUnique {
				t.Errorf("journal.name should be unique, got %+v", col)
			}
		})
	}
}
