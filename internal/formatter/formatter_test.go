package formatter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tordrt/kbtrend/internal/schema"
)

func declared() *schema.Schema {
	return schema.Declared().Resolve(schema.SQLite)
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTextFormatter(&buf).Format(declared()); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"TABLE metadata (PK: key)",
		"TABLE counts (PK: id)",
		"name: TEXT UNIQUE NOT NULL",
		"count: INTEGER NOT NULL DEFAULT 0",
		"query_id → query.id (N:1), on delete cascade",
		"uq_queue_query_journal_year (query_id, journal_id, year)",
		"idx_queue_status (status)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q", want)
		}
	}
}

func TestMarkdownFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewMarkdownFormatter(&buf).Format(declared()); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Database Schema",
		"## journal",
		"- **id:** INTEGER, PK, NOT NULL",
		"- **status:** TEXT, DEFAULT 'pending'",
		"- journal_id → journal.id (N:1), on delete cascade",
		"### Unique",
		"- uq_count_year_query_journal on (year, query_id, journal_id)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q", want)
		}
	}
}

func TestOnDeleteSuffix(t *testing.T) {
	tests := map[string]string{
		"":          "",
		"NO ACTION": "",
		"CASCADE":   ", on delete cascade",
		"SET NULL":  ", on delete set null",
	}
	for in, want := range tests {
		if got := onDeleteSuffix(schema.Relation{OnDelete: in}); got != want {
			t.Errorf("onDeleteSuffix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMultiFileFormatter(t *testing.T) {
	for _, format := range []string{FormatMarkdown, FormatText} {
		t.Run(format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "schema")
			if err := NewMultiFileFormatter(dir, format).Format(declared()); err != nil {
				t.Fatalf("Format() error = %v", err)
			}

			ext := ".txt"
			if format == FormatMarkdown {
				ext = ".md"
			}

			overview, err := os.ReadFile(filepath.Join(dir, "_overview"+ext))
			if err != nil {
				t.Fatalf("reading overview: %v", err)
			}
			if !strings.Contains(string(overview), "counts") || !strings.Contains(string(overview), "references: query, journal") {
				t.Errorf("overview = %s", overview)
			}

			for _, name := range schema.Declared().TableNames() {
				if _, err := os.Stat(filepath.Join(dir, name+ext)); err != nil {
					t.Errorf("missing file for table %s: %v", name, err)
				}
			}

			journal, err := os.ReadFile(filepath.Join(dir, "journal"+ext))
			if err != nil {
				t.Fatalf("reading journal file: %v", err)
			}
			if !strings.Contains(string(journal), "counts.journal_id → id") {
				t.Errorf("journal file should list incoming references, got:\n%s", journal)
			}
		})
	}
}

func TestFindIncomingRelations(t *testing.T) {
	incoming := findIncomingRelations(schema.QueryTable, schema.Declared())
	if len(incoming) != 2 {
		t.Fatalf("got %d incoming relations, want 2", len(incoming))
	}
	if incoming[0].SourceTable != schema.CountsTable || incoming[1].SourceTable != schema.QueueTable {
		t.Errorf("incoming = %+v", incoming)
	}
	for _, rel := range incoming {
		if rel.OnDelete != schema.Cascade {
			t.Errorf("%s.%s OnDelete = %q, want CASCADE", rel.SourceTable, rel.SourceColumn, rel.OnDelete)
		}
	}
}
