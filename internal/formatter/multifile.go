package formatter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tordrt/kbtrend/internal/schema"
)

// Output formats
const (
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// MultiFileFormatter writes schema to multiple files in a directory
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes the schema to multiple files
func (f *MultiFileFormatter) Format(s *schema.Schema) error {
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeOverview(s); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, table := range s.Tables {
		if err := f.writeTableFile(table, s); err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", table.Name, err)
		}
	}

	return nil
}

func (f *MultiFileFormatter) writeOverview(s *schema.Schema) error {
	file, err := os.Create(filepath.Join(f.OutputDir, "_overview"+f.fileExtension()))
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if f.OutputFormat == FormatMarkdown {
		_, _ = fmt.Fprintf(file, "# Schema Overview\n\n")
		_, _ = fmt.Fprintf(file, "Each table has a corresponding file: `<table_name>%s`\n\n", f.fileExtension())
		_, _ = fmt.Fprintf(file, "## Tables\n\n")
	} else {
		_, _ = fmt.Fprintf(file, "SCHEMA OVERVIEW\n")
		_, _ = fmt.Fprintf(file, "Each table has a file: <table_name>%s\n\n", f.fileExtension())
	}

	sortedTables := make([]schema.Table, len(s.Tables))
	copy(sortedTables, s.Tables)
	sort.Slice(sortedTables, func(i, j int) bool {
		return sortedTables[i].Name < sortedTables[j].Name
	})

	for _, table := range sortedTables {
		if f.OutputFormat == FormatMarkdown {
			_, _ = fmt.Fprintf(file, "- **%s**", table.Name)
		} else {
			_, _ = fmt.Fprintf(file, "%s", table.Name)
		}
		if len(table.Relations) > 0 {
			var targets []string
			for _, rel := range table.Relations {
				targets = append(targets, rel.TargetTable)
			}
			_, _ = fmt.Fprintf(file, " (references: %s)", strings.Join(targets, ", "))
		}
		_, _ = fmt.Fprintln(file)
	}

	return file.Close()
}

// writeTableFile writes a single table to its own file
func (f *MultiFileFormatter) writeTableFile(table schema.Table, s *schema.Schema) error {
	file, err := os.Create(filepath.Join(f.OutputDir, table.Name+f.fileExtension()))
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if f.OutputFormat == FormatMarkdown {
		NewMarkdownFormatter(file).FormatTable(table)
	} else {
		NewTextFormatter(file).FormatTable(table)
	}
	writeIncoming(file, f.OutputFormat, findIncomingRelations(table.Name, s))

	return file.Close()
}

func writeIncoming(w io.Writer, format string, incoming []IncomingRelation) {
	if len(incoming) == 0 {
		return
	}

	if format == FormatMarkdown {
		_, _ = fmt.Fprintf(w, "### Referenced by\n\n")
	} else {
		_, _ = fmt.Fprintf(w, "\n  REFERENCED BY:\n")
	}
	for _, rel := range incoming {
		prefix := "- "
		if format != FormatMarkdown {
			prefix = "    "
		}
		_, _ = fmt.Fprintf(w, "%s%s.%s → %s (%s)%s\n", prefix,
			rel.SourceTable, rel.SourceColumn, rel.TargetColumn, rel.Cardinality,
			onDeleteSuffix(schema.Relation{OnDelete: rel.OnDelete}))
	}
	if format == FormatMarkdown {
		_, _ = fmt.Fprintln(w)
	}
}

// IncomingRelation represents a relationship pointing to this table
type IncomingRelation struct {
	SourceTable  string
	SourceColumn string
	TargetTable  string
	TargetColumn string
	Cardinality  string
	OnDelete     string
}

// findIncomingRelations finds all foreign keys pointing to this table
func findIncomingRelations(tableName string, s *schema.Schema) []IncomingRelation {
	var incoming []IncomingRelation

	for _, table := range s.Tables {
		for _, rel := range table.Relations {
			if rel.TargetTable == tableName {
				incoming = append(incoming, IncomingRelation{
					SourceTable:  table.Name,
					SourceColumn: rel.SourceColumn,
					TargetTable:  rel.TargetTable,
					TargetColumn: rel.TargetColumn,
					Cardinality:  rel.Cardinality,
					OnDelete:     rel.OnDelete,
				})
			}
		}
	}

	return incoming
}

func (f *MultiFileFormatter) fileExtension() string {
	if f.OutputFormat == FormatMarkdown {
		return ".md"
	}
	return ".txt"
}
