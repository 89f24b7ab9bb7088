package schema

import (
	"fmt"
	"strings"
)

// CreateStatements renders the DDL for every table in s. The statements are
// idempotent and ordered so that referenced tables come first.
func (s *Schema) CreateStatements(d Dialect) []string {
	var stmts []string
	for _, table := range s.Tables {
		stmts = append(stmts, createTable(d, table))
		if d == MySQL {
			// MySQL has no CREATE INDEX IF NOT EXISTS; indexes are inlined.
			continue
		}
		for _, idx := range table.Indexes {
			stmts = append(stmts, createIndex(d, table.Name, idx))
		}
	}
	return stmts
}

// CreateStatements renders the DDL for the declared kbtrend schema
func CreateStatements(d Dialect) []string {
	return Declared().CreateStatements(d)
}

// DropStatements renders DROP TABLE statements for every table in s,
// dependents first
func (s *Schema) DropStatements(d Dialect) []string {
	stmts := make([]string, 0, len(s.Tables))
	for i := len(s.Tables) - 1; i >= 0; i-- {
		stmts = append(stmts, "DROP TABLE IF EXISTS "+d.Quote(s.Tables[i].Name))
	}
	return stmts
}

func createTable(d Dialect, table Table) string {
	var defs []string

	for _, col := range table.Columns {
		defs = append(defs, columnDefinition(d, col))
	}

	if len(table.PrimaryKey) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", d.QuoteAll(table.PrimaryKey)))
	}

	for _, u := range table.Uniques {
		defs = append(defs, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", d.Quote(u.Name), d.QuoteAll(u.Columns)))
	}

	for _, rel := range table.Relations {
		def := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			d.Quote(rel.SourceColumn), d.Quote(rel.TargetTable), d.Quote(rel.TargetColumn))
		if rel.OnDelete != "" {
			def += " ON DELETE " + rel.OnDelete
		}
		defs = append(defs, def)
	}

	if d == MySQL {
		for _, idx := range table.Indexes {
			defs = append(defs, fmt.Sprintf("INDEX %s (%s)", d.Quote(idx.Name), d.QuoteAll(idx.Columns)))
		}
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", d.Quote(table.Name), strings.Join(defs, ",\n    "))
	if d == MySQL {
		stmt += " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
	}
	return stmt
}

func columnDefinition(d Dialect, col Column) string {
	parts := []string{d.Quote(col.Name), d.ColumnType(col.Kind)}

	// Primary keys are implicitly NOT NULL; SQLite also needs the bare
	// INTEGER type for the column to alias the rowid.
	if !col.Nullable && col.Kind != KindID {
		parts = append(parts, "NOT NULL")
	}

	if col.DefaultValue != nil {
		def := *col.DefaultValue
		if def == DefaultNow {
			def = d.now()
		}
		parts = append(parts, "DEFAULT "+def)
	}

	return strings.Join(parts, " ")
}

func createIndex(d Dialect, tableName string, idx Index) string {
	kind := "INDEX"
	if idx.IsUnique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)",
		kind, d.Quote(idx.Name), d.Quote(tableName), d.QuoteAll(idx.Columns))
}

// Resolve returns a copy of s with each declared column's Type set to the
// dialect's name for its Kind. Columns that already carry a Type keep it.
func (s *Schema) Resolve(d Dialect) *Schema {
	out := &Schema{Tables: make([]Table, len(s.Tables))}
	for i, t := range s.Tables {
		t.Columns = append([]Column(nil), t.Columns...)
		for j := range t.Columns {
			if t.Columns[j].Type == "" && t.Columns[j].Kind != 0 {
				t.Columns[j].Type = d.ColumnType(t.Columns[j].Kind)
			}
		}
		out.Tables[i] = t
	}
	return out
}
