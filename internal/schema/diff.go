package schema

import (
	"fmt"
	"slices"
	"strings"
)

// Diff compares a live schema against the declared one and describes every
// difference that would break the declared constraints. Extra tables,
// columns and indexes in got are ignored.
func Diff(want, got *Schema) []string {
	var problems []string

	for _, wt := range want.Tables {
		gt := got.Table(wt.Name)
		if gt == nil || len(gt.Columns) == 0 {
			problems = append(problems, fmt.Sprintf("table %s: missing", wt.Name))
			continue
		}
		problems = append(problems, diffTable(&wt, gt)...)
	}

	return problems
}

func diffTable(want, got *Table) []string {
	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf("table %s: ", want.Name)+fmt.Sprintf(format, args...))
	}

	for _, wc := range want.Columns {
		gc := got.Column(wc.Name)
		if gc == nil {
			report("column %s missing", wc.Name)
			continue
		}
		if slices.Contains(want.PrimaryKey, wc.Name) {
			continue
		}
		if wc.Nullable != gc.Nullable {
			report("column %s nullable=%t, want %t", wc.Name, gc.Nullable, wc.Nullable)
		}
	}

	if !slices.Equal(want.PrimaryKey, got.PrimaryKey) {
		report("primary key (%s), want (%s)", strings.Join(got.PrimaryKey, ", "), strings.Join(want.PrimaryKey, ", "))
	}

	for _, wr := range want.Relations {
		gr := findRelation(got.Relations, wr.SourceColumn, wr.TargetTable)
		if gr == nil {
			report("foreign key %s -> %s.%s missing", wr.SourceColumn, wr.TargetTable, wr.TargetColumn)
			continue
		}
		if wr.OnDelete != "" && !strings.EqualFold(wr.OnDelete, gr.OnDelete) {
			report("foreign key %s -> %s ON DELETE %s, want %s", wr.SourceColumn, wr.TargetTable, orNone(gr.OnDelete), wr.OnDelete)
		}
	}

	for _, wu := range want.Uniques {
		if !hasUniqueOn(got, wu.Columns) {
			report("unique constraint %s on (%s) missing", wu.Name, strings.Join(wu.Columns, ", "))
		}
	}

	for _, wi := range want.Indexes {
		if !slices.ContainsFunc(got.Indexes, func(gi Index) bool { return gi.Name == wi.Name }) {
			report("index %s missing", wi.Name)
		}
	}

	return problems
}

func findRelation(rels []Relation, sourceColumn, targetTable string) *Relation {
	for i := range rels {
		if rels[i].SourceColumn == sourceColumn && rels[i].TargetTable == targetTable {
			return &rels[i]
		}
	}
	return nil
}

// hasUniqueOn matches by column set; SQLite does not keep constraint names.
func hasUniqueOn(t *Table, columns []string) bool {
	for _, u := range t.Uniques {
		if sameColumns(u.Columns, columns) {
			return true
		}
	}
	for _, idx := range t.Indexes {
		if idx.IsUnique && sameColumns(idx.Columns, columns) {
			return true
		}
	}
	return false
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := slices.Clone(a)
	sb := slices.Clone(b)
	slices.Sort(sa)
	slices.Sort(sb)
	return slices.Equal(sa, sb)
}

func orNone(s string) string {
	if s == "" {
		return "NONE"
	}
	return s
}
