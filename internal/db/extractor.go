package db

import (
	"context"
	"fmt"

	"github.com/tordrt/kbtrend/internal/schema"
)

// tableReader is the per-dialect half of an extractor
type tableReader interface {
	tableNames(ctx context.Context) ([]string, error)
	columns(ctx context.Context, table string) ([]schema.Column, []string, error)
	relations(ctx context.Context, table string) ([]schema.Relation, error)
	uniques(ctx context.Context, table string) ([]schema.Unique, error)
	indexes(ctx context.Context, table string) ([]schema.Index, error)
}

// extractSchema extracts the requested tables, or every table if none are named
func extractSchema(ctx context.Context, r tableReader, requested []string) (*schema.Schema, error) {
	tableNames := requested
	if len(tableNames) == 0 {
		var err error
		tableNames, err = r.tableNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get table names: %w", err)
		}
	}

	var extractedTables []schema.Table
	for _, tableName := range tableNames {
		table, err := extractTable(ctx, r, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to extract table %s: %w", tableName, err)
		}
		extractedTables = append(extractedTables, *table)
	}

	return &schema.Schema{Tables: extractedTables}, nil
}

// extractTable extracts all information for a single table
func extractTable(ctx context.Context, r tableReader, tableName string) (*schema.Table, error) {
	table := &schema.Table{Name: tableName}

	columns, pk, err := r.columns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	table.Columns = columns
	table.PrimaryKey = pk

	// A table that does not exist has no columns; skip the other lookups.
	if len(columns) == 0 {
		return table, nil
	}

	relations, err := r.relations(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract relations: %w", err)
	}
	table.Relations = relations

	uniques, err := r.uniques(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract unique constraints: %w", err)
	}
	table.Uniques = uniques

	indexes, err := r.indexes(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %w", err)
	}
	table.Indexes = indexes

	for _, u := range uniques {
		if len(u.Columns) != 1 {
			continue
		}
		if col := table.Column(u.Columns[0]); col != nil {
			col.IsUnique = true
		}
	}

	return table, nil
}
