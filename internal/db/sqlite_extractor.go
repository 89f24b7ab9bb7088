package db

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/tordrt/kbtrend/internal/schema"
)

// SQLiteExtractor handles schema extraction from SQLite
type SQLiteExtractor struct {
	client *SQLiteClient
}

// NewSQLiteExtractor creates a new SQLite schema extractor
func NewSQLiteExtractor(client *SQLiteClient) *SQLiteExtractor {
	return &SQLiteExtractor{
		client: client,
	}
}

// ExtractSchema extracts the complete schema for specified tables
// If tables is empty, extracts all tables in the database
func (e *SQLiteExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	return extractSchema(ctx, e, tables)
}

func (e *SQLiteExtractor) tableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tableList []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tableList = append(tableList, tableName)
	}

	return tableList, rows.Err()
}

func (e *SQLiteExtractor) columns(ctx context.Context, tableName string) ([]schema.Column, []string, error) {
	query := `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`

	rows, err := e.client.GetDB().QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	pkOrder := map[string]int{}

	for rows.Next() {
		var name, colType string
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, nil, err
		}

		col := schema.Column{
			Name:     name,
			Type:     colType,
			Nullable: notNull == 0,
		}
		if defaultValue.Valid {
			col.DefaultValue = &defaultValue.String
		}
		if pk > 0 {
			pkOrder[name] = pk
			col.Nullable = false
		}

		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	pkColumns := make([]string, 0, len(pkOrder))
	for name := range pkOrder {
		pkColumns = append(pkColumns, name)
	}
	sort.Slice(pkColumns, func(i, j int) bool { return pkOrder[pkColumns[i]] < pkOrder[pkColumns[j]] })

	return columns, pkColumns, nil
}

func (e *SQLiteExtractor) relations(ctx context.Context, tableName string) ([]schema.Relation, error) {
	query := `SELECT "table", "from", "to", on_delete FROM pragma_foreign_key_list(?) ORDER BY id, seq`

	rows, err := e.client.GetDB().QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var relations []schema.Relation
	for rows.Next() {
		var rel schema.Relation
		if err := rows.Scan(&rel.TargetTable, &rel.SourceColumn, &rel.TargetColumn, &rel.OnDelete); err != nil {
			return nil, err
		}
		rel.Cardinality = "N:1" // Simplified assumption
		relations = append(relations, rel)
	}

	return relations, rows.Err()
}

// sqliteIndex is one row of pragma_index_list
type sqliteIndex struct {
	name   string
	unique bool
	origin string // c: CREATE INDEX, u: UNIQUE constraint, pk: primary key
}

func (e *SQLiteExtractor) indexList(ctx context.Context, tableName string) ([]sqliteIndex, error) {
	rows, err := e.client.GetDB().QueryContext(ctx, `SELECT name, "unique", origin FROM pragma_index_list(?) ORDER BY name`, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []sqliteIndex
	for rows.Next() {
		var idx sqliteIndex
		var unique int
		if err := rows.Scan(&idx.name, &unique, &idx.origin); err != nil {
			return nil, err
		}
		idx.unique = unique == 1
		list = append(list, idx)
	}
	return list, rows.Err()
}

// indexColumns is queried only after the index list is closed so a
// single-connection pool does not deadlock.
func (e *SQLiteExtractor) indexColumns(ctx context.Context, indexName string) ([]string, error) {
	rows, err := e.client.GetDB().QueryContext(ctx, `SELECT name FROM pragma_index_info(?) ORDER BY seqno`, indexName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var colName sql.NullString
		if err := rows.Scan(&colName); err != nil {
			return nil, err
		}
		if colName.Valid {
			columns = append(columns, colName.String)
		}
	}
	return columns, rows.Err()
}

func (e *SQLiteExtractor) uniques(ctx context.Context, tableName string) ([]schema.Unique, error) {
	list, err := e.indexList(ctx, tableName)
	if err != nil {
		return nil, err
	}

	var uniques []schema.Unique
	for _, idx := range list {
		if idx.origin != "u" {
			continue
		}
		columns, err := e.indexColumns(ctx, idx.name)
		if err != nil {
			return nil, err
		}
		uniques = append(uniques, schema.Unique{Name: idx.name, Columns: columns})
	}
	return uniques, nil
}

func (e *SQLiteExtractor) indexes(ctx context.Context, tableName string) ([]schema.Index, error) {
	list, err := e.indexList(ctx, tableName)
	if err != nil {
		return nil, err
	}

	var indexes []schema.Index
	for _, idx := range list {
		// Skip indexes backing PRIMARY KEY and UNIQUE constraints
		if idx.origin != "c" || strings.HasPrefix(idx.name, "sqlite_autoindex") {
			continue
		}
		columns, err := e.indexColumns(ctx, idx.name)
		if err != nil {
			return nil, err
		}
		if len(columns) > 0 {
			indexes = append(indexes, schema.Index{
				Name:     idx.name,
				IsUnique: idx.unique,
				Columns:  columns,
			})
		}
	}
	return indexes, nil
}
