package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/tordrt/kbtrend/internal/schema"
)

// MySQLExtractor handles schema extraction from MySQL
type MySQLExtractor struct {
	client     *MySQLClient
	schemaName string
}

// NewMySQLExtractor creates a new MySQL schema extractor
func NewMySQLExtractor(client *MySQLClient, schemaName string) *MySQLExtractor {
	return &MySQLExtractor{
		client:     client,
		schemaName: schemaName,
	}
}

// ExtractSchema extracts the complete schema for specified tables
// If tables is empty, extracts all tables in the schema
func (e *MySQLExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	return extractSchema(ctx, e, tables)
}

func (e *MySQLExtractor) tableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

func (e *MySQLExtractor) columns(ctx context.Context, tableName string) ([]schema.Column, []string, error) {
	query := `
		SELECT
			c.column_name,
			c.column_type,
			c.is_nullable,
			c.column_default
		FROM information_schema.columns c
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var col schema.Column
		var nullable string
		var defaultVal sql.NullString

		if err := rows.Scan(&col.Name, &col.Type, &nullable, &defaultVal); err != nil {
			return nil, nil, err
		}

		col.Nullable = nullable == "YES"
		if defaultVal.Valid {
			col.DefaultValue = &defaultVal.String
		}

		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	pk, err := e.primaryKey(ctx, tableName)
	if err != nil {
		return nil, nil, err
	}

	return columns, pk, nil
}

func (e *MySQLExtractor) primaryKey(ctx context.Context, tableName string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
			AND table_name = ?
			AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var colName string
		if err := rows.Scan(&colName); err != nil {
			return nil, err
		}
		pk = append(pk, colName)
	}

	return pk, rows.Err()
}

func (e *MySQLExtractor) relations(ctx context.Context, tableName string) ([]schema.Relation, error) {
	query := `
		SELECT
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name,
			rc.delete_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_schema = kcu.table_schema
			AND rc.constraint_name = kcu.constraint_name
			AND rc.table_name = kcu.table_name
		WHERE kcu.table_schema = ?
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.column_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var relations []schema.Relation
	for rows.Next() {
		var rel schema.Relation
		if err := rows.Scan(&rel.SourceColumn, &rel.TargetTable, &rel.TargetColumn, &rel.OnDelete); err != nil {
			return nil, err
		}
		rel.Cardinality = "N:1"
		relations = append(relations, rel)
	}

	return relations, rows.Err()
}

// mysqlIndex is one grouped row of information_schema.statistics
type mysqlIndex struct {
	name    string
	unique  bool
	columns []string
}

func (e *MySQLExtractor) statistics(ctx context.Context, tableName string) ([]mysqlIndex, error) {
	query := `
		SELECT
			s.index_name,
			MIN(s.non_unique) = 0 AS is_unique,
			GROUP_CONCAT(s.column_name ORDER BY s.seq_in_index) AS column_names
		FROM information_schema.statistics s
		WHERE s.table_schema = ?
			AND s.table_name = ?
			AND s.index_name != 'PRIMARY'
		GROUP BY s.index_name
		ORDER BY s.index_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []mysqlIndex
	for rows.Next() {
		var idx mysqlIndex
		var isUnique int
		var columnNames string

		if err := rows.Scan(&idx.name, &isUnique, &columnNames); err != nil {
			return nil, err
		}

		idx.unique = isUnique == 1
		idx.columns = strings.Split(columnNames, ",")
		stats = append(stats, idx)
	}

	return stats, rows.Err()
}

// uniques reports unique indexes; MySQL implements UNIQUE constraints as
// unique indexes named after the constraint.
func (e *MySQLExtractor) uniques(ctx context.Context, tableName string) ([]schema.Unique, error) {
	stats, err := e.statistics(ctx, tableName)
	if err != nil {
		return nil, err
	}

	var uniques []schema.Unique
	for _, s := range stats {
		if s.unique {
			uniques = append(uniques, schema.Unique{Name: s.name, Columns: s.columns})
		}
	}
	return uniques, nil
}

func (e *MySQLExtractor) indexes(ctx context.Context, tableName string) ([]schema.Index, error) {
	stats, err := e.statistics(ctx, tableName)
	if err != nil {
		return nil, err
	}

	var indexes []schema.Index
	for _, s := range stats {
		if !s.unique {
			indexes = append(indexes, schema.Index{Name: s.name, Columns: s.columns})
		}
	}
	return indexes, nil
}
