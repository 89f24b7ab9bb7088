package schema

// Table names.
const (
	MetadataTable = "metadata"
	JournalTable  = "journal"
	QueryTable    = "query"
	CountsTable   = "counts"
	QueueTable    = "queue"
)

func strPtr(s string) *string { return &s }

// Declared returns the kbtrend schema. Tables are listed parents first so
// CreateStatements can run in order.
func Declared() *Schema {
	return &Schema{Tables: []Table{
		metadataTable(),
		journalTable(),
		queryTable(),
		countsTable(),
		queueTable(),
	}}
}

func metadataTable() Table {
	return Table{
		Name: MetadataTable,
		Columns: []Column{
			{Name: "key", Kind: KindString},
			{Name: "value", Kind: KindText},
			{Name: "updated_at", Kind: KindTimestamp, Nullable: true, DefaultValue: strPtr(DefaultNow)},
		},
		PrimaryKey: []string{"key"},
	}
}

func journalTable() Table {
	return Table{
		Name: JournalTable,
		Columns: []Column{
			{Name: "id", Kind: KindID},
			{Name: "name", Kind: KindString, IsUnique: true},
		},
		PrimaryKey: []string{"id"},
		Uniques: []Unique{
			{Name: "uq_journal_name", Columns: []string{"name"}},
		},
		Indexes: []Index{
			{Name: "idx_journal_name", Columns: []string{"name"}},
		},
	}
}

func queryTable() Table {
	return Table{
		Name: QueryTable,
		Columns: []Column{
			{Name: "id", Kind: KindID},
			{Name: "search_string", Kind: KindString},
			{Name: "keyword", Kind: KindString},
			{Name: "metadata_json", Kind: KindJSON, Nullable: true},
		},
		PrimaryKey: []string{"id"},
		Uniques: []Unique{
			{Name: "uq_query_search_keyword", Columns: []string{"search_string", "keyword"}},
		},
		Indexes: []Index{
			{Name: "idx_query_search_string", Columns: []string{"search_string"}},
			{Name: "idx_query_keyword", Columns: []string{"keyword"}},
		},
	}
}

func countsTable() Table {
	return Table{
		Name: CountsTable,
		Columns: []Column{
			{Name: "id", Kind: KindID},
			{Name: "year", Kind: KindInteger},
			{Name: "query_id", Kind: KindReference},
			{Name: "journal_id", Kind: KindReference},
			{Name: "count", Kind: KindInteger, DefaultValue: strPtr("0")},
			{Name: "rel", Kind: KindFloat, Nullable: true},
		},
		PrimaryKey: []string{"id"},
		Relations: []Relation{
			{SourceColumn: "query_id", TargetTable: QueryTable, TargetColumn: "id", Cardinality: "N:1", OnDelete: Cascade},
			{SourceColumn: "journal_id", TargetTable: JournalTable, TargetColumn: "id", Cardinality: "N:1", OnDelete: Cascade},
		},
		Uniques: []Unique{
			{Name: "uq_count_year_query_journal", Columns: []string{"year", "query_id", "journal_id"}},
		},
		Indexes: []Index{
			{Name: "idx_count_query", Columns: []string{"query_id"}},
			{Name: "idx_count_journal", Columns: []string{"journal_id"}},
			{Name: "idx_count_year", Columns: []string{"year"}},
		},
	}
}

func queueTable() Table {
	return Table{
		Name: QueueTable,
		Columns: []Column{
			{Name: "id", Kind: KindID},
			{Name: "query_id", Kind: KindReference},
			{Name: "journal_id", Kind: KindReference},
			{Name: "year", Kind: KindString},
			{Name: "status", Kind: KindString, Nullable: true, DefaultValue: strPtr("'pending'")},
			{Name: "completed_at", Kind: KindTimestamp, Nullable: true},
			{Name: "error_message", Kind: KindText, Nullable: true},
		},
		PrimaryKey: []string{"id"},
		Relations: []Relation{
			{SourceColumn: "query_id", TargetTable: QueryTable, TargetColumn: "id", Cardinality: "N:1", OnDelete: Cascade},
			{SourceColumn: "journal_id", TargetTable: JournalTable, TargetColumn: "id", Cardinality: "N:1", OnDelete: Cascade},
		},
		Uniques: []Unique{
			{Name: "uq_queue_query_journal_year", Columns: []string{"query_id", "journal_id", "year"}},
		},
		Indexes: []Index{
			{Name: "idx_queue_status", Columns: []string{"status"}},
			{Name: "idx_queue_query", Columns: []string{"query_id"}},
		},
	}
}
