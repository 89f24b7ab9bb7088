package schema

// Schema represents a complete database schema
type Schema struct {
	Tables []Table
}

// Table returns the table with the given name, or nil
func (s *Schema) Table(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// TableNames returns the table names in declaration order
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

// Table represents a database table
type Table struct {
	Name       string
	Columns    []Column
	Relations  []Relation
	Uniques    []Unique
	Indexes    []Index
	PrimaryKey []string
}

// Column returns the column with the given name, or nil
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// Column represents a table column.
//
// Declared columns carry a Kind that each Dialect maps to a concrete type;
// extracted columns carry the engine's Type string instead.
type Column struct {
	Name         string
	Type         string
	Kind         ColumnKind
	Nullable     bool
	DefaultValue *string
	IsUnique     bool
}

// Relation represents a foreign key relationship
type Relation struct {
	TargetTable  string
	TargetColumn string
	SourceColumn string
	Cardinality  string // 1:1, 1:N, N:1
	OnDelete     string // CASCADE, NO ACTION, ...
}

// Unique represents a (possibly composite) unique constraint
type Unique struct {
	Name    string
	Columns []string
}

// Index represents a database index
type Index struct {
	Name     string
	Columns  []string
	IsUnique bool
}

// ColumnKind is the logical type of a declared column
type ColumnKind int

const (
	KindID        ColumnKind = iota + 1 // surrogate auto-increment key
	KindReference                       // foreign key to a KindID column
	KindInteger
	KindFloat
	KindString // short, indexable string
	KindText
	KindTimestamp
	KindJSON
)

// DefaultNow is the portable spelling of a current-timestamp default.
const DefaultNow = "CURRENT_TIMESTAMP"

// Cascade is the ON DELETE action that removes dependent rows.
const Cascade = "CASCADE"
