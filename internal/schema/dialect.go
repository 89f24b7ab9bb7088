package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect identifies the SQL flavour spoken by a storage engine
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// ParseDialect accepts the dialect names used on the command line
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3", "sqlite+modernc":
		return SQLite, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	default:
		return "", fmt.Errorf("unknown dialect: %s (must be sqlite, postgres or mysql)", name)
	}
}

// ColumnType maps a logical column kind to the engine's type name
func (d Dialect) ColumnType(kind ColumnKind) string {
	switch d {
	case Postgres:
		switch kind {
		case KindID:
			return "BIGINT GENERATED BY DEFAULT AS IDENTITY"
		case KindReference:
			return "BIGINT"
		case KindInteger:
			return "INTEGER"
		case KindFloat:
			return "DOUBLE PRECISION"
		case KindTimestamp:
			return "TIMESTAMPTZ"
		case KindJSON:
			return "JSONB"
		default:
			return "TEXT"
		}
	case MySQL:
		switch kind {
		case KindID:
			return "BIGINT AUTO_INCREMENT"
		case KindReference:
			return "BIGINT"
		case KindInteger:
			return "INT"
		case KindFloat:
			return "DOUBLE"
		case KindString:
			// TEXT cannot take part in a unique key without a prefix length.
			return "VARCHAR(255)"
		case KindTimestamp:
			return "DATETIME(6)"
		case KindJSON:
			return "JSON"
		default:
			return "TEXT"
		}
	default:
		switch kind {
		case KindID, KindReference, KindInteger:
			return "INTEGER"
		case KindFloat:
			return "REAL"
		case KindTimestamp:
			return "DATETIME"
		default:
			return "TEXT"
		}
	}
}

// Quote quotes an identifier
func (d Dialect) Quote(ident string) string {
	if d == MySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// QuoteAll quotes each identifier and joins them with ", "
func (d Dialect) QuoteAll(idents []string) string {
	quoted := make([]string, len(idents))
	for i, ident := range idents {
		quoted[i] = d.Quote(ident)
	}
	return strings.Join(quoted, ", ")
}

// Rebind rewrites ? placeholders into the dialect's bind syntax.
// Queries must not contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Upsert returns the clause that turns an INSERT into an update of the
// given columns when the conflict columns already exist
func (d Dialect) Upsert(conflict, update []string) string {
	sets := make([]string, len(update))
	for i, col := range update {
		q := d.Quote(col)
		if d == MySQL {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", q, q)
		} else {
			sets[i] = fmt.Sprintf("%s = excluded.%s", q, q)
		}
	}

	if d == MySQL {
		return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", d.QuoteAll(conflict), strings.Join(sets, ", "))
}

// IgnoreConflict returns the clause that turns an INSERT into a no-op when
// the conflict columns already exist. Other violations still fail.
func (d Dialect) IgnoreConflict(conflict []string) string {
	if d == MySQL {
		q := d.Quote(conflict[0])
		return fmt.Sprintf(" ON DUPLICATE KEY UPDATE %s = %s", q, q)
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", d.QuoteAll(conflict))
}

// SupportsReturning reports whether inserts can return the new id directly
func (d Dialect) SupportsReturning() bool {
	return d == Postgres
}

func (d Dialect) now() string {
	if d == MySQL {
		return "CURRENT_TIMESTAMP(6)"
	}
	return DefaultNow
}
