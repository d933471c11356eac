// Package dialect holds everything that differs between the supported SQL
// dialects: identifier quoting, placeholders, date bucketing and pagination.
package dialect

import (
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Dialect identifies a SQL flavour.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	MSSQL    Dialect = "mssql"
	SQLite   Dialect = "sqlite"
)

// ErrUnsupportedDialect is returned for dialect names that have no adapter.
var ErrUnsupportedDialect = errors.New("unsupported dialect")

// Parse resolves a dialect name, accepting the usual aliases.
func Parse(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "mssql", "sqlserver":
		return MSSQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDialect, name)
	}
}

func (d Dialect) String() string { return string(d) }

// Quote quotes a single identifier.
//
//	PostgreSQL/SQLite: "name"
//	MySQL:             `name`
//	MS SQL:            [name]
func (d Dialect) Quote(ident string) string {
	switch d {
	case MySQL:
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	case MSSQL:
		return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
}

// Column returns a qualified, quoted table.column reference.
func (d Dialect) Column(table, column string) string {
	if table == "" {
		return d.Quote(column)
	}
	return d.Quote(table) + "." + d.Quote(column)
}

// Placeholder returns the squirrel placeholder format for the dialect.
func (d Dialect) Placeholder() sq.PlaceholderFormat {
	switch d {
	case Postgres:
		return sq.Dollar
	case MSSQL:
		return sq.AtP
	default:
		return sq.Question
	}
}

// TimeArg converts a time to a driver argument. SQLite stores dates as text,
// so the value must be rendered in the same layout the rows use.
func (d Dialect) TimeArg(t time.Time) any {
	if d == SQLite {
		return t.UTC().Format("2006-01-02 15:04:05")
	}
	return t
}

// ILike builds a case-insensitive LIKE condition.
func (d Dialect) ILike(column, pattern string) sq.Sqlizer {
	if d == Postgres {
		return sq.Expr(column+" ILIKE ?", pattern)
	}
	return sq.Expr("LOWER("+column+") LIKE LOWER(?)", pattern)
}

// GroupByOrdinal reports whether GROUP BY / ORDER BY accept a column ordinal.
// MS SQL requires the full expression instead.
func (d Dialect) GroupByOrdinal() bool {
	return d != MSSQL
}

// Paginate applies offset/limit. MS SQL has no LIMIT and requires an
// ORDER BY before OFFSET ... FETCH, so fallbackOrder is used when the
// builder has no explicit ordering.
func (d Dialect) Paginate(b sq.SelectBuilder, offset, limit uint64, hasOrder bool, fallbackOrder string) sq.SelectBuilder {
	if limit == 0 && offset == 0 {
		return b
	}
	if d != MSSQL {
		if limit > 0 {
			b = b.Limit(limit)
		}
		if offset > 0 {
			b = b.Offset(offset)
		}
		return b
	}

	if !hasOrder {
		if fallbackOrder == "" {
			fallbackOrder = "(SELECT NULL)"
		}
		b = b.OrderBy(fallbackOrder)
	}
	suffix := fmt.Sprintf("OFFSET %d ROWS", offset)
	if limit > 0 {
		suffix += fmt.Sprintf(" FETCH NEXT %d ROWS ONLY", limit)
	}
	return b.Suffix(suffix)
}
