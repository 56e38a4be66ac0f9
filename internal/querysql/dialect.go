package querysql

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Dialect renders the vendor-specific parts of a statement.
type Dialect interface {
	// Name identifies the dialect ("sqlite", "postgres", "sqlserver").
	Name() string

	QuoteIdent(name string) string
	QuoteLiteral(s string) string

	// StartsWith and Contains render case-sensitive substring tests of a
	// column expression against a placeholder.
	StartsWith(column, param string) string
	Contains(column, param string) string

	// Paging renders the lines that bound the result window. ordered tells
	// whether the statement already has an ORDER BY line.
	Paging(ordered bool, skip int, take *int) []string

	// Bind converts a statement using @name placeholders and sql.NamedArg
	// arguments into what the driver accepts.
	Bind(text string, args []any) (string, []any, error)
}

// DialectByName returns a built-in dialect.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlserver", "mssql":
		return SQLServer, nil
	}
	return nil, fmt.Errorf("unknown dialect %q", name)
}

var (
	// SQLite renders for SQLite 3 (modernc.org/sqlite or mattn/go-sqlite3).
	SQLite Dialect = sqliteDialect{}
	// Postgres renders for PostgreSQL through pgx's database/sql driver.
	Postgres Dialect = postgresDialect{}
	// SQLServer renders T-SQL.
	SQLServer Dialect = sqlServerDialect{}
)

type sqliteDialect struct{}

func (sqliteDialect) Name() string                  { return "sqlite" }
func (sqliteDialect) QuoteIdent(name string) string { return quoteDouble(name) }
func (sqliteDialect) QuoteLiteral(s string) string  { return "'" + strings.ReplaceAll(s, "'", "''") + "'" }

func (sqliteDialect) StartsWith(column, param string) string {
	return fmt.Sprintf("substr(%s, 1, length(%s)) = %s", column, param, param)
}

func (sqliteDialect) Contains(column, param string) string {
	return fmt.Sprintf("instr(%s, %s) > 0", column, param)
}

func (sqliteDialect) Paging(_ bool, skip int, take *int) []string {
	if take == nil && skip == 0 {
		return nil
	}
	limit := "-1"
	if take != nil {
		limit = strconv.Itoa(*take)
	}
	return []string{fmt.Sprintf("LIMIT %s OFFSET %d", limit, skip)}
}

func (sqliteDialect) Bind(text string, args []any) (string, []any, error) {
	return text, args, nil
}

type postgresDialect struct{}

func (postgresDialect) Name() string                  { return "postgres" }
func (postgresDialect) QuoteIdent(name string) string { return quoteDouble(name) }
func (postgresDialect) QuoteLiteral(s string) string  { return "'" + strings.ReplaceAll(s, "'", "''") + "'" }

func (postgresDialect) StartsWith(column, param string) string {
	return fmt.Sprintf("left(%s, length(%s)) = %s", column, param, param)
}

func (postgresDialect) Contains(column, param string) string {
	return fmt.Sprintf("strpos(%s, %s) > 0", column, param)
}

func (postgresDialect) Paging(_ bool, skip int, take *int) []string {
	var lines []string
	if take != nil {
		lines = append(lines, "LIMIT "+strconv.Itoa(*take))
	}
	if skip > 0 || take != nil {
		lines = append(lines, "OFFSET "+strconv.Itoa(skip))
	}
	return lines
}

// Bind rewrites @name placeholders to $n, since pgx's database/sql driver
// does not accept sql.NamedArg. A name used twice keeps one position.
func (postgresDialect) Bind(text string, args []any) (string, []any, error) {
	named := make(map[string]any, len(args))
	for _, a := range args {
		na, ok := a.(sql.NamedArg)
		if !ok {
			return "", nil, fmt.Errorf("postgres: unexpected positional argument %v", a)
		}
		named[na.Name] = na.Value
	}

	var (
		b        strings.Builder
		out      []any
		position = map[string]int{}
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '@' {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(text) && isIdentByte(text[j]) {
			j++
		}
		name := text[i+1 : j]
		v, ok := named[name]
		if name == "" || !ok {
			b.WriteByte(c)
			continue
		}
		n, seen := position[name]
		if !seen {
			out = append(out, v)
			n = len(out)
			position[name] = n
		}
		b.WriteString("$" + strconv.Itoa(n))
		i = j - 1
	}
	return b.String(), out, nil
}

type sqlServerDialect struct{}

func (sqlServerDialect) Name() string { return "sqlserver" }

func (sqlServerDialect) QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (sqlServerDialect) QuoteLiteral(s string) string {
	return "N'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (sqlServerDialect) StartsWith(column, param string) string {
	return fmt.Sprintf("LEFT(%s, LEN(%s)) = %s", column, param, param)
}

func (sqlServerDialect) Contains(column, param string) string {
	return fmt.Sprintf("CHARINDEX(%s, %s) > 0", param, column)
}

// Paging uses OFFSET/FETCH, which T-SQL only allows after an ORDER BY.
func (sqlServerDialect) Paging(ordered bool, skip int, take *int) []string {
	if take == nil && skip == 0 {
		return nil
	}
	var lines []string
	if !ordered {
		lines = append(lines, "ORDER BY (SELECT NULL)")
	}
	line := fmt.Sprintf("OFFSET %d ROWS", skip)
	if take != nil {
		line += fmt.Sprintf(" FETCH NEXT %d ROWS ONLY", *take)
	}
	return append(lines, line)
}

func (sqlServerDialect) Bind(text string, args []any) (string, []any, error) {
	return text, args, nil
}

func quoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func isIdentByte(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
