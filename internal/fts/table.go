package fts

import (
	"fmt"
	"strings"

	"github.com/roach88/qsearch/internal/qerr"
	"github.com/roach88/qsearch/internal/querysql"
)

// Names used in every base statement.
const (
	BaseAlias  = "ftst"
	KeyTable   = "KEY_TBL"
	KeyColumn  = "KEY"
	RankColumn = "RANK"

	termPlaceholder = "{0}"
)

// Table describes the indexed entity table.
type Table struct {
	// Name is the entity table.
	Name string
	// Index is the SQLite FTS5 table. Defaults to Name + "_fts".
	Index string
	// Key is the entity key column joined against the index key. For
	// SQLite it must be the rowid alias. Defaults to "id".
	Key string
	// TermColumns are the indexed text columns.
	TermColumns []string
}

// WithDefaults fills in the index name and key column.
func (t Table) WithDefaults() Table {
	if t.Index == "" {
		t.Index = t.Name + "_fts"
	}
	if t.Key == "" {
		t.Key = "id"
	}
	return t
}

// Validate checks that t can be indexed and searched in dialect d.
func (t Table) Validate(d querysql.Dialect) error {
	if strings.TrimSpace(t.Name) == "" {
		return qerr.New(qerr.CodeConfiguration, "full-text table name is required")
	}
	if len(t.TermColumns) == 0 {
		return qerr.New(qerr.CodeConfiguration, "full-text table %s has no term columns", t.Name)
	}
	switch d.Name() {
	case "sqlite", "postgres", "sqlserver":
		return nil
	}
	return qerr.New(qerr.CodeConfiguration, "dialect %s has no full-text support", d.Name())
}

// backend builds the base statement and term argument for one dialect.
type backend struct {
	template string // base statement with the term placeholder
	shape    func(words []string, mode Mode) string
}

func newBackend(d querysql.Dialect, t Table, mode Mode) backend {
	q := d.QuoteIdent
	alias := q(BaseAlias)
	join := fmt.Sprintf("ON %s.%s = %s.%s", alias, q(t.Key), q(KeyTable), q(KeyColumn))
	head := fmt.Sprintf("SELECT %s.* FROM %s AS %s INNER JOIN", alias, q(t.Name), alias)

	switch d.Name() {
	case "sqlserver":
		fn := "FREETEXTTABLE"
		if mode != FreeText {
			fn = "CONTAINSTABLE"
		}
		return backend{
			template: fmt.Sprintf("%s %s(%s, (%s), %s) AS %s %s",
				head, fn, q(t.Name), quoteAll(d, "", t.TermColumns), termPlaceholder, q(KeyTable), join),
			shape: shapeSQLServer,
		}
	case "postgres":
		fn := "plainto_tsquery"
		if mode != FreeText {
			fn = "to_tsquery"
		}
		doc := fmt.Sprintf("to_tsvector('simple', concat_ws(' ', %s))", quoteAll(d, q("k")+".", t.TermColumns))
		return backend{
			template: fmt.Sprintf("%s (SELECT %s.%s AS %s, ts_rank(%s, %s) AS %s FROM %s AS %s, %s('simple', %s) AS %s WHERE %s @@ %s) AS %s %s",
				head, q("k"), q(t.Key), q(KeyColumn), doc, q("q"), q(RankColumn),
				q(t.Name), q("k"), fn, termPlaceholder, q("q"), doc, q("q"), q(KeyTable), join),
			shape: shapePostgres,
		}
	default:
		return backend{
			template: fmt.Sprintf("%s (SELECT rowid AS %s, -rank AS %s FROM %s WHERE %s MATCH %s) AS %s %s",
				head, q(KeyColumn), q(RankColumn), q(t.Index), q(t.Index), termPlaceholder, q(KeyTable), join),
			shape: shapeSQLite,
		}
	}
}

func quoteAll(d querysql.Dialect, prefix string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + d.QuoteIdent(c)
	}
	return strings.Join(out, ", ")
}
