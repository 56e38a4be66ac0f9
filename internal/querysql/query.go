// Package querysql implements queryir.Queryable over SQL databases.
//
// A Query is an immutable description of a SELECT over a table, a raw
// statement, or another query. It renders to parameterized SQL for
// execution and to layout-stable text for inspection and rewriting.
//
// CRITICAL: comparison values are always bound as named parameters and
// never interpolated into executable SQL.
package querysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/qsearch/internal/queryir"
	"github.com/roach88/qsearch/internal/schema"
)

// Executor runs statements. *sql.DB, *sql.Tx and *store.Store satisfy it.
type Executor interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// source is where a query reads rows from.
type source interface {
	sourceNode()
}

type tableSource struct {
	name string
}

type textSource struct {
	text       string
	positional []any
	named      []sql.NamedArg
}

type querySource struct {
	inner *state
}

func (tableSource) sourceNode()  {}
func (textSource) sourceNode()   {}
func (querySource) sourceNode()  {}

// state is the composable part of a query.
type state struct {
	from  source
	where []queryir.Predicate
	order []queryir.SortKey
	skip  int
	take  *int
}

func (s *state) windowed() bool { return s.skip > 0 || s.take != nil }

// rawText returns the source of a state that only reads a raw statement.
func (s *state) rawText() (textSource, bool) {
	src, ok := s.from.(textSource)
	if !ok || len(s.where) > 0 || len(s.order) > 0 || s.windowed() {
		return textSource{}, false
	}
	return src, true
}

// Query is a relational query over entities of type T.
type Query[T any] struct {
	exec    Executor
	dialect Dialect
	schema  *schema.Schema
	table   string
	st      *state
}

var _ queryir.TextQueryable[int] = (*Query[int])(nil)

// NewTable returns a query over every row of table. Rows map onto T
// through s: T must be the struct type s describes, or schema.Record for
// record schemas.
func NewTable[T any](exec Executor, d Dialect, s *schema.Schema, table string) *Query[T] {
	return &Query[T]{
		exec:    exec,
		dialect: d,
		schema:  s,
		table:   table,
		st:      &state{from: tableSource{name: table}},
	}
}

// Dialect returns the query's dialect.
func (q *Query[T]) Dialect() Dialect { return q.dialect }

// Schema returns the entity schema rows are mapped through.
func (q *Query[T]) Schema() *schema.Schema { return q.schema }

// Table returns the table the query was created over.
func (q *Query[T]) Table() string { return q.table }

func (q *Query[T]) derive(st *state) *Query[T] {
	return &Query[T]{exec: q.exec, dialect: q.dialect, schema: q.schema, table: q.table, st: st}
}

// compose returns a copy of the state that can take more filters or
// ordering. A windowed state is nested so the window applies first.
func (q *Query[T]) compose() *state {
	if q.st.windowed() {
		return &state{from: querySource{inner: q.st}}
	}
	c := *q.st
	c.where = append([]queryir.Predicate(nil), q.st.where...)
	c.order = append([]queryir.SortKey(nil), q.st.order...)
	return &c
}

func (q *Query[T]) Where(p queryir.Predicate) queryir.Queryable[T] {
	if p == nil {
		return q
	}
	st := q.compose()
	st.where = append(st.where, p)
	return q.derive(st)
}

func (q *Query[T]) OrderBy(k queryir.SortKey) queryir.Queryable[T] {
	st := q.compose()
	st.order = []queryir.SortKey{k}
	return q.derive(st)
}

func (q *Query[T]) ThenBy(k queryir.SortKey) queryir.Queryable[T] {
	st := q.compose()
	st.order = append(st.order, k)
	return q.derive(st)
}

func (q *Query[T]) Skip(n int) queryir.Queryable[T] {
	c := *q.st
	n = max(n, 0)
	c.skip += n
	if c.take != nil {
		left := max(*c.take-n, 0)
		c.take = &left
	}
	return q.derive(&c)
}

func (q *Query[T]) Take(n int) queryir.Queryable[T] {
	c := *q.st
	n = max(n, 0)
	if c.take == nil || n < *c.take {
		c.take = &n
	}
	return q.derive(&c)
}

// FromText returns a query over a raw statement. Arguments of type
// sql.NamedArg bind @name placeholders; the others bind {0}, {1}, ... in
// order.
func (q *Query[T]) FromText(text string, args ...any) queryir.TextQueryable[T] {
	src := textSource{text: text}
	for _, a := range args {
		if na, ok := a.(sql.NamedArg); ok {
			src.named = append(src.named, na)
			continue
		}
		src.positional = append(src.positional, a)
	}
	return q.derive(&state{from: src})
}

// Render returns the executable statement in the dialect's bind style. A
// raw statement with nothing composed on it runs as written, so an ORDER
// BY inside it orders the result.
func (q *Query[T]) Render() (queryir.Statement, error) {
	if src, ok := q.st.rawText(); ok {
		lines, args, err := renderRaw(src, q.dialect)
		if err != nil {
			return queryir.Statement{}, err
		}
		return q.bind(lines, args)
	}
	lines, args, err := renderState(q.st, q.dialect, false)
	if err != nil {
		return queryir.Statement{}, err
	}
	return q.bind(lines, args)
}

// RenderText returns the statement in layout form with raw positional
// arguments inlined as literals and named parameters left as @name.
func (q *Query[T]) RenderText() (queryir.Statement, error) {
	lines, args, err := renderState(q.st, q.dialect, true)
	if err != nil {
		return queryir.Statement{}, err
	}
	text := joinLines(lines)
	return queryir.Statement{Text: text, Args: pruneArgs(text, args)}, nil
}

func (q *Query[T]) bind(lines []string, args []sql.NamedArg) (queryir.Statement, error) {
	text := joinLines(lines)
	kept := pruneArgs(text, args)
	bound, out, err := q.dialect.Bind(text, kept)
	if err != nil {
		return queryir.Statement{}, err
	}
	return queryir.Statement{Text: bound, Args: out}, nil
}

// CountStatement returns the executable statement Count runs.
func (q *Query[T]) CountStatement() (queryir.Statement, error) {
	st := q.st
	if !st.windowed() && len(st.order) > 0 {
		c := *st
		c.order = nil
		st = &c
	}
	lines, args, err := renderState(st, q.dialect, false)
	if err != nil {
		return queryir.Statement{}, err
	}
	wrapped := make([]string, 0, len(lines)+2)
	wrapped = append(wrapped, "SELECT COUNT(*)", SubqueryOpen)
	wrapped = append(wrapped, lines...)
	wrapped = append(wrapped, SubqueryClosePrefix+q.dialect.QuoteIdent("c"))
	return q.bind(wrapped, args)
}

// Count executes the count statement.
func (q *Query[T]) Count(ctx context.Context) (int, error) {
	stmt, err := q.CountStatement()
	if err != nil {
		return 0, err
	}
	rows, err := q.exec.QueryContext(ctx, stmt.Text, stmt.Args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("scan count: %w", err)
		}
	}
	return n, rows.Err()
}

// List executes the statement and maps each row onto T.
func (q *Query[T]) List(ctx context.Context) ([]T, error) {
	stmt, err := q.Render()
	if err != nil {
		return nil, err
	}
	rows, err := q.exec.QueryContext(ctx, stmt.Text, stmt.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows[T](rows, q.schema)
}
