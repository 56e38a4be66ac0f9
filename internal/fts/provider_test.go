package fts

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qsearch/internal/memquery"
	"github.com/roach88/qsearch/internal/observability"
	"github.com/roach88/qsearch/internal/qerr"
	"github.com/roach88/qsearch/internal/queryir"
	"github.com/roach88/qsearch/internal/querysql"
	"github.com/roach88/qsearch/internal/schema"
	"github.com/roach88/qsearch/internal/search"
)

type doc struct {
	ID    int64  `db:"id"`
	Title string `db:"title"`
	Body  string `db:"body"`
	Year  int    `db:"year"`
}

const sqliteTemplateBound = `SELECT "ftst".* FROM "docs" AS "ftst" INNER JOIN (SELECT rowid AS "KEY", -rank AS "RANK" FROM "docs_fts" WHERE "docs_fts" MATCH @arg0) AS "KEY_TBL" ON "ftst"."id" = "KEY_TBL"."KEY"`

var docColumns = []string{"id", "title", "body", "year"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func docEngine(t *testing.T) *search.Engine[doc] {
	t.Helper()
	e, err := search.New[doc](schema.MustOf[doc](), search.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, e.RegisterDefaultSort(func(q queryir.Queryable[doc]) queryir.Queryable[doc] {
		f, err := e.Field("ID")
		require.NoError(t, err)
		return q.OrderBy(queryir.KeyOf(f, queryir.Ascending))
	}))
	return e
}

func docProvider(t *testing.T, opts ...Option) *Provider[doc] {
	t.Helper()
	p, err := New(docEngine(t), querysql.SQLite, Table{Name: "docs", TermColumns: []string{"title", "body"}}, opts...)
	require.NoError(t, err)
	return p
}

func docsQuery(db *sql.DB) *querysql.Query[doc] {
	return querysql.NewTable[doc](db, querysql.SQLite, schema.MustOf[doc](), "docs")
}

func docForm(byRank bool) *search.SearchForm {
	return &search.SearchForm{
		Term:        "  hello world ",
		Comparisons: []search.Comparison{{Path: "Year", Kind: search.GreaterThan, Value: 2000}},
		Take:        search.Int(5),
		ByTermRank:  byRank,
	}
}

// expectCounts registers the two count statements every term search runs.
func expectCounts(mock sqlmock.Sqlmock, full, filtered int) {
	mock.ExpectQuery(`SELECT COUNT(*)
FROM (
SELECT "t".*
FROM "docs" AS "t"
) AS "c"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(full))

	mock.ExpectQuery(`SELECT COUNT(*)
FROM (
SELECT "t".*
FROM (
` + sqliteTemplateBound + `
WHERE "ftst"."year" > @p0
) AS "t"
) AS "c"`).
		WithArgs(sql.Named("arg0", `"hello" OR "world"`), sql.Named("p0", 2000)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(filtered))
}

func TestSearch_ByTermRank(t *testing.T) {
	db, mock := newMock(t)
	p := docProvider(t)

	expectCounts(mock, 10, 2)
	mock.ExpectQuery(sqliteTemplateBound + `
WHERE "ftst"."year" > @p1
ORDER BY "KEY_TBL"."RANK" DESC, "ftst"."id" ASC
LIMIT 5 OFFSET 0`).
		WithArgs(sql.Named("arg0", `"hello" OR "world"`), sql.Named("p1", 2000)).
		WillReturnRows(sqlmock.NewRows(docColumns).
			AddRow(7, "Hello", "world", 2010).
			AddRow(3, "World", "hello there", 2004))

	res, err := search.Search[doc](t.Context(), p, docsQuery(db), docForm(true))
	require.NoError(t, err)

	assert.Equal(t, 10, res.FullCount)
	assert.Equal(t, 2, res.FilteredCount)
	assert.Equal(t, 0, res.Skip)
	assert.Equal(t, 5, res.Take)
	assert.Nil(t, res.Page)
	assert.Equal(t, []doc{{7, "Hello", "world", 2010}, {3, "World", "hello there", 2004}}, res.Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_EngineOrder(t *testing.T) {
	db, mock := newMock(t)
	p := docProvider(t)

	expectCounts(mock, 10, 1)
	mock.ExpectQuery(sqliteTemplateBound + `
WHERE "ftst"."year" > @p1
ORDER BY "ftst"."id" ASC
LIMIT 5 OFFSET 0`).
		WithArgs(sql.Named("arg0", `"hello" OR "world"`), sql.Named("p1", 2000)).
		WillReturnRows(sqlmock.NewRows(docColumns).AddRow(3, "World", "hello there", 2004))

	res, err := search.Search[doc](t.Context(), p, docsQuery(db), docForm(false))
	require.NoError(t, err)

	assert.Equal(t, []doc{{3, "World", "hello there", 2004}}, res.Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_EmptyTermUsesEngine(t *testing.T) {
	db, mock := newMock(t)
	p := docProvider(t)

	mock.ExpectQuery(`SELECT COUNT(*)
FROM (
SELECT "t".*
FROM "docs" AS "t"
) AS "c"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(`SELECT COUNT(*)
FROM (
SELECT "t".*
FROM "docs" AS "t"
WHERE "t"."year" > @p0
) AS "c"`).
		WithArgs(sql.Named("p0", 2000)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT "t".*
FROM "docs" AS "t"
WHERE "t"."year" > @p0
ORDER BY "t"."id" ASC
LIMIT 5 OFFSET 0`).
		WithArgs(sql.Named("p0", 2000)).
		WillReturnRows(sqlmock.NewRows(docColumns))

	form := docForm(true)
	form.Term = "   "
	res, err := search.Search[doc](t.Context(), p, docsQuery(db), form)
	require.NoError(t, err)

	assert.Equal(t, 0, res.FilteredCount)
	assert.Equal(t, []doc{}, res.Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvider_SpliceCache(t *testing.T) {
	db, mock := newMock(t)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	p := docProvider(t, WithMetrics(metrics))

	for range 2 {
		expectCounts(mock, 10, 0)
		mock.ExpectQuery(sqliteTemplateBound + `
WHERE "ftst"."year" > @p1
ORDER BY "KEY_TBL"."RANK" DESC, "ftst"."id" ASC
LIMIT 5 OFFSET 0`).
			WithArgs(sql.Named("arg0", `"hello" OR "world"`), sql.Named("p1", 2000)).
			WillReturnRows(sqlmock.NewRows(docColumns))

		_, err := search.Search[doc](t.Context(), p, docsQuery(db), docForm(true))
		require.NoError(t, err)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SpliceCacheMissesTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SpliceCacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RewritesTotal.WithLabelValues(stageWhere, observability.StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RewritesTotal.WithLabelValues(stagePagination, observability.StatusOK)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvider_Errors(t *testing.T) {
	ctx := t.Context()
	db, _ := newMock(t)
	p := docProvider(t)

	t.Run("in-memory source", func(t *testing.T) {
		_, err := p.ApplyWhere(ctx, memquery.New([]doc{{ID: 1}}), docForm(true))
		assert.True(t, qerr.IsConfiguration(err))
	})

	t.Run("dialect mismatch", func(t *testing.T) {
		q := querysql.NewTable[doc](db, querysql.Postgres, schema.MustOf[doc](), "docs")
		_, err := p.ApplyWhere(ctx, q, docForm(true))
		assert.True(t, qerr.IsConfiguration(err))
	})

	t.Run("filter form without paging", func(t *testing.T) {
		_, err := p.ApplyWhere(ctx, docsQuery(db), filterOnly{term: "hello"})
		assert.True(t, qerr.IsConfiguration(err))
	})

	t.Run("page form without filter", func(t *testing.T) {
		_, err := p.ApplyPagination(ctx, docsQuery(db), pageOnly{})
		assert.True(t, qerr.IsConfiguration(err))
	})

	t.Run("form without rank", func(t *testing.T) {
		_, err := p.ApplyWhere(ctx, docsQuery(db), unranked{filterOnly{term: "hello"}})
		assert.True(t, qerr.IsConfiguration(err))
	})

	t.Run("unknown filter path", func(t *testing.T) {
		form := docForm(true)
		form.Comparisons = []search.Comparison{{Path: "Author", Kind: search.Equal, Value: "x"}}
		_, err := p.ApplyWhere(ctx, docsQuery(db), form)
		assert.True(t, qerr.IsPathResolution(err))
	})
}

func TestNew_Invalid(t *testing.T) {
	e := docEngine(t)
	table := Table{Name: "docs", TermColumns: []string{"title"}}

	tests := []struct {
		name string
		run  func() error
	}{
		{"nil engine", func() error { _, err := New[doc](nil, querysql.SQLite, table); return err }},
		{"nil dialect", func() error { _, err := New(e, nil, table); return err }},
		{"no table", func() error { _, err := New(e, querysql.SQLite, Table{TermColumns: []string{"title"}}); return err }},
		{"no columns", func() error { _, err := New(e, querysql.SQLite, Table{Name: "docs"}); return err }},
		{"bad mode", func() error { _, err := New(e, querysql.SQLite, table, WithMode(Mode(9))); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, qerr.IsConfiguration(tt.run()))
		})
	}
}

func TestProvider_Defaults(t *testing.T) {
	p := docProvider(t, WithCacheSize(0))
	assert.Equal(t, "docs_fts", p.Table().Index)
	assert.Equal(t, "id", p.Table().Key)
	assert.Equal(t, FreeText, p.Mode())
	assert.Nil(t, p.cache)
}

func TestBaseStatement(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	table := Table{Name: "docs", TermColumns: []string{"title", "body"}}

	cases := []struct {
		dialect querysql.Dialect
		mode    Mode
	}{
		{querysql.SQLite, FreeText},
		{querysql.Postgres, FreeText},
		{querysql.Postgres, WeightedPrefixes},
		{querysql.SQLServer, FreeText},
		{querysql.SQLServer, WeightedPrefixes},
	}
	for _, c := range cases {
		name := "base_" + c.dialect.Name() + "_" + c.mode.String()
		t.Run(name, func(t *testing.T) {
			p, err := New(docEngine(t), c.dialect, table, WithMode(c.mode))
			require.NoError(t, err)
			g.Assert(t, name, []byte(p.BaseStatement()))
		})
	}
}

type filterOnly struct{ term string }

func (f filterOnly) SearchTerm() string         { return f.term }
func (filterOnly) Filters() []search.Comparison { return nil }
func (filterOnly) Composition() search.Combiner { return search.And }

// unranked is a complete form that cannot ask for rank ordering.
type unranked struct{ filterOnly }

func (unranked) PageRequest() search.PageRequest { return search.PageRequest{} }
func (unranked) SortOrder() search.SortOrder     { return search.SortOrder{} }

type pageOnly struct{}

func (pageOnly) PageRequest() search.PageRequest { return search.PageRequest{} }
func (pageOnly) SortOrder() search.SortOrder     { return search.SortOrder{} }
func (pageOnly) SortByTermRank() bool            { return true }
