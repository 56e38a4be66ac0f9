package fts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qsearch/internal/qerr"
	"github.com/roach88/qsearch/internal/querysql"
)

const (
	sqliteBase = `SELECT "ftst".* FROM "docs" AS "ftst" INNER JOIN (SELECT rowid AS "KEY", -rank AS "RANK" FROM "docs_fts" WHERE "docs_fts" MATCH {0}) AS "KEY_TBL" ON "ftst"."id" = "KEY_TBL"."KEY"`
	termLiteral = `'"hello" OR "world"'`
)

func docsTable() Table {
	return Table{Name: "docs", TermColumns: []string{"title", "body"}}.WithDefaults()
}

func sqliteSplicer() splicer {
	b := newBackend(querysql.SQLite, docsTable(), FreeText)
	return newSplicer(b.template, `"ftst"`)
}

func withTerm(base, literal string) string {
	return strings.Replace(base, "{0}", literal, 1)
}

func TestSplice(t *testing.T) {
	base := withTerm(sqliteBase, termLiteral)

	tests := []struct {
		name string
		text string
		keep func(string) bool
		want string
	}{
		{
			name: "base only",
			text: "SELECT \"t\".*\nFROM (\n" + base + "\n) AS \"t\"",
			want: sqliteBase,
		},
		{
			name: "outer filter re-aliased",
			text: "SELECT \"t\".*\nFROM (\n" + base + "\n) AS \"t\"\nWHERE \"t\".\"year\" > @p0",
			want: sqliteBase + "\nWHERE \"ftst\".\"year\" > @p0",
		},
		{
			name: "inner clauses dropped",
			text: "SELECT \"t\".*\nFROM (\n" + base + "\nWHERE \"ftst\".\"year\" > @p0\n) AS \"t\"\n" +
				"WHERE \"t\".\"year\" > @p1\nORDER BY \"t\".\"title\" ASC, \"t\".\"id\" ASC\nLIMIT 5 OFFSET 10",
			want: sqliteBase + "\nWHERE \"ftst\".\"year\" > @p1\nORDER BY \"ftst\".\"title\" ASC, \"ftst\".\"id\" ASC\nLIMIT 5 OFFSET 10",
		},
		{
			name: "keep filters outer clauses",
			text: "SELECT \"t\".*\nFROM (\n" + base + "\n) AS \"t\"\nWHERE \"t\".\"year\" > @p1\nORDER BY \"t\".\"id\" ASC",
			keep: isWhere,
			want: sqliteBase + "\nWHERE \"ftst\".\"year\" > @p1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sqliteSplicer().splice(tt.text, termLiteral, tt.keep)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			assert.NotContains(t, got, `"t".`)
			assert.Equal(t, 1, strings.Count(got, "{0}"))
			assert.Equal(t, 1, strings.Count(got, `FROM "docs" AS "ftst"`))
		})
	}
}

func TestSplice_Rejects(t *testing.T) {
	base := withTerm(sqliteBase, termLiteral)

	tests := []struct {
		name string
		text string
	}{
		{"too short", "SELECT \"t\".*\nFROM \"docs\" AS \"t\""},
		{"table source", "SELECT \"t\".*\nFROM \"docs\" AS \"t\"\nWHERE \"t\".\"id\" = @p0\nORDER BY \"t\".\"id\" ASC"},
		{"no closer", "SELECT \"t\".*\nFROM (\n" + base + "\nWHERE \"t\".\"id\" = @p0"},
		{"nested source", "SELECT \"t\".*\nFROM (\nSELECT \"t\".*\nFROM (\n" + base + "\n) AS \"t\"\nLIMIT 1 OFFSET 0\n) AS \"t\""},
		{"empty subquery", "SELECT \"t\".*\nFROM (\n) AS \"t\"\nWHERE 1 = 1"},
		{"alias mismatch", "SELECT \"x\".*\nFROM (\n" + base + "\n) AS \"t\""},
		{"unknown outer clause", "SELECT \"t\".*\nFROM (\n" + base + "\n) AS \"t\"\nGROUP BY \"t\".\"year\""},
		{"unknown inner line", "SELECT \"t\".*\nFROM (\n" + base + "\nUNION ALL SELECT 1\n) AS \"t\""},
		{"other base", "SELECT \"t\".*\nFROM (\nSELECT * FROM \"docs\"\n) AS \"t\""},
		{"other term", "SELECT \"t\".*\nFROM (\n" + withTerm(sqliteBase, `'"bye"'`) + "\n) AS \"t\""},
		{"term twice", "SELECT \"t\".*\nFROM (\n" + base + " AND " + termLiteral + "\n) AS \"t\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sqliteSplicer().splice(tt.text, termLiteral, nil)
			require.Error(t, err)
			assert.True(t, qerr.IsRewrite(err), "unexpected error: %v", err)
		})
	}
}

func TestSplice_TermInsideTemplateLiterals(t *testing.T) {
	b := newBackend(querysql.Postgres, docsTable(), FreeText)
	s := newSplicer(b.template, `"ftst"`)
	// The Postgres base statement itself contains 'simple'.
	literal := `'simple'`
	text := "SELECT \"t\".*\nFROM (\n" + withTerm(b.template, literal) + "\n) AS \"t\""

	got, err := s.splice(text, literal, nil)
	require.NoError(t, err)
	assert.Equal(t, b.template, got)
}
