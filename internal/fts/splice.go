package fts

import (
	"strings"

	"github.com/roach88/qsearch/internal/qerr"
	"github.com/roach88/qsearch/internal/querysql"
)

// layout is rendered statement text split along the querysql layout.
type layout struct {
	alias string   // outer alias, quoted
	base  string   // first line of the subquery
	inner []string // remaining subquery lines, all clauses
	outer []string // clauses after the subquery
}

func rewriteError(format string, args ...any) error {
	return qerr.New(qerr.CodeRewrite, format, args...)
}

// recognize splits text rendered over a single-level raw source:
//
//	SELECT <alias>.*
//	FROM (
//	<base line>
//	<clause lines>
//	) AS <alias>
//	<clause lines>
func recognize(text string) (layout, error) {
	lines := strings.Split(text, "\n")
	if len(lines) < 4 {
		return layout{}, rewriteError("statement has %d lines, want at least 4", len(lines))
	}
	if lines[1] != querysql.SubqueryOpen {
		return layout{}, rewriteError("line 2 is %q, want %q", lines[1], querysql.SubqueryOpen)
	}

	closer := -1
	for i, line := range lines {
		if !strings.HasPrefix(line, querysql.SubqueryClosePrefix) {
			continue
		}
		if closer >= 0 {
			return layout{}, rewriteError("more than one subquery closer (lines %d and %d)", closer+1, i+1)
		}
		closer = i
	}
	if closer < 0 {
		return layout{}, rewriteError("no subquery closer %q", querysql.SubqueryClosePrefix)
	}
	if closer == 2 {
		return layout{}, rewriteError("empty subquery")
	}

	l := layout{alias: strings.TrimPrefix(lines[closer], querysql.SubqueryClosePrefix)}
	if want := "SELECT " + l.alias + ".*"; lines[0] != want {
		return layout{}, rewriteError("line 1 is %q, want %q", lines[0], want)
	}
	l.base = lines[2]
	l.inner = lines[3:closer]
	l.outer = lines[closer+1:]

	for _, line := range l.inner {
		if !querysql.IsOuterClause(line) {
			return layout{}, rewriteError("unexpected subquery line %q", line)
		}
	}
	for _, line := range l.outer {
		if !querysql.IsOuterClause(line) {
			return layout{}, rewriteError("unknown outer clause %q", line)
		}
	}
	return l, nil
}

// splicer rewrites recognized text onto one base statement.
type splicer struct {
	baseAlias string // quoted
	prefix    string // base template up to the term placeholder
	suffix    string // base template after the term placeholder
}

func newSplicer(template, baseAlias string) splicer {
	prefix, suffix, _ := strings.Cut(template, termPlaceholder)
	return splicer{baseAlias: baseAlias, prefix: prefix, suffix: suffix}
}

// splice flattens text onto the base statement: subquery clauses are
// dropped, outer clauses are re-aliased onto the base alias, and the term
// literal is replaced by the placeholder. keep filters the outer clauses.
func (s splicer) splice(text, literal string, keep func(string) bool) (string, error) {
	l, err := recognize(text)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(l.base, s.prefix) {
		return "", rewriteError("subquery is not the full-text base statement: %q", l.base)
	}
	if l.base != s.prefix+literal+s.suffix {
		return "", rewriteError("term literal %s not found at the base statement placeholder", literal)
	}

	out := []string{s.prefix + termPlaceholder + s.suffix}
	for _, line := range l.outer {
		if keep != nil && !keep(line) {
			continue
		}
		out = append(out, strings.ReplaceAll(line, l.alias+".", s.baseAlias+"."))
	}
	return strings.Join(out, "\n"), nil
}

func isWhere(line string) bool { return strings.HasPrefix(line, "WHERE ") }
