package querysql

import "strings"

// Rendered statement text follows a versioned line layout so that text
// rewriters can recognize its parts without guessing:
//
//	SELECT <alias>.*
//	FROM <table> AS <alias>      (table source)
//	FROM (                       (text or nested source)
//	<source lines>
//	) AS <alias>
//	WHERE <predicate>            (optional)
//	ORDER BY <keys>              (optional)
//	<paging lines>               (optional, dialect specific)
//
// Any change to this layout must bump LayoutVersion.
const (
	LayoutVersion = 1

	// SubqueryOpen is the whole line that opens a derived source.
	SubqueryOpen = "FROM ("
	// SubqueryClosePrefix starts the line that closes a derived source;
	// the remainder of that line is the outer alias.
	SubqueryClosePrefix = ") AS "
)

// OuterClausePrefixes lists the line prefixes that may follow the
// subquery closer.
var OuterClausePrefixes = []string{"WHERE ", "ORDER BY ", "LIMIT ", "OFFSET "}

// IsOuterClause reports whether line starts with a known outer clause.
func IsOuterClause(line string) bool {
	for _, p := range OuterClausePrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// defaultAlias is the alias of the outermost source in rendered text.
const defaultAlias = "t"
