package queryir

import "context"

// Queryable is an immutable, composable query over entities of type T.
//
// OrderBy replaces any existing ordering, ThenBy appends a key to it. Skip
// and Take bound the result window. Composition never executes anything;
// Count and List do, and their errors come from the backend unchanged.
type Queryable[T any] interface {
	Where(p Predicate) Queryable[T]
	OrderBy(k SortKey) Queryable[T]
	ThenBy(k SortKey) Queryable[T]
	Skip(n int) Queryable[T]
	Take(n int) Queryable[T]

	Count(ctx context.Context) (int, error)
	List(ctx context.Context) ([]T, error)
}

// Statement is query text plus the arguments it references.
type Statement struct {
	Text string
	Args []any
}

// TextQueryable is a Queryable that can be rendered to statement text and
// rebuilt from it. Only text-backed sources (SQL) implement it.
type TextQueryable[T any] interface {
	Queryable[T]

	// RenderText renders the query for inspection and rewriting. Raw
	// positional arguments are inlined as literals; named parameters stay
	// placeholders and are returned in Args.
	RenderText() (Statement, error)

	// FromText returns a query over the given raw statement, keeping the
	// receiver's table binding and executor but none of its filters,
	// ordering or window. Positional placeholders {0}, {1}, ... refer to
	// the non-named arguments in order.
	FromText(text string, args ...any) TextQueryable[T]
}
