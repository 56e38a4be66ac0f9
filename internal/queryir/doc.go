// Package queryir provides the abstract query representation shared by the
// search engine and its backends.
//
// QueryIR is the abstraction boundary between search-form compilation and
// the data sources that execute it. The engine builds predicates and sort
// keys; a backend (in-memory slices, relational SQL) interprets them.
//
// ARCHITECTURE:
//
//	[search form] → [search engine] → [Predicate / SortKey] → [memquery]
//	                                                       → [querysql]
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern. Only
// types in this package implement it, so backends can switch exhaustively:
//
//	switch p := pred.(type) {
//	case *Compare:
//	case *And:
//	case *Or:
//	case *Not:
//	}
//
// PARAMETERS:
//
// Every Compare carries its value in its own *Param box. Backends bind the
// box as a query parameter and never inline it as a literal, so the
// statement text stays stable across values and plans can be reused.
//
// QUERYABLE SOURCES:
//
// Queryable is the capability the engine consumes from a data source:
// filtering, ordering, skip/take, count and materialization. Sources are
// immutable values; every composition method returns a new source.
// TextQueryable adds rendering to statement text and rebuilding from text,
// which the full-text rewriter needs.
package queryir
