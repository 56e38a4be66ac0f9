// Package search compiles search forms into queries.
//
// An Engine holds the registered rules for one entity type: keywords,
// localized keywords, word and sentence text search, default and unique
// sort chains, and a pagination policy. Given a form it produces a filter
// (ApplyWhere), an ordering (ApplyOrder) and a result window
// (ComputeWindow, ApplyPagination) over any queryir.Queryable. Search runs
// the whole pipeline and assembles a SearchResult.
//
// Composition never executes anything. The only execution happens in the
// two counts and the final List that Search delegates to the source.
//
// Registration is not synchronized: register every rule before the engine
// is shared. After that, all methods are safe for concurrent use.
package search
