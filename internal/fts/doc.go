// Package fts provides a search provider backed by a server-side
// full-text index.
//
// The provider lets the generic engine compile filters, ordering and the
// result window over a base statement that joins the entity table with the
// index, then rewrites the rendered text: the generic outer query is
// flattened onto the base statement, the outer alias is replaced by the
// base alias, and the inlined term literal becomes a bound parameter
// again. With rank ordering requested the ORDER BY and paging are
// synthesized so the index rank dominates.
//
// Rewriting relies on the querysql text layout (querysql.LayoutVersion).
// Text that does not match it exactly fails with a REWRITE error; there
// is no best-effort mode.
package fts
