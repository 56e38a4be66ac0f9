// Package harness runs search scenarios against every backend and checks
// that they agree.
//
// A scenario names a provider definition, seeds its table and runs a
// sequence of search forms. Each form runs on the in-memory backend
// (memquery over the seeded records) and on an in-memory SQLite database;
// results must be identical, so the SQL rendering is checked against the
// reference semantics on every step.
//
// # Scenario Format
//
//	name: docs_paging
//	description: "Pages are disjoint and cover the filtered set"
//	definitions: ../../config/testdata/docs.cue
//	provider: notes
//	rows:
//	  - {id: 1, text: "alpha"}
//	steps:
//	  - name: first
//	    form: {filters: [{path: Id, kind: GreaterThan, value: 0}], take: 2}
//	    expect: {filtered_count: 3, keys: [3, 2]}
//	assertions:
//	  - type: pages_cover
//	    steps: [first, second]
//
// Rows are keyed by storage column. Expect clauses check only the fields
// they give; "error" expects a failure code such as PATH_RESOLUTION.
//
// # Assertion Types
//
//   - pages_disjoint: no item appears in more than one of the steps
//   - pages_cover: the steps are disjoint and hold every filtered item
//   - ordered_by: a step's items are sorted by a field
//
// # Deterministic Testing
//
// Trace sequence numbers come from testutil.TraceClock and index
// build ids from testutil.SequentialIDs, so a scenario produces the same
// trace on every run. Golden files live in testdata/golden.
package harness
