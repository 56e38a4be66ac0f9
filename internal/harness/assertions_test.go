package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageEvent(step string, filtered int, keys ...any) TraceEvent {
	items := make([]map[string]any, len(keys))
	for i, k := range keys {
		items[i] = map[string]any{"Id": k}
	}
	return TraceEvent{Type: EventSearch, Step: step, Result: &StepResult{FilteredCount: filtered, Keys: keys, Items: items}}
}

func TestAssertPagesDisjoint(t *testing.T) {
	trace := []TraceEvent{
		pageEvent("p0", 4, int64(1), int64(2)),
		pageEvent("p1", 4, int64(3), int64(4)),
		pageEvent("overlap", 4, int64(2), int64(5)),
		{Type: EventSearch, Step: "failed", Error: "PAGINATION_VALIDATION"},
	}

	tests := []struct {
		name   string
		steps  []string
		errMsg string
	}{
		{"disjoint", []string{"p0", "p1"}, ""},
		{"overlap", []string{"p0", "overlap"}, "key 2 in both p0 and overlap"},
		{"missing step", []string{"p0", "nope"}, "not found in trace"},
		{"failed step", []string{"p0", "failed"}, "failed with PAGINATION_VALIDATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertPagesDisjoint(trace, Assertion{Type: AssertPagesDisjoint, Steps: tt.steps})
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Contains(t, ae.Actual, tt.errMsg)
		})
	}
}

func TestAssertPagesCover(t *testing.T) {
	trace := []TraceEvent{
		pageEvent("p0", 5, int64(1), int64(2)),
		pageEvent("p1", 5, int64(3), int64(4)),
		pageEvent("p2", 5, int64(5)),
	}

	assert.NoError(t, assertPagesCover(trace, Assertion{Type: AssertPagesCover, Steps: []string{"p0", "p1", "p2"}}))

	err := assertPagesCover(trace, Assertion{Type: AssertPagesCover, Steps: []string{"p0", "p1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 5 items across [p0 p1]")
	assert.Contains(t, err.Error(), "Actual: 4 items")
}

func TestAssertOrderedBy(t *testing.T) {
	rating := func(f float64) *float64 { return &f }
	trace := []TraceEvent{{
		Type: EventSearch,
		Step: "s",
		Result: &StepResult{Items: []map[string]any{
			{"Title": "Dune", "Year": int64(1965), "Rating": nil},
			{"Title": "Emma", "Year": int64(1815), "Rating": rating(4.1)},
			{"Title": "Middlemarch", "Year": int64(1871), "Rating": rating(4.4)},
		}},
	}}

	tests := []struct {
		name   string
		field  string
		desc   bool
		errMsg string
	}{
		{"ascending titles", "Title", false, ""},
		{"nulls first", "Rating", false, ""},
		{"years not ascending", "Year", false, "item 0 (1965) before item 1 (1815)"},
		{"titles not descending", "Title", true, "item 0 (Dune) before item 1 (Emma)"},
		{"ratings not descending", "Rating", true, "item 0 (<nil>) before item 1 (4.1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertOrderedBy(trace, Assertion{Type: AssertOrderedBy, Step: "s", Field: tt.field, Desc: tt.desc})
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = []TraceEvent{
		pageEvent("p0", 2, int64(1)),
		pageEvent("p1", 2, int64(1)),
	}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertPagesDisjoint, Steps: []string{"p0", "p1"}},
		{Type: AssertOrderedBy, Step: "p0", Field: "Id"},
		{Type: "bogus"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "Assertion failed: pages_disjoint")
	assert.Contains(t, errs[0], "[1] p0 keys [1]")
	assert.Equal(t, `assertion[2]: unknown assertion type "bogus"`, errs[1])
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertPagesCover,
		Expected: "3 items",
		Actual:   "2 items",
		Trace: []TraceEvent{
			{Type: EventSeed, Rows: 3},
			{Type: EventSearch, Step: "a", Result: &StepResult{Keys: []any{int64(1), int64(2)}}},
			{Type: EventSearch, Step: "b", Error: "REWRITE"},
		},
	}

	assert.Equal(t, "Assertion failed: pages_cover\n"+
		"  Expected: 3 items\n"+
		"  Actual: 2 items\n"+
		"\nFull trace:\n"+
		"  [2] a keys [1 2]\n"+
		"  [3] b error REWRITE\n", err.Error())
}
