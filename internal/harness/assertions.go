package harness

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/qsearch/internal/queryir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		if event.Type != EventSearch {
			continue
		}
		switch {
		case event.Error != "":
			fmt.Fprintf(&buf, "  [%d] %s error %s\n", i+1, event.Step, event.Error)
		case event.Result != nil:
			fmt.Fprintf(&buf, "  [%d] %s keys %v\n", i+1, event.Step, event.Result.Keys)
		}
	}

	return buf.String()
}

// stepResults returns the results of the named steps. A failed step is
// itself an assertion failure.
func stepResults(trace []TraceEvent, kind string, names []string) ([]*StepResult, error) {
	out := make([]*StepResult, 0, len(names))
	for _, name := range names {
		ev, ok := findStep(trace, name)
		if !ok || ev.Result == nil {
			actual := "not found in trace"
			if ok {
				actual = "failed with " + ev.Error
			}
			return nil, &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("step %s to succeed", name),
				Actual:   actual,
				Trace:    trace,
			}
		}
		out = append(out, ev.Result)
	}
	return out, nil
}

// assertPagesDisjoint checks that no key appears in two of the steps.
func assertPagesDisjoint(trace []TraceEvent, assertion Assertion) error {
	results, err := stepResults(trace, assertion.Type, assertion.Steps)
	if err != nil {
		return err
	}

	seen := make(map[string]string)
	for i, r := range results {
		for _, k := range r.Keys {
			id := fmt.Sprint(k)
			if prev, dup := seen[id]; dup {
				return &AssertionError{
					Type:     assertion.Type,
					Expected: fmt.Sprintf("disjoint pages: %v", assertion.Steps),
					Actual:   fmt.Sprintf("key %s in both %s and %s", id, prev, assertion.Steps[i]),
					Trace:    trace,
				}
			}
			seen[id] = assertion.Steps[i]
		}
	}
	return nil
}

// assertPagesCover checks that the steps are disjoint and together return
// every filtered item of the first step.
func assertPagesCover(trace []TraceEvent, assertion Assertion) error {
	if err := assertPagesDisjoint(trace, assertion); err != nil {
		return err
	}
	results, _ := stepResults(trace, assertion.Type, assertion.Steps)

	total := 0
	for _, r := range results {
		total += len(r.Keys)
	}
	if want := results[0].FilteredCount; total != want {
		return &AssertionError{
			Type:     assertion.Type,
			Expected: fmt.Sprintf("%d items across %v", want, assertion.Steps),
			Actual:   fmt.Sprintf("%d items", total),
			Trace:    trace,
		}
	}
	return nil
}

// assertOrderedBy checks that the step's items are sorted by the field.
func assertOrderedBy(trace []TraceEvent, assertion Assertion) error {
	results, err := stepResults(trace, assertion.Type, []string{assertion.Step})
	if err != nil {
		return err
	}

	items := results[0].Items
	for i := 1; i < len(items); i++ {
		prev, curr := items[i-1][assertion.Field], items[i][assertion.Field]
		c, err := queryir.CompareValues(prev, curr)
		if err != nil {
			return fmt.Errorf("%s: %w", assertion.Type, err)
		}
		if (!assertion.Desc && c > 0) || (assertion.Desc && c < 0) {
			dir := "ascending"
			if assertion.Desc {
				dir = "descending"
			}
			return &AssertionError{
				Type:     assertion.Type,
				Expected: fmt.Sprintf("%s items %s by %s", assertion.Step, dir, assertion.Field),
				Actual:   fmt.Sprintf("item %d (%v) before item %d (%v)", i-1, deref(prev), i, deref(curr)),
				Trace:    trace,
			}
		}
	}
	return nil
}

func deref(v any) any {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return v
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertPagesDisjoint:
			err = assertPagesDisjoint(result.Trace, assertion)
		case AssertPagesCover:
			err = assertPagesCover(result.Trace, assertion)
		case AssertOrderedBy:
			err = assertOrderedBy(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
