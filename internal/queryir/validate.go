package queryir

import (
	"fmt"
	"reflect"
)

// ValidationResult lists structural problems found in a predicate.
//
// Validation runs when predicates are registered with the engine, so a
// malformed keyword rule fails at construction rather than on the first
// search that happens to use it.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems describes each malformed node.
	Problems []string
}

// Validate checks that every node in p is well formed:
//  1. Compare nodes reference a resolved field and carry a parameter
//  2. Textual operators (StartsWith, Contains) apply to string fields
//  3. Composite nodes have no nil children
//
// Validate is a pure function with no side effects.
func Validate(p Predicate) ValidationResult {
	v := &validator{
		problems: []string{},
	}
	v.validatePredicate(p)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validatePredicate(p Predicate) {
	if p == nil {
		v.addProblem("nil predicate")
		return
	}

	switch pred := p.(type) {
	case *Compare:
		v.validateCompare(pred)
	case *And:
		v.validateChildren("and", pred.Predicates)
	case *Or:
		v.validateChildren("or", pred.Predicates)
	case *Not:
		v.validatePredicate(pred.Predicate)
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) validateChildren(kind string, ps []Predicate) {
	for i, sub := range ps {
		if sub == nil {
			v.addProblem("%s: predicate %d is nil", kind, i)
			continue
		}
		v.validatePredicate(sub)
	}
}

func (v *validator) validateCompare(c *Compare) {
	if !c.Field.Valid() {
		v.addProblem("compare: field is not resolved")
		return
	}
	if _, ok := opNames[c.Op]; !ok {
		v.addProblem("compare %s: unknown operator %d", c.Field.Path, c.Op)
	}
	if c.Param == nil {
		v.addProblem("compare %s: missing parameter", c.Field.Path)
	}
	if c.Op.Textual() && c.Field.ValueType().Kind() != reflect.String {
		v.addProblem("compare %s: %s needs a string field, got %s", c.Field.Path, c.Op, c.Field.ValueType())
	}
}
