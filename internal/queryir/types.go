package queryir

import (
	"strings"

	"github.com/roach88/qsearch/internal/qerr"
	"github.com/roach88/qsearch/internal/schema"
)

// Predicate represents a boolean test over an entity.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Compare: field <op> parameter
//   - And: all predicates must hold (empty And is true)
//   - Or: any predicate must hold (empty Or is false)
//   - Not: negation
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Op is the operator of a Compare predicate.
type Op int

const (
	OpEqual Op = iota + 1
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpStartsWith
	OpContains
)

var opNames = map[Op]string{
	OpEqual:              "=",
	OpGreaterThan:        ">",
	OpGreaterThanOrEqual: ">=",
	OpLessThan:           "<",
	OpLessThanOrEqual:    "<=",
	OpStartsWith:         "STARTS WITH",
	OpContains:           "CONTAINS",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "UNKNOWN"
}

// Textual reports whether the operator only applies to string fields.
func (o Op) Textual() bool { return o == OpStartsWith || o == OpContains }

// Param boxes one comparison value. Each Compare owns a distinct Param.
type Param struct {
	Value any
}

// NewParam boxes v.
func NewParam(v any) *Param { return &Param{Value: v} }

// Compare tests a resolved field against a parameter.
//
// Semantics:
//
//	<field> <op> <param>
//
// A nil parameter with OpEqual tests for absence (IS NULL). Relational
// and textual operators never match an absent field value.
//
// Example:
//
//	&Compare{Field: textField, Op: OpContains, Param: NewParam("Hello")}
//
// Translates to SQLite:
//
//	instr("t"."Text", @p0) > 0
type Compare struct {
	Field schema.FieldAccess
	Op    Op
	Param *Param
}

func (*Compare) predicateNode() {}

// And is the conjunction of its predicates.
type And struct {
	Predicates []Predicate
}

func (*And) predicateNode() {}

// Or is the disjunction of its predicates.
type Or struct {
	Predicates []Predicate
}

func (*Or) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (*Not) predicateNode() {}

// NewCompare builds a Compare with a fresh parameter box.
func NewCompare(field schema.FieldAccess, op Op, value any) *Compare {
	return &Compare{Field: field, Op: op, Param: NewParam(value)}
}

// AndOf combines predicates with And, dropping nils. It returns nil when
// nothing remains and the single predicate when only one does.
func AndOf(ps ...Predicate) Predicate {
	kept := compact(ps)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &And{Predicates: kept}
}

// OrOf combines predicates with Or, dropping nils. It returns nil when
// nothing remains and the single predicate when only one does.
func OrOf(ps ...Predicate) Predicate {
	kept := compact(ps)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &Or{Predicates: kept}
}

func compact(ps []Predicate) []Predicate {
	kept := make([]Predicate, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return kept
}

// Direction is a sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// ParseDirection parses asc, ascending, desc or descending, ignoring case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return 0, qerr.New(qerr.CodeConfiguration, "invalid sort direction %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// SortKey orders by a field. A key whose Field is not Valid is a manual
// key: it names a computed or virtual path that only a backend-specific
// extension can order by.
type SortKey struct {
	Path      string
	Field     schema.FieldAccess
	Direction Direction
}

// KeyOf builds a SortKey over a resolved field.
func KeyOf(field schema.FieldAccess, dir Direction) SortKey {
	return SortKey{Path: field.Path, Field: field, Direction: dir}
}

// ManualKey builds a SortKey over a path with no accessor.
func ManualKey(path string, dir Direction) SortKey {
	return SortKey{Path: path, Direction: dir}
}

// Manual reports whether the key has no resolved accessor.
func (k SortKey) Manual() bool { return !k.Field.Valid() }
