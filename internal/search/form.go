package search

import (
	"fmt"
	"strings"

	"github.com/roach88/qsearch/internal/qerr"
	"github.com/roach88/qsearch/internal/queryir"
)

// ComparisonKind is the test a structured comparison applies.
type ComparisonKind int

const (
	Equal ComparisonKind = iota + 1
	GreaterThan
	GreaterThanOrEqual
	LessThan
	LessThanOrEqual
	StartsWith
	Contains
	IsAnyOf
)

var kindNames = map[ComparisonKind]string{
	Equal:              "Equal",
	GreaterThan:        "GreaterThan",
	GreaterThanOrEqual: "GreaterThanOrEqual",
	LessThan:           "LessThan",
	LessThanOrEqual:    "LessThanOrEqual",
	StartsWith:         "StartsWith",
	Contains:           "Contains",
	IsAnyOf:            "IsAnyOf",
}

var kindOps = map[ComparisonKind]queryir.Op{
	Equal:              queryir.OpEqual,
	GreaterThan:        queryir.OpGreaterThan,
	GreaterThanOrEqual: queryir.OpGreaterThanOrEqual,
	LessThan:           queryir.OpLessThan,
	LessThanOrEqual:    queryir.OpLessThanOrEqual,
	StartsWith:         queryir.OpStartsWith,
	Contains:           queryir.OpContains,
}

func (k ComparisonKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ComparisonKind(%d)", int(k))
}

// ParseComparisonKind parses a kind name, ignoring case.
func ParseComparisonKind(s string) (ComparisonKind, error) {
	s = strings.TrimSpace(s)
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, qerr.New(qerr.CodeConfiguration, "unknown comparison kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k ComparisonKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ComparisonKind) UnmarshalText(b []byte) error {
	v, err := ParseComparisonKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Comparison is one structured filter: the field at Path compared to
// Value. Value is loosely typed and converted to the field's type.
type Comparison struct {
	Path  string         `json:"path" yaml:"path"`
	Kind  ComparisonKind `json:"kind" yaml:"kind"`
	Value any            `json:"value" yaml:"value"`
}

// SortSpec is one caller-requested sort key.
type SortSpec struct {
	Path      string            `json:"path" yaml:"path"`
	Direction queryir.Direction `json:"direction" yaml:"direction"`
}

// PageRequest is the caller's pagination intent. Nil means not given.
type PageRequest struct {
	Skip     *int
	Take     *int
	Page     *int
	PageSize *int
}

// SortOrder is the caller's sort intent: structured keys, or a sort
// string such as "Text DESC, Id" when Keys is empty.
type SortOrder struct {
	Expr string
	Keys []SortSpec
}

// FilterForm supplies what ApplyWhere needs.
type FilterForm interface {
	SearchTerm() string
	Filters() []Comparison
	Composition() Combiner
}

// PageForm supplies what ordering and pagination need.
type PageForm interface {
	PageRequest() PageRequest
	SortOrder() SortOrder
}

// RankForm is implemented by forms that can ask for full-text rank
// ordering.
type RankForm interface {
	SortByTermRank() bool
}

// Form is a complete search form.
type Form interface {
	FilterForm
	PageForm
}

// SearchForm is the standard Form. It implements FilterForm, PageForm and
// RankForm.
type SearchForm struct {
	Term              string       `json:"term,omitempty" yaml:"term"`
	Comparisons       []Comparison `json:"comparisons,omitempty" yaml:"comparisons"`
	FilterComposition Combiner     `json:"composition,omitempty" yaml:"composition"`

	Skip     *int `json:"skip,omitempty" yaml:"skip"`
	Take     *int `json:"take,omitempty" yaml:"take"`
	Page     *int `json:"page,omitempty" yaml:"page"`
	PageSize *int `json:"page_size,omitempty" yaml:"page_size"`

	OrderBy    string     `json:"order_by,omitempty" yaml:"order_by"`
	Sort       []SortSpec `json:"sort,omitempty" yaml:"sort"`
	ByTermRank bool       `json:"by_term_rank,omitempty" yaml:"by_term_rank"`
}

var (
	_ Form     = (*SearchForm)(nil)
	_ RankForm = (*SearchForm)(nil)
)

func (f *SearchForm) SearchTerm() string     { return f.Term }
func (f *SearchForm) Filters() []Comparison  { return f.Comparisons }
func (f *SearchForm) Composition() Combiner  { return f.FilterComposition }
func (f *SearchForm) SortByTermRank() bool   { return f.ByTermRank }
func (f *SearchForm) SortOrder() SortOrder   { return SortOrder{Expr: f.OrderBy, Keys: f.Sort} }

func (f *SearchForm) PageRequest() PageRequest {
	return PageRequest{Skip: f.Skip, Take: f.Take, Page: f.Page, PageSize: f.PageSize}
}

// Int returns a pointer to n, for optional form fields.
func Int(n int) *int { return &n }

// ParseOrderBy parses "path [asc|ascending|desc|descending], ...".
// Directions are case-insensitive and default to ascending.
func ParseOrderBy(expr string) ([]SortSpec, error) {
	var specs []SortSpec
	for _, part := range strings.Split(expr, ",") {
		fields := strings.Fields(part)
		switch len(fields) {
		case 0:
			continue
		case 1:
			specs = append(specs, SortSpec{Path: fields[0], Direction: queryir.Ascending})
		case 2:
			dir, err := queryir.ParseDirection(fields[1])
			if err != nil {
				return nil, err
			}
			specs = append(specs, SortSpec{Path: fields[0], Direction: dir})
		default:
			return nil, qerr.New(qerr.CodeConfiguration, "malformed sort entry %q", strings.TrimSpace(part))
		}
	}
	return specs, nil
}
