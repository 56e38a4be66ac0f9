package search

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/roach88/qsearch/internal/qerr"
)

// PaginationMode governs how the page size is sourced and validated.
type PaginationMode int

const (
	// SkipAndTake honors the form's skip and take, capping take at MaxTake.
	SkipAndTake PaginationMode = iota
	// PageSize uses the configured page size.
	PageSize
	// PredefinedPageSizes requires a page size from a configured set.
	PredefinedPageSizes
	// AnyPageSize accepts any positive page size, defaulting to PageSize.
	AnyPageSize
	// MinMaxPageSize requires a page size within [MinPageSize, MaxPageSize].
	MinMaxPageSize
)

var modeNames = []string{"SkipAndTake", "PageSize", "PredefinedPageSizes", "AnyPageSize", "MinMaxPageSize"}

func (m PaginationMode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("PaginationMode(%d)", int(m))
}

// ParsePaginationMode parses a mode name, ignoring case.
func ParsePaginationMode(s string) (PaginationMode, error) {
	for i, name := range modeNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return PaginationMode(i), nil
		}
	}
	return 0, qerr.New(qerr.CodeConfiguration, "unknown pagination mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m PaginationMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *PaginationMode) UnmarshalText(b []byte) error {
	v, err := ParsePaginationMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Combiner joins predicates.
type Combiner int

const (
	And Combiner = iota
	Or
)

func (c Combiner) String() string {
	if c == Or {
		return "Or"
	}
	return "And"
}

// ParseCombiner parses "and" or "or", ignoring case.
func ParseCombiner(s string) (Combiner, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "and", "":
		return And, nil
	case "or":
		return Or, nil
	}
	return 0, qerr.New(qerr.CodeConfiguration, "unknown combiner %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Combiner) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Combiner) UnmarshalText(b []byte) error {
	v, err := ParseCombiner(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Options configures an Engine.
type Options struct {
	PageSize            int
	MaxTake             int
	Mode                PaginationMode
	PredefinedPageSizes []int
	MinPageSize         int
	MaxPageSize         int

	// WordCombiner folds the per-word text predicates.
	WordCombiner Combiner
	// TextKeywordCombiner joins the text predicate with the keyword predicate.
	TextKeywordCombiner Combiner

	// Culture is used for localized keywords when the context carries none.
	Culture language.Tag
	// Localizer resolves localized keyword keys. Nil means DefaultLocalizer.
	Localizer Localizer
}

// DefaultOptions returns page size 20, max take 20, SkipAndTake, and Or
// for both combiners.
func DefaultOptions() Options {
	return Options{
		PageSize:            20,
		MaxTake:             20,
		Mode:                SkipAndTake,
		WordCombiner:        Or,
		TextKeywordCombiner: Or,
		Culture:             language.Und,
	}
}

// Validate checks the options for internal consistency.
func (o Options) Validate() error {
	if o.MaxTake <= 0 {
		return qerr.New(qerr.CodeConfiguration, "max take must be positive, got %d", o.MaxTake)
	}
	switch o.Mode {
	case SkipAndTake:
	case PageSize, AnyPageSize:
		if o.PageSize <= 0 {
			return qerr.New(qerr.CodeConfiguration, "page size must be positive, got %d", o.PageSize)
		}
	case PredefinedPageSizes:
		if len(o.PredefinedPageSizes) == 0 {
			return qerr.New(qerr.CodeConfiguration, "no page sizes have been specified")
		}
		for _, n := range o.PredefinedPageSizes {
			if n <= 0 {
				return qerr.New(qerr.CodeConfiguration, "predefined page size must be positive, got %d", n)
			}
		}
	case MinMaxPageSize:
		if o.MinPageSize <= 0 || o.MaxPageSize < o.MinPageSize {
			return qerr.New(qerr.CodeConfiguration, "invalid page size range [%d, %d]", o.MinPageSize, o.MaxPageSize)
		}
	default:
		return qerr.New(qerr.CodeConfiguration, "invalid pagination mode %s", o.Mode)
	}
	if o.WordCombiner != And && o.WordCombiner != Or {
		return qerr.New(qerr.CodeConfiguration, "invalid word combiner %d", int(o.WordCombiner))
	}
	if o.TextKeywordCombiner != And && o.TextKeywordCombiner != Or {
		return qerr.New(qerr.CodeConfiguration, "invalid text/keyword combiner %d", int(o.TextKeywordCombiner))
	}
	return nil
}
