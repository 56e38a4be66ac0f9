package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/qsearch/internal/search"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Scenario defines a conformance test scenario: a provider definition,
// the rows it searches, and a sequence of search forms with the results
// they must produce on every backend.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Definitions is the CUE file or directory holding the provider.
	// Relative paths are resolved against the scenario file location.
	Definitions string `yaml:"definitions"`

	// Provider names the provider to search. Optional when the
	// definitions hold exactly one.
	Provider string `yaml:"provider,omitempty"`

	// Backends lists where to run. The first is primary and supplies the
	// golden trace. Defaults to memory and sqlite, or sqlite alone for
	// full-text providers.
	Backends []string `yaml:"backends,omitempty"`

	// Rows seeds the entity table. Keys are storage column names.
	Rows []map[string]any `yaml:"rows"`

	// Steps contains the searches, each optionally with expected results.
	Steps []Step `yaml:"steps"`

	// Assertions validate relations between steps.
	// Supported types: pages_disjoint, pages_cover, ordered_by
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step runs one search form.
type Step struct {
	// Name identifies the step in the trace and in assertions.
	Name string `yaml:"name"`

	// Culture, if set, selects localized keywords for this step.
	Culture string `yaml:"culture,omitempty"`

	Form FormSpec `yaml:"form"`

	// Expect specifies the expected result.
	// If nil, the search must simply succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// FormSpec is a search form as written in YAML.
type FormSpec struct {
	Term        string       `yaml:"term,omitempty"`
	Filters     []FilterSpec `yaml:"filters,omitempty"`
	Composition string       `yaml:"composition,omitempty"`
	OrderBy     string       `yaml:"order_by,omitempty"`
	Rank        bool         `yaml:"rank,omitempty"`
	Skip        *int         `yaml:"skip,omitempty"`
	Take        *int         `yaml:"take,omitempty"`
	Page        *int         `yaml:"page,omitempty"`
	PageSize    *int         `yaml:"page_size,omitempty"`
}

// FilterSpec is one comparison.
type FilterSpec struct {
	Path  string `yaml:"path"`
	Kind  string `yaml:"kind"`
	Value any    `yaml:"value"`
}

// Expect specifies expected result fields. Only the fields given are
// checked.
type Expect struct {
	FullCount         *int  `yaml:"full_count,omitempty"`
	FilteredCount     *int  `yaml:"filtered_count,omitempty"`
	FilteredPageCount *int  `yaml:"filtered_page_count,omitempty"`
	Skip              *int  `yaml:"skip,omitempty"`
	Take              *int  `yaml:"take,omitempty"`
	Keys              []any `yaml:"keys,omitempty"`

	// Error is the expected failure code, e.g. PATH_RESOLUTION.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates relations between step results.
type Assertion struct {
	// Type specifies the assertion type:
	// - "pages_disjoint": no key appears in more than one of Steps
	// - "pages_cover": Steps are disjoint and together hold every
	//   filtered item of the first step
	// - "ordered_by": the items of Step are sorted by Field
	Type string `yaml:"type"`

	// Steps names the steps compared (pages_disjoint, pages_cover).
	Steps []string `yaml:"steps,omitempty"`

	// Step names the step checked (ordered_by).
	Step string `yaml:"step,omitempty"`

	// Field is the declared field name (ordered_by).
	Field string `yaml:"field,omitempty"`

	// Desc selects descending order (ordered_by).
	Desc bool `yaml:"desc,omitempty"`
}

// Assertion type constants.
const (
	AssertPagesDisjoint = "pages_disjoint"
	AssertPagesCover    = "pages_cover"
	AssertOrderedBy     = "ordered_by"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve the definitions path relative to the scenario BEFORE validation
	if scenario.Definitions != "" && !filepath.IsAbs(scenario.Definitions) {
		scenario.Definitions = filepath.Join(filepath.Dir(path), scenario.Definitions)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if _, err := os.Stat(scenario.Definitions); os.IsNotExist(err) {
		return nil, fmt.Errorf("invalid scenario: definitions not found: %s", scenario.Definitions)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Definitions == "" {
		return fmt.Errorf("definitions is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, b := range s.Backends {
		if b != BackendMemory && b != BackendSQLite {
			return fmt.Errorf("backends[%d]: unknown backend %q", i, b)
		}
	}

	names := make(map[string]bool, len(s.Steps))
	for i, step := range s.Steps {
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: name is required", i)
		}
		if names[step.Name] {
			return fmt.Errorf("steps[%d]: duplicate step name %q", i, step.Name)
		}
		names[step.Name] = true

		if _, err := search.ParseCombiner(step.Form.Composition); err != nil {
			return fmt.Errorf("steps[%d].form.composition: %w", i, err)
		}
		for j, f := range step.Form.Filters {
			if f.Path == "" {
				return fmt.Errorf("steps[%d].form.filters[%d]: path is required", i, j)
			}
			if _, err := search.ParseComparisonKind(f.Kind); err != nil {
				return fmt.Errorf("steps[%d].form.filters[%d]: %w", i, j, err)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, names); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	var refs []string
	switch a.Type {
	case AssertPagesDisjoint, AssertPagesCover:
		if len(a.Steps) < 2 {
			return fmt.Errorf("assertions[%d]: at least two steps are required for %s", index, a.Type)
		}
		refs = a.Steps
	case AssertOrderedBy:
		if a.Step == "" || a.Field == "" {
			return fmt.Errorf("assertions[%d]: step and field are required for ordered_by", index)
		}
		refs = []string{a.Step}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	for _, name := range refs {
		if !steps[name] {
			return fmt.Errorf("assertions[%d]: unknown step %q", index, name)
		}
	}
	return nil
}

// Form converts the spec to a search form.
func (f FormSpec) Form() (*search.SearchForm, error) {
	composition, err := search.ParseCombiner(f.Composition)
	if err != nil {
		return nil, err
	}
	form := &search.SearchForm{
		Term:              f.Term,
		FilterComposition: composition,
		OrderBy:           f.OrderBy,
		ByTermRank:        f.Rank,
		Skip:              f.Skip,
		Take:              f.Take,
		Page:              f.Page,
		PageSize:          f.PageSize,
	}
	for _, spec := range f.Filters {
		kind, err := search.ParseComparisonKind(spec.Kind)
		if err != nil {
			return nil, err
		}
		form.Comparisons = append(form.Comparisons, search.Comparison{Path: spec.Path, Kind: kind, Value: spec.Value})
	}
	return form, nil
}
