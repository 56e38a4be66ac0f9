package harness

// Trace event types.
const (
	EventSeed   = "seed"
	EventIndex  = "index"
	EventSearch = "search"
)

// TraceEvent is one step of a scenario run.
type TraceEvent struct {
	Seq     int64       `json:"seq"`
	Type    string      `json:"type"` // "seed", "index" or "search"
	Step    string      `json:"step,omitempty"`
	Rows    int         `json:"rows,omitempty"`
	Index   string      `json:"index,omitempty"`
	BuildID string      `json:"build_id,omitempty"`
	Result  *StepResult `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"` // qerr code of a failed search
}

// StepResult is the observable outcome of one search step.
type StepResult struct {
	FullCount         int              `json:"full_count"`
	FilteredCount     int              `json:"filtered_count"`
	FullPageCount     *int             `json:"full_page_count,omitempty"`
	FilteredPageCount *int             `json:"filtered_page_count,omitempty"`
	Page              *int             `json:"page,omitempty"`
	PageSize          *int             `json:"page_size,omitempty"`
	Skip              int              `json:"skip"`
	Take              int              `json:"take"`
	Keys              []any            `json:"keys"`
	Items             []map[string]any `json:"items"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion matches on every backend.
	Pass bool `json:"pass"`

	// Backends lists the backends the scenario ran on, primary first.
	Backends []string `json:"backends"`

	// Trace contains the events of the primary backend in order.
	// Used for assertions and golden comparison.
	Trace []TraceEvent `json:"trace"`

	// Steps is the number of search steps run per backend.
	Steps int `json:"steps"`

	// Assertions and FailedAssertions count the scenario's assertions.
	Assertions       int `json:"assertions"`
	FailedAssertions int `json:"failed_assertions"`

	// Disagreements lists steps whose outcome on a secondary backend
	// differs from the primary one. Any disagreement fails the result.
	Disagreements []Disagreement `json:"disagreements,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// Disagreement is a search step that came out differently on two
// backends.
type Disagreement struct {
	Backend string `json:"backend"`
	Step    string `json:"step"`
	Detail  string `json:"detail"`
}

func (d Disagreement) String() string {
	if d.Detail == "" {
		return "step " + d.Step + " missing"
	}
	return "step " + d.Step + ": " + d.Detail
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddDisagreement records a backend disagreement and marks the result as
// failed.
func (r *Result) AddDisagreement(d Disagreement) {
	r.Disagreements = append(r.Disagreements, d)
	r.Pass = false
}

// Step returns the search event of the named step.
func (r *Result) Step(name string) (TraceEvent, bool) {
	return findStep(r.Trace, name)
}

func findStep(trace []TraceEvent, name string) (TraceEvent, bool) {
	for _, ev := range trace {
		if ev.Type == EventSearch && ev.Step == name {
			return ev, true
		}
	}
	return TraceEvent{}, false
}
