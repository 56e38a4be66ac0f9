package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"

	"golang.org/x/text/language"

	"github.com/roach88/qsearch/internal/coerce"
	"github.com/roach88/qsearch/internal/config"
	"github.com/roach88/qsearch/internal/memquery"
	"github.com/roach88/qsearch/internal/qerr"
	"github.com/roach88/qsearch/internal/queryir"
	"github.com/roach88/qsearch/internal/schema"
	"github.com/roach88/qsearch/internal/search"
	"github.com/roach88/qsearch/internal/store"
	"github.com/roach88/qsearch/internal/testutil"
)

// Harness runs one scenario on one backend.
// Sequence numbers and index build ids are deterministic so traces can be
// compared across runs and backends.
type Harness struct {
	def      *config.Definition
	key      schema.Field
	provider search.Provider[config.Entity]
	query    queryir.Queryable[config.Entity]
	clock    *testutil.TraceClock
	logger   *slog.Logger
	closer   func() error
}

// Run executes a test scenario on each of its backends and returns the
// result of the primary backend.
//
// Each backend starts from a fresh store: an in-memory slice or an
// in-memory SQLite database. Search events must agree across backends;
// any difference is recorded as a Disagreement.
//
// Execution flow:
// 1. Load and compile the provider definition
// 2. Seed rows (and build the full-text index on SQLite)
// 3. Execute steps with expect validation
// 4. Evaluate assertions on the primary trace
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	def, err := loadDefinition(scenario)
	if err != nil {
		return nil, err
	}
	records, err := buildRecords(def.Schema, scenario.Rows)
	if err != nil {
		return nil, fmt.Errorf("failed to build rows: %w", err)
	}
	key, err := keyField(def)
	if err != nil {
		return nil, err
	}

	backends := scenario.Backends
	if len(backends) == 0 {
		backends = []string{BackendMemory, BackendSQLite}
		if def.FullText != nil {
			backends = []string{BackendSQLite}
		}
	}

	result := NewResult()
	result.Backends = backends
	var primary []TraceEvent
	for i, backend := range backends {
		trace, errs, err := runBackend(ctx, backend, def, key, records, scenario)
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", backend, err)
		}
		for _, e := range errs {
			result.AddError(fmt.Sprintf("[%s] %s", backend, e))
		}
		if i == 0 {
			primary = trace
			continue
		}
		for _, d := range diffSearches(primary, trace) {
			d.Backend = backend
			result.AddDisagreement(d)
		}
	}
	result.Trace = primary
	result.Steps = len(scenario.Steps)

	failed := EvaluateAssertions(result, scenario.Assertions)
	result.Assertions, result.FailedAssertions = len(scenario.Assertions), len(failed)
	for _, msg := range failed {
		result.AddError(msg)
	}
	return result, nil
}

func loadDefinition(scenario *Scenario) (*config.Definition, error) {
	res, errs := config.Load(scenario.Definitions, config.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load definitions: %w", errs[0])
	}
	return res.Definition(scenario.Provider)
}

// keyField picks the field that identifies items in the trace: the
// full-text key column, or a field named id.
func keyField(def *config.Definition) (schema.Field, error) {
	if def.FullText != nil {
		if f, ok := def.Schema.FieldByColumn(def.FullText.Table.Key); ok {
			return f, nil
		}
	}
	if f, ok := def.Schema.Field("id"); ok {
		return f, nil
	}
	return schema.Field{}, fmt.Errorf("provider %s: no id field to identify items", def.Name)
}

// buildRecords coerces YAML rows, keyed by column, to typed records.
func buildRecords(s *schema.Schema, rows []map[string]any) ([]config.Entity, error) {
	out := make([]config.Entity, 0, len(rows))
	for i, row := range rows {
		rec := config.Entity{}
		for col := range row {
			if _, ok := s.FieldByColumn(col); !ok {
				return nil, fmt.Errorf("rows[%d]: unknown column %q", i, col)
			}
		}
		for _, f := range s.Fields() {
			if _, err := s.Assign(&rec, f.Column, row[f.Column]); err != nil {
				return nil, fmt.Errorf("rows[%d]: %w", i, err)
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func runBackend(ctx context.Context, backend string, def *config.Definition, key schema.Field, records []config.Entity, scenario *Scenario) ([]TraceEvent, []string, error) {
	h := &Harness{
		def:    def,
		key:    key,
		clock:  testutil.NewTraceClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	trace := []TraceEvent{}

	switch backend {
	case BackendMemory:
		if def.FullText != nil {
			return nil, nil, fmt.Errorf("provider %s searches a full-text index, which needs sqlite", def.Name)
		}
		h.provider = def.Engine
		h.query = memquery.New(records)
	case BackendSQLite:
		events, err := h.openSQLite(ctx, records)
		if err != nil {
			return nil, nil, err
		}
		defer h.closer()
		trace = append(trace, events...)
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", backend)
	}
	if backend == BackendMemory {
		trace = append(trace, TraceEvent{Seq: h.clock.Next(), Type: EventSeed, Rows: len(records)})
	}

	var errs []string
	for _, step := range scenario.Steps {
		ev, err := h.runStep(ctx, step)
		if err != nil {
			return nil, nil, fmt.Errorf("step %s: %w", step.Name, err)
		}
		trace = append(trace, ev)
		if step.Expect != nil {
			errs = append(errs, checkExpect(step, ev)...)
		} else if ev.Error != "" {
			errs = append(errs, fmt.Sprintf("step %s: unexpected error %s", step.Name, ev.Error))
		}
	}
	return trace, errs, nil
}

// openSQLite seeds a fresh in-memory database.
func (h *Harness) openSQLite(ctx context.Context, records []config.Entity) ([]TraceEvent, error) {
	ids := testutil.NewSequentialIDs("")
	st, err := store.Open(":memory:", store.WithLogger(h.logger), store.WithBuildIDs(ids.Next))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	h.closer = st.Close

	if err := createTable(ctx, st, h.def, h.key); err != nil {
		st.Close()
		return nil, err
	}
	if err := insertRows(ctx, st, h.def, records); err != nil {
		st.Close()
		return nil, err
	}
	events := []TraceEvent{{Seq: h.clock.Next(), Type: EventSeed, Rows: len(records)}}

	if h.def.FullText != nil {
		info, err := st.EnsureFullTextIndex(ctx, h.def.FullText.Table)
		if err != nil {
			st.Close()
			return nil, err
		}
		events = append(events, TraceEvent{Seq: h.clock.Next(), Type: EventIndex, Index: info.Index, BuildID: info.BuildID})
	}

	if h.provider, err = h.def.Provider(st.Dialect()); err != nil {
		st.Close()
		return nil, err
	}
	h.query = h.def.Query(st, st.Dialect())

	h.logger.Info("sqlite backend ready", "table", h.def.Table, "rows", len(records))
	return events, nil
}

func createTable(ctx context.Context, st *store.Store, def *config.Definition, key schema.Field) error {
	q := st.Dialect().QuoteIdent
	cols := make([]string, 0, len(def.Schema.Fields()))
	for _, f := range def.Schema.Fields() {
		col := q(f.Column) + " " + sqlType(f.Type)
		switch {
		case f.Column == key.Column && sqlType(f.Type) == "INTEGER":
			col += " PRIMARY KEY"
		case !coerce.Nullable(f.Type):
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", q(def.Table), strings.Join(cols, ", "))
	if _, err := st.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", def.Table, err)
	}
	return nil
}

func sqlType(t reflect.Type) string {
	switch coerce.Underlying(t).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Bool:
		return "INTEGER"
	case reflect.Float32, reflect.Float64:
		return "REAL"
	}
	return "TEXT"
}

func insertRows(ctx context.Context, st *store.Store, def *config.Definition, records []config.Entity) error {
	q := st.Dialect().QuoteIdent
	fields := def.Schema.Fields()
	cols := make([]string, len(fields))
	marks := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = q(f.Column)
		marks[i] = "?"
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", q(def.Table), strings.Join(cols, ", "), strings.Join(marks, ", "))
	for i, rec := range records {
		args := make([]any, len(fields))
		for j, f := range fields {
			args[j] = rec[f.Name]
		}
		if _, err := st.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	return nil
}

// runStep runs one search. Composition failures are recorded in the
// event; other errors abort the scenario.
func (h *Harness) runStep(ctx context.Context, step Step) (TraceEvent, error) {
	form, err := step.Form.Form()
	if err != nil {
		return TraceEvent{}, err
	}
	if step.Culture != "" {
		tag, err := language.Parse(step.Culture)
		if err != nil {
			return TraceEvent{}, fmt.Errorf("culture: %w", err)
		}
		ctx = search.WithCulture(ctx, tag)
	}

	ev := TraceEvent{Seq: h.clock.Next(), Type: EventSearch, Step: step.Name}
	res, err := search.Search[config.Entity](ctx, h.provider, h.query, form)
	var qe *qerr.Error
	switch {
	case errors.As(err, &qe):
		ev.Error = string(qe.Code)
		return ev, nil
	case err != nil:
		return TraceEvent{}, err
	}

	ev.Result = &StepResult{
		FullCount:         res.FullCount,
		FilteredCount:     res.FilteredCount,
		FullPageCount:     res.FullPageCount,
		FilteredPageCount: res.FilteredPageCount,
		Page:              res.Page,
		PageSize:          res.PageSize,
		Skip:              res.Skip,
		Take:              res.Take,
		Keys:              make([]any, 0, len(res.Items)),
		Items:             make([]map[string]any, 0, len(res.Items)),
	}
	for _, item := range res.Items {
		ev.Result.Keys = append(ev.Result.Keys, item[h.key.Name])
		ev.Result.Items = append(ev.Result.Items, map[string]any(item))
	}
	h.logger.Info("step completed", "step", step.Name, "filtered", res.FilteredCount, "items", len(res.Items))
	return ev, nil
}

// checkExpect compares an event with the step's expect clause.
func checkExpect(step Step, ev TraceEvent) []string {
	exp := step.Expect
	prefix := "step " + step.Name + ": "
	if exp.Error != "" {
		if ev.Error != exp.Error {
			return []string{fmt.Sprintf("%sexpected error %s, got %q", prefix, exp.Error, ev.Error)}
		}
		return nil
	}
	if ev.Error != "" {
		return []string{fmt.Sprintf("%sunexpected error %s", prefix, ev.Error)}
	}

	var errs []string
	r := ev.Result
	checkInt := func(name string, want *int, got int) {
		if want != nil && *want != got {
			errs = append(errs, fmt.Sprintf("%s%s = %d, expected %d", prefix, name, got, *want))
		}
	}
	checkInt("full_count", exp.FullCount, r.FullCount)
	checkInt("filtered_count", exp.FilteredCount, r.FilteredCount)
	checkInt("skip", exp.Skip, r.Skip)
	checkInt("take", exp.Take, r.Take)
	if exp.FilteredPageCount != nil {
		if r.FilteredPageCount == nil {
			errs = append(errs, fmt.Sprintf("%sfiltered_page_count missing, expected %d", prefix, *exp.FilteredPageCount))
		} else {
			checkInt("filtered_page_count", exp.FilteredPageCount, *r.FilteredPageCount)
		}
	}
	if exp.Keys != nil && !keysEqual(exp.Keys, r.Keys) {
		errs = append(errs, fmt.Sprintf("%skeys = %v, expected %v", prefix, r.Keys, exp.Keys))
	}
	return errs
}

// keysEqual compares key lists by value, so YAML ints match int64 keys.
func keysEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if c, err := queryir.CompareValues(a[i], b[i]); err != nil || c != 0 {
			return false
		}
	}
	return true
}

// diffSearches reports search steps whose outcome differs. A step
// missing from got has an empty Detail.
func diffSearches(want, got []TraceEvent) []Disagreement {
	var diffs []Disagreement
	for _, w := range want {
		if w.Type != EventSearch {
			continue
		}
		g, ok := findStep(got, w.Step)
		switch {
		case !ok:
			diffs = append(diffs, Disagreement{Step: w.Step})
		case w.Error != g.Error:
			diffs = append(diffs, Disagreement{Step: w.Step, Detail: fmt.Sprintf("error %q vs %q", w.Error, g.Error)})
		case !reflect.DeepEqual(w.Result, g.Result):
			diffs = append(diffs, Disagreement{Step: w.Step, Detail: fmt.Sprintf("result %s vs %s", summary(w.Result), summary(g.Result))})
		}
	}
	return diffs
}

func summary(r *StepResult) string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("full=%d filtered=%d skip=%d take=%d keys=%v", r.FullCount, r.FilteredCount, r.Skip, r.Take, r.Keys)
}
