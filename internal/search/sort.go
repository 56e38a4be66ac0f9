package search

import (
	"context"
	"errors"
	"strings"

	"github.com/roach88/qsearch/internal/qerr"
	"github.com/roach88/qsearch/internal/queryir"
)

// SortChainEntry is one registered sort key. Field is not Valid for
// manual entries, which only a ManualSorter can apply.
type SortChainEntry = queryir.SortKey

// SortChain is an ordered list of sort keys.
type SortChain []SortChainEntry

// SortOption adjusts sort registration.
type SortOption func(*sortConfig)

type sortConfig struct {
	alsoUnique bool
}

// NotUnique declares that a default sort chain does not define a total
// order, so it is not used as the tie-breaker.
func NotUnique() SortOption {
	return func(c *sortConfig) { c.alsoUnique = false }
}

// RegisterDefaultSort records the chain built by expr as the ordering used
// when the form asks for none. expr may only call OrderBy once and then
// ThenBy. Unless NotUnique is given, the chain also breaks ties when no
// unique chain is registered.
func (e *Engine[T]) RegisterDefaultSort(expr func(queryir.Queryable[T]) queryir.Queryable[T], opts ...SortOption) error {
	chain, err := recordChain(expr)
	if err != nil {
		return err
	}
	cfg := sortConfig{alsoUnique: true}
	for _, o := range opts {
		o(&cfg)
	}
	e.defaultSort = chain
	e.defaultIsUnique = cfg.alsoUnique
	return nil
}

// RegisterUniqueSort records the chain built by expr as the tie-breaker
// appended to every ordering.
func (e *Engine[T]) RegisterUniqueSort(expr func(queryir.Queryable[T]) queryir.Queryable[T]) error {
	chain, err := recordChain(expr)
	if err != nil {
		return err
	}
	e.uniqueSort = chain
	return nil
}

// SortChainOf parses a sort string into a chain. Paths that do not resolve
// become manual entries.
func (e *Engine[T]) SortChainOf(expr string) (SortChain, error) {
	specs, err := ParseOrderBy(expr)
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, qerr.New(qerr.CodeConfiguration, "empty sort chain")
	}
	chain := make(SortChain, 0, len(specs))
	for _, s := range specs {
		chain = append(chain, e.keyFor(s))
	}
	return chain, nil
}

// Chain returns an expression that applies chain, for RegisterDefaultSort
// and RegisterUniqueSort.
func Chain[T any](chain SortChain) func(queryir.Queryable[T]) queryir.Queryable[T] {
	return func(q queryir.Queryable[T]) queryir.Queryable[T] {
		for i, k := range chain {
			if i == 0 {
				q = q.OrderBy(k)
			} else {
				q = q.ThenBy(k)
			}
		}
		return q
	}
}

// Key resolves path into a sort key.
func (e *Engine[T]) Key(path string, dir queryir.Direction) (queryir.SortKey, error) {
	f, err := e.schema.Resolve(path)
	if err != nil {
		return queryir.SortKey{}, err
	}
	return queryir.KeyOf(f, dir), nil
}

// TieBreaker returns the chain appended after explicit sort keys: the
// unique chain, or the default chain when it doubles as unique.
func (e *Engine[T]) TieBreaker() SortChain {
	if e.uniqueSort == nil && e.defaultIsUnique {
		return e.defaultSort
	}
	return e.uniqueSort
}

func (e *Engine[T]) keyFor(s SortSpec) queryir.SortKey {
	f, err := e.schema.Resolve(s.Path)
	if err != nil {
		return queryir.ManualKey(s.Path, s.Direction)
	}
	return queryir.KeyOf(f, s.Direction)
}

// ApplyOrder orders q by the form's sort keys, or by the default chain
// when the form has none, then appends the unique chain. Paths already
// ordered by are never repeated.
func (e *Engine[T]) ApplyOrder(q queryir.Queryable[T], form PageForm) (queryir.Queryable[T], error) {
	specs, err := requestedSort(form)
	if err != nil {
		return nil, err
	}

	o := &orderer[T]{engine: e, q: q, applied: make(map[string]bool)}
	var tie SortChain
	if len(specs) > 0 {
		for _, s := range specs {
			if err := o.apply(e.keyFor(s)); err != nil {
				return nil, err
			}
		}
		tie = e.TieBreaker()
	} else {
		for _, k := range e.defaultSort {
			if err := o.apply(k); err != nil {
				return nil, err
			}
		}
		tie = e.uniqueSort
	}
	for _, k := range tie {
		if err := o.apply(k); err != nil {
			return nil, err
		}
	}
	return o.q, nil
}

func requestedSort(form PageForm) ([]SortSpec, error) {
	order := form.SortOrder()
	if len(order.Keys) > 0 {
		return order.Keys, nil
	}
	if strings.TrimSpace(order.Expr) == "" {
		return nil, nil
	}
	return ParseOrderBy(order.Expr)
}

type orderer[T any] struct {
	engine  *Engine[T]
	q       queryir.Queryable[T]
	applied map[string]bool
	started bool
}

func (o *orderer[T]) apply(k queryir.SortKey) error {
	id := strings.ToLower(k.Path)
	if !k.Manual() {
		id = strings.ToLower(k.Field.Path)
	}
	if o.applied[id] {
		return nil
	}

	first := !o.started
	if k.Manual() {
		if o.engine.manualSort == nil {
			return qerr.New(qerr.CodeUnsupportedSort, "no accessor or manual sort for %q", k.Path).WithPath(k.Path)
		}
		q, err := o.engine.manualSort(o.q, k, first)
		if err != nil {
			return err
		}
		o.q = q
	} else if first {
		o.q = o.q.OrderBy(k)
	} else {
		o.q = o.q.ThenBy(k)
	}
	o.applied[id] = true
	o.started = true
	return nil
}

// recordChain runs expr against a recorder and returns the keys it
// ordered by, rejecting anything but OrderBy followed by ThenBy calls.
func recordChain[T any](expr func(queryir.Queryable[T]) queryir.Queryable[T]) (SortChain, error) {
	if expr == nil {
		return nil, qerr.New(qerr.CodeConfiguration, "sort expression is required")
	}
	r := &chainRecorder[T]{}
	out := expr(r)
	if rec, ok := out.(*chainRecorder[T]); !ok || rec != r {
		return nil, qerr.New(qerr.CodeConfiguration, "sort expression must return the query it was given")
	}
	if r.err != nil {
		return nil, r.err
	}
	if len(r.keys) == 0 {
		return nil, qerr.New(qerr.CodeConfiguration, "sort expression applied no ordering")
	}
	return r.keys, nil
}

var errNotOrdering = errors.New("sort expression may only order")

// chainRecorder is a Queryable that records ordering calls.
type chainRecorder[T any] struct {
	keys SortChain
	err  error
}

func (r *chainRecorder[T]) fail(format string, args ...any) queryir.Queryable[T] {
	if r.err == nil {
		r.err = qerr.Wrap(qerr.CodeConfiguration, errNotOrdering, format, args...)
	}
	return r
}

func (r *chainRecorder[T]) OrderBy(k queryir.SortKey) queryir.Queryable[T] {
	if len(r.keys) > 0 {
		return r.fail("OrderBy(%s) after the chain started", k.Path)
	}
	r.keys = append(r.keys, k)
	return r
}

func (r *chainRecorder[T]) ThenBy(k queryir.SortKey) queryir.Queryable[T] {
	if len(r.keys) == 0 {
		return r.fail("ThenBy(%s) before OrderBy", k.Path)
	}
	r.keys = append(r.keys, k)
	return r
}

func (r *chainRecorder[T]) Where(queryir.Predicate) queryir.Queryable[T] { return r.fail("Where in sort chain") }
func (r *chainRecorder[T]) Skip(int) queryir.Queryable[T]                { return r.fail("Skip in sort chain") }
func (r *chainRecorder[T]) Take(int) queryir.Queryable[T]                { return r.fail("Take in sort chain") }

func (r *chainRecorder[T]) Count(context.Context) (int, error) {
	r.fail("Count in sort chain")
	return 0, r.err
}

func (r *chainRecorder[T]) List(context.Context) ([]T, error) {
	r.fail("List in sort chain")
	return nil, r.err
}
