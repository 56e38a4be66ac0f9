// Package memquery implements queryir.Queryable over an in-memory slice.
//
// It is the reference backend: predicates and sort keys are evaluated with
// queryir.Eval and queryir.CompareValues, so results define what the SQL
// backend is expected to return for the same composition.
package memquery

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/roach88/qsearch/internal/queryir"
)

type stageKind int

const (
	stageWhere stageKind = iota
	stageOrder
	stageSkip
	stageTake
)

type stage struct {
	kind stageKind
	pred queryir.Predicate
	keys []queryir.SortKey
	n    int
}

// Query is an immutable pipeline of stages over a slice.
type Query[T any] struct {
	items  []T
	stages []stage
}

// New returns a query over items. The slice is not copied; callers must
// not mutate it while queries over it are in use.
func New[T any](items []T) *Query[T] {
	return &Query[T]{items: items}
}

var _ queryir.Queryable[int] = (*Query[int])(nil)

func (q *Query[T]) with(s stage) *Query[T] {
	next := &Query[T]{items: q.items, stages: make([]stage, len(q.stages), len(q.stages)+1)}
	copy(next.stages, q.stages)
	next.stages = append(next.stages, s)
	return next
}

// Where adds a filter stage. A nil predicate leaves the query unchanged.
func (q *Query[T]) Where(p queryir.Predicate) queryir.Queryable[T] {
	if p == nil {
		return q
	}
	return q.with(stage{kind: stageWhere, pred: p})
}

// OrderBy starts a new ordering.
func (q *Query[T]) OrderBy(k queryir.SortKey) queryir.Queryable[T] {
	return q.with(stage{kind: stageOrder, keys: []queryir.SortKey{k}})
}

// ThenBy extends the ordering started by the last OrderBy. Without a
// preceding ordering it behaves like OrderBy.
func (q *Query[T]) ThenBy(k queryir.SortKey) queryir.Queryable[T] {
	if n := len(q.stages); n > 0 && q.stages[n-1].kind == stageOrder {
		last := q.stages[n-1]
		next := &Query[T]{items: q.items, stages: slices.Clone(q.stages)}
		next.stages[n-1] = stage{kind: stageOrder, keys: append(slices.Clone(last.keys), k)}
		return next
	}
	return q.OrderBy(k)
}

// Skip drops the first n items.
func (q *Query[T]) Skip(n int) queryir.Queryable[T] {
	return q.with(stage{kind: stageSkip, n: max(n, 0)})
}

// Take keeps at most n items.
func (q *Query[T]) Take(n int) queryir.Queryable[T] {
	return q.with(stage{kind: stageTake, n: max(n, 0)})
}

// Count runs the pipeline and returns the number of items.
func (q *Query[T]) Count(ctx context.Context) (int, error) {
	items, err := q.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// List runs the pipeline and returns the resulting items.
func (q *Query[T]) List(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := slices.Clone(q.items)
	for _, s := range q.stages {
		var err error
		switch s.kind {
		case stageWhere:
			out, err = filter(out, s.pred)
		case stageOrder:
			err = order(out, s.keys)
		case stageSkip:
			out = out[min(s.n, len(out)):]
		case stageTake:
			out = out[:min(s.n, len(out))]
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func filter[T any](items []T, p queryir.Predicate) ([]T, error) {
	kept := make([]T, 0, len(items))
	for _, it := range items {
		ok, err := queryir.Eval(p, it)
		if err != nil {
			return nil, fmt.Errorf("memquery: %w", err)
		}
		if ok {
			kept = append(kept, it)
		}
	}
	return kept, nil
}

func order[T any](items []T, keys []queryir.SortKey) error {
	for _, k := range keys {
		if k.Manual() {
			return fmt.Errorf("memquery: cannot order by %q without a field accessor", k.Path)
		}
	}

	var sortErr error
	sort.SliceStable(items, func(i, j int) bool {
		for _, k := range keys {
			n, err := queryir.CompareValues(k.Field.Value(items[i]), k.Field.Value(items[j]))
			if err != nil {
				if sortErr == nil {
					sortErr = fmt.Errorf("memquery: order by %s: %w", k.Path, err)
				}
				return false
			}
			if n == 0 {
				continue
			}
			if k.Direction == queryir.Descending {
				return n > 0
			}
			return n < 0
		}
		return false
	})
	return sortErr
}
