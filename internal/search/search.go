package search

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/qsearch/internal/observability"
	"github.com/roach88/qsearch/internal/queryir"
)

// Provider applies a form's filter and window to a query. *Engine is the
// generic provider; full-text providers override both steps.
type Provider[T any] interface {
	ApplyWhere(ctx context.Context, q queryir.Queryable[T], form FilterForm) (queryir.Queryable[T], error)
	ApplyPagination(ctx context.Context, q queryir.Queryable[T], form PageForm) (PaginationResult[T], error)
	Options() Options
}

var _ Provider[struct{}] = (*Engine[struct{}])(nil)

// SearchResult is the outcome of one Search call.
type SearchResult[T any] struct {
	FullCount         int  `json:"full_count"`
	FilteredCount     int  `json:"filtered_count"`
	FullPageCount     *int `json:"full_page_count,omitempty"`
	FilteredPageCount *int `json:"filtered_page_count,omitempty"`
	Page              *int `json:"page,omitempty"`
	PageSize          *int `json:"page_size,omitempty"`
	Skip              int  `json:"skip"`
	Take              int  `json:"take"`
	Items             []T  `json:"items"`
}

// PostCountHook runs after the filtered count and before ordering. It may
// replace the query, for example to add joins needed only for the page.
type PostCountHook[T any] func(ctx context.Context, q queryir.Queryable[T], filteredCount int) (queryir.Queryable[T], error)

// SearchOption configures a Search call.
type SearchOption[T any] func(*searchConfig[T])

type searchConfig[T any] struct {
	postCount PostCountHook[T]
}

// WithPostCount sets the hook run after the filtered count.
func WithPostCount[T any](hook PostCountHook[T]) SearchOption[T] {
	return func(c *searchConfig[T]) { c.postCount = hook }
}

// Search counts q, filters it, counts again, orders and slices it, and
// lists the window. Count and List errors are returned as the backend
// reported them.
func Search[T any](ctx context.Context, p Provider[T], q queryir.Queryable[T], form Form, opts ...SearchOption[T]) (*SearchResult[T], error) {
	var cfg searchConfig[T]
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, span := observability.Tracer("search").Start(ctx, "search")
	defer span.End()
	span.SetAttributes(
		attribute.String("search.mode", p.Options().Mode.String()),
		attribute.Bool("search.term", form.SearchTerm() != ""),
		attribute.Int("search.comparisons", len(form.Filters())),
	)

	res, err := search(ctx, p, q, form, cfg)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("search.full_count", res.FullCount),
		attribute.Int("search.filtered_count", res.FilteredCount),
		attribute.Int("search.items", len(res.Items)),
	)
	return res, nil
}

func search[T any](ctx context.Context, p Provider[T], q queryir.Queryable[T], form Form, cfg searchConfig[T]) (*SearchResult[T], error) {
	full, err := q.Count(ctx)
	if err != nil {
		return nil, err
	}

	filtered, err := p.ApplyWhere(ctx, q, form)
	if err != nil {
		return nil, err
	}
	filteredCount, err := filtered.Count(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.postCount != nil {
		if filtered, err = cfg.postCount(ctx, filtered, filteredCount); err != nil {
			return nil, err
		}
	}

	window, err := p.ApplyPagination(ctx, filtered, form)
	if err != nil {
		return nil, err
	}
	items, err := window.Query.List(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}

	res := &SearchResult[T]{
		FullCount:     full,
		FilteredCount: filteredCount,
		Page:          window.Page,
		PageSize:      window.PageSize,
		Skip:          window.Skip,
		Take:          window.Take,
		Items:         items,
	}
	if window.PageSize != nil {
		fullPages := PageCount(full, *window.PageSize)
		filteredPages := PageCount(filteredCount, *window.PageSize)
		res.FullPageCount, res.FilteredPageCount = &fullPages, &filteredPages
	}
	return res, nil
}
