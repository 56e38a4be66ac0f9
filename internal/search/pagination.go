package search

import (
	"context"
	"math"
	"slices"

	"github.com/roach88/qsearch/internal/qerr"
	"github.com/roach88/qsearch/internal/queryir"
)

// PaginationResult is the window computed for a page form and the query
// it applies to.
type PaginationResult[T any] struct {
	Skip     int
	Take     int
	Page     *int // nil in SkipAndTake mode
	PageSize *int // nil in SkipAndTake mode
	Query    queryir.Queryable[T]
}

// ApplyPagination orders q by the form and slices it to the requested
// window.
func (e *Engine[T]) ApplyPagination(_ context.Context, q queryir.Queryable[T], form PageForm) (PaginationResult[T], error) {
	ordered, err := e.ApplyOrder(q, form)
	if err != nil {
		return PaginationResult[T]{}, err
	}
	return e.ComputeWindow(ordered, form, true)
}

// ComputeWindow computes skip and take for the form under the configured
// mode. When physical is false the returned query is q unchanged, so a
// caller can express the window itself.
func (e *Engine[T]) ComputeWindow(q queryir.Queryable[T], form PageForm, physical bool) (PaginationResult[T], error) {
	req := form.PageRequest()
	res := PaginationResult[T]{Query: q}

	if e.opts.Mode == SkipAndTake {
		skip, err := nonNegative("skip", req.Skip)
		if err != nil {
			return PaginationResult[T]{}, err
		}
		take := e.opts.MaxTake
		if req.Take != nil {
			if *req.Take < 0 {
				return PaginationResult[T]{}, qerr.New(qerr.CodePaginationValidation, "take must not be negative, got %d", *req.Take)
			}
			take = min(*req.Take, e.opts.MaxTake)
		}
		res.Skip, res.Take = skip, take
	} else {
		size, err := e.pageSize(req)
		if err != nil {
			return PaginationResult[T]{}, err
		}
		page, err := nonNegative("page", req.Page)
		if err != nil {
			return PaginationResult[T]{}, err
		}
		if req.Page == nil && req.Skip != nil {
			skip, err := nonNegative("skip", req.Skip)
			if err != nil {
				return PaginationResult[T]{}, err
			}
			page = skip / size
		}
		if page > math.MaxInt/size {
			return PaginationResult[T]{}, qerr.New(qerr.CodePaginationValidation, "page %d of size %d is out of range", page, size)
		}
		res.Skip, res.Take = page*size, size
		res.Page, res.PageSize = &page, &size
	}

	if physical {
		if res.Skip > 0 {
			q = q.Skip(res.Skip)
		}
		res.Query = q.Take(res.Take)
	}
	return res, nil
}

// pageSize returns the page size for a page-based mode.
func (e *Engine[T]) pageSize(req PageRequest) (int, error) {
	switch e.opts.Mode {
	case PageSize:
		return e.opts.PageSize, nil
	case AnyPageSize:
		if req.PageSize == nil {
			return e.opts.PageSize, nil
		}
		if *req.PageSize <= 0 {
			return 0, qerr.New(qerr.CodePaginationValidation, "page size must be positive, got %d", *req.PageSize)
		}
		return *req.PageSize, nil
	case PredefinedPageSizes:
		if req.PageSize == nil {
			return 0, qerr.New(qerr.CodePaginationValidation, "page size is required, allowed sizes are %v", e.opts.PredefinedPageSizes)
		}
		if !slices.Contains(e.opts.PredefinedPageSizes, *req.PageSize) {
			return 0, qerr.New(qerr.CodePaginationValidation, "page size %d is not one of %v", *req.PageSize, e.opts.PredefinedPageSizes)
		}
		return *req.PageSize, nil
	case MinMaxPageSize:
		if req.PageSize == nil {
			return 0, qerr.New(qerr.CodePaginationValidation, "page size is required, range is [%d, %d]", e.opts.MinPageSize, e.opts.MaxPageSize)
		}
		if *req.PageSize < e.opts.MinPageSize || *req.PageSize > e.opts.MaxPageSize {
			return 0, qerr.New(qerr.CodePaginationValidation, "page size %d is outside [%d, %d]",
				*req.PageSize, e.opts.MinPageSize, e.opts.MaxPageSize)
		}
		return *req.PageSize, nil
	}
	return 0, qerr.New(qerr.CodeConfiguration, "invalid pagination mode %s", e.opts.Mode)
}

func nonNegative(name string, n *int) (int, error) {
	if n == nil {
		return 0, nil
	}
	if *n < 0 {
		return 0, qerr.New(qerr.CodePaginationValidation, "%s must not be negative, got %d", name, *n)
	}
	return *n, nil
}

// PageCount is the number of pages of size pageSize needed for count
// items.
func PageCount(count, pageSize int) int {
	if pageSize <= 0 || count <= 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}
