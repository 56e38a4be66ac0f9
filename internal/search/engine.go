package search

import (
	"context"
	"strings"

	"github.com/roach88/qsearch/internal/qerr"
	"github.com/roach88/qsearch/internal/queryir"
	"github.com/roach88/qsearch/internal/schema"
)

// TextSearch builds the text predicate for a word or a whole sentence.
type TextSearch func(text string) queryir.Predicate

// ApplyWhereHook filters by the raw term before any declarative rule
// applies, for cases the declarative rules cannot express.
type ApplyWhereHook[T any] func(ctx context.Context, term string, q queryir.Queryable[T]) (queryir.Queryable[T], error)

// ManualSorter orders by a sort key that has no field accessor. first is
// true when the key starts the ordering.
type ManualSorter[T any] func(q queryir.Queryable[T], key queryir.SortKey, first bool) (queryir.Queryable[T], error)

// Engine compiles search forms for entities of type T.
type Engine[T any] struct {
	schema    *schema.Schema
	opts      Options
	localizer Localizer

	keywords      map[string]queryir.Predicate
	localized     map[string]queryir.Predicate
	localizedKeys []string
	cultures      cultureCache

	wordSearch     TextSearch
	sentenceSearch TextSearch
	applyWhere     ApplyWhereHook[T]
	manualSort     ManualSorter[T]

	defaultSort     SortChain
	uniqueSort      SortChain
	defaultIsUnique bool
}

// New creates an engine for entities described by s.
func New[T any](s *schema.Schema, opts Options) (*Engine[T], error) {
	if s == nil {
		return nil, qerr.New(qerr.CodeConfiguration, "schema is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	loc := opts.Localizer
	if loc == nil {
		loc = DefaultLocalizer{}
	}
	return &Engine[T]{
		schema:    s,
		opts:      opts,
		localizer: loc,
		keywords:  make(map[string]queryir.Predicate),
		localized: make(map[string]queryir.Predicate),
	}, nil
}

// Schema returns the entity schema.
func (e *Engine[T]) Schema() *schema.Schema { return e.schema }

// Options returns the engine options.
func (e *Engine[T]) Options() Options { return e.opts }

// Field resolves a path against the entity schema.
func (e *Engine[T]) Field(path string) (schema.FieldAccess, error) {
	return e.schema.Resolve(path)
}

// Compare builds a comparison predicate over path, coercing value to the
// field type the same way form comparisons are.
func (e *Engine[T]) Compare(path string, kind ComparisonKind, value any) (queryir.Predicate, error) {
	return e.compileComparison(Comparison{Path: path, Kind: kind, Value: value})
}

// RegisterKeyword makes a term word (or run of words) apply predicate.
// Keywords match case-insensitively.
func (e *Engine[T]) RegisterKeyword(keyword string, predicate queryir.Predicate) error {
	key := foldKey(keyword)
	if key == "" {
		return qerr.New(qerr.CodeConfiguration, "keyword must not be empty")
	}
	if err := validatePredicate("keyword "+keyword, predicate); err != nil {
		return err
	}
	e.keywords[key] = predicate
	return nil
}

// RegisterLocalizedKeyword registers a predicate under a localization
// key. The word that triggers it is the key localized into the culture of
// each search.
func (e *Engine[T]) RegisterLocalizedKeyword(key string, predicate queryir.Predicate) error {
	if strings.TrimSpace(key) == "" {
		return qerr.New(qerr.CodeConfiguration, "localization key must not be empty")
	}
	if err := validatePredicate("localized keyword "+key, predicate); err != nil {
		return err
	}
	if _, dup := e.localized[key]; !dup {
		e.localizedKeys = append(e.localizedKeys, key)
	}
	e.localized[key] = predicate
	return nil
}

// RegisterWordSearch sets the predicate factory applied to every word of
// the term.
func (e *Engine[T]) RegisterWordSearch(factory TextSearch) {
	e.wordSearch = factory
}

// RegisterSentenceSearch sets the predicate factory applied to the whole
// term.
func (e *Engine[T]) RegisterSentenceSearch(factory TextSearch) {
	e.sentenceSearch = factory
}

// RegisterApplyWhere sets a hook that runs on every non-empty term before
// the declarative rules.
func (e *Engine[T]) RegisterApplyWhere(hook ApplyWhereHook[T]) {
	e.applyWhere = hook
}

// RegisterManualSort sets the extension that orders by keys without a
// field accessor.
func (e *Engine[T]) RegisterManualSort(sorter ManualSorter[T]) {
	e.manualSort = sorter
}

// ContainsAny returns a TextSearch that matches text contained in any of
// the given fields.
func ContainsAny(fields ...schema.FieldAccess) TextSearch {
	return textSearch(queryir.OpContains, fields)
}

// StartsWithAny returns a TextSearch that matches fields starting with
// the text.
func StartsWithAny(fields ...schema.FieldAccess) TextSearch {
	return textSearch(queryir.OpStartsWith, fields)
}

func textSearch(op queryir.Op, fields []schema.FieldAccess) TextSearch {
	return func(text string) queryir.Predicate {
		preds := make([]queryir.Predicate, 0, len(fields))
		for _, f := range fields {
			preds = append(preds, queryir.NewCompare(f, op, text))
		}
		return queryir.OrOf(preds...)
	}
}

func validatePredicate(what string, p queryir.Predicate) error {
	res := queryir.Validate(p)
	if !res.Valid {
		return qerr.New(qerr.CodeConfiguration, "%s: %s", what, strings.Join(res.Problems, "; "))
	}
	return nil
}
