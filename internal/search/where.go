package search

import (
	"context"
	"reflect"
	"strings"

	"github.com/roach88/qsearch/internal/coerce"
	"github.com/roach88/qsearch/internal/qerr"
	"github.com/roach88/qsearch/internal/queryir"
)

// ApplyWhere filters q by the form's term and comparisons:
//  1. the apply-where hook runs on a non-empty term
//  2. word predicates fold with WordCombiner; the sentence predicate is
//     or-ed in
//  3. every run of consecutive words that names a keyword or a localized
//     keyword adds its predicate; keyword predicates are and-ed
//  4. text and keyword predicates join with TextKeywordCombiner
//  5. the result and each comparison join with the form's composition
//
// When nothing applies q is returned unchanged.
func (e *Engine[T]) ApplyWhere(ctx context.Context, q queryir.Queryable[T], form FilterForm) (queryir.Queryable[T], error) {
	term := normalizeTerm(form.SearchTerm())

	if e.applyWhere != nil && term != "" {
		var err error
		if q, err = e.applyWhere(ctx, term, q); err != nil {
			return nil, err
		}
	}

	pred, err := e.FilterPredicate(ctx, form)
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return q, nil
	}
	return q.Where(pred), nil
}

// FilterPredicate builds the combined predicate ApplyWhere applies, or nil.
func (e *Engine[T]) FilterPredicate(ctx context.Context, form FilterForm) (queryir.Predicate, error) {
	term := normalizeTerm(form.SearchTerm())
	words := strings.Fields(term)

	var wordPreds []queryir.Predicate
	if e.wordSearch != nil {
		for _, w := range words {
			wordPreds = append(wordPreds, e.wordSearch(w))
		}
	}
	var sentence queryir.Predicate
	if e.sentenceSearch != nil && term != "" {
		sentence = e.sentenceSearch(term)
	}
	text := queryir.OrOf(combine(e.opts.WordCombiner, wordPreds...), sentence)

	keyword := e.keywordPredicate(ctx, words)
	searchPred := combine(e.opts.TextKeywordCombiner, text, keyword)

	comparisons, err := e.comparisonPredicates(form.Filters())
	if err != nil {
		return nil, err
	}
	return combine(form.Composition(), append([]queryir.Predicate{searchPred}, comparisons...)...), nil
}

// keywordPredicate ands the predicates of every keyword named by a run of
// consecutive words.
func (e *Engine[T]) keywordPredicate(ctx context.Context, words []string) queryir.Predicate {
	if len(words) == 0 || (len(e.keywords) == 0 && len(e.localized) == 0) {
		return nil
	}
	localized := e.localizedTable(ctx)

	var matched []queryir.Predicate
	for i := range words {
		for j := i; j < len(words); j++ {
			key := foldKey(strings.Join(words[i:j+1], " "))
			if p, ok := e.keywords[key]; ok {
				matched = append(matched, p)
			}
			if p, ok := localized[key]; ok {
				matched = append(matched, p)
			}
		}
	}
	return queryir.AndOf(matched...)
}

// localizedTable returns the localized keyword table of the active culture.
func (e *Engine[T]) localizedTable(ctx context.Context) map[string]queryir.Predicate {
	if len(e.localized) == 0 {
		return nil
	}
	culture, ok := CultureFrom(ctx)
	if !ok {
		culture = e.opts.Culture
	}
	return e.cultures.get(culture, func() map[string]queryir.Predicate {
		table := make(map[string]queryir.Predicate, len(e.localizedKeys))
		for _, key := range e.localizedKeys {
			word := foldKey(e.localizer.Localize(e.schema.Name, key, culture))
			if word != "" {
				table[word] = e.localized[key]
			}
		}
		return table
	})
}

func (e *Engine[T]) comparisonPredicates(cs []Comparison) ([]queryir.Predicate, error) {
	preds := make([]queryir.Predicate, 0, len(cs))
	for _, c := range cs {
		p, err := e.compileComparison(c)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func (e *Engine[T]) compileComparison(c Comparison) (queryir.Predicate, error) {
	op, known := kindOps[c.Kind]
	if !known && c.Kind != IsAnyOf {
		return nil, qerr.New(qerr.CodeConfiguration, "unknown comparison kind %d", int(c.Kind)).WithPath(c.Path)
	}

	field, err := e.schema.Resolve(c.Path)
	if err != nil {
		return nil, err
	}

	if c.Kind == IsAnyOf {
		values, err := listValues(c.Value)
		if err != nil {
			return nil, qerr.Wrap(qerr.CodeValueCoercion, err, "IsAnyOf").WithPath(c.Path)
		}
		preds := make([]queryir.Predicate, 0, len(values))
		for _, v := range values {
			cv, err := coerce.Value(v, field.Type)
			if err != nil {
				return nil, withPath(err, c.Path)
			}
			preds = append(preds, queryir.NewCompare(field, queryir.OpEqual, cv))
		}
		if len(preds) == 0 {
			return &queryir.Or{}, nil
		}
		return queryir.OrOf(preds...), nil
	}

	if op.Textual() {
		if field.ValueType().Kind() != reflect.String {
			return nil, qerr.New(qerr.CodeValueCoercion, "%s needs a string field, %s is %s",
				c.Kind, field.Path, field.ValueType()).WithPath(c.Path)
		}
		if c.Value == nil {
			return nil, qerr.New(qerr.CodeValueCoercion, "%s needs a value", c.Kind).WithPath(c.Path)
		}
	}

	cv, err := coerce.Value(c.Value, field.Type)
	if err != nil {
		return nil, withPath(err, c.Path)
	}
	return queryir.NewCompare(field, op, cv), nil
}

// listValues expands an IsAnyOf value. Strings and byte slices are not
// lists.
func listValues(v any) ([]any, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, errNotList
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, errNotList
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, errNotList
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

var errNotList = qerr.New(qerr.CodeValueCoercion, "value must be a list")

func withPath(err error, path string) error {
	if qe, ok := err.(*qerr.Error); ok {
		return qe.WithPath(path)
	}
	return err
}

// combine joins predicates with c, dropping nils.
func combine(c Combiner, ps ...queryir.Predicate) queryir.Predicate {
	if c == Or {
		return queryir.OrOf(ps...)
	}
	return queryir.AndOf(ps...)
}
