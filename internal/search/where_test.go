package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"

	"github.com/roach88/qsearch/internal/memquery"
	"github.com/roach88/qsearch/internal/qerr"
	"github.com/roach88/qsearch/internal/queryir"
)

func textEngine(t *testing.T, modify func(*Options)) *Engine[myObject] {
	t.Helper()
	opts := DefaultOptions()
	if modify != nil {
		modify(&opts)
	}
	e := newEngine(t, opts)
	e.RegisterWordSearch(ContainsAny(field(t, e, "Text")))
	require.NoError(t, e.RegisterKeyword("happy", compare(t, e, "Mood", Equal, "Happy")))
	require.NoError(t, e.RegisterKeyword("very sad", compare(t, e, "Mood", Equal, "Sad")))
	return e
}

func TestApplyWhere_Term(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
		term   string
		want   []int
	}{
		{"no term keeps everything", nil, "", []int{1, 2, 3, 4, 5, 6}},
		{"single word", nil, "Hej", []int{2, 3}},
		{"words or-ed", nil, "Hello Goddag", []int{1, 5, 6}},
		{"words and-ed", func(o *Options) { o.WordCombiner = And }, "Hello Goddag", []int{}},
		{"words and-ed within one text", func(o *Options) { o.WordCombiner = And }, "Hello World", []int{1, 6}},
		{"keyword", nil, "happy", []int{1, 5}},
		{"keyword ignores case", nil, "HAPPY", []int{1, 5}},
		{"multi word keyword", nil, "very sad", []int{3, 6}},
		{"text or keyword", nil, "Hej happy", []int{1, 2, 3, 5}},
		{"text and keyword", func(o *Options) { o.TextKeywordCombiner = And }, "Hello happy", []int{1}},
		{"surrounding space", nil, "  Goddag \t", []int{5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := textEngine(t, tt.modify)
			got := matching(t, e, &SearchForm{Term: tt.term})
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyWhere_SentenceSearch(t *testing.T) {
	e := newEngine(t, DefaultOptions())
	e.RegisterSentenceSearch(StartsWithAny(field(t, e, "Text")))

	assert.Equal(t, []int{1, 6}, matching(t, e, &SearchForm{Term: "Hello Wor"}))
	assert.Empty(t, matching(t, e, &SearchForm{Term: "World"}))
}

func TestApplyWhere_Hook(t *testing.T) {
	e := newEngine(t, DefaultOptions())
	var seen []string
	e.RegisterApplyWhere(func(_ context.Context, term string, q queryir.Queryable[myObject]) (queryir.Queryable[myObject], error) {
		seen = append(seen, term)
		return q.Where(compare(t, e, "ID", LessThan, 3)), nil
	})

	assert.Equal(t, []int{1, 2}, matching(t, e, &SearchForm{Term: " anything "}))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, matching(t, e, &SearchForm{}))
	assert.Equal(t, []string{"anything"}, seen)

	boom := errors.New("boom")
	e.RegisterApplyWhere(func(context.Context, string, queryir.Queryable[myObject]) (queryir.Queryable[myObject], error) {
		return nil, boom
	})
	_, err := e.ApplyWhere(context.Background(), memquery.New(fixture()), &SearchForm{Term: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestApplyWhere_Comparisons(t *testing.T) {
	tests := []struct {
		name string
		form SearchForm
		want []int
	}{
		{
			name: "equal coerces strings",
			form: SearchForm{Comparisons: []Comparison{{Path: "id", Kind: Equal, Value: "3"}}},
			want: []int{3},
		},
		{
			name: "greater than",
			form: SearchForm{Comparisons: []Comparison{{Path: "ID", Kind: GreaterThan, Value: 4}}},
			want: []int{5, 6},
		},
		{
			name: "nullable field skips nil",
			form: SearchForm{Comparisons: []Comparison{{Path: "Score", Kind: GreaterThanOrEqual, Value: "30"}}},
			want: []int{3, 5},
		},
		{
			name: "starts with",
			form: SearchForm{Comparisons: []Comparison{{Path: "Text", Kind: StartsWith, Value: "He"}}},
			want: []int{1, 2, 3, 6},
		},
		{
			name: "comparisons and-ed",
			form: SearchForm{Comparisons: []Comparison{
				{Path: "Text", Kind: StartsWith, Value: "He"},
				{Path: "ID", Kind: LessThanOrEqual, Value: 2},
			}},
			want: []int{1, 2},
		},
		{
			name: "comparisons or-ed",
			form: SearchForm{FilterComposition: Or, Comparisons: []Comparison{
				{Path: "Text", Kind: Contains, Value: "dag"},
				{Path: "ID", Kind: Equal, Value: 2},
			}},
			want: []int{2, 5},
		},
		{
			name: "term or comparison",
			form: SearchForm{Term: "Goddag", FilterComposition: Or, Comparisons: []Comparison{
				{Path: "ID", Kind: Equal, Value: 3},
			}},
			want: []int{3, 5},
		},
		{
			name: "term and comparison",
			form: SearchForm{Term: "Goddag", Comparisons: []Comparison{
				{Path: "ID", Kind: Equal, Value: 3},
			}},
			want: nil,
		},
		{
			name: "is any of enum names",
			form: SearchForm{Comparisons: []Comparison{{Path: "Mood", Kind: IsAnyOf, Value: []string{"haha", "Sad"}}}},
			want: []int{2, 3, 4, 6},
		},
		{
			name: "is any of empty list",
			form: SearchForm{Comparisons: []Comparison{{Path: "ID", Kind: IsAnyOf, Value: []int{}}}},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := textEngine(t, nil)
			got := matching(t, e, &tt.form)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyWhere_IsAnyOfEnum(t *testing.T) {
	e := newEngine(t, DefaultOptions())
	for _, path := range []string{"Mood", "Alt"} {
		t.Run(path, func(t *testing.T) {
			form := &SearchForm{Comparisons: []Comparison{{Path: path, Kind: IsAnyOf, Value: []any{"Haha"}}}}
			assert.Equal(t, []int{2, 4}, matching(t, e, form))
		})
	}
}

func TestApplyWhere_ComparisonErrors(t *testing.T) {
	tests := []struct {
		name  string
		cmp   Comparison
		check func(error) bool
	}{
		{"unknown path", Comparison{Path: "Nope", Kind: Equal, Value: 1}, qerr.IsPathResolution},
		{"unknown kind", Comparison{Path: "ID", Kind: ComparisonKind(99), Value: 1}, qerr.IsConfiguration},
		{"bad number", Comparison{Path: "ID", Kind: Equal, Value: "abc"}, qerr.IsValueCoercion},
		{"textual on int", Comparison{Path: "ID", Kind: Contains, Value: "1"}, qerr.IsValueCoercion},
		{"textual without value", Comparison{Path: "Text", Kind: StartsWith}, qerr.IsValueCoercion},
		{"is any of scalar", Comparison{Path: "Mood", Kind: IsAnyOf, Value: "Haha"}, qerr.IsValueCoercion},
		{"is any of unknown name", Comparison{Path: "Mood", Kind: IsAnyOf, Value: []string{"Grumpy"}}, qerr.IsValueCoercion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, DefaultOptions())
			_, err := e.ApplyWhere(context.Background(), memquery.New(fixture()), &SearchForm{Comparisons: []Comparison{tt.cmp}})
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Equal(t, tt.cmp.Path, errPath(err))
		})
	}
}

func errPath(err error) string {
	var qe *qerr.Error
	if errors.As(err, &qe) {
		return qe.Path
	}
	return ""
}

func localizedEngine(t *testing.T, loc Localizer) *Engine[myObject] {
	t.Helper()
	opts := DefaultOptions()
	opts.Localizer = loc
	opts.Culture = language.English
	e := newEngine(t, opts)
	require.NoError(t, e.RegisterLocalizedKeyword("happy", compare(t, e, "Mood", Equal, "Happy")))
	return e
}

func TestApplyWhere_LocalizedKeyword(t *testing.T) {
	b := catalog.NewBuilder()
	require.NoError(t, b.SetString(language.English, "happy", "happy"))
	require.NoError(t, b.SetString(language.Danish, "happy", "glad"))
	e := localizedEngine(t, CatalogLocalizer{Catalog: b})

	danish := WithCulture(context.Background(), language.Danish)
	assert.Equal(t, []int{1, 5}, matchingCtx(t, danish, e, &SearchForm{Term: "Glad"}))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, matchingCtx(t, danish, e, &SearchForm{Term: "happy"}))

	// Without a culture in the context the configured culture applies.
	assert.Equal(t, []int{1, 5}, matching(t, e, &SearchForm{Term: "happy"}))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, matching(t, e, &SearchForm{Term: "glad"}))
}

type countingLocalizer struct {
	calls atomic.Int32
}

func (l *countingLocalizer) Localize(_, key string, culture language.Tag) string {
	l.calls.Add(1)
	return key + "-" + culture.String()
}

func TestApplyWhere_CultureCacheConcurrent(t *testing.T) {
	loc := &countingLocalizer{}
	e := localizedEngine(t, loc)
	cultures := []language.Tag{language.Danish, language.German}

	var wg sync.WaitGroup
	results := make([][]int, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			culture := cultures[i%len(cultures)]
			ctx := WithCulture(context.Background(), culture)
			q, err := e.ApplyWhere(ctx, memquery.New(fixture()), &SearchForm{Term: "happy-" + culture.String()})
			if err != nil {
				return
			}
			items, err := q.List(ctx)
			if err != nil {
				return
			}
			results[i] = ids(items)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, []int{1, 5}, got)
	}
	assert.Equal(t, int32(len(cultures)), loc.calls.Load())
}
