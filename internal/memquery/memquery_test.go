package memquery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qsearch/internal/queryir"
	"github.com/roach88/qsearch/internal/schema"
)

type myObject struct {
	ID   int
	Text string
}

func fixture() []myObject {
	return []myObject{
		{1, "Hello World"},
		{2, "Hejsa"},
		{3, "Hej"},
		{4, "Ni hao"},
		{5, "Goddag"},
		{6, "Hello World"},
	}
}

func key(t *testing.T, path string, dir queryir.Direction) queryir.SortKey {
	t.Helper()
	a, err := schema.MustOf[myObject]().Resolve(path)
	require.NoError(t, err)
	return queryir.KeyOf(a, dir)
}

func ids(items []myObject) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestQuery_Pipeline(t *testing.T) {
	ctx := context.Background()
	text, err := schema.MustOf[myObject]().Resolve("Text")
	require.NoError(t, err)

	q := New(fixture()).
		Where(queryir.NewCompare(text, queryir.OpStartsWith, "H")).
		OrderBy(key(t, "Text", queryir.Descending)).
		ThenBy(key(t, "ID", queryir.Ascending)).
		Skip(1).
		Take(2)

	items, err := q.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 2}, ids(items))

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestQuery_Immutable(t *testing.T) {
	ctx := context.Background()
	base := New(fixture()).OrderBy(key(t, "ID", queryir.Descending))

	first := base.Take(1)
	second := base.Skip(4)

	a, err := first.List(ctx)
	require.NoError(t, err)
	b, err := second.List(ctx)
	require.NoError(t, err)
	all, err := base.List(ctx)
	require.NoError(t, err)

	assert.Equal(t, []int{6}, ids(a))
	assert.Equal(t, []int{2, 1}, ids(b))
	assert.Len(t, all, 6)
}

func TestQuery_OrderByReplaces(t *testing.T) {
	items, err := New(fixture()).
		OrderBy(key(t, "Text", queryir.Ascending)).
		OrderBy(key(t, "ID", queryir.Descending)).
		List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{6, 5, 4, 3, 2, 1}, ids(items))
}

func TestQuery_ThenByWithoutOrderBy(t *testing.T) {
	items, err := New(fixture()).ThenBy(key(t, "ID", queryir.Descending)).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, items[0].ID)
}

func TestQuery_WindowBeyondEnd(t *testing.T) {
	items, err := New(fixture()).Skip(10).Take(3).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestQuery_ManualKey(t *testing.T) {
	_, err := New(fixture()).OrderBy(queryir.ManualKey("Relevance", queryir.Ascending)).List(context.Background())
	assert.Error(t, err)
}

func TestQuery_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(fixture()).Count(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
