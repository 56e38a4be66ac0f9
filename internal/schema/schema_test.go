package schema

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qsearch/internal/qerr"
)

type address struct {
	City    string
	ZipCode string `db:"zip"`
}

type audit struct {
	CreatedAt time.Time `db:"created_at"`
}

type customer struct {
	audit
	ID      int    `db:"id"`
	Name    string `db:"name"`
	Home    *address
	Work    address
	Secret  string `db:"-"`
	private string
}

func TestOf_Fields(t *testing.T) {
	s, err := Of[customer]()
	require.NoError(t, err)

	var names []string
	for _, f := range s.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"CreatedAt", "ID", "Name", "Home", "Work"}, names)

	f, ok := s.FieldByColumn("CREATED_AT")
	require.True(t, ok)
	assert.Equal(t, "CreatedAt", f.Name)

	_, ok = s.Field("secret")
	assert.False(t, ok)
}

func TestOf_NotStruct(t *testing.T) {
	_, err := Of[int]()
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	s := MustOf[customer]()

	tests := []struct {
		path   string
		want   string
		column string
		typ    reflect.Type
	}{
		{"name", "Name", "name", reflect.TypeOf("")},
		{"ID", "ID", "id", reflect.TypeOf(0)},
		{"home.city", "Home.City", "", reflect.TypeOf("")},
		{"Work.zipcode", "Work.ZipCode", "", reflect.TypeOf("")},
		{"createdat", "CreatedAt", "created_at", reflect.TypeOf(time.Time{})},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			a, err := s.Resolve(tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.want, a.Path)
			assert.Equal(t, tc.column, a.Column)
			assert.Equal(t, tc.typ, a.Type)
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	s := MustOf[customer]()

	for _, path := range []string{"", "Nope", "Home.Nope", "Name.Length", "Home..City", "Secret"} {
		t.Run(path, func(t *testing.T) {
			_, err := s.Resolve(path)
			require.Error(t, err)
			assert.True(t, qerr.IsPathResolution(err), "got %v", err)
		})
	}
}

type ambiguous struct {
	Id int
	ID int
}

func TestResolve_Ambiguous(t *testing.T) {
	s := MustOf[ambiguous]()
	_, err := s.Resolve("id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestFieldAccess_Value(t *testing.T) {
	s := MustOf[customer]()
	c := customer{ID: 4, Name: "Ada", Work: address{City: "Aarhus"}}
	c.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	name, _ := s.Resolve("Name")
	home, _ := s.Resolve("Home.City")
	work, _ := s.Resolve("Work.City")
	created, _ := s.Resolve("CreatedAt")

	assert.Equal(t, "Ada", name.Value(c))
	assert.Equal(t, "Ada", name.Value(&c))
	assert.Nil(t, home.Value(c), "nil pointer along the path reads as nil")
	assert.Equal(t, "Aarhus", work.Value(c))
	assert.Equal(t, c.CreatedAt, created.Value(c))

	c.Home = &address{City: "Odense"}
	assert.Equal(t, "Odense", home.Value(c))
}

func TestRecord(t *testing.T) {
	s, err := NewRecord("documents",
		Field{Name: "Id", Column: "id", Type: reflect.TypeOf(int64(0))},
		Field{Name: "Title", Column: "title", Type: reflect.TypeOf("")},
		Field{Name: "Rating", Type: reflect.TypeOf((*float64)(nil))},
	)
	require.NoError(t, err)
	assert.True(t, s.IsRecord())

	a, err := s.Resolve("title")
	require.NoError(t, err)
	assert.Equal(t, "Title", a.Path)
	assert.Equal(t, "title", a.Column)

	rec := Record{"Title": "Go"}
	assert.Equal(t, "Go", a.Value(rec))

	rating, err := s.Resolve("rating")
	require.NoError(t, err)
	assert.Nil(t, rating.Value(rec))
	assert.Equal(t, "Rating", rating.Column)

	_, err = NewRecord("bad", Field{Name: "A", Type: reflect.TypeOf(0)}, Field{Name: "a", Type: reflect.TypeOf(0)})
	assert.Error(t, err)
}

func TestAssign(t *testing.T) {
	s := MustOf[customer]()
	var c customer

	ok, err := s.Assign(&c, "id", int64(7))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, c.ID)

	ok, err = s.Assign(&c, "name", []byte("Bob"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Bob", c.Name)

	ok, err = s.Assign(&c, "unknown", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Assign(&c, "id", "x")
	assert.Error(t, err)

	rs, err := NewRecord("r", Field{Name: "Id", Column: "id", Type: reflect.TypeOf(0)})
	require.NoError(t, err)
	var rec Record
	_, err = rs.Assign(&rec, "ID", int64(3))
	require.NoError(t, err)
	assert.Equal(t, Record{"Id": 3}, rec)
}
