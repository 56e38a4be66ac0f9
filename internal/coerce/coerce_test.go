package coerce

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qsearch/internal/qerr"
)

type mood int

const (
	moodHappy mood = 1
	moodHaha  mood = 2
)

func (mood) EnumValues() map[string]int64 {
	return map[string]int64{"Happy": int64(moodHappy), "Haha": int64(moodHaha)}
}

type level int8

func (level) EnumValues() map[string]int64 {
	return map[string]int64{"Low": 1, "High": 300}
}

type label string

func typeOf[T any]() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func TestTo_Scalars(t *testing.T) {
	tests := []struct {
		name  string
		value any
		typ   reflect.Type
		want  any
	}{
		{"string to int", "42", typeOf[int](), 42},
		{"float to int", 3.0, typeOf[int](), 3},
		{"int to int32", int64(7), typeOf[int32](), int32(7)},
		{"string to float", "2.5", typeOf[float64](), 2.5},
		{"int to string", 12, typeOf[string](), "12"},
		{"string to bool", "true", typeOf[bool](), true},
		{"string to defined string", "x", typeOf[label](), label("x")},
		{"int to uint8", 200, typeOf[uint8](), uint8(200)},
		{"same type", "same", typeOf[string](), "same"},
		{"any target", 5, typeOf[any](), 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Value(tc.value, tc.typ)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTo_Pointers(t *testing.T) {
	got, err := Value("5", typeOf[*int]())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 5, *got.(*int))

	got, err = Value(nil, typeOf[*int]())
	require.NoError(t, err)
	assert.Nil(t, got.(*int))

	n := 9
	got, err = Value(&n, typeOf[int64]())
	require.NoError(t, err)
	assert.Equal(t, int64(9), got)
}

func TestTo_NilIntoValueType(t *testing.T) {
	_, err := Value(nil, typeOf[int]())
	require.Error(t, err)
	assert.True(t, qerr.IsValueCoercion(err))
}

func TestTo_Overflow(t *testing.T) {
	_, err := Value(300, typeOf[int8]())
	require.Error(t, err)
	assert.True(t, qerr.IsValueCoercion(err))
}

func TestTo_Unparseable(t *testing.T) {
	_, err := Value("abc", typeOf[int]())
	require.Error(t, err)
	assert.True(t, qerr.IsValueCoercion(err))
}

func TestTo_UUID(t *testing.T) {
	id := uuid.MustParse("0191d2a4-6c3e-7a1b-8c2d-3e4f5a6b7c8d")

	got, err := Value(" 0191D2A4-6C3E-7A1B-8C2D-3E4F5A6B7C8D ", typeOf[uuid.UUID]())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = Value(id[:], typeOf[uuid.UUID]())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = Value("not-a-uuid", typeOf[uuid.UUID]())
	assert.True(t, qerr.IsValueCoercion(err))
}

func TestTo_Time(t *testing.T) {
	got, err := Value("2024-03-01T10:00:00Z", typeOf[time.Time]())
	require.NoError(t, err)
	assert.True(t, got.(time.Time).Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestTo_EnumNames(t *testing.T) {
	for _, name := range []string{"Haha", "haha", "HAHA"} {
		got, err := Value(name, typeOf[mood]())
		require.NoError(t, err)
		assert.Equal(t, moodHaha, got)
	}

	got, err := Value("1", typeOf[mood]())
	require.NoError(t, err)
	assert.Equal(t, moodHappy, got)

	got, err = Value(2, typeOf[mood]())
	require.NoError(t, err)
	assert.Equal(t, moodHaha, got)

	_, err = Value("Sad", typeOf[mood]())
	require.Error(t, err)
	assert.True(t, qerr.IsValueCoercion(err))
	assert.Contains(t, err.Error(), `"Sad"`)
}

func TestTo_EnumRejectsUndeclaredAndOverflow(t *testing.T) {
	tests := []struct {
		name  string
		value string
		typ   reflect.Type
		want  string
	}{
		{"undeclared number", "7", typeOf[mood](), `"7"`},
		{"negative number", "-1", typeOf[mood](), `"-1"`},
		{"declared name overflows", "High", typeOf[level](), "overflows"},
		{"declared number overflows", "300", typeOf[level](), "overflows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Value(tt.value, tt.typ)
			require.Error(t, err)
			assert.True(t, qerr.IsValueCoercion(err), "unexpected error: %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	got, err := Value("low", typeOf[level]())
	require.NoError(t, err)
	assert.Equal(t, level(1), got)
}

func TestNullable(t *testing.T) {
	assert.True(t, Nullable(typeOf[*int]()))
	assert.True(t, Nullable(typeOf[[]byte]()))
	assert.False(t, Nullable(typeOf[int]()))
	assert.Equal(t, typeOf[int](), Underlying(typeOf[**int]()))
}
