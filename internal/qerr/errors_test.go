package qerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := New(CodePathResolution, "unknown field %q", "Nme").WithPath("Nme")
	assert.Equal(t, `PATH_RESOLUTION: unknown field "Nme" (path "Nme")`, err.Error())

	cause := errors.New("boom")
	wrapped := Wrap(CodeValueCoercion, cause, "convert")
	assert.Equal(t, "VALUE_COERCION: convert: boom", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestIsHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"configuration", New(CodeConfiguration, "x"), IsConfiguration},
		{"path", New(CodePathResolution, "x"), IsPathResolution},
		{"coercion", New(CodeValueCoercion, "x"), IsValueCoercion},
		{"sort", New(CodeUnsupportedSort, "x"), IsUnsupportedSort},
		{"pagination", New(CodePaginationValidation, "x"), IsPaginationValidation},
		{"rewrite", New(CodeRewrite, "x"), IsRewrite},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.check(tc.err))
			assert.True(t, tc.check(fmt.Errorf("outer: %w", tc.err)))
			assert.False(t, tc.check(errors.New("plain")))
		})
	}
}

func TestIs_NestedCodes(t *testing.T) {
	inner := New(CodePathResolution, "unknown field")
	outer := Wrap(CodeUnsupportedSort, inner, "cannot sort")

	assert.True(t, IsUnsupportedSort(outer))
	assert.True(t, IsPathResolution(outer))
	assert.False(t, IsRewrite(outer))
	assert.Equal(t, CodeUnsupportedSort, CodeOf(outer))
	assert.True(t, errors.Is(outer, &Error{Code: CodePathResolution}))
}
