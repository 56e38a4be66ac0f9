// Package qerr defines the failure taxonomy shared by the search packages.
//
// Every composition failure is a *Error carrying a Code. Failures are
// synchronous and never retried. Errors returned by an executor (count,
// materialization) are passed through untouched and never wrapped in *Error.
package qerr

import (
	"errors"
	"fmt"
)

// Code identifies the kind of composition failure.
type Code string

const (
	// CodeConfiguration indicates a missing registration, invalid mode, or
	// a form that lacks a capability the provider needs.
	CodeConfiguration Code = "CONFIGURATION"

	// CodePathResolution indicates an unknown field path.
	CodePathResolution Code = "PATH_RESOLUTION"

	// CodeValueCoercion indicates a filter value that cannot be converted
	// to the resolved field type.
	CodeValueCoercion Code = "VALUE_COERCION"

	// CodeUnsupportedSort indicates a sort over a path with no accessor and
	// no manual sort extension.
	CodeUnsupportedSort Code = "UNSUPPORTED_SORT"

	// CodePaginationValidation indicates a page size that is missing or not
	// allowed by the pagination mode.
	CodePaginationValidation Code = "PAGINATION_VALIDATION"

	// CodeRewrite indicates the full-text splice did not find the
	// structural markers it expects in rendered statement text.
	CodeRewrite Code = "REWRITE"
)

// Error is a composition failure.
type Error struct {
	Code    Code
	Message string
	Path    string // field path involved, when there is one
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Path != "" {
		msg += fmt.Sprintf(" (path %q)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Code. This lets
// callers match a kind with errors.Is(err, &qerr.Error{Code: ...}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates an *Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error that wraps a cause.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithPath returns a copy of e carrying the given field path.
func (e *Error) WithPath(path string) *Error {
	c := *e
	c.Path = path
	return &c
}

// CodeOf returns the Code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ""
}

func is(err error, code Code) bool {
	var qe *Error
	for err != nil {
		if !errors.As(err, &qe) {
			return false
		}
		if qe.Code == code {
			return true
		}
		err = qe.Err
	}
	return false
}

// IsConfiguration reports whether err is a configuration failure.
func IsConfiguration(err error) bool { return is(err, CodeConfiguration) }

// IsPathResolution reports whether err is an unknown field path.
func IsPathResolution(err error) bool { return is(err, CodePathResolution) }

// IsValueCoercion reports whether err is a value conversion failure.
func IsValueCoercion(err error) bool { return is(err, CodeValueCoercion) }

// IsUnsupportedSort reports whether err is an unsupported sort.
func IsUnsupportedSort(err error) bool { return is(err, CodeUnsupportedSort) }

// IsPaginationValidation reports whether err is a rejected pagination request.
func IsPaginationValidation(err error) bool { return is(err, CodePaginationValidation) }

// IsRewrite reports whether err is a failed full-text splice.
func IsRewrite(err error) bool { return is(err, CodeRewrite) }
