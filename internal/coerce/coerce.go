// Package coerce converts loosely typed filter and row values to the
// declared type of an entity field.
package coerce

import (
	"encoding"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/roach88/qsearch/internal/qerr"
)

// Enum is implemented by named integer types whose values may be supplied
// by name. Names match case-insensitively.
//
//	type Mood int
//
//	func (Mood) EnumValues() map[string]int64 {
//	    return map[string]int64{"Happy": 1, "Haha": 2}
//	}
type Enum interface {
	EnumValues() map[string]int64
}

var (
	enumType            = reflect.TypeOf((*Enum)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	timeType            = reflect.TypeOf(time.Time{})
	uuidType            = reflect.TypeOf(uuid.UUID{})
	bytesType           = reflect.TypeOf([]byte(nil))
)

// Nullable reports whether t accepts a nil value.
func Nullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	}
	return false
}

// Underlying strips pointer indirections from t.
func Underlying(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// To converts value to a reflect.Value of exactly type t.
//
// Pointer types are unwrapped and the converted value is re-boxed. Strings
// are parsed into identifiers (uuid.UUID), times (RFC 3339 and the layouts
// cast understands), enum names and encoding.TextUnmarshaler types. A nil
// value is accepted only for nullable types.
func To(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		if Nullable(t) {
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, qerr.New(qerr.CodeValueCoercion, "nil is not a valid %s", t)
	}

	rv := reflect.ValueOf(value)
	if rv.Type() == t {
		return rv, nil
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return To(nil, t)
		}
		return To(rv.Elem().Interface(), t)
	}

	if t.Kind() == reflect.Pointer {
		inner, err := To(value, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(inner)
		return p, nil
	}

	out, err := convert(rv, t)
	if err != nil {
		return reflect.Value{}, qerr.Wrap(qerr.CodeValueCoercion, err, "cannot convert %T to %s", value, t)
	}
	return out, nil
}

// Value is To followed by Interface.
func Value(value any, t reflect.Type) (any, error) {
	rv, err := To(value, t)
	if err != nil {
		return nil, err
	}
	return rv.Interface(), nil
}

func convert(rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	switch {
	case t == uuidType:
		return toUUID(rv)
	case t == timeType:
		tm, err := cast.ToTimeE(rv.Interface())
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(tm), nil
	case t.Implements(enumType) && rv.Kind() == reflect.String && isInteger(t):
		return toEnum(rv.String(), t)
	case reflect.PointerTo(t).Implements(textUnmarshalerType) && rv.Kind() == reflect.String:
		p := reflect.New(t)
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(rv.String())); err != nil {
			return reflect.Value{}, err
		}
		return p.Elem(), nil
	case t == bytesType && rv.Kind() == reflect.String:
		return reflect.ValueOf([]byte(rv.String())), nil
	}

	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		s, err := cast.ToStringE(plain(rv))
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetString(s)
	case reflect.Bool:
		b, err := cast.ToBoolE(plain(rv))
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(plain(rv))
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowInt(n) {
			return reflect.Value{}, errOverflow(n, t)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(plain(rv))
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowUint(n) {
			return reflect.Value{}, errOverflow(n, t)
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(plain(rv))
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowFloat(f) {
			return reflect.Value{}, errOverflow(f, t)
		}
		out.SetFloat(f)
	case reflect.Interface:
		if rv.Type().Implements(t) {
			out.Set(rv)
			return out, nil
		}
		return reflect.Value{}, errUnsupported(rv.Type(), t)
	default:
		if rv.Type().ConvertibleTo(t) {
			return rv.Convert(t), nil
		}
		return reflect.Value{}, errUnsupported(rv.Type(), t)
	}
	return out, nil
}

// plain strips named types down to their builtin kind so cast's type
// switches see int64 rather than a named enum or a defined string type.
func plain(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	}
	return rv.Interface()
}

func toUUID(rv reflect.Value) (reflect.Value, error) {
	switch v := rv.Interface().(type) {
	case string:
		id, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(id), nil
	case []byte:
		if len(v) == 16 {
			id, err := uuid.FromBytes(v)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(id), nil
		}
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(id), nil
	case [16]byte:
		return reflect.ValueOf(uuid.UUID(v)), nil
	}
	if rv.Kind() == reflect.String {
		return toUUID(reflect.ValueOf(rv.String()))
	}
	return reflect.Value{}, errUnsupported(rv.Type(), uuidType)
}

func toEnum(name string, t reflect.Type) (reflect.Value, error) {
	values := reflect.Zero(t).Interface().(Enum).EnumValues()
	name = strings.TrimSpace(name)
	for k, n := range values {
		if strings.EqualFold(k, name) {
			return enumValue(n, t)
		}
	}
	// Numeric strings address declared values only.
	if n, err := cast.ToInt64E(name); err == nil {
		for _, v := range values {
			if v == n {
				return enumValue(n, t)
			}
		}
	}
	return reflect.Value{}, &unknownNameError{name: name, typ: t}
}

func enumValue(n int64, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n < 0 || out.OverflowUint(uint64(n)) {
			return reflect.Value{}, errOverflow(n, t)
		}
		out.SetUint(uint64(n))
	default:
		if out.OverflowInt(n) {
			return reflect.Value{}, errOverflow(n, t)
		}
		out.SetInt(n)
	}
	return out, nil
}

type unknownNameError struct {
	name string
	typ  reflect.Type
}

func (e *unknownNameError) Error() string {
	return "unknown " + e.typ.String() + " name " + strconv.Quote(e.name)
}

func isInteger(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
