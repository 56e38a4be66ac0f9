package queryir

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Eval reports whether entity satisfies p. A nil predicate is true.
func Eval(p Predicate, entity any) (bool, error) {
	if p == nil {
		return true, nil
	}

	switch pred := p.(type) {
	case *Compare:
		return evalCompare(pred, entity)
	case *And:
		for _, sub := range pred.Predicates {
			ok, err := Eval(sub, entity)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case *Or:
		for _, sub := range pred.Predicates {
			ok, err := Eval(sub, entity)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case *Not:
		ok, err := Eval(pred.Predicate, entity)
		if err != nil {
			return false, err
		}
		return !ok, nil
	default:
		return false, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func evalCompare(c *Compare, entity any) (bool, error) {
	if c.Param == nil {
		return false, fmt.Errorf("compare %s: missing parameter", c.Field.Path)
	}
	left := c.Field.Value(entity)
	right := deref(c.Param.Value)

	if c.Op == OpEqual && (left == nil || right == nil) {
		return left == nil && right == nil, nil
	}
	if left == nil || right == nil {
		return false, nil
	}

	if c.Op.Textual() {
		ls, lok := asString(left)
		rs, rok := asString(right)
		if !lok || !rok {
			return false, fmt.Errorf("compare %s: %s needs string operands", c.Field.Path, c.Op)
		}
		if c.Op == OpStartsWith {
			return strings.HasPrefix(ls, rs), nil
		}
		return strings.Contains(ls, rs), nil
	}

	n, err := CompareValues(left, right)
	if err != nil {
		return false, fmt.Errorf("compare %s: %w", c.Field.Path, err)
	}
	switch c.Op {
	case OpEqual:
		return n == 0, nil
	case OpGreaterThan:
		return n > 0, nil
	case OpGreaterThanOrEqual:
		return n >= 0, nil
	case OpLessThan:
		return n < 0, nil
	case OpLessThanOrEqual:
		return n <= 0, nil
	default:
		return false, fmt.Errorf("compare %s: unsupported operator %d", c.Field.Path, c.Op)
	}
}

// CompareValues orders two field values, returning -1, 0 or 1. Nil sorts
// before any value. Numbers compare across integer and float kinds.
func CompareValues(a, b any) (int, error) {
	a, b = deref(a), deref(b)
	switch {
	case a == nil && b == nil:
		return 0, nil
	case a == nil:
		return -1, nil
	case b == nil:
		return 1, nil
	}

	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, fmt.Errorf("cannot order %T against %T", a, b)
		}
		return ta.Compare(tb), nil
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case isInt(va) && isInt(vb):
		return cmp3(va.Int(), vb.Int()), nil
	case isUint(va) && isUint(vb):
		return cmp3(va.Uint(), vb.Uint()), nil
	case isNumber(va) && isNumber(vb):
		return cmp3(toFloat(va), toFloat(vb)), nil
	case va.Kind() == reflect.String && vb.Kind() == reflect.String:
		return strings.Compare(va.String(), vb.String()), nil
	case va.Kind() == reflect.Bool && vb.Kind() == reflect.Bool:
		return cmp3(boolRank(va.Bool()), boolRank(vb.Bool())), nil
	case isByteArray(va) && isByteArray(vb) && va.Len() == vb.Len():
		return bytes.Compare(byteSlice(va), byteSlice(vb)), nil
	}

	if va.Type() == vb.Type() && va.Comparable() && va.Equal(vb) {
		return 0, nil
	}
	return 0, fmt.Errorf("cannot order %T against %T", a, b)
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

func asString(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.String {
		return "", false
	}
	return rv.String(), true
}

type ordered interface {
	~int64 | ~uint64 | ~float64 | ~int
}

func cmp3[N ordered](a, b N) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isInt(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isNumber(v reflect.Value) bool {
	return isInt(v) || isUint(v) || v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64
}

func toFloat(v reflect.Value) float64 {
	switch {
	case isInt(v):
		return float64(v.Int())
	case isUint(v):
		return float64(v.Uint())
	}
	return v.Float()
}

func isByteArray(v reflect.Value) bool {
	return v.Kind() == reflect.Array && v.Type().Elem().Kind() == reflect.Uint8
}

func byteSlice(v reflect.Value) []byte {
	out := make([]byte, v.Len())
	for i := range out {
		out[i] = byte(v.Index(i).Uint())
	}
	return out
}
