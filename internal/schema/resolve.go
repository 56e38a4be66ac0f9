package schema

import (
	"reflect"
	"strings"

	"github.com/roach88/qsearch/internal/coerce"
	"github.com/roach88/qsearch/internal/qerr"
)

// FieldAccess is a resolved, typed reference to a possibly nested field.
// It is immutable and safe to share.
type FieldAccess struct {
	// Path is the canonical dotted path using declared names.
	Path string
	// Type is the declared type of the leaf field.
	Type reflect.Type
	// Column is the leaf storage column for single-segment paths and
	// empty for nested paths.
	Column string

	steps []step
}

type step struct {
	index []int  // struct field index
	key   string // record key
}

// Resolve walks a dotted path from the schema root, matching each segment
// case-insensitively. Results are not cached; callers that resolve the
// same path repeatedly keep the FieldAccess.
func (s *Schema) Resolve(path string) (FieldAccess, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return FieldAccess{}, qerr.New(qerr.CodePathResolution, "empty field path").WithPath(path)
	}
	segments := strings.Split(trimmed, ".")

	var (
		names   []string
		steps   []step
		current = s
		leaf    Field
	)
	for i, seg := range segments {
		if seg == "" {
			return FieldAccess{}, qerr.New(qerr.CodePathResolution, "empty segment in field path").WithPath(path)
		}
		if current == nil {
			return FieldAccess{}, qerr.New(qerr.CodePathResolution,
				"%s has no fields", leaf.Type).WithPath(path)
		}
		if current.ambiguous[fold(seg)] {
			return FieldAccess{}, qerr.New(qerr.CodePathResolution,
				"field %q is ambiguous on %s", seg, current.Name).WithPath(path)
		}
		f, ok := current.Field(seg)
		if !ok {
			return FieldAccess{}, qerr.New(qerr.CodePathResolution,
				"unknown field %q on %s", seg, current.Name).WithPath(path)
		}
		leaf = f
		names = append(names, f.Name)
		if current.IsRecord() {
			steps = append(steps, step{key: f.Name})
		} else {
			steps = append(steps, step{index: f.index})
		}

		if i < len(segments)-1 {
			current = nested(f.Type)
		}
	}

	access := FieldAccess{
		Path:  strings.Join(names, "."),
		Type:  leaf.Type,
		steps: steps,
	}
	if len(steps) == 1 {
		access.Column = leaf.Column
	}
	return access, nil
}

// nested returns the schema of a struct-typed field, or nil when the field
// has no navigable fields.
func nested(t reflect.Type) *Schema {
	t = coerce.Underlying(t)
	if t.Kind() != reflect.Struct {
		return nil
	}
	s, err := FromType(t)
	if err != nil || len(s.fields) == 0 {
		return nil
	}
	return s
}

// Nested reports whether the access crosses more than one field.
func (a FieldAccess) Nested() bool { return len(a.steps) > 1 }

// Valid reports whether the access was produced by Resolve.
func (a FieldAccess) Valid() bool { return len(a.steps) > 0 }

// ValueType is the leaf type with pointer indirections removed.
func (a FieldAccess) ValueType() reflect.Type { return coerce.Underlying(a.Type) }

// Nullable reports whether the leaf field can hold no value.
func (a FieldAccess) Nullable() bool { return coerce.Nullable(a.Type) }

// Value reads the field from entity. Nil pointers anywhere along the path,
// and missing record keys, read as nil. Pointer leaves are dereferenced.
func (a FieldAccess) Value(entity any) any {
	v := reflect.ValueOf(entity)
	for _, st := range a.steps {
		v = indirect(v)
		if !v.IsValid() {
			return nil
		}
		if st.index == nil {
			if v.Kind() != reflect.Map {
				return nil
			}
			v = v.MapIndex(reflect.ValueOf(st.key))
			continue
		}
		if v.Kind() != reflect.Struct {
			return nil
		}
		f, err := v.FieldByIndexErr(st.index)
		if err != nil {
			return nil
		}
		v = f
	}
	v = indirect(v)
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}
