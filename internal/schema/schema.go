// Package schema describes entity types for field-path resolution.
//
// A Schema maps declared field names to typed accessors. Schemas are built
// either from a Go struct type (exported fields, optional `db:"column"` tag)
// or declared explicitly for dynamic Record entities. Name lookups are
// case-insensitive.
package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// TagName is the struct tag that carries a field's storage column.
// A value of "-" hides the field from the schema.
const TagName = "db"

// Record is a dynamic entity: declared field name to value.
type Record map[string]any

var recordType = reflect.TypeOf(Record(nil))

// Field is one declared field of a schema.
type Field struct {
	Name   string       // declared name, e.g. "CreatedAt"
	Column string       // storage column, e.g. "created_at"
	Type   reflect.Type // declared Go type, possibly a pointer

	index []int // struct field index; nil for record fields
}

// Schema describes the fields of one entity type.
type Schema struct {
	Name string
	Type reflect.Type

	fields   []Field
	byName   map[string]int
	byColumn map[string]int
	// ambiguous holds folded names declared more than once.
	ambiguous map[string]bool
}

// structCache memoizes descriptors per struct type. Descriptors are
// immutable so sharing them is safe.
var structCache sync.Map // reflect.Type -> *Schema

// Of returns the schema of struct type T.
func Of[T any]() (*Schema, error) {
	return FromType(reflect.TypeOf((*T)(nil)).Elem())
}

// MustOf is Of that panics on error. Intended for package-level schema
// variables of known struct types.
func MustOf[T any]() *Schema {
	s, err := Of[T]()
	if err != nil {
		panic(err)
	}
	return s
}

// FromType returns the schema of a struct type or pointer to struct type.
func FromType(t reflect.Type) (*Schema, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: %s is not a struct type", t)
	}
	if cached, ok := structCache.Load(t); ok {
		return cached.(*Schema), nil
	}

	var fields []Field
	for _, sf := range reflect.VisibleFields(t) {
		if sf.Anonymous || !sf.IsExported() {
			continue
		}
		column := sf.Name
		if tag, ok := sf.Tag.Lookup(TagName); ok {
			name, _, _ := strings.Cut(tag, ",")
			if name == "-" {
				continue
			}
			if name != "" {
				column = name
			}
		}
		fields = append(fields, Field{
			Name:   sf.Name,
			Column: column,
			Type:   sf.Type,
			index:  sf.Index,
		})
	}

	s := build(t.Name(), t, fields)
	actual, _ := structCache.LoadOrStore(t, s)
	return actual.(*Schema), nil
}

// NewRecord declares a schema for Record entities.
func NewRecord(name string, fields ...Field) (*Schema, error) {
	seen := make(map[string]bool, len(fields))
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("schema %s: field without a name", name)
		}
		if f.Type == nil {
			return nil, fmt.Errorf("schema %s: field %s has no type", name, f.Name)
		}
		key := fold(f.Name)
		if seen[key] {
			return nil, fmt.Errorf("schema %s: field %s declared twice", name, f.Name)
		}
		seen[key] = true
		if f.Column == "" {
			f.Column = f.Name
		}
		f.index = nil
		out = append(out, f)
	}
	return build(name, recordType, out), nil
}

func build(name string, t reflect.Type, fields []Field) *Schema {
	s := &Schema{
		Name:      name,
		Type:      t,
		fields:    fields,
		byName:    make(map[string]int, len(fields)),
		byColumn:  make(map[string]int, len(fields)),
		ambiguous: make(map[string]bool),
	}
	for i, f := range fields {
		key := fold(f.Name)
		if _, dup := s.byName[key]; dup {
			s.ambiguous[key] = true
			continue
		}
		s.byName[key] = i
		if _, dup := s.byColumn[fold(f.Column)]; !dup {
			s.byColumn[fold(f.Column)] = i
		}
	}
	return s
}

// IsRecord reports whether the schema describes Record entities.
func (s *Schema) IsRecord() bool { return s.Type == recordType }

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a field by declared name, ignoring case.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.byName[fold(name)]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// FieldByColumn looks up a field by storage column, ignoring case.
func (s *Schema) FieldByColumn(column string) (Field, bool) {
	i, ok := s.byColumn[fold(column)]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

func fold(s string) string { return strings.ToLower(s) }
