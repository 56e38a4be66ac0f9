package schema

import (
	"fmt"
	"reflect"

	"github.com/roach88/qsearch/internal/coerce"
)

// Assign stores a raw storage value into the field mapped to column on the
// entity dst points to. Unknown columns are ignored and report false. A nil
// value stores the field's zero value.
func (s *Schema) Assign(dst any, column string, value any) (bool, error) {
	f, ok := s.FieldByColumn(column)
	if !ok {
		return false, nil
	}

	if s.IsRecord() {
		rec, ok := dst.(*Record)
		if !ok {
			return false, fmt.Errorf("schema %s: assign target %T is not *schema.Record", s.Name, dst)
		}
		if *rec == nil {
			*rec = Record{}
		}
		if value == nil {
			(*rec)[f.Name] = nil
			return true, nil
		}
		v, err := coerce.Value(value, f.Type)
		if err != nil {
			return true, fmt.Errorf("column %s: %w", column, err)
		}
		(*rec)[f.Name] = v
		return true, nil
	}

	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != s.Type {
		return false, fmt.Errorf("schema %s: assign target %T is not *%s", s.Name, dst, s.Type)
	}
	fv, err := rv.Elem().FieldByIndexErr(f.index)
	if err != nil {
		return false, fmt.Errorf("column %s: %w", column, err)
	}
	if value == nil {
		fv.Set(reflect.Zero(f.Type))
		return true, nil
	}
	cv, err := coerce.To(value, f.Type)
	if err != nil {
		return true, fmt.Errorf("column %s: %w", column, err)
	}
	fv.Set(cv)
	return true, nil
}
