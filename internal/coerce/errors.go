package coerce

import (
	"fmt"
	"reflect"
)

func errOverflow(v any, t reflect.Type) error {
	return fmt.Errorf("%v overflows %s", v, t)
}

func errUnsupported(from, to reflect.Type) error {
	return fmt.Errorf("no conversion from %s to %s", from, to)
}
