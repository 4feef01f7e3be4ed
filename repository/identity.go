package repository

import (
	"fmt"
	"reflect"
)

// Identifiable records report their own identifier.
type Identifiable interface {
	GetID() string
}

// ExtractID returns the identifier of record. It prefers Identifiable and
// otherwise looks for an exported ID or Id field through reflection.
func ExtractID(record any) (string, error) {
	if r, ok := record.(Identifiable); ok {
		return r.GetID(), nil
	}

	v := reflect.ValueOf(record)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "", fmt.Errorf("no ID field found in nil record")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", fmt.Errorf("no ID field found in %s", v.Kind())
	}

	for _, fieldName := range []string{"ID", "Id"} {
		field := v.FieldByName(fieldName)
		if !field.IsValid() || !field.CanInterface() {
			continue
		}
		if s, ok := field.Interface().(fmt.Stringer); ok {
			return s.String(), nil
		}
		return fmt.Sprintf("%v", field.Interface()), nil
	}
	return "", fmt.Errorf("no ID field found in %s", v.Type())
}
