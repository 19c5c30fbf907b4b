package filter

import (
	"encoding"
	"reflect"
	"strings"

	"github.com/icinga/icinga-filter/internal/utils"
	"golang.org/x/exp/slices"
)

// defaultInspector looks at values through reflection.
var defaultInspector Inspector = reflectInspector{}

// DefaultInspector returns the reflection based Inspector used unless WithInspector is given.
//
// Records are Record implementations, maps with string keys and structs. Lists are slices and arrays,
// except for byte slices. Pointers and interfaces are followed, values implementing
// encoding.TextMarshaler are scalars.
func DefaultInspector() Inspector {
	return defaultInspector
}

type reflectInspector struct{}

func (reflectInspector) Record(v any) (Record, bool) {
	switch r := v.(type) {
	case Record:
		return r, true
	case map[string]any:
		return stringMap(r), true
	case encoding.TextMarshaler:
		return nil, false
	}

	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		return nil, false
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return mapRecord{v: rv}, true
		}
	case reflect.Struct:
		if rv.CanInterface() {
			if _, ok := rv.Interface().(encoding.TextMarshaler); ok {
				return nil, false
			}
		}

		return structRecord{v: rv}, true
	}

	return nil, false
}

func (reflectInspector) List(v any) ([]any, bool) {
	if l, ok := v.([]any); ok {
		return l, true
	}

	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		return nil, false
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}

		elems := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if elem := rv.Index(i); elem.CanInterface() {
				elems = append(elems, elem.Interface())
			}
		}

		return elems, true
	}

	return nil, false
}

func (reflectInspector) Callable(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}

// indirect follows pointers and interfaces until it reaches a concrete value.
// Returns the zero reflect.Value for nil pointers and interfaces.
func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}

		rv = rv.Elem()
	}

	return rv
}

type stringMap map[string]any

func (m stringMap) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

func (m stringMap) Range(fn func(key string, value any) bool) {
	utils.IterateOrderedMap(map[string]any(m))(fn)
}

// mapRecord is the Record view of any map with string keys other than map[string]any.
type mapRecord struct {
	v reflect.Value
}

func (m mapRecord) Get(key string) (any, bool) {
	v := m.v.MapIndex(reflect.ValueOf(key).Convert(m.v.Type().Key()))
	if !v.IsValid() {
		return nil, false
	}

	return v.Interface(), true
}

func (m mapRecord) Range(fn func(key string, value any) bool) {
	keys := m.v.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) bool { return a.String() < b.String() })

	for _, k := range keys {
		if !fn(k.String(), m.v.MapIndex(k).Interface()) {
			return
		}
	}
}

// structRecord is the Record view of a struct value.
//
// Exported fields are own properties, fields promoted from embedded structs are inherited ones.
type structRecord struct {
	v reflect.Value
}

func (s structRecord) Get(key string) (v any, found bool) {
	s.Range(func(name string, value any) bool {
		if name == key {
			v, found = value, true
			return false
		}

		return true
	})

	return v, found
}

func (s structRecord) Range(fn func(key string, value any) bool) {
	for _, field := range reflect.VisibleFields(s.v.Type()) {
		if !field.IsExported() || field.Anonymous {
			continue
		}

		name := fieldName(field)
		if name == "" {
			continue
		}

		fv, err := s.v.FieldByIndexErr(field.Index)
		if err != nil || !fv.CanInterface() {
			// Promoted through a nil embedded pointer or an unexported embedded struct.
			continue
		}

		if !fn(name, fv.Interface()) {
			return
		}
	}
}

// fieldName returns the property name of the given struct field.
// The json tag takes precedence over the yaml tag, empty string means the field is hidden.
func fieldName(field reflect.StructField) string {
	for _, tag := range []string{"json", "yaml"} {
		if v, ok := field.Tag.Lookup(tag); ok {
			name, _, _ := strings.Cut(v, ",")
			if name == "-" {
				return ""
			}

			if name != "" {
				return name
			}
		}
	}

	return field.Name
}

var (
	_ Record = stringMap(nil)
	_ Record = mapRecord{}
	_ Record = structRecord{}
)
