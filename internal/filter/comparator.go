package filter

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

var (
	// Substring matches when the textual form of the expected value is contained in the one of the
	// actual value, ignoring case. Booleans must be equal and an empty expected value always matches.
	Substring Comparator = substring{}

	// Strict matches strings that are equal ignoring case, numbers of equal value and equal booleans.
	Strict Comparator = strict{}
)

// ComparatorFunc adapts an ordinary function to the Comparator interface.
type ComparatorFunc func(actual, expected any) (bool, error)

// Compare implements the Comparator interface.
func (f ComparatorFunc) Compare(actual, expected any) (bool, error) {
	return f(actual, expected)
}

// ComparatorFromValue maps a loosely typed comparator setting to a Comparator.
//
// nil and false select Substring, true selects Strict. A Comparator or a function taking the actual
// and the expected value is used as a custom comparator.
func ComparatorFromValue(v any) (Comparator, error) {
	switch c := v.(type) {
	case nil:
		return Substring, nil
	case bool:
		if c {
			return Strict, nil
		}

		return Substring, nil
	case Comparator:
		return c, nil
	case func(actual, expected any) (bool, error):
		return ComparatorFunc(c), nil
	case func(actual, expected any) bool:
		return ComparatorFunc(func(actual, expected any) (bool, error) {
			return c(actual, expected), nil
		}), nil
	default:
		return nil, fmt.Errorf("invalid comparator provided: %T", v)
	}
}

// ComparatorFromName returns the built-in Comparator with the given name.
func ComparatorFromName(name string) (Comparator, error) {
	switch strings.ToLower(name) {
	case "", "substring":
		return Substring, nil
	case "strict":
		return Strict, nil
	default:
		return nil, fmt.Errorf("invalid comparator name provided: %q", name)
	}
}

type substring struct{}

func (substring) Compare(actual, expected any) (bool, error) {
	if expected == nil {
		return true, nil
	}

	want, ok := scalarString(expected)
	if !ok {
		return false, nil
	}

	if want == "" {
		return true, nil
	}

	// Records and lists never match here, their default textual form is meaningless.
	have, ok := scalarString(actual)
	if !ok {
		return false, nil
	}

	if kindOf(actual) == boolKind || kindOf(expected) == boolKind {
		return strings.EqualFold(have, want), nil
	}

	return strings.Contains(strings.ToLower(have), strings.ToLower(want)), nil
}

type strict struct{}

func (strict) Compare(actual, expected any) (bool, error) {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil, nil
	}

	switch kind := kindOf(actual); {
	case kind == noKind || kind != kindOf(expected):
		return false, nil
	case kind == numberKind:
		return equalNumbers(indirect(reflect.ValueOf(actual)), indirect(reflect.ValueOf(expected))), nil
	case kind == boolKind:
		return indirect(reflect.ValueOf(actual)).Bool() == indirect(reflect.ValueOf(expected)).Bool(), nil
	default:
		have, _ := scalarString(actual)
		want, _ := scalarString(expected)

		return strings.EqualFold(have, want), nil
	}
}

type scalarKind int

const (
	noKind scalarKind = iota
	stringKind
	boolKind
	numberKind
)

// kindOf classifies v for comparison purposes. Records, lists, functions and nil have noKind.
func kindOf(v any) scalarKind {
	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		// nil, or a nil pointer even if its type implements encoding.TextMarshaler.
		return noKind
	}

	if _, ok := v.(encoding.TextMarshaler); ok {
		return stringKind
	}

	switch rv.Kind() {
	case reflect.String:
		return stringKind
	case reflect.Bool:
		return boolKind
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return numberKind
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return stringKind
		}
	}

	return noKind
}

// scalarString returns the textual form of a scalar value.
// Returns false for anything that isn't a string, boolean, number or encoding.TextMarshaler.
func scalarString(v any) (string, bool) {
	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		return "", false
	}

	switch s := v.(type) {
	case string:
		return s, true
	case encoding.TextMarshaler:
		text, err := s.MarshalText()
		if err != nil {
			return "", false
		}

		return string(text), true
	}

	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, rv.Type().Bits()), true
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes()), true
		}
	}

	return "", false
}

// equalNumbers compares two numeric values regardless of their Go kind.
func equalNumbers(a, b reflect.Value) bool {
	switch {
	case isInt(a) && isInt(b):
		return a.Int() == b.Int()
	case isUint(a) && isUint(b):
		return a.Uint() == b.Uint()
	case isInt(a) && isUint(b):
		return a.Int() >= 0 && uint64(a.Int()) == b.Uint()
	case isUint(a) && isInt(b):
		return b.Int() >= 0 && a.Uint() == uint64(b.Int())
	default:
		x, y := toFloat(a), toFloat(b)
		return x == y && !math.IsNaN(x)
	}
}

func isInt(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	default:
		return false
	}
}

func isUint(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	default:
		return false
	}
}

func toFloat(v reflect.Value) float64 {
	switch {
	case isInt(v):
		return float64(v.Int())
	case isUint(v):
		return float64(v.Uint())
	default:
		return v.Float()
	}
}
