package config

import (
	"reflect"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"
)

// PopulateFromYamlEnvironment overlays target with values from environ whose key starts with prefix.
//
// Keys are built from the upper-cased YAML field names joined by "_", e.g. PREFIX_LOGGING_LEVEL for
// the field tagged "level" within the field tagged "logging". Inlined structs contribute their fields
// directly. Values are parsed as YAML, so quoting keeps them strings. Variables carrying the prefix
// without a matching field are an error, others are ignored.
func PopulateFromYamlEnvironment(prefix string, target any, environ []string) error {
	v := reflect.ValueOf(target)
	if target == nil || v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return errors.Wrapf(ErrInvalidArgument, "expected a non-nil struct pointer, got %T", target)
	}

	paths := make(map[string][]string)
	collectEnvPaths(v.Elem().Type(), prefix, nil, paths)

	tree := make(map[string]any)
	for _, env := range environ {
		key, raw, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, prefix+"_") {
			continue
		}

		path, ok := paths[key]
		if !ok {
			return errors.Errorf("unknown environment variable %q", key)
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return errors.Wrapf(err, "can't parse environment variable %q", key)
		}

		node := tree
		for _, name := range path[:len(path)-1] {
			child, ok := node[name].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[name] = child
			}

			node = child
		}
		node[path[len(path)-1]] = value
	}

	if len(tree) == 0 {
		return nil
	}

	doc, err := yaml.Marshal(tree)
	if err != nil {
		return errors.Wrap(err, "can't encode environment")
	}

	return errors.Wrap(yaml.Unmarshal(doc, target), "can't apply environment")
}

// collectEnvPaths maps each environment key of the YAML-tagged fields of t to its path of YAML names.
func collectEnvPaths(t reflect.Type, prefix string, path []string, paths map[string][]string) {
	for _, field := range reflect.VisibleFields(t) {
		if !field.IsExported() || len(field.Index) > 1 {
			continue
		}

		tag, ok := field.Tag.Lookup("yaml")
		if !ok {
			continue
		}

		name, opts, _ := strings.Cut(tag, ",")
		if name == "-" {
			continue
		}

		ft := field.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}

		if strings.Contains(opts, "inline") {
			if ft.Kind() == reflect.Struct {
				collectEnvPaths(ft, prefix, path, paths)
			}
			continue
		}

		if name == "" {
			name = strings.ToLower(field.Name)
		}

		key := prefix + "_" + strings.ToUpper(name)
		fieldPath := append(append([]string(nil), path...), name)

		if ft.Kind() == reflect.Struct && !isScalarStruct(ft) {
			collectEnvPaths(ft, key, fieldPath, paths)
			continue
		}

		paths[key] = fieldPath
	}
}

// isScalarStruct reports whether values of the struct type t are written as a single YAML scalar.
func isScalarStruct(t reflect.Type) bool {
	unmarshaler := reflect.TypeOf((*interface{ UnmarshalText([]byte) error })(nil)).Elem()

	return reflect.PointerTo(t).Implements(unmarshaler)
}
