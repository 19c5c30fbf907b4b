// Package document reads filterable items and filter expressions from YAML or JSON documents and writes filter
// results back in either format.
package document

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/icinga/icinga-filter/internal/filter"
	"github.com/pkg/errors"
)

// Format is an output format of Encode.
type Format string

const (
	// YAML writes block style YAML.
	YAML Format = "yaml"
	// JSON writes a JSON array.
	JSON Format = "json"
)

// ParseFormat returns the Format of the given name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case YAML, JSON:
		return f, nil
	default:
		return "", fmt.Errorf("invalid output format provided: %q", name)
	}
}

// DecodeItems reads a collection from the given YAML or JSON document.
//
// A top-level sequence is the collection itself, any other document is a collection of just that one item.
// An empty document is an empty collection.
func DecodeItems(r io.Reader) ([]any, error) {
	doc, err := decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "can't decode items")
	}

	switch items := doc.(type) {
	case nil:
		return []any{}, nil
	case []any:
		return items, nil
	default:
		return []any{items}, nil
	}
}

// DecodeExpression reads a filter expression from the given YAML or JSON document.
//
// Scalars become free text expressions, mappings field expressions. Mind that YAML treats a leading "!"
// as a tag, so negated strings have to be quoted.
func DecodeExpression(r io.Reader) (filter.Expression, error) {
	doc, err := decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "can't decode filter expression")
	}

	return filter.NewExpression(doc), nil
}

// Encode writes the given items to w in the given format.
func Encode(w io.Writer, items []any, format Format) error {
	var opts []yaml.EncodeOption
	switch format {
	case YAML:
	case JSON:
		opts = append(opts, yaml.JSON())
	default:
		return fmt.Errorf("invalid output format provided: %q", format)
	}

	if items == nil {
		items = []any{}
	}

	return errors.Wrapf(yaml.NewEncoder(w, opts...).Encode(items), "can't encode items as %s", format)
}

func decode(r io.Reader) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	return doc, nil
}
