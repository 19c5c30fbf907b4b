package filter

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultWildcard is the expression key matching against any property of an item.
	DefaultWildcard = "$"
	// DefaultPrivatePrefix marks item properties that are invisible to the filter.
	DefaultPrivatePrefix = "$"
	// DefaultMaxDepth limits how deep items and expressions are descended into.
	DefaultMaxDepth = 100
)

// Option configures a Filter.
type Option func(*Filter)

// WithComparator sets the Comparator used for leaf values. Defaults to Substring.
func WithComparator(c Comparator) Option {
	return func(f *Filter) {
		if c != nil {
			f.comparator = c
		}
	}
}

// WithWildcard sets the expression key matching against any property. An empty key disables it.
func WithWildcard(key string) Option {
	return func(f *Filter) {
		f.wildcard = key
	}
}

// WithPrivatePrefix sets the prefix of item properties the filter never looks at.
// An empty prefix makes all properties visible.
func WithPrivatePrefix(prefix string) Option {
	return func(f *Filter) {
		f.privatePrefix = prefix
	}
}

// WithInspector replaces the reflection based property enumeration.
func WithInspector(i Inspector) Option {
	return func(f *Filter) {
		if i != nil {
			f.inspector = i
		}
	}
}

// WithMaxDepth sets the maximum nesting depth the filter descends into. Anything deeper doesn't match.
// Zero disables the limit, which is only safe for acyclic items.
func WithMaxDepth(depth int) Option {
	return func(f *Filter) {
		f.maxDepth = depth
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(f *Filter) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// Filter is a compiled Expression.
//
// A Filter never modifies the items it is evaluated against and holds no state between evaluations,
// so it's safe for concurrent use.
type Filter struct {
	comparator    Comparator
	inspector     Inspector
	wildcard      string
	privatePrefix string
	maxDepth      int
	logger        *zap.SugaredLogger

	match Predicate
}

// New compiles the given expression into a Filter. A nil expression matches everything.
func New(expr Expression, opts ...Option) *Filter {
	f := &Filter{
		comparator:    Substring,
		inspector:     defaultInspector,
		wildcard:      DefaultWildcard,
		privatePrefix: DefaultPrivatePrefix,
		maxDepth:      DefaultMaxDepth,
		logger:        zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(f)
	}

	f.match = f.compile(expr)
	f.logger.Debugw("Compiled filter expression", zap.String("kind", describe(expr)))

	return f
}

// Eval reports whether the item at the given index of items matches this filter.
// Errors are only returned by caller supplied predicates and comparators, unchanged.
func (f *Filter) Eval(item any, index int, items []any) (bool, error) {
	return f.match(item, index, items)
}

// Matches evaluates this filter against a single item that isn't part of any collection.
func (f *Filter) Matches(item any) (bool, error) {
	return f.match(item, 0, []any{item})
}

// Apply returns the items matching expr in their original order.
//
// The returned slice is always newly allocated and contains the very same elements as items,
// which is never modified. On error, nil is returned together with the error of the failing
// predicate or comparator.
func Apply[T any](items []T, expr Expression, opts ...Option) ([]T, error) {
	f := New(expr, opts...)

	matched, err := ApplyRule(items, f)
	if err != nil {
		return nil, err
	}

	f.logger.Debugw("Filtered items", zap.Int("items", len(items)), zap.Int("matched", len(matched)))

	return matched, nil
}

// ApplyRule returns the items the given rule evaluates to true for in their original order.
func ApplyRule[T any](items []T, rule Rule) ([]T, error) {
	view := make([]any, len(items))
	for i, item := range items {
		view[i] = item
	}

	matched := make([]T, 0, len(items))
	for i, item := range items {
		ok, err := rule.Eval(view[i], i, view)
		if err != nil {
			return nil, err
		}

		if ok {
			matched = append(matched, item)
		}
	}

	return matched, nil
}

func matchAll(any, int, []any) (bool, error) { return true, nil }

func matchNone(any, int, []any) (bool, error) { return false, nil }

// compile turns the given expression into a Predicate.
func (f *Filter) compile(expr Expression) Predicate {
	switch e := expr.(type) {
	case nil:
		return matchAll
	case Predicate:
		if e == nil {
			return matchAll
		}

		return e
	case Text:
		if s, ok := e.Value.(string); e.Value == nil || (ok && s == "") {
			return matchAll
		}

		if kindOf(e.Value) == noKind {
			return matchNone
		}

		return func(item any, _ int, _ []any) (bool, error) {
			return f.deepCompare(item, e.Value, true, false, 0)
		}
	case Fields:
		rec, ok := f.inspector.Record(e.Value)
		if !ok {
			return matchNone
		}

		if !f.constrains(rec) {
			return matchAll
		}

		return func(item any, _ int, _ []any) (bool, error) {
			return f.deepCompare(item, e.Value, false, false, 0)
		}
	default:
		return matchNone
	}
}

// absent is the value of a property an item doesn't have.
type absent struct{}

// deepCompare matches the actual item value against the expected expression value.
//
// With anyProperty set, expected is searched for in all visible properties of actual. With skipWhole
// set, actual itself isn't compared against expected when none of its properties matched.
func (f *Filter) deepCompare(actual, expected any, anyProperty, skipWhole bool, depth int) (bool, error) {
	if f.maxDepth > 0 && depth > f.maxDepth {
		return false, nil
	}

	if s, ok := expected.(string); ok && strings.HasPrefix(s, "!") {
		matched, err := f.deepCompare(actual, s[1:], anyProperty, skipWhole, depth)
		if err != nil {
			return false, err
		}

		return !matched, nil
	}

	if _, ok := actual.(absent); ok {
		return false, nil
	}

	if f.inspector.Callable(actual) {
		return false, nil
	}

	if list, ok := f.inspector.List(actual); ok {
		for _, elem := range list {
			matched, err := f.deepCompare(elem, expected, anyProperty, false, depth+1)
			if err != nil || matched {
				return matched, err
			}
		}

		return false, nil
	}

	rec, ok := f.inspector.Record(actual)
	if !ok {
		return f.comparator.Compare(actual, expected)
	}

	if anyProperty {
		var matched bool
		var err error
		f.visible(rec, func(_ string, value any) bool {
			matched, err = f.deepCompare(value, expected, true, false, depth+1)
			return err == nil && !matched
		})

		if err != nil || matched || skipWhole {
			return matched, err
		}

		return f.deepCompare(actual, expected, false, false, depth)
	}

	if expectedRec, ok := f.inspector.Record(expected); ok {
		return f.matchFields(actual, rec, expectedRec, depth)
	}

	return f.comparator.Compare(actual, expected)
}

// matchFields reports whether every constraining key of expected matches rec, the Record of actual.
func (f *Filter) matchFields(actual any, rec, expected Record, depth int) (bool, error) {
	matched := true
	var err error
	expected.Range(func(key string, value any) bool {
		if value == nil || f.inspector.Callable(value) {
			return true
		}

		if f.wildcard != "" && key == f.wildcard {
			matched, err = f.deepCompare(actual, value, true, true, depth+1)
		} else {
			matched, err = f.deepCompare(f.lookup(rec, key), value, false, false, depth+1)
		}

		return err == nil && matched
	})

	if err != nil {
		return false, err
	}

	return matched, nil
}

// lookup returns the value of the named property of rec, or absent if it's missing or invisible.
// The key is always a single property name, dots included.
func (f *Filter) lookup(rec Record, key string) any {
	if f.isPrivate(key) {
		return absent{}
	}

	v, ok := rec.Get(key)
	if !ok || f.inspector.Callable(v) {
		return absent{}
	}

	return v
}

// visible calls fn for every property of rec that isn't private or callable until fn returns false.
func (f *Filter) visible(rec Record, fn func(key string, value any) bool) {
	rec.Range(func(key string, value any) bool {
		if f.isPrivate(key) || f.inspector.Callable(value) {
			return true
		}

		return fn(key, value)
	})
}

func (f *Filter) isPrivate(key string) bool {
	return f.privatePrefix != "" && strings.HasPrefix(key, f.privatePrefix)
}

// constrains reports whether the given expression record has at least one key that isn't ignored.
func (f *Filter) constrains(expected Record) bool {
	found := false
	expected.Range(func(_ string, value any) bool {
		found = value != nil && !f.inspector.Callable(value)
		return !found
	})

	return found
}

// describe returns a short name of the kind of the given expression for log output.
func describe(expr Expression) string {
	switch expr.(type) {
	case nil:
		return "none"
	case Text:
		return "text"
	case Fields:
		return "fields"
	case Predicate:
		return "predicate"
	default:
		return "unknown"
	}
}
