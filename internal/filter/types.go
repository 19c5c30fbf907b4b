package filter

import (
	"fmt"
	"reflect"
)

// Expression is the filter criterion. It is one of Text, Fields or Predicate.
type Expression interface {
	expression()
}

// Text matches its Value against every visible property of an item.
// A string Value prefixed with "!" negates the match of the remaining string.
type Text struct {
	Value any
}

// Fields matches a record-shaped Value key by key against the properties of an item.
type Fields struct {
	Value any
}

// Predicate is used as is and bypasses any structural matching.
type Predicate func(item any, index int, items []any) (bool, error)

// nothing is the expression unknown shapes degrade to.
type nothing struct{}

func (Text) expression()      {}
func (Fields) expression()    {}
func (Predicate) expression() {}
func (nothing) expression()   {}

// NewExpression derives an Expression from untyped data such as a decoded YAML document.
//
// Scalars become Text, record-shaped values Fields and predicate functions a Predicate.
// nil yields a nil Expression, which matches everything. Any other shape yields an
// Expression matching nothing.
func NewExpression(v any) Expression {
	switch e := v.(type) {
	case nil:
		return nil
	case Expression:
		return e
	case func(any, int, []any) (bool, error):
		return Predicate(e)
	case func(any, int, []any) bool:
		return Predicate(func(item any, index int, items []any) (bool, error) {
			return e(item, index, items), nil
		})
	case func(any) bool:
		return Predicate(func(item any, _ int, _ []any) (bool, error) {
			return e(item), nil
		})
	}

	if _, ok := scalarString(v); ok {
		return Text{Value: v}
	}

	if _, ok := defaultInspector.Record(v); ok {
		return Fields{Value: v}
	}

	return nothing{}
}

// Object is a record whose properties are Props plus everything inherited from Proto.
// Own properties shadow inherited ones of the same name.
type Object struct {
	Props map[string]any
	Proto *Object
}

// NewObject returns an Object with the given own properties and prototype.
func NewObject(props map[string]any, proto *Object) *Object {
	return &Object{Props: props, Proto: proto}
}

// Get implements the Record interface.
func (o *Object) Get(key string) (any, bool) {
	for obj := o; obj != nil; obj = obj.Proto {
		if v, ok := obj.Props[key]; ok {
			return v, true
		}
	}

	return nil, false
}

// Range implements the Record interface.
// Own properties are visited first, then the ones of each prototype not shadowed so far.
func (o *Object) Range(fn func(key string, value any) bool) {
	seen := make(map[string]struct{})
	for obj := o; obj != nil; obj = obj.Proto {
		stopped := false
		mapRecord{v: reflect.ValueOf(obj.Props)}.Range(func(key string, value any) bool {
			if _, ok := seen[key]; ok {
				return true
			}
			seen[key] = struct{}{}

			if !fn(key, value) {
				stopped = true
				return false
			}

			return true
		})

		if stopped {
			return
		}
	}
}

// LogicalOp is a type used for grouping the logical operators of a filter chain.
type LogicalOp string

const (
	// None represents a filter chain type that matches when none of its ruleset matches.
	None LogicalOp = "!"
	// All represents a filter chain type that matches when all of its ruleset matches.
	All LogicalOp = "&"
	// Any represents a filter chain type that matches when at least one of its ruleset matches.
	Any LogicalOp = "|"
)

// Chain is a filter type that wraps other filter rules and itself.
// Therefore, it implements the Rule interface to allow it to be part of its ruleset.
type Chain struct {
	op    LogicalOp // The filter chain operator to be used to evaluate the rules
	rules []Rule
}

// NewChain creates a new Chain of the given rules.
func NewChain(op LogicalOp, rules ...Rule) (*Chain, error) {
	switch op {
	case None, All, Any:
		return &Chain{op: op, rules: rules}, nil
	default:
		return nil, fmt.Errorf("invalid logical operator provided: %q", op)
	}
}

// Add appends the given rule to the ruleset of this chain.
func (c *Chain) Add(rule Rule) {
	c.rules = append(c.rules, rule)
}

// Op returns the logical operator of this chain.
func (c *Chain) Op() LogicalOp {
	return c.op
}

// Eval evaluates the filter rule sets recursively based on their operator type.
func (c *Chain) Eval(item any, index int, items []any) (bool, error) {
	switch c.op {
	case None:
		for _, rule := range c.rules {
			matched, err := rule.Eval(item, index, items)
			if err != nil {
				return false, err
			}

			if matched {
				return false, nil
			}
		}

		return true, nil
	case All:
		for _, rule := range c.rules {
			matched, err := rule.Eval(item, index, items)
			if err != nil {
				return false, err
			}

			if !matched {
				return false, nil
			}
		}

		return true, nil
	case Any:
		for _, rule := range c.rules {
			matched, err := rule.Eval(item, index, items)
			if err != nil {
				return false, err
			}

			if matched {
				return true, nil
			}
		}

		return false, nil
	default:
		return false, fmt.Errorf("invalid logical operator provided: %q", c.op)
	}
}

var (
	_ Record = (*Object)(nil)
	_ Rule   = (*Chain)(nil)
	_ Rule   = (*Filter)(nil)

	_ Expression = Text{}
	_ Expression = Fields{}
	_ Expression = Predicate(nil)
)
