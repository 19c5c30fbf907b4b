package filter

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type M = map[string]any

func noop() {}

// mustApply filters items and fails the test on error.
func mustApply(t *testing.T, items []any, expr Expression, opts ...Option) []any {
	t.Helper()

	result, err := Apply(items, expr, opts...)
	require.NoError(t, err, "filtering should not fail")

	return result
}

func TestFilterByString(t *testing.T) {
	t.Parallel()

	items := []any{"MIsKO", M{"name": "shyam"}, []any{"adam"}, 1234}

	assert.Len(t, mustApply(t, items, Text{Value: ""}), 4)
	assert.Len(t, mustApply(t, items, nil), 4)

	assert.Len(t, mustApply(t, items, Text{Value: "iSk"}), 1)
	assert.Equal(t, []any{"MIsKO"}, mustApply(t, items, Text{Value: "isk"}))

	assert.Equal(t, []any{items[1]}, mustApply(t, items, Text{Value: "yam"}))
	assert.Equal(t, []any{items[2]}, mustApply(t, items, Text{Value: "da"}))
	assert.Equal(t, []any{1234}, mustApply(t, items, Text{Value: "34"}))

	assert.Empty(t, mustApply(t, items, Text{Value: "I don't exist"}))
}

func TestFilterDeepObjectByString(t *testing.T) {
	t.Parallel()

	items := []any{
		M{"person": M{"name": "Annet", "email": "annet@example.com"}},
		M{"person": M{"name": "Billy", "email": "me@billy.com"}},
		M{"person": M{"name": "Joan", "email": M{"home": "me@joan.com", "work": "joan@example.net"}}},
	}

	assert.Len(t, mustApply(t, items, Text{Value: "me@joan"}), 1)
	assert.Len(t, mustApply(t, items, Text{Value: "joan@example"}), 1)
}

func TestFilterIgnoresPrivateProperties(t *testing.T) {
	t.Parallel()

	items := []any{M{"$name": "misko"}}
	assert.Empty(t, mustApply(t, items, Text{Value: "misko"}))
	assert.Empty(t, mustApply(t, items, Fields{Value: M{"$name": "misko"}}))
	assert.Empty(t, mustApply(t, items, Fields{Value: M{"$": "misko"}}))

	t.Run("CustomPrefix", func(t *testing.T) {
		items := []any{M{"_name": "misko"}, M{"$name": "misko"}}
		assert.Equal(t, []any{items[1]}, mustApply(t, items, Text{Value: "misko"}, WithPrivatePrefix("_")))
		assert.Len(t, mustApply(t, items, Text{Value: "misko"}, WithPrivatePrefix("")), 2)
	})
}

func TestFilterOnSpecificProperty(t *testing.T) {
	t.Parallel()

	items := []any{M{"ignore": "a", "name": "a"}, M{"ignore": "a", "name": "abc"}}

	assert.Len(t, mustApply(t, items, Fields{Value: M{}}), 2)
	assert.Len(t, mustApply(t, items, Fields{Value: M{"name": "a"}}), 2)
	assert.Equal(t, []any{items[1]}, mustApply(t, items, Fields{Value: M{"name": "b"}}))
}

func TestFilterWithPredicate(t *testing.T) {
	t.Parallel()

	t.Run("Item", func(t *testing.T) {
		items := []any{M{"name": "a"}, M{"name": "abc", "done": true}}
		done := Predicate(func(item any, _ int, _ []any) (bool, error) {
			return item.(M)["done"] == true, nil
		})

		assert.Equal(t, []any{items[1]}, mustApply(t, items, done))
	})

	t.Run("Index", func(t *testing.T) {
		items := []int{0, 1, 2, 3}
		even := Predicate(func(_ any, index int, all []any) (bool, error) {
			assert.Len(t, all, len(items))
			return index%2 == 0, nil
		})

		result, err := Apply(items, even)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 2}, result)
	})

	t.Run("ErrorPropagates", func(t *testing.T) {
		errBoom := errors.New("boom")
		failing := Predicate(func(_ any, index int, _ []any) (bool, error) {
			if index == 1 {
				return false, errBoom
			}

			return true, nil
		})

		result, err := Apply([]string{"a", "b", "c"}, failing)
		assert.ErrorIs(t, err, errBoom)
		assert.Nil(t, result)
	})
}

func TestFilterWithObjectExpression(t *testing.T) {
	t.Parallel()

	items := []any{M{"first": "misko", "last": "hevery"}, M{"first": "adam", "last": "abrons"}}

	assert.Len(t, mustApply(t, items, Fields{Value: M{"first": "", "last": ""}}), 2)
	assert.Len(t, mustApply(t, items, Fields{Value: M{"first": "", "last": "hevery"}}), 1)
	assert.Empty(t, mustApply(t, items, Fields{Value: M{"first": "adam", "last": "hevery"}}))
	assert.Equal(t, []any{items[0]}, mustApply(t, items, Fields{Value: M{"first": "misko", "last": "hevery"}}))
}

func TestFilterWithDottedKeys(t *testing.T) {
	t.Parallel()

	items := []any{
		M{"first.name": "misko", "last.name": "hevery"},
		M{"first.name": "adam", "last.name": "abrons"},
	}

	assert.Len(t, mustApply(t, items, Fields{Value: M{"first.name": "", "last.name": ""}}), 2)
	assert.Equal(t, []any{items[0]}, mustApply(t, items, Fields{Value: M{"first.name": "misko", "last.name": ""}}))

	nested := []any{M{"first": M{"name": "misko"}}}
	assert.Empty(t, mustApply(t, nested, Fields{Value: M{"first.name": "misko"}}), "dots must not traverse")
}

func TestFilterWithDeepExpression(t *testing.T) {
	t.Parallel()

	t.Run("SingleProperty", func(t *testing.T) {
		items := []any{
			M{"person": M{"name": "John"}},
			M{"person": M{"name": "Rita"}},
			M{"person": M{"name": "Billy"}},
			M{"person": M{"name": "Joan"}},
		}

		assert.Equal(t, []any{items[0], items[3]}, mustApply(t, items, Fields{Value: M{"person": M{"name": "Jo"}}}))
	})

	t.Run("MultipleProperties", func(t *testing.T) {
		items := []any{
			M{"person": M{"name": "Annet", "email": "annet@example.com"}},
			M{"person": M{"name": "Billy", "email": "me@billy.com"}},
			M{"person": M{"name": "Joan", "email": "joan@example.net"}},
			M{"person": M{"name": "John", "email": "john@example.com"}},
			M{"person": M{"name": "Rita", "email": "rita@example.com"}},
		}

		expr := Fields{Value: M{"person": M{"name": "Jo", "email": "!example.com"}}}
		assert.Equal(t, []any{items[2]}, mustApply(t, items, expr))
	})
}

func TestFilterWithWildcard(t *testing.T) {
	t.Parallel()

	t.Run("AnyProperty", func(t *testing.T) {
		items := []any{
			M{"first": "tom", "last": "hevery"},
			M{"first": "adam", "last": "hevery", "alias": "tom", "done": false},
			M{"first": "john", "last": "clark", "middle": "tommy"},
		}

		assert.Len(t, mustApply(t, items, Fields{Value: M{"$": "tom"}}), 3)
		assert.Len(t, mustApply(t, items, Fields{Value: M{"$": "a"}}), 2)
		assert.Equal(t, []any{items[1]}, mustApply(t, items, Fields{Value: M{"$": false}}))
		assert.Empty(t, mustApply(t, items, Fields{Value: M{"$": 10}}))
		assert.Equal(t, items[0], mustApply(t, items, Fields{Value: M{"$": "hevery"}})[0])
	})

	people := []any{
		M{"person": M{"name": "Annet", "email": "annet@example.com"}},
		M{"person": M{"name": "Billy", "email": "me@billy.com"}},
		M{"person": M{"name": "Joan", "email": "joan@example.net"}},
		M{"person": M{"name": "John", "email": "john@example.com"}},
		M{"person": M{"name": "Rita", "email": "rita@example.com"}},
	}

	t.Run("Nested", func(t *testing.T) {
		expr := Fields{Value: M{"person": M{"$": "net"}}}
		assert.Equal(t, []any{people[0], people[2]}, mustApply(t, people, expr))
	})

	t.Run("SameLevelAndDeeper", func(t *testing.T) {
		items := []any{
			M{"person": M{"name": "Annet", "email": "annet@example.com"}},
			M{"person": M{"name": "Billy", "email": "me@billy.com"}},
			M{"person": M{"name": "Joan", "email": M{"home": "me@joan.com", "work": "joan@example.net"}}},
		}

		expr := Fields{Value: M{"person": M{"$": "net"}}}
		assert.Equal(t, []any{items[0], items[2]}, mustApply(t, items, expr))
	})

	t.Run("RespectsNestingLevel", func(t *testing.T) {
		items := make([]any, 0, len(people))
		for _, p := range people {
			items = append(items, M{"supervisor": "me", "person": p.(M)["person"]})
		}

		expr := Fields{Value: M{"$": M{"$": "me"}}}
		assert.Equal(t, []any{items[1]}, mustApply(t, items, expr))
	})

	t.Run("CustomKey", func(t *testing.T) {
		items := []any{M{"name": "tom", "$": "jerry"}, M{"name": "jerry"}}

		assert.Equal(t, []any{items[0]}, mustApply(t, items, Fields{Value: M{"*": "tom"}}, WithWildcard("*")))
		assert.Empty(t, mustApply(t, items, Fields{Value: M{"$": "jerry"}}, WithWildcard("*")), "$ is private")
		assert.Equal(
			t, []any{items[0]},
			mustApply(t, items, Fields{Value: M{"$": "jerry"}}, WithWildcard(""), WithPrivatePrefix("")),
		)
	})
}

func TestFilterWithBooleanProperties(t *testing.T) {
	t.Parallel()

	items := []any{M{"name": "tom", "current": true}, M{"name": "demi", "current": false}, M{"name": "sofia"}}

	assert.Equal(t, []any{items[0]}, mustApply(t, items, Fields{Value: M{"current": true}}))
	assert.Equal(t, []any{items[1]}, mustApply(t, items, Fields{Value: M{"current": false}}))
	assert.Empty(t, mustApply(t, items, Fields{Value: M{"current": "tr"}}), "no substring semantics for booleans")
}

func TestFilterWithNegation(t *testing.T) {
	t.Parallel()

	items := []any{"misko", "adam"}
	assert.Equal(t, []any{"adam"}, mustApply(t, items, Text{Value: "!isk"}))

	records := []any{M{"email": "a@example.com"}, M{"name": "no email"}}
	assert.Equal(t, []any{records[1]}, mustApply(t, records, Fields{Value: M{"email": "!example"}}))
}

func TestFilterIgnoresFunctionProperties(t *testing.T) {
	t.Parallel()

	t.Run("InItems", func(t *testing.T) {
		items := []any{M{"text": "hello", "func": noop}, M{"text": "goodbye"}, M{"text": "kittens"}}
		expr := Fields{Value: M{"text": "hello"}}

		assert.Equal(t, []any{items[0]}, mustApply(t, items, expr))
		assert.Equal(t, []any{items[0]}, mustApply(t, items, expr, WithComparator(Strict)))
		assert.Empty(t, mustApply(t, items, Fields{Value: M{"func": "noop"}}))
	})

	t.Run("InheritedInItems", func(t *testing.T) {
		proto := NewObject(M{"func": noop}, nil)
		items := []*Object{
			NewObject(M{"text": "hello"}, proto),
			NewObject(M{"text": "goodbye"}, proto),
			NewObject(M{"text": "kittens"}, proto),
		}
		expr := Fields{Value: M{"text": "hello"}}

		for _, cmp := range []Comparator{Substring, Strict} {
			result, err := Apply(items, expr, WithComparator(cmp))
			require.NoError(t, err)
			require.Len(t, result, 1)
			assert.Same(t, items[0], result[0])
		}
	})

	t.Run("InExpression", func(t *testing.T) {
		items := []any{M{"text": "hello"}, M{"text": "goodbye"}, M{"text": "kittens"}}

		for _, expr := range []Expression{
			Fields{Value: M{"text": "hello", "func": noop}},
			Fields{Value: NewObject(M{"text": "hello"}, NewObject(M{"func": noop}, nil))},
		} {
			assert.Equal(t, []any{items[0]}, mustApply(t, items, expr))
			assert.Equal(t, []any{items[0]}, mustApply(t, items, expr, WithComparator(Strict)))
		}

		assert.Len(t, mustApply(t, items, Fields{Value: M{"func": noop}}), 3, "only functions constrain nothing")
	})
}

func TestFilterConsidersInheritedProperties(t *testing.T) {
	t.Parallel()

	t.Run("InItems", func(t *testing.T) {
		proto := NewObject(M{"doubleL": "maybe"}, nil)
		items := []*Object{
			NewObject(M{"text": "hello"}, proto),
			NewObject(M{"text": "goodbye"}, proto),
			NewObject(M{"text": "kittens"}, proto),
		}

		for _, cmp := range []Comparator{Substring, Strict} {
			result, err := Apply(items, Fields{Value: M{"text": "hello", "doubleL": "perhaps"}}, WithComparator(cmp))
			require.NoError(t, err)
			assert.Empty(t, result)

			result, err = Apply(items, Fields{Value: M{"text": "hello", "doubleL": "maybe"}}, WithComparator(cmp))
			require.NoError(t, err)
			require.Len(t, result, 1)
			assert.Same(t, items[0], result[0])
		}
	})

	t.Run("InExpression", func(t *testing.T) {
		items := []any{M{"text": "hello", "doubleL": true}, M{"text": "goodbye"}, M{"text": "kittens"}}
		proto := NewObject(M{"doubleL": true}, nil)

		assert.Equal(t, []any{items[0]}, mustApply(t, items, Fields{Value: NewObject(M{"text": "e"}, proto)}))
		assert.Equal(
			t, []any{items[0]},
			mustApply(t, items, Fields{Value: NewObject(M{"text": "hello"}, proto)}, WithComparator(Strict)),
		)
	})

	t.Run("OwnShadowsInherited", func(t *testing.T) {
		item := NewObject(M{"name": "own"}, NewObject(M{"name": "inherited"}, nil))

		assert.Len(t, mustApply(t, []any{item}, Text{Value: "inherited"}), 0)
		assert.Len(t, mustApply(t, []any{item}, Fields{Value: M{"name": "own"}}), 1)
	})
}

func TestFilterIgnoresObjectTextForm(t *testing.T) {
	t.Parallel()

	items := []any{M{"test": M{}}}
	assert.Empty(t, mustApply(t, items, Text{Value: "[object"}))
	assert.Empty(t, mustApply(t, items, Text{Value: "map"}))
}

func TestFilterWithStrictComparator(t *testing.T) {
	t.Parallel()

	items := []any{"misko", "adam", "adamson"}
	assert.Equal(t, []any{"adam"}, mustApply(t, items, Text{Value: "adam"}, WithComparator(Strict)))
	assert.Equal(t, []any{"adam", "adamson"}, mustApply(t, items, Text{Value: "adam"}))

	records := []any{
		M{"key": "value1", "nonkey": 1},
		M{"key": "value2", "nonkey": 2},
		M{"key": "value12", "nonkey": 3},
		M{"key": "value1", "nonkey": 4},
		M{"key": "Value1", "nonkey": 5},
	}
	// Strict string comparison ignores case, so "Value1" matches "value1" as well.
	assert.Equal(
		t, []any{records[0], records[3], records[4]},
		mustApply(t, records, Fields{Value: M{"key": "value1"}}, WithComparator(Strict)),
	)

	numbers := []any{
		M{"key": 1, "nonkey": 1},
		M{"key": 2, "nonkey": 2},
		M{"key": 12, "nonkey": 3},
		M{"key": 1, "nonkey": 4},
	}
	assert.Equal(t, []any{numbers[0], numbers[3]}, mustApply(t, numbers, Fields{Value: M{"key": 1}}, WithComparator(Strict)))
	assert.Equal(t, []any{numbers[2]}, mustApply(t, numbers, Text{Value: 12}, WithComparator(Strict)))
	assert.Equal(t, []any{numbers[2]}, mustApply(t, numbers, Text{Value: 12.0}, WithComparator(Strict)))
}

func TestFilterWithCustomComparator(t *testing.T) {
	t.Parallel()

	items := []any{
		M{"key": 1, "nonkey": 1},
		M{"key": 2, "nonkey": 2},
		M{"key": 12, "nonkey": 3},
		M{"key": 1, "nonkey": 14},
	}
	greater := ComparatorFunc(func(actual, expected any) (bool, error) {
		a, ok := actual.(int)
		e, isInt := expected.(int)

		return ok && isInt && a > e, nil
	})

	assert.Equal(t, []any{items[2]}, mustApply(t, items, Fields{Value: M{"key": 10}}, WithComparator(greater)))
	assert.Equal(t, []any{items[2], items[3]}, mustApply(t, items, Text{Value: 10}, WithComparator(greater)))

	t.Run("ErrorPropagates", func(t *testing.T) {
		errCompare := errors.New("cannot compare")
		failing := ComparatorFunc(func(any, any) (bool, error) { return false, errCompare })

		result, err := Apply(items, Text{Value: 10}, WithComparator(failing))
		assert.ErrorIs(t, err, errCompare)
		assert.Nil(t, result)

		result, err = Apply(items, Fields{Value: M{"key": 1}}, WithComparator(failing))
		assert.ErrorIs(t, err, errCompare)
		assert.Nil(t, result)
	})
}

func TestFilterWithComparatorOnDeepExpression(t *testing.T) {
	t.Parallel()

	items := []any{
		M{"id": 0, "details": M{"email": "admin@example.com", "role": "admin"}},
		M{"id": 1, "details": M{"email": "user1@example.com", "role": "user"}},
		M{"id": 2, "details": M{"email": "user2@example.com", "role": "user"}},
	}

	testdata := []struct {
		Expression M
		Comparator Comparator
		Expected   []any
	}{
		{M{"details": M{"email": "user@example.com", "role": "adm"}}, nil, []any{}},
		{M{"details": M{"email": "admin@example.com", "role": "adm"}}, nil, []any{items[0]}},
		{M{"details": M{"email": "admin@example.com", "role": "adm"}}, Strict, []any{}},
		{M{"details": M{"email": "admin@example.com", "role": "admin"}}, Strict, []any{items[0]}},
		{M{"details": M{"email": "user", "role": "us"}}, nil, []any{items[1], items[2]}},
		{M{"id": 0, "details": M{"email": "user", "role": "us"}}, nil, []any{}},
		{M{"id": 1, "details": M{"email": "user", "role": "us"}}, nil, []any{items[1]}},
	}

	for _, td := range testdata {
		assert.Equal(t, td.Expected, mustApply(t, items, Fields{Value: td.Expression}, WithComparator(td.Comparator)),
			"unexpected filter result for %v", td.Expression)
	}

	prefix := ComparatorFunc(func(actual, expected any) (bool, error) {
		a, ok := actual.(string)
		e, isString := expected.(string)

		return ok && isString && strings.HasPrefix(a, e), nil
	})

	assert.Empty(t, mustApply(t, items, Fields{Value: M{"details": M{"email": "admin@example.com", "role": "min"}}}, WithComparator(prefix)))
	assert.Equal(t, []any{items[0]}, mustApply(t, items, Fields{Value: M{"details": M{"email": "admin@example.com", "role": "adm"}}}, WithComparator(prefix)))
}

func TestFilterDegradesGracefully(t *testing.T) {
	t.Parallel()

	items := []any{nil, M{"a": nil}, M{"a": M{"b": nil}}, []any{nil}, "text"}

	assert.Empty(t, mustApply(t, []any{}, Text{Value: "x"}))
	assert.Empty(t, mustApply(t, items, Text{Value: "null"}))
	assert.Len(t, mustApply(t, items, Fields{Value: M{"a": nil}}), len(items), "nil constrains nothing")
	assert.Empty(t, mustApply(t, items, Fields{Value: M{"a": M{"b": "x"}}}))
	assert.Empty(t, mustApply(t, items, Text{Value: M{"a": "x"}}), "records aren't text")
	assert.Empty(t, mustApply(t, items, Fields{Value: "not a record"}))
	assert.Empty(t, mustApply(t, items, NewExpression([]any{"a"})), "lists aren't expressions")
	assert.Equal(t, []any{"text"}, mustApply(t, items, NewExpression("ex")))
}

func TestFilterMaxDepth(t *testing.T) {
	t.Parallel()

	items := []any{M{"a": M{"b": M{"c": "deep"}}}}

	assert.Len(t, mustApply(t, items, Text{Value: "deep"}), 1)
	assert.Empty(t, mustApply(t, items, Text{Value: "deep"}, WithMaxDepth(2)))
	assert.Len(t, mustApply(t, items, Text{Value: "deep"}, WithMaxDepth(0)), 1)
}

func TestFilterDoesNotModifyInput(t *testing.T) {
	t.Parallel()

	items := []any{M{"name": "a"}, M{"name": "b"}, "c"}
	expr := M{"name": "a"}

	result := mustApply(t, items, Fields{Value: expr})
	require.Len(t, result, 1)

	result[0] = "replaced"
	assert.Equal(t, []any{M{"name": "a"}, M{"name": "b"}, "c"}, items)
	assert.Equal(t, M{"name": "a"}, expr)
}

func TestFilterLogging(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	_, err := Apply([]string{"a", "b"}, Text{Value: "a"}, WithLogger(zap.New(core).Sugar()))
	require.NoError(t, err)

	entries := logs.FilterMessage("Filtered items").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].ContextMap()["items"])
	assert.Equal(t, int64(1), entries[0].ContextMap()["matched"])
	assert.Equal(t, 1, logs.FilterMessage("Compiled filter expression").Len())
}

func TestFilterMatches(t *testing.T) {
	t.Parallel()

	f := New(Fields{Value: M{"name": "jo"}})

	matched, err := f.Matches(M{"name": "John"})
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = f.Matches(M{"name": "Rita"})
	require.NoError(t, err)
	assert.False(t, matched)
}
