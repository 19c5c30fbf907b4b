package filter

// Comparator decides whether an actual item value satisfies an expected expression value.
type Comparator interface {
	Compare(actual, expected any) (bool, error)
}

// Record is implemented by every value the filter treats as a set of named properties.
type Record interface {
	// Get returns the value of the named property, inherited ones included.
	Get(key string) (any, bool)
	// Range calls fn for every own and inherited property until fn returns false.
	Range(fn func(key string, value any) bool)
}

// Inspector tells the filter how to look at arbitrary values.
type Inspector interface {
	// Record returns the Record view of v, if v is record-shaped.
	Record(v any) (Record, bool)
	// List returns the elements of v, if v is a list.
	List(v any) ([]any, bool)
	// Callable reports whether v is a function and must be ignored.
	Callable(v any) bool
}

// Rule is implemented by compiled filters and filter chains.
type Rule interface {
	Eval(item any, index int, items []any) (bool, error)
}
