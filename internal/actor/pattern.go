package actor

import (
	"reflect"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Pattern is a structural matcher for actor messages (spec.md §4.1). Match is
// total: it never panics and always returns either a bound value or the
// empty Option, regardless of what the message actually is. Implementations
// are pure and have no knowledge of the scheduler, mailbox, or cell state.
type Pattern interface {
	// Match reports whether value satisfies the pattern, returning the
	// bound value extracted from it on success.
	Match(value any) fn.Option[any]
}

// anyPattern matches any value unconditionally.
type anyPattern struct{}

// Match always succeeds, binding the whole value.
func (anyPattern) Match(value any) fn.Option[any] {
	return fn.Some(value)
}

// Any is the wildcard pattern: it matches any message and binds the message
// itself.
func Any() Pattern {
	return anyPattern{}
}

// typePattern matches a message of the exact type T.
type typePattern[T any] struct{}

// Match succeeds iff value's dynamic type is exactly T (or T is an
// interface that value implements), binding value unchanged.
func (typePattern[T]) Match(value any) fn.Option[any] {
	if _, ok := value.(T); ok {
		return fn.Some(value)
	}

	return fn.None[any]()
}

// Type builds a pattern that matches any message of type T.
func Type[T any]() Pattern {
	return typePattern[T]{}
}

// literalPattern matches a message equal to a fixed value.
type literalPattern struct {
	want any
}

// Match succeeds iff value is structurally equal to the literal, binding
// value. Equality is evaluated with reflect.DeepEqual so literal patterns
// work for slices, maps, and structs, not just comparable scalars.
func (p literalPattern) Match(value any) fn.Option[any] {
	if reflect.DeepEqual(p.want, value) {
		return fn.Some(value)
	}

	return fn.None[any]()
}

// Literal builds a pattern that matches messages structurally equal to want.
func Literal(want any) Pattern {
	return literalPattern{want: want}
}

// Tuple is a message shape of fixed arity, e.g. the ('baz', 2) messages of
// spec.md §8 scenario 2. Any Go value passed through tuplePattern.Match that
// is not a Tuple simply fails to match — Match is total, never a panic or a
// type-assertion error.
type Tuple []any

// tuplePattern matches a Tuple of the same arity as elems, pairwise.
type tuplePattern struct {
	elems []Pattern
}

// Match succeeds iff value is a Tuple of len(elems) and every element
// matches its corresponding sub-pattern; the bound value is a Tuple of the
// per-element bindings.
func (p tuplePattern) Match(value any) fn.Option[any] {
	tup, ok := value.(Tuple)
	if !ok || len(tup) != len(p.elems) {
		return fn.None[any]()
	}

	bound := make(Tuple, len(tup))
	for i, elemPattern := range p.elems {
		b := elemPattern.Match(tup[i])
		if b.IsNone() {
			return fn.None[any]()
		}

		bound[i] = b.UnwrapOr(nil)
	}

	return fn.Some[any](bound)
}

// TuplePattern builds a pattern matching a Tuple of the given arity, each
// element checked pairwise against the corresponding sub-pattern.
func TuplePattern(elems ...Pattern) Pattern {
	return tuplePattern{elems: elems}
}

// match is the package-internal entry point described in spec.md §4.1:
// deterministic, pure, total.
func match(p Pattern, value any) fn.Option[any] {
	if p == nil {
		return fn.Some(value)
	}

	return p.Match(value)
}
