package dyn

import (
	"fmt"
	"sync/atomic"
)

// anchor is the identity of a declared variable. Every Var made by [New] or
// [Declare] points at its own anchor and copies of that Var share it, so
// equality and hashing are by declaration, not by name.
type anchor struct {
	root  any
	name  string
	id    uint64
	bound bool // root holds a real value, as opposed to the unbound sentinel
}

// lastID numbers declarations so scope maps can hash them cheaply.
var lastID atomic.Uint64

// Key is the type-erased form of a [Var], the interface that [Scope] and
// [ExtendPairs] work in terms of. It is implemented only by Var.
type Key interface {
	// Name returns the name the variable was declared with.
	Name() string

	anchor() *anchor
	accepts(value any) bool
}

// Var is a declared dynamically scoped variable holding values of type T.
//
// The zero value is not a valid Var, declare one with [New] or [Declare].
type Var[T any] struct {
	a *anchor
}

// New declares a dynamically scoped variable with a root value, the value
// resolved whenever no active scope binds the variable.
func New[T any](name string, root T) Var[T] {
	return Var[T]{a: &anchor{name: name, root: root, id: lastID.Add(1), bound: true}}
}

// Declare declares a dynamically scoped variable with no root value.
// Resolving it outside any binding fails with [UnboundError] unless a
// fallback is supplied via [Var.GetOr].
func Declare[T any](name string) Var[T] {
	return Var[T]{a: &anchor{name: name, id: lastID.Add(1)}}
}

// Name returns the name the variable was declared with.
func (v Var[T]) Name() string { return v.a.name }

// To pairs the variable with a value, ready for [Scope.Extend] or [Let].
func (v Var[T]) To(value T) Binding {
	return Binding{key: v.a, value: value}
}

// Get resolves the variable on the calling goroutine.
//
// The resolution order is fixed: a binding in the active scope wins, even
// one holding nil; otherwise the root value if the variable was declared
// with one; otherwise an [UnboundError].
func (v Var[T]) Get() (T, error) {
	if raw, ok := Current().get(v.a); ok {
		return v.cast(raw)
	}

	if v.a.bound {
		return v.cast(v.a.root)
	}

	var zero T
	return zero, &UnboundError{Name: v.a.name}
}

// GetOr resolves the variable like [Var.Get] but returns fallback instead of
// failing when the variable is unbound. The fallback never shadows an active
// binding or a bound root value.
func (v Var[T]) GetOr(fallback T) T {
	got, err := v.Get()
	if err != nil {
		return fallback
	}

	return got
}

// From looks the variable up in an explicit scope, bypassing the carrier.
// Presence governs the ok result: a binding holding nil reports true and
// T's zero value.
func (v Var[T]) From(scope Scope) (T, bool) {
	raw, ok := scope.get(v.a)
	if !ok {
		var zero T
		return zero, false
	}

	value, _ := v.cast(raw)
	return value, true
}

// cast converts a stored value back to T. A stored nil is the explicit
// "absent" value and comes back as T's zero value, it is not a lookup miss.
func (v Var[T]) cast(raw any) (T, error) {
	var zero T
	if raw == nil {
		return zero, nil
	}

	value, ok := raw.(T)
	if !ok {
		// Unreachable through To and a validated ExtendPairs but worth a
		// real error over a silent zero if it ever happens
		return zero, fmt.Errorf("dynamic variable %s: scope holds %T, want %T", v.a.name, raw, zero)
	}

	return value, nil
}

func (v Var[T]) anchor() *anchor { return v.a }

// accepts reports whether value may be bound to this variable. nil is the
// explicit "absent" value and is accepted for every variable.
func (v Var[T]) accepts(value any) bool {
	if value == nil {
		return true
	}

	_, ok := value.(T)
	return ok
}
