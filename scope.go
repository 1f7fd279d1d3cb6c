package dyn

import (
	"fmt"
	"slices"
	"strings"

	"github.com/benbjohnson/immutable"
)

// builderThreshold is the number of bindings above which extension switches
// from chained inserts to the bulk builder. Purely an efficiency cutoff, the
// resulting scopes behave identically either side of it.
const builderThreshold = 8

// anchorHasher implements [immutable.Hasher] over variable identities.
type anchorHasher struct{}

// Hash scrambles the declaration id so consecutive declarations spread
// across the map.
func (anchorHasher) Hash(a *anchor) uint32 {
	return uint32((a.id * 0x9e3779b97f4a7c15) >> 32)
}

// Equal is identity: two Vars are the same variable only if they came from
// the same declaration.
func (anchorHasher) Equal(a, b *anchor) bool { return a == b }

// Binding is a single variable→value pair, made with [Var.To].
type Binding struct {
	value any
	key   *anchor
}

// Scope is an immutable set of variable bindings active for a dynamic
// extent. Extension never mutates a Scope, it returns a new one sharing
// structure with the original, so a captured Scope is safe to share across
// goroutines without synchronisation.
//
// The zero value is usable and equivalent to [Empty].
type Scope struct {
	m *immutable.Map[*anchor, any]
}

// empty is the canonical empty scope, handed out by [Empty] and used as the
// base when extending a zero-value receiver.
var empty = Scope{m: immutable.NewMap[*anchor, any](anchorHasher{})}

// Empty returns the canonical empty [Scope].
func Empty() Scope { return empty }

// Len returns the number of bindings in the scope.
func (s Scope) Len() int {
	if s.m == nil {
		return 0
	}

	return s.m.Len()
}

// Has reports whether the scope binds key, regardless of the bound value.
func (s Scope) Has(key Key) bool {
	_, ok := s.get(key.anchor())
	return ok
}

// get is the raw lookup. The bool distinguishes "bound to nil" from
// "not bound at all", which resolution depends on.
func (s Scope) get(a *anchor) (any, bool) {
	if s.m == nil {
		return nil, false
	}

	return s.m.Get(a)
}

// Extend returns a new Scope containing s's bindings overwritten and
// augmented by bindings, applied left to right so a later binding for the
// same variable wins. s itself is untouched; with no bindings, s is
// returned as is.
func (s Scope) Extend(bindings ...Binding) Scope {
	if len(bindings) == 0 {
		return s
	}

	base := s.m
	if base == nil {
		base = empty.m
	}

	if len(bindings) <= builderThreshold {
		// Few pairs: a short chain of individual inserts
		for _, b := range bindings {
			base = base.Set(b.key, b.value)
		}

		return Scope{m: base}
	}

	// Many pairs: accumulate everything in a builder and produce the final
	// immutable map once
	builder := immutable.NewMapBuilder[*anchor, any](anchorHasher{})

	itr := base.Iterator()
	for !itr.Done() {
		k, v, _ := itr.Next()
		builder.Set(k, v)
	}

	for _, b := range bindings {
		builder.Set(b.key, b.value)
	}

	return Scope{m: builder.Map()}
}

// ExtendPairs is [Scope.Extend] over a flat key, value, key, value list, for
// callers assembling bindings at runtime rather than with [Var.To].
//
// The list is validated before anything is applied: an odd number of
// elements, a non-[Key] in a key position, or a value the variable's type
// cannot hold all fail without producing a scope. Later pairs for the same
// variable win, exactly as with Extend.
func ExtendPairs(scope Scope, pairs ...any) (Scope, error) {
	if len(pairs)%2 != 0 {
		return Scope{}, fmt.Errorf("%w: got %d elements", ErrOddPairs, len(pairs))
	}

	bindings := make([]Binding, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(Key)
		if !ok {
			return Scope{}, fmt.Errorf("%w: element %d is %T", ErrNotAKey, i, pairs[i])
		}

		value := pairs[i+1]
		if !key.accepts(value) {
			return Scope{}, fmt.Errorf("%w: %T for variable %s", ErrBadValue, value, key.Name())
		}

		bindings = append(bindings, Binding{key: key.anchor(), value: value})
	}

	return scope.Extend(bindings...), nil
}

// String implements [fmt.Stringer], rendering the bindings sorted by
// variable name. Identity is by declaration, so two distinct variables may
// legitimately share a display name.
func (s Scope) String() string {
	if s.Len() == 0 {
		return "Scope{}"
	}

	entries := make([]string, 0, s.Len())

	itr := s.m.Iterator()
	for !itr.Done() {
		k, v, _ := itr.Next()
		entries = append(entries, fmt.Sprintf("%s=%v", k.name, v))
	}

	slices.Sort(entries)

	return "Scope{" + strings.Join(entries, ", ") + "}"
}
