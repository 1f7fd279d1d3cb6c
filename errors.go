package dyn

import (
	"errors"
	"fmt"
)

// Errors returned by [ExtendPairs] for malformed binding lists. All are
// reported before any scope is produced, a bad list is never partially
// applied.
var (
	// ErrOddPairs means the flat binding list had an odd number of elements.
	ErrOddPairs = errors.New("dyn: odd number of elements in binding pairs")

	// ErrNotAKey means a key position held something other than a [Var].
	ErrNotAKey = errors.New("dyn: binding pair key is not a dyn.Var")

	// ErrBadValue means a value cannot be held by the variable it was paired with.
	ErrBadValue = errors.New("dyn: binding pair value has the wrong type")
)

// UnboundError is returned by [Var.Get] when the variable is absent from the
// active scope and was declared without a root value.
type UnboundError struct {
	// Name is the name the variable was declared with.
	Name string
}

// Error implements error for an [UnboundError].
func (e *UnboundError) Error() string {
	return fmt.Sprintf("dynamic variable %s is unbound", e.Name)
}
