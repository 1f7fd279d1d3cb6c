// Package dyn implements dynamic-scope value propagation: temporary key→value
// bindings established by a call stack and visible to everything it calls on
// the same goroutine, without mutating shared globals and without threading
// values through every parameter list in between.
//
// Variables are declared once with [New] or [Declare], bound for the dynamic
// extent of a call with [Let] or [With], and read back anywhere beneath that
// call with [Var.Get]. A binding never leaks past the call that established
// it, on any exit path, and never crosses into another goroutine unless a
// [Scope] is explicitly captured with [Current] and reinstalled there with
// [With] or [Go].
package dyn

import "go.followtheprocess.codes/dyn/internal/carrier"

// active is the carrier backend, selected once at process start and fixed
// for the life of the process.
var active = carrier.Select()

// Backend returns the name of the carrier backend selected at startup,
// either "labels" or "cell".
func Backend() string { return active.Name() }

// Current returns the [Scope] most recently installed on the calling
// goroutine, or [Empty] if nothing is installed.
//
// The returned Scope is immutable and safe to hand to another goroutine for
// reinstallation with [With].
func Current() Scope {
	value := active.Current()
	if value == nil {
		return Empty()
	}

	return value.(Scope)
}

// With installs scope for the dynamic extent of body: body and everything it
// calls on this goroutine observes scope through [Current] and [Var.Get].
//
// Whatever was installed before the call is reinstated on every exit path,
// whether body returns normally, returns an error, or panics. Body's error
// (or panic) propagates unchanged.
func With(scope Scope, body func() error) error {
	return active.With(scope, body)
}

// Let extends the calling goroutine's current scope with bindings and runs
// body under the result. It is shorthand for
// With(Current().Extend(bindings...), body).
func Let(body func() error, bindings ...Binding) error {
	return With(Current().Extend(bindings...), body)
}

// Go runs fn on a new goroutine with scope installed for the duration of fn.
//
// Propagation between goroutines is never automatic; Go is the explicit
// capture-then-reinstall hand-off spelled as a single call.
func Go(scope Scope, fn func()) {
	go func() {
		_ = With(scope, func() error {
			fn()
			return nil
		})
	}()
}
