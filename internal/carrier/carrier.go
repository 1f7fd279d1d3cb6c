// Package carrier implements the process-wide storage slot that holds the
// currently active scope, partitioned per goroutine.
//
// Two interchangeable backends satisfy the same contract: "labels" rides the
// goroutine profiler labels so restoration is part of the label swap itself,
// "cell" keeps one slot per goroutine with an explicit save and a deferred
// restore. One backend is selected once at process start by [Select] and is
// never re-checked.
//
// The carrier is shared process-wide but each goroutine observes only the
// value most recently installed on that goroutine. Nothing crosses between
// goroutines except by explicitly reading a value out on one and installing
// it on another.
package carrier

import "os"

// EnvBackend is the environment variable consulted once at startup to force
// a backend, "labels" or "cell". It exists for tests and triage: forcing
// "labels" on a runtime where the label probe fails degrades every read to
// the uninstalled state.
const EnvBackend = "DYN_BACKEND"

// Backend names.
const (
	Labels = "labels" // The goroutine profiler label backend
	Cell   = "cell"   // The per-goroutine cell backend
)

// Carrier stores the value installed for the calling goroutine's dynamic
// extent. Values are opaque to the carrier.
type Carrier interface {
	// Current returns the value most recently installed on the calling
	// goroutine, or nil if nothing is installed.
	Current() any

	// With installs value for the dynamic extent of body, reinstating
	// whatever was installed before on every exit path: normal return,
	// error, or panic. Body's error is returned unchanged.
	With(value any, body func() error) error

	// Name identifies the backend, one of [Labels] or [Cell].
	Name() string
}

// Info captures the inputs to backend selection, for diagnostics.
type Info struct {
	// Backend is the name of the backend Select would pick.
	Backend string

	// Override is the value of [EnvBackend], empty when unset.
	Override string

	// LabelsSupported reports whether the goroutine label probe passed.
	LabelsSupported bool
}

// Detect reports how the backend would be selected. The probe runs fresh on
// every call; selection itself happens exactly once, in [Select].
func Detect() Info {
	info := Info{
		Override:        os.Getenv(EnvBackend),
		LabelsSupported: labelsSupported(),
	}

	switch info.Override {
	case Labels:
		info.Backend = Labels
	case Cell:
		info.Backend = Cell
	default:
		if info.LabelsSupported {
			info.Backend = Labels
		} else {
			info.Backend = Cell
		}
	}

	return info
}

// Select picks the backend for this process. It is called once from the dyn
// package's initialisation and the choice is fixed for the process lifetime.
func Select() Carrier {
	if Detect().Backend == Labels {
		return NewLabels()
	}

	return NewCell()
}
