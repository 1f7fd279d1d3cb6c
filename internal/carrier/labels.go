package carrier

import (
	"context"
	"runtime/pprof"
	"strconv"
	"sync"
	"sync/atomic"
	"unsafe"
)

// scopeLabel is the reserved label key under which an extent's scope id
// travels. The id, not the value itself, goes in the label: labels are
// string-only and are copied to child goroutines by the runtime.
const scopeLabel = "dyn.scope"

// getProfLabel returns the calling goroutine's label set as stored by the
// runtime. There is no public read API for goroutine labels; this is the
// same linkname pull continuous profilers use.
//
//go:linkname getProfLabel runtime/pprof.runtime_getProfLabel
func getProfLabel() unsafe.Pointer

// ppLabel and ppLabelSet mirror runtime/pprof's label storage layout. The
// probe in labelsSupported guards against this layout moving underneath us.
type ppLabel struct {
	key   string
	value string
}

type ppLabelSet struct {
	list []ppLabel
}

// currentLabels returns the calling goroutine's labels as a flat
// key, value list ready for [pprof.Labels].
func currentLabels() []string {
	p := getProfLabel()
	if p == nil {
		return nil
	}

	set := (*ppLabelSet)(p)

	flat := make([]string, 0, 2*len(set.list))
	for _, label := range set.list {
		flat = append(flat, label.key, label.value)
	}

	return flat
}

// currentLabel returns the value of a single label on the calling goroutine.
func currentLabel(key string) (value string, ok bool) {
	p := getProfLabel()
	if p == nil {
		return "", false
	}

	set := (*ppLabelSet)(p)
	for _, label := range set.list {
		if label.key == key {
			return label.value, true
		}
	}

	return "", false
}

// labelsSupported probes whether goroutine labels can be written and read
// back through the linkname path on this runtime. Any mismatch or panic
// fails the probe, which fails selection over to the cell backend.
func labelsSupported() (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	const probe = "dyn.probe"
	want := strconv.FormatUint(scopeID.Add(1), 10)

	pprof.Do(context.Background(), pprof.Labels(probe, want), func(context.Context) {
		got, found := currentLabel(probe)
		ok = found && got == want
	})

	return ok
}

// scopeID numbers extents process-wide so registry entries never collide.
var scopeID atomic.Uint64

// labelCarrier is the structured-scope backend. Installing swaps the
// goroutine's labels for the extent, and because the swap back is deferred
// on the same frame, restoration is intrinsic and holds under panics too.
// Goroutines started inside the extent inherit the label from the runtime
// and observe the scope for as long as the extent lives.
type labelCarrier struct {
	// scopes maps live extent ids to their installed values. An entry
	// exists only for the duration of its extent.
	scopes sync.Map // string → any
}

// NewLabels returns the goroutine label backend.
func NewLabels() Carrier { return &labelCarrier{} }

// Name implements [Carrier].
func (c *labelCarrier) Name() string { return Labels }

// Current implements [Carrier].
func (c *labelCarrier) Current() any {
	id, ok := currentLabel(scopeLabel)
	if !ok {
		return nil
	}

	// A goroutine spawned inside an extent can outlive it; its inherited id
	// is then gone from the registry and it reads the uninstalled state
	value, ok := c.scopes.Load(id)
	if !ok {
		return nil
	}

	return value
}

// With implements [Carrier].
func (c *labelCarrier) With(value any, body func() error) error {
	id := strconv.FormatUint(scopeID.Add(1), 10)
	c.scopes.Store(id, value)
	defer c.scopes.Delete(id)

	// Snapshot the goroutine's labels, our own included when this is a
	// nested install. pprof.Do restores to the labels of the context it is
	// handed, not the goroutine's, so the swap is done directly here
	prev := context.Background()
	if flat := currentLabels(); len(flat) > 0 {
		prev = pprof.WithLabels(prev, pprof.Labels(flat...))
	}

	pprof.SetGoroutineLabels(pprof.WithLabels(prev, pprof.Labels(scopeLabel, id)))
	defer pprof.SetGoroutineLabels(prev)

	return body()
}
