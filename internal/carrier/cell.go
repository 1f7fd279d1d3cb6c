package carrier

import (
	"sync"

	"github.com/petermattis/goid"
)

// cellCarrier is the fallback backend: one slot per goroutine, created
// lazily on first install and removed again when the outermost extent
// exits, so a finished or abandoned goroutine leaves nothing behind.
type cellCarrier struct {
	cells sync.Map // int64 goroutine id → any
}

// NewCell returns the per-goroutine cell backend.
func NewCell() Carrier { return &cellCarrier{} }

// Name implements [Carrier].
func (c *cellCarrier) Name() string { return Cell }

// Current implements [Carrier].
func (c *cellCarrier) Current() any {
	value, ok := c.cells.Load(goid.Get())
	if !ok {
		return nil
	}

	return value
}

// With implements [Carrier].
func (c *cellCarrier) With(value any, body func() error) error {
	id := goid.Get()

	// Save, overwrite, and restore in a deferred block so the restore runs
	// exactly once however body exits. Only the owning goroutine touches
	// its slot, so there is no store/restore race to guard against
	prev, had := c.cells.Load(id)
	c.cells.Store(id, value)
	defer func() {
		if had {
			c.cells.Store(id, prev)
		} else {
			c.cells.Delete(id)
		}
	}()

	return body()
}
