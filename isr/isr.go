// Package isr provides the cell that shares state between foreground
// code and interrupt handlers. Handlers run at interrupt dispatch
// points in the middle of foreground register accesses, so any state
// both sides touch must only ever be seen whole; the cell enforces
// that by masking interrupt dispatch for the duration of each access
// instead of trusting call-site discipline.
package isr

import "sync"

// Masker temporarily disables interrupt dispatch. MaskInterrupts
// returns the closure that restores the previous state, nesting
// safely.
type Masker interface {
	MaskInterrupts() func()
}

// Cell is a lazily initialized container for one shared value. The
// zero value is valid; Init must run before the first With, and
// before the interrupts whose handlers touch the cell are enabled.
type Cell[T any] struct {
	mu   sync.Mutex
	gate Masker
	val  *T
}

// Init stores the value and the interrupt gate. A second Init is a
// wiring bug and panics.
func (c *Cell[T]) Init(gate Masker, val T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.val != nil {
		panic("isr: cell already initialized")
	}
	c.gate = gate
	c.val = &val
}

// With runs f with exclusive access to the value. Interrupt dispatch
// is masked for the duration, so a handler can never observe a
// half-finished multi-register update and a foreground reader can
// never tear a value the handler writes.
func (c *Cell[T]) With(f func(*T)) {
	c.mu.Lock()
	if c.val == nil {
		c.mu.Unlock()
		panic("isr: cell used before Init")
	}
	restore := c.gate.MaskInterrupts()
	// The mutex must be free before restore runs: restoring dispatch
	// can enter a handler on this same call stack, and that handler is
	// allowed to take the cell.
	defer restore()
	defer c.mu.Unlock()
	f(c.val)
}
