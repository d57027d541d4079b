package hw

import (
	"math/bits"
	"time"

	"xtiny/units"
)

// Timebase is the time source the modeled blocks measure themselves
// against. Now returns monotonic nanoseconds since an arbitrary origin.
type Timebase interface {
	Now() uint64
}

// WallClock is the host monotonic clock. It makes the model run in real
// time, busy-waits included.
type WallClock struct {
	start time.Time
}

func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

func (c *WallClock) Now() uint64 {
	return uint64(time.Since(c.start))
}

// VirtualClock is a manually driven clock. With a non-zero autostep every
// Now call moves time forward, so register polling loops (overflow spins,
// RTC busy waits) terminate deterministically and as fast as the host can
// go. The autostep is also the sampling grid of the OnTick hook.
type VirtualClock struct {
	ns   uint64
	step uint64
	tick func(now uint64)
}

func NewVirtualClock(autostep time.Duration) *VirtualClock {
	return &VirtualClock{step: uint64(autostep)}
}

func (c *VirtualClock) Now() uint64 {
	if c.step != 0 {
		c.ns += c.step
		if c.tick != nil {
			c.tick(c.ns)
		}
	}
	return c.ns
}

// Advance moves time forward without an access.
func (c *VirtualClock) Advance(d time.Duration) {
	c.ns += uint64(d)
	if c.tick != nil {
		c.tick(c.ns)
	}
}

// OnTick registers a hook invoked after every time advance. The hook runs
// in the middle of whatever register access moved the clock: it must only
// peek at the model, never read or write.
func (c *VirtualClock) OnTick(fn func(now uint64)) {
	c.tick = fn
}

// ticker converts absolute time into a stream of whole clock ticks.
// Totals are always recomputed from the epoch, so repeated catch-ups
// cannot accumulate rounding drift: tick N elapses at exactly the same
// nanosecond no matter how often take is called. consumed stays in the
// raw input-tick domain, which keeps the prescaler phase across divider
// changes.
type ticker struct {
	epoch    uint64
	rate     uint64
	consumed uint64
}

func (tk *ticker) rebase(now uint64, rate units.Hertz) {
	tk.epoch = now
	tk.rate = uint64(rate)
	tk.consumed = 0
}

// take returns the number of whole counter steps elapsed up to now, with
// div input ticks per step. The remainder stays banked for the next call.
func (tk *ticker) take(now uint64, div uint64) uint64 {
	if tk.rate == 0 || div == 0 || now < tk.epoch {
		return 0
	}
	total := mulDiv64(now-tk.epoch, tk.rate, uint64(time.Second))
	steps := (total - tk.consumed) / div
	tk.consumed += steps * div
	return steps
}

// mulDiv64 returns a*b/d computed with a 128-bit intermediate.
func mulDiv64(a, b, d uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return ^uint64(0)
	}
	q, _ := bits.Div64(hi, lo, d)
	return q
}
