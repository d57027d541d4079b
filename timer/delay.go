package timer

import "time"

// Delay turns a fixed-frequency timer into a blocking wait. Requests
// longer than one hardware period are tiled across several full
// enable/overflow/disable cycles; the chunk arithmetic is exact, so a
// tiled wait is as long as a single-period one, to the tick.
type Delay[T Periodic] struct {
	ft *FTimer[T]
}

// Wait blocks for d. The wait is a CPU spin: there is no suspension
// and no cancellation once it starts.
func (d *Delay[T]) Wait(dur time.Duration) {
	d.WaitTicks(d.ft.TicksFor(dur))
}

// WaitTicks blocks for n ticks of the fixed rate. A period of k ticks
// is programmed as k-1, the counter wrapping one increment after TOP.
func (d *Delay[T]) WaitTicks(n uint64) {
	if n == 0 {
		return
	}
	t := d.ft.tim
	t.SetPeriodicMode()
	max := uint64(t.MaxPeriod())
	for n > 0 {
		chunk := min(n, max)
		t.SetPeriodUnchecked(uint32(chunk - 1))
		t.ResetCount()
		t.EnableCounter()
		for !t.Overflow() {
		}
		t.DisableCounter()
		t.ClearOverflow()
		n -= chunk
	}
}

// MaxDelay is the longest wait a single hardware period covers;
// anything above it costs an extra reprogramming cycle per chunk.
func (d *Delay[T]) MaxDelay() time.Duration {
	return d.ft.DurationOf(uint64(d.ft.tim.MaxPeriod()))
}

// Release hands the fixed-frequency timer back, counter disabled.
func (d *Delay[T]) Release() *FTimer[T] {
	d.ft.tim.DisableCounter()
	return d.ft
}
