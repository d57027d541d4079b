package timer

import (
	"fmt"
	"time"

	"xtiny/log"
	"xtiny/units"
)

// Counter runs one bounded period at the timer's fixed rate, watched
// by polling or by an overflow interrupt. Unlike Delay it never
// tiles: a duration that does not fit one hardware period is refused,
// because an interrupt-driven period must be a single hardware cycle.
type Counter[T Periodic] struct {
	ft *FTimer[T]
}

// Start programs one period of d and starts counting.
func (c *Counter[T]) Start(d time.Duration) error {
	return c.StartTicks(c.ft.TicksFor(d))
}

// StartTicks programs one period of n ticks and starts counting. On
// error the counter is left disabled.
func (c *Counter[T]) StartTicks(n uint64) error {
	t := c.ft.tim
	t.DisableCounter()
	if n == 0 || n > uint64(t.MaxPeriod()) {
		return fmt.Errorf("%w: %d ticks in a %d-tick period", ErrImpossiblePrescaler, n, t.MaxPeriod())
	}
	t.SetPeriodicMode()
	t.SetPeriodUnchecked(uint32(n - 1))
	t.ResetCount()
	t.ClearOverflow()
	t.EnableCounter()
	return nil
}

// Cancel stops the counter without clearing its state.
func (c *Counter[T]) Cancel() {
	c.ft.tim.DisableCounter()
}

func (c *Counter[T]) Count() uint32 {
	return c.ft.tim.ReadCount()
}

// Overflow and ClearOverflow are the polling path.

func (c *Counter[T]) Overflow() bool { return c.ft.tim.Overflow() }
func (c *Counter[T]) ClearOverflow() { c.ft.tim.ClearOverflow() }

// The interrupt and event surface is passed through so a handler can
// acknowledge its overflow and re-arm without touching raw registers.

func (c *Counter[T]) EnableInterrupt(i Interrupt)  { c.ft.tim.EnableInterrupt(i) }
func (c *Counter[T]) DisableInterrupt(i Interrupt) { c.ft.tim.DisableInterrupt(i) }
func (c *Counter[T]) SetInterrupts(ints ...Interrupt) {
	c.ft.tim.SetInterrupts(ints...)
}
func (c *Counter[T]) IsInterruptConfigured(i Interrupt) bool {
	return c.ft.tim.IsInterruptConfigured(i)
}
func (c *Counter[T]) IsEventTriggered(e Event) bool { return c.ft.tim.IsEventTriggered(e) }
func (c *Counter[T]) ClearEvent(e Event)            { c.ft.tim.ClearEvent(e) }

// Release hands the fixed-frequency timer back, counter disabled.
func (c *Counter[T]) Release() *FTimer[T] {
	c.ft.tim.DisableCounter()
	return c.ft
}

// CounterHz is the rate-programmed flavor: every Start resolves a
// prescaler and period pair for the requested overflow rate from
// scratch, preferring the smallest prescaler so the period register
// keeps the most resolution.
type CounterHz[T Periodic] struct {
	t *Timer[T]
}

// Start begins overflowing at the given rate. The rate must be
// derivable exactly: some prescaler must divide the input clock into
// a whole number of ticks per overflow that fits the period register.
func (c *CounterHz[T]) Start(rate units.Hertz) error {
	tim := c.t.tim
	tim.DisableCounter()
	if rate == 0 {
		return fmt.Errorf("%w: zero rate", ErrImpossiblePrescaler)
	}
	input := tim.InputClockRate(c.t.src)
	for _, p := range tim.ValidPrescalers(c.t.src) {
		per := uint64(p) * uint64(rate)
		if per == 0 || uint64(input)%per != 0 {
			continue
		}
		n := uint64(input) / per
		if n == 0 || n > uint64(tim.MaxPeriod()) {
			continue
		}
		tim.SetPrescaler(p)
		tim.SetPeriodicMode()
		tim.SetPeriodUnchecked(uint32(n - 1))
		tim.ResetCount()
		tim.ClearOverflow()
		tim.EnableCounter()
		log.ModTimer.DebugZ("counter started").
			Stringer("rate", rate).
			Uint("div", uint64(p)).
			Uint("period", n).
			End()
		return nil
	}
	return fmt.Errorf("%w: %v from %v", ErrImpossiblePrescaler, rate, input)
}

// Cancel stops the counter.
func (c *CounterHz[T]) Cancel() {
	c.t.tim.DisableCounter()
}

func (c *CounterHz[T]) Count() uint32 {
	return c.t.tim.ReadCount()
}

func (c *CounterHz[T]) Overflow() bool { return c.t.tim.Overflow() }
func (c *CounterHz[T]) ClearOverflow() { c.t.tim.ClearOverflow() }

func (c *CounterHz[T]) EnableInterrupt(i Interrupt)  { c.t.tim.EnableInterrupt(i) }
func (c *CounterHz[T]) DisableInterrupt(i Interrupt) { c.t.tim.DisableInterrupt(i) }
func (c *CounterHz[T]) IsEventTriggered(e Event) bool {
	return c.t.tim.IsEventTriggered(e)
}
func (c *CounterHz[T]) ClearEvent(e Event) { c.t.tim.ClearEvent(e) }

// Release hands the variable-frequency timer back, counter disabled.
func (c *CounterHz[T]) Release() *Timer[T] {
	c.t.tim.DisableCounter()
	return c.t
}
