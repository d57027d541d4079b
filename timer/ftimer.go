package timer

import (
	"time"

	"xtiny/log"
	"xtiny/units"
)

// FTimer is a hardware counter committed to a fixed tick rate. The
// prescaler connecting the clock source to that rate is resolved once
// at construction, which makes every later tick/duration conversion
// exact integer arithmetic.
//
// An FTimer owns its counter. Converting it into a Delay, Counter or
// Pwm passes that ownership on: the FTimer value must not be touched
// again until the wrapper's Release hands it back.
type FTimer[T Periodic] struct {
	tim  T
	src  ClockSource
	freq units.Hertz
}

// NewFTimer resolves the prescaler for freq against src and commits
// both to the counter. On failure the registers are left untouched:
// resolution happens before the first write, so there is no partial
// configuration to clean up.
func NewFTimer[T Periodic](tim T, src ClockSource, freq units.Hertz) (*FTimer[T], error) {
	ft := &FTimer[T]{tim: tim}
	if err := ft.Configure(src, freq); err != nil {
		return nil, err
	}
	return ft, nil
}

// Configure re-resolves and re-commits the clock source and rate. It
// is idempotent and legal on any FTimer that has not been consumed by
// a wrapper.
func (ft *FTimer[T]) Configure(src ClockSource, freq units.Hertz) error {
	input := ft.tim.InputClockRate(src)
	psc, err := ResolvePrescaler(input, freq, ft.tim.ValidPrescalers(src))
	if err != nil {
		return err
	}
	ft.tim.ResetCounterPeripheral()
	ft.tim.PrepareClockSource(src)
	ft.tim.SetPrescaler(psc)
	ft.src, ft.freq = src, freq
	log.ModTimer.DebugZ("timer configured").
		Stringer("src", src).
		Stringer("freq", freq).
		Uint("div", uint64(psc)).
		End()
	return nil
}

// Freq is the committed tick rate.
func (ft *FTimer[T]) Freq() units.Hertz { return ft.freq }

// Source is the committed clock source.
func (ft *FTimer[T]) Source() ClockSource { return ft.src }

func (ft *FTimer[T]) Enable()         { ft.tim.EnableCounter() }
func (ft *FTimer[T]) Disable()        { ft.tim.DisableCounter() }
func (ft *FTimer[T]) IsEnabled() bool { return ft.tim.IsCounterEnabled() }
func (ft *FTimer[T]) ResetCount()     { ft.tim.ResetCount() }
func (ft *FTimer[T]) Count() uint32   { return ft.tim.ReadCount() }

// MaxPeriod is the largest tick count one hardware period can hold.
func (ft *FTimer[T]) MaxPeriod() uint32 { return ft.tim.MaxPeriod() }

// TicksFor converts a duration into whole ticks at the fixed rate.
func (ft *FTimer[T]) TicksFor(d time.Duration) uint64 { return ft.freq.Ticks(d) }

// DurationOf converts a tick count back into a duration.
func (ft *FTimer[T]) DurationOf(n uint64) time.Duration { return ft.freq.DurationOf(n) }

// Delay converts the timer into a blocking wait primitive, consuming
// it.
func (ft *FTimer[T]) Delay() *Delay[T] {
	return &Delay[T]{ft: ft}
}

// Counter converts the timer into a start/poll/interrupt periodic
// counter, consuming it.
func (ft *FTimer[T]) Counter() *Counter[T] {
	return &Counter[T]{ft: ft}
}

// Release hands the raw counter back, disabled.
func (ft *FTimer[T]) Release() T {
	ft.tim.DisableCounter()
	return ft.tim
}

// UseAsClockSource presents a configured timer's fixed-rate output as
// a clock source for a downstream counter. The capability is tied to
// the concrete counter type, so this is a function rather than a
// method. The timer must be enabled before the source is handed to a
// consumer, and must stay enabled while the consumer runs; nothing
// checks that.
func UseAsClockSource[T interface {
	Periodic
	AsClockSource
}](ft *FTimer[T]) ClockSource {
	return ft.tim.UseAsClockSource(ft.freq)
}

// Timer is a counter bound to a clock source but not to a rate: users
// like CounterHz resolve a fresh prescaler on every start.
type Timer[T Periodic] struct {
	tim T
	src ClockSource
}

// NewTimer binds the counter to a clock source and resets it.
func NewTimer[T Periodic](tim T, src ClockSource) *Timer[T] {
	tim.InputClockRate(src)
	tim.ResetCounterPeripheral()
	tim.PrepareClockSource(src)
	return &Timer[T]{tim: tim, src: src}
}

// CounterHz converts the timer into a rate-programmable periodic
// counter, consuming it.
func (t *Timer[T]) CounterHz() *CounterHz[T] {
	return &CounterHz[T]{t: t}
}

// Release hands the raw counter back, disabled.
func (t *Timer[T]) Release() T {
	t.tim.DisableCounter()
	return t.tim
}
