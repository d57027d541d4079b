// Package timer drives the three hardware counters (TCA0, TCB0, RTC)
// through one shared API for blocking delays, periodic counting with
// interrupts and PWM output.
//
// The package is organized as a set of capability interfaces. Each
// counter adapter implements the subset its hardware supports:
// TimerClock (clock-source selection and prescaling), General (counter
// lifecycle, interrupt and event masks), PeriodicMode (period register
// and overflow), AsClockSource (chaining one counter's output into
// another's input) and PwmTimer (waveform generation). Generic code is
// written against the interfaces and compiles once for all three
// counters even though their register layouts share nothing.
//
// Frequency math is integer-only and must divide exactly: a requested
// rate that is not an exact divisor of the input clock fails with
// ErrImpossiblePrescaler instead of being rounded. Rounding here would
// put a small error inside every downstream tick-to-duration
// conversion, and those errors compound across chained delays.
package timer

import (
	"errors"
	"fmt"
	"slices"

	"xtiny/clkctrl"
	"xtiny/portmux"
	"xtiny/units"
)

//go:generate go tool stringer -type=Interrupt,Event,Channel -output=enums_string.go

// Interrupt names one interrupt source of a counter. Each adapter
// accepts the sources its hardware has and panics on the others, since
// asking TCB0 for a Compare2 interrupt is a wiring bug.
type Interrupt uint8

const (
	IntOverflow Interrupt = iota
	IntCompare0
	IntCompare1
	IntCompare2
	IntCapture
)

// Event names one event flag of a counter.
type Event uint8

const (
	EvtOverflow Event = iota
	EvtCompare0
	EvtCompare1
	EvtCompare2
	EvtCapture
)

// Channel names a compare/waveform unit within one counter.
type Channel uint8

const (
	Ch0 Channel = iota
	Ch1
	Ch2
)

// ErrImpossiblePrescaler is the one error this package produces: the
// requested rate cannot be derived exactly from the input clock with
// any legal prescaler, or a requested period does not fit the hardware
// counter width.
var ErrImpossiblePrescaler = errors.New("timer: impossible prescaler")

// ResolvePrescaler maps an input clock rate and a requested output
// rate to the prescaler that connects them. Only exact integer ratios
// are accepted, and the ratio must be a member of the legal set.
func ResolvePrescaler(input, target units.Hertz, legal []uint32) (uint32, error) {
	if input == 0 || target == 0 || uint32(input)%uint32(target) != 0 {
		return 0, fmt.Errorf("%w: %v from %v", ErrImpossiblePrescaler, target, input)
	}
	p := uint32(input) / uint32(target)
	if !slices.Contains(legal, p) {
		return 0, fmt.Errorf("%w: %v from %v needs /%d", ErrImpossiblePrescaler, target, input, p)
	}
	return p, nil
}

// ClockSource is a sealed sum of the clock inputs a counter can run
// from. Which variants a given counter accepts is part of its
// contract; handing it any other variant panics.
type ClockSource interface {
	fmt.Stringer
	isClockSource()
}

// PeripheralClock is CLK_PER, carried with the frozen clock tree it
// was derived from. The rate is read from Clocks once at resolution
// time; later clock reconfiguration is not observed.
type PeripheralClock struct {
	Clocks clkctrl.Clocks
}

func (PeripheralClock) isClockSource() {}

func (s PeripheralClock) String() string { return "CLK_PER" }

// TCAClock is TCA0's prescaled clock output, usable as TCB0's input.
// Values are produced by UseAsClockSource on a configured timer; the
// carried rate is only meaningful while that timer stays enabled.
type TCAClock struct {
	rate units.Hertz
}

func (TCAClock) isClockSource() {}

func (s TCAClock) String() string { return fmt.Sprintf("TCA0 clock (%v)", s.rate) }

// Rate is the producing timer's configured output rate.
func (s TCAClock) Rate() units.Hertz { return s.rate }

// RTCOscillator selects one of the RTC's fixed-rate clock inputs.
type RTCOscillator uint8

const (
	RTCUlp32k  RTCOscillator = iota // internal ULP oscillator, 32.768 kHz
	RTCUlp1k                        // internal ULP oscillator divided to 1.024 kHz
	RTCXosc32k                      // 32.768 kHz crystal on TOSC1/TOSC2
)

func (RTCOscillator) isClockSource() {}

func (s RTCOscillator) String() string {
	switch s {
	case RTCUlp1k:
		return "INT1K"
	case RTCXosc32k:
		return "TOSC32K"
	}
	return "INT32K"
}

func (s RTCOscillator) rate() units.Hertz {
	if s == RTCUlp1k {
		return 1024
	}
	return 32768
}

// RTCExtClock is an external clock on the TOSC1 pin. The rate is the
// caller's knowledge of the board, not something the chip can measure.
type RTCExtClock struct {
	Hz units.Hertz
}

func (RTCExtClock) isClockSource() {}

func (s RTCExtClock) String() string { return fmt.Sprintf("EXTCLK (%v)", s.Hz) }

// TimerClock is clock-source selection and prescaling. InputClockRate
// and ValidPrescalers are pure queries; PrepareClockSource and
// SetPrescaler commit to registers.
type TimerClock interface {
	InputClockRate(src ClockSource) units.Hertz
	PrepareClockSource(src ClockSource)
	ValidPrescalers(src ClockSource) []uint32
	SetPrescaler(p uint32)
	ReadPrescaler() uint32
}

// General is the counter lifecycle every adapter supports. Enable and
// disable are idempotent. On counters whose register file is
// asynchronous to the bus clock every mutation first waits out the
// hardware's busy flag, because a write issued while busy is silently
// dropped, not delayed.
type General interface {
	ResetCounterPeripheral()
	EnableCounter()
	DisableCounter()
	IsCounterEnabled() bool
	ResetCount()
	ReadCount() uint32

	EnableInterrupt(i Interrupt)
	DisableInterrupt(i Interrupt)
	SetInterrupts(ints ...Interrupt)
	IsInterruptConfigured(i Interrupt) bool
	IsEventTriggered(e Event) bool
	ClearEvent(e Event)
}

// PeriodicMode is the period/overflow machinery. SetPeriodUnchecked
// narrows to the hardware width without validation: callers work in
// widened arithmetic and are responsible for staying under MaxPeriod.
type PeriodicMode interface {
	SetPeriodicMode()
	ReadPeriod() uint32
	SetPeriodUnchecked(n uint32)
	TriggerUpdate()
	MaxPeriod() uint32
	Overflow() bool
	ClearOverflow()
}

// Instance is a counter with clocking and lifecycle control.
type Instance interface {
	TimerClock
	General
}

// Periodic is a counter that can run a period/overflow cycle, the
// requirement for FTimer and everything built on it.
type Periodic interface {
	Instance
	PeriodicMode
}

// AsClockSource is implemented by counters whose prescaled output can
// feed another counter. The producing timer must be configured and
// enabled before the returned source is handed on; nothing checks
// that, it is a caller obligation.
type AsClockSource interface {
	UseAsClockSource(rate units.Hertz) ClockSource
}

// PwmTimer is waveform generation: a handful of compare channels whose
// output reaches pads routed through the port multiplexer.
type PwmTimer interface {
	WaveformTarget() portmux.Target
	Channels() int
	SetWaveformMode()
	EnableChannel(ch Channel)
	DisableChannel(ch Channel)
	Duty(ch Channel) uint16
	SetDuty(ch Channel, duty uint16)
}

// WaveformTimer is a counter that can both keep a period and drive
// waveform channels.
type WaveformTimer interface {
	Periodic
	PwmTimer
}
