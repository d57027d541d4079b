package timer

import (
	"fmt"

	"xtiny/log"
	"xtiny/portmux"
)

// Pwm drives the waveform channels of a timer. A channel is usable
// only when backed by a routed pad: binding happens at construction
// from port-multiplexer proofs, so enabling an unrouted channel is a
// caught wiring bug, not a silent no-op on a floating pad.
type Pwm[T WaveformTimer] struct {
	ft    *FTimer[T]
	bound uint8
}

// NewPwm puts the timer into waveform mode, binds the routed pins to
// their channels and starts the counter. The capability is tied to
// the concrete counter type, so this is a function rather than an
// FTimer method. The FTimer is consumed.
func NewPwm[T WaveformTimer](ft *FTimer[T], pins ...portmux.WaveformPin) *Pwm[T] {
	p := &Pwm[T]{ft: ft}
	tgt := ft.tim.WaveformTarget()
	for _, pin := range pins {
		if pin.Target() != tgt {
			panic(fmt.Sprintf("timer: %v does not belong to %v", pin, tgt))
		}
		if int(pin.WO()) >= ft.tim.Channels() {
			panic(fmt.Sprintf("timer: %v exceeds the channel count", pin))
		}
		p.bound |= 1 << pin.WO()
	}
	ft.tim.SetWaveformMode()
	ft.tim.EnableCounter()
	log.ModTimer.DebugZ("pwm started").
		Stringer("target", tgt).
		Hex8("bound", p.bound).
		End()
	return p
}

func (p *Pwm[T]) checkBound(ch Channel) {
	if p.bound&(1<<ch) == 0 {
		panic(fmt.Sprintf("timer: channel %v has no routed pin", ch))
	}
}

// Enable connects the channel's compare output to its routed pad.
func (p *Pwm[T]) Enable(ch Channel) {
	p.checkBound(ch)
	p.ft.tim.EnableChannel(ch)
}

// Disable releases the pad back to the port output driver.
func (p *Pwm[T]) Disable(ch Channel) {
	p.checkBound(ch)
	p.ft.tim.DisableChannel(ch)
}

// Duty and SetDuty are the control-loop hot path: raw register
// accesses with no validation. Zero duty pins the output low, a duty
// at or above the period saturates it high.

func (p *Pwm[T]) Duty(ch Channel) uint16 {
	return p.ft.tim.Duty(ch)
}

func (p *Pwm[T]) SetDuty(ch Channel, duty uint16) {
	p.ft.tim.SetDuty(ch, duty)
}

func (p *Pwm[T]) Period() uint16 {
	return uint16(p.ft.tim.ReadPeriod())
}

func (p *Pwm[T]) SetPeriod(v uint16) {
	p.ft.tim.SetPeriodUnchecked(uint32(v))
}

// MaxDuty equals the current period: duty and period share a unit.
func (p *Pwm[T]) MaxDuty() uint16 {
	return p.Period()
}

// Release disables the bound channels and the counter and hands the
// timer back.
func (p *Pwm[T]) Release() *FTimer[T] {
	for ch := Ch0; int(ch) < p.ft.tim.Channels(); ch++ {
		if p.bound&(1<<ch) != 0 {
			p.ft.tim.DisableChannel(ch)
		}
	}
	p.ft.tim.DisableCounter()
	return p.ft
}
