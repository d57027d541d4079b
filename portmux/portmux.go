// Package portmux owns the port multiplexer: the one block that
// decides which pad a timer waveform actually reaches. Routing a pin
// returns a WaveformPin, a proof that the mux has been committed, and
// the PWM layer only accepts channels backed by such a proof.
package portmux

import (
	"fmt"

	"xtiny/gpio"
	"xtiny/hw"
	"xtiny/log"
)

// Target names the peripheral a waveform pin belongs to.
type Target uint8

const (
	TargetTCA0 Target = iota
	TargetTCB0
)

func (t Target) String() string {
	switch t {
	case TargetTCA0:
		return "TCA0"
	case TargetTCB0:
		return "TCB0"
	}
	return fmt.Sprintf("Target(%d)", uint8(t))
}

// Portmux is the multiplexer constrained to this driver.
type Portmux struct {
	mux *hw.Portmux
}

func Constrain(mux *hw.Portmux) Portmux {
	return Portmux{mux: mux}
}

// WaveformPin proves a pad has been routed to a waveform output.
type WaveformPin struct {
	target Target
	wo     uint8
	pin    gpio.ID
}

func (p WaveformPin) Target() Target { return p.target }

// WO is the waveform output index within the target peripheral.
func (p WaveformPin) WO() uint8 { return p.wo }

func (p WaveformPin) Pin() gpio.ID { return p.pin }

func (p WaveformPin) String() string {
	return fmt.Sprintf("%v WO%d on %v", p.target, p.wo, p.pin)
}

// tca0Routes maps pads to TCA0 waveform outputs. PB0..PB2 are the
// default locations, PB3..PB5 the alternate ones selected per-channel
// through TCAROUTEA.
var tca0Routes = map[gpio.ID]struct {
	wo  uint8
	alt bool
}{
	gpio.PB0: {0, false},
	gpio.PB1: {1, false},
	gpio.PB2: {2, false},
	gpio.PB3: {0, true},
	gpio.PB4: {1, true},
	gpio.PB5: {2, true},
}

// RouteTCA0 routes a pad to the TCA0 waveform output that can reach
// it and commits the mux. Pads outside TCA0's reach are a wiring bug,
// not a runtime condition, so they panic.
func (p Portmux) RouteTCA0(out gpio.StatelessOutput) WaveformPin {
	r, ok := tca0Routes[out.ID()]
	if !ok {
		panic(fmt.Sprintf("portmux: %v cannot carry a TCA0 waveform", out.ID()))
	}
	v := p.mux.CTRLC.Read8(0)
	if r.alt {
		v |= 1 << r.wo
	} else {
		v &^= 1 << r.wo
	}
	p.mux.CTRLC.Write8(0, v)
	log.ModPort.DebugZ("waveform routed").
		String("target", "TCA0").
		Uint8("wo", r.wo).
		Stringer("pin", out.ID()).
		Bool("alt", r.alt).
		End()
	return WaveformPin{target: TargetTCA0, wo: r.wo, pin: out.ID()}
}

// RouteTCB0 routes a pad to TCB0's single waveform output, PA5 by
// default or PC0 through the alternate location.
func (p Portmux) RouteTCB0(out gpio.StatelessOutput) WaveformPin {
	var alt bool
	switch out.ID() {
	case gpio.PA5:
		alt = false
	case gpio.PC0:
		alt = true
	default:
		panic(fmt.Sprintf("portmux: %v cannot carry the TCB0 waveform", out.ID()))
	}
	v := p.mux.CTRLD.Read8(0)
	if alt {
		v |= 0x01
	} else {
		v &^= 0x01
	}
	p.mux.CTRLD.Write8(0, v)
	log.ModPort.DebugZ("waveform routed").
		String("target", "TCB0").
		Stringer("pin", out.ID()).
		Bool("alt", alt).
		End()
	return WaveformPin{target: TargetTCB0, wo: 0, pin: out.ID()}
}
