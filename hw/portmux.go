package hw

import "xtiny/hw/hwio"

// Portmux models the port multiplexer. Only the timer waveform routes
// matter here: CTRLC moves individual TCA0 outputs to their alternate
// pins, CTRLD does the same for TCB0.
type Portmux struct {
	CTRLA hwio.Reg8 `hwio:"offset=0x0,rwmask=0x3F"`
	CTRLB hwio.Reg8 `hwio:"offset=0x1,rwmask=0x15"`
	CTRLC hwio.Reg8 `hwio:"offset=0x2,rwmask=0x3F"`
	CTRLD hwio.Reg8 `hwio:"offset=0x3,rwmask=0x01"`
}

func newPortmux() *Portmux {
	m := &Portmux{}
	hwio.MustInitRegs(m)
	return m
}

// TCA0Alt reports whether TCA0 waveform output wo is routed to its
// alternate pin (PB0/PB1/PB2 default, PB3/PB4/PB5 alternate).
func (m *Portmux) TCA0Alt(wo int) bool {
	return m.CTRLC.Value&(1<<wo) != 0
}

// TCB0Alt reports whether the TCB0 waveform output is routed to its
// alternate pin (PA5 default, PC0 alternate).
func (m *Portmux) TCB0Alt() bool {
	return m.CTRLD.Value&0x01 != 0
}
