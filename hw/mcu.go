package hw

import (
	"fmt"

	"xtiny/hw/hwio"
	"xtiny/units"
)

// Profile configures the modeled chip. Zero values pick the hardware
// defaults: 20 MHz main oscillator, 32.768 kHz crystal on TOSC1, wall
// clock time.
type Profile struct {
	MainHz   units.Hertz
	Tosc1Hz  units.Hertz
	ExtClkHz units.Hertz // external main clock on EXTCLK, 0 when absent
	Clock    Timebase
}

func (p Profile) withDefaults() Profile {
	if p.MainHz == 0 {
		p.MainHz = units.MHz(20)
	}
	if p.Tosc1Hz == 0 {
		p.Tosc1Hz = 32768
	}
	if p.Clock == nil {
		p.Clock = NewWallClock()
	}
	return p
}

// MCU is the modeled tinyAVR 1-series device: the peripheral blocks the
// timer layer needs, mapped into one data-space bus at their datasheet
// base addresses.
//
// The Take accessors hand each block out exactly once. The returned
// pointers are the same the MCU itself holds; taking is purely an
// ownership discipline so two drivers cannot claim one block.
type MCU struct {
	Bus *hwio.Table

	CLKCTRL *CLKCTRL
	PORTA   *Port
	PORTB   *Port
	PORTC   *Port
	PORTMUX *Portmux
	CPUINT  *CPUInt
	TCA0    *TCA
	TCB0    *TCB
	RTC     *RTC

	clock Timebase
	sram  hwio.Mem
	vp    vports
	taken uint16
}

const (
	takenTCA0 = 1 << iota
	takenTCB0
	takenRTC
	takenCLKCTRL
	takenPORTA
	takenPORTB
	takenPORTC
	takenPORTMUX
)

func New(p Profile) *MCU {
	p = p.withDefaults()

	m := &MCU{clock: p.Clock}
	m.CLKCTRL = newCLKCTRL(p.MainHz, p.ExtClkHz)
	m.CPUINT = newCPUInt()
	m.PORTA = newPort("PORTA", 0, 8)
	m.PORTB = newPort("PORTB", 1, 8)
	m.PORTC = newPort("PORTC", 2, 6)
	m.PORTMUX = newPortmux()
	m.TCA0 = newTCA(p.Clock, m.CLKCTRL, m.CPUINT)
	m.TCB0 = newTCB(p.Clock, m.CLKCTRL, m.TCA0, m.CPUINT)
	m.RTC = newRTC(p.Clock, m.CPUINT, p.Tosc1Hz)

	m.CLKCTRL.changed = func() {
		m.TCA0.clockChanged()
		m.TCB0.clockChanged()
	}
	m.TCA0.rateOut = m.TCB0.tcaRateChanged

	m.wireWaveforms()

	m.sram = hwio.Mem{Name: "SRAM", Data: make([]byte, 512), VSize: 512}
	m.vp = vports{a: m.PORTA, b: m.PORTB, c: m.PORTC}
	hwio.MustInitRegs(&m.vp)

	bus := hwio.NewTable("attiny817")
	bus.MapBank(0x0000, &m.vp, 0)
	bus.MapBank(0x0060, m.CLKCTRL, 0)
	bus.MapBank(0x0110, m.CPUINT, 0)
	bus.MapBank(0x0140, m.RTC, 0)
	bus.MapBank(0x0200, m.PORTMUX, 0)
	bus.MapBank(0x0400, m.PORTA, 0)
	bus.MapBank(0x0420, m.PORTB, 0)
	bus.MapBank(0x0440, m.PORTC, 0)
	bus.MapBank(0x0A00, m.TCA0, 0)
	bus.MapBank(0x0A40, m.TCB0, 0)
	bus.MapMem(0x3E00, &m.sram)
	m.Bus = bus

	return m
}

// wireWaveforms routes the timer waveform outputs onto their pins. TCA0
// WO0..WO2 default to PB0..PB2 with alternates on PB3..PB5; TCB0 WO
// defaults to PA5 with the alternate on PC0. The port multiplexer
// decides which routing is live at read time.
func (m *MCU) wireWaveforms() {
	tca := func(port *Port, bit uint8, wo int, alt bool) {
		sel := func() bool { return m.PORTMUX.TCA0Alt(wo) == alt }
		port.SetOverride(bit,
			func() (bool, bool) {
				lvl, act := m.TCA0.Waveform(wo)
				return lvl, act && sel()
			},
			func() (bool, bool) {
				lvl, act := m.TCA0.WaveformPeek(wo)
				return lvl, act && sel()
			})
	}
	tca(m.PORTB, 0, 0, false)
	tca(m.PORTB, 1, 1, false)
	tca(m.PORTB, 2, 2, false)
	tca(m.PORTB, 3, 0, true)
	tca(m.PORTB, 4, 1, true)
	tca(m.PORTB, 5, 2, true)

	tcb := func(port *Port, bit uint8, alt bool) {
		sel := func() bool { return m.PORTMUX.TCB0Alt() == alt }
		port.SetOverride(bit,
			func() (bool, bool) {
				lvl, act := m.TCB0.Waveform()
				return lvl, act && sel()
			},
			func() (bool, bool) {
				lvl, act := m.TCB0.WaveformPeek()
				return lvl, act && sel()
			})
	}
	tcb(m.PORTA, 5, false)
	tcb(m.PORTC, 0, true)
}

func (m *MCU) take(bit uint16, name string) {
	if m.taken&bit != 0 {
		panic(fmt.Sprintf("hw: %s already taken", name))
	}
	m.taken |= bit
}

func (m *MCU) TakeTCA0() *TCA {
	m.take(takenTCA0, "TCA0")
	return m.TCA0
}

func (m *MCU) TakeTCB0() *TCB {
	m.take(takenTCB0, "TCB0")
	return m.TCB0
}

func (m *MCU) TakeRTC() *RTC {
	m.take(takenRTC, "RTC")
	return m.RTC
}

func (m *MCU) TakeCLKCTRL() *CLKCTRL {
	m.take(takenCLKCTRL, "CLKCTRL")
	return m.CLKCTRL
}

func (m *MCU) TakePORTA() *Port {
	m.take(takenPORTA, "PORTA")
	return m.PORTA
}

func (m *MCU) TakePORTB() *Port {
	m.take(takenPORTB, "PORTB")
	return m.PORTB
}

func (m *MCU) TakePORTC() *Port {
	m.take(takenPORTC, "PORTC")
	return m.PORTC
}

func (m *MCU) TakePORTMUX() *Portmux {
	m.take(takenPORTMUX, "PORTMUX")
	return m.PORTMUX
}

func (m *MCU) Clock() Timebase { return m.clock }

// EnableInterrupts and DisableInterrupts mirror the sei/cli pair.
// Handler registration stands in for the vector table.

func (m *MCU) EnableInterrupts()  { m.CPUINT.EnableGlobal() }
func (m *MCU) DisableInterrupts() { m.CPUINT.DisableGlobal() }

func (m *MCU) Handle(v Vector, fn func()) { m.CPUINT.Handle(v, fn) }

// vports adapts the four virtual port registers of each port to the
// low I/O space. DIR and OUT alias the full port registers, IN runs the
// full read path, and a write to IN toggles OUT.
type vports struct {
	a, b, c *Port

	VPORTA hwio.Device `hwio:"offset=0x0,size=4,rcb,wcb,pcb"`
	VPORTB hwio.Device `hwio:"offset=0x4,size=4,rcb,wcb,pcb"`
	VPORTC hwio.Device `hwio:"offset=0x8,size=4,rcb,wcb,pcb"`
}

func vportRead(p *Port, idx uint16) uint8 {
	switch idx {
	case 0:
		return p.DIR.Get()
	case 1:
		return p.OUT.Get()
	case 2:
		return p.IN.Get()
	default:
		return p.INTFLAGS.Get()
	}
}

func vportPeek(p *Port, idx uint16) uint8 {
	switch idx {
	case 0:
		return p.DIR.Peek8(0)
	case 1:
		return p.OUT.Peek8(0)
	case 2:
		return p.IN.Peek8(0)
	default:
		return p.INTFLAGS.Peek8(0)
	}
}

func vportWrite(p *Port, idx uint16, val uint8) {
	switch idx {
	case 0:
		p.DIR.Set(val)
	case 1:
		p.OUT.Set(val)
	case 2:
		p.OUTTGL.Set(val)
	default:
		p.INTFLAGS.Set(val)
	}
}

func (v *vports) ReadVPORTA(addr uint16) uint8       { return vportRead(v.a, addr&3) }
func (v *vports) PeekVPORTA(addr uint16) uint8       { return vportPeek(v.a, addr&3) }
func (v *vports) WriteVPORTA(addr uint16, val uint8) { vportWrite(v.a, addr&3, val) }
func (v *vports) ReadVPORTB(addr uint16) uint8       { return vportRead(v.b, addr&3) }
func (v *vports) PeekVPORTB(addr uint16) uint8       { return vportPeek(v.b, addr&3) }
func (v *vports) WriteVPORTB(addr uint16, val uint8) { vportWrite(v.b, addr&3, val) }
func (v *vports) ReadVPORTC(addr uint16) uint8       { return vportRead(v.c, addr&3) }
func (v *vports) PeekVPORTC(addr uint16) uint8       { return vportPeek(v.c, addr&3) }
func (v *vports) WriteVPORTC(addr uint16, val uint8) { vportWrite(v.c, addr&3, val) }
