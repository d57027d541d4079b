// Package clkctrl configures the main clock tree and freezes it into an
// immutable Clocks value. Everything downstream that needs a rate (timer
// prescaler resolution above all) works from the frozen Clocks, never
// from the live registers: the clock configuration is a
// decide-once-at-boot affair.
package clkctrl

import (
	"xtiny/hw"
	"xtiny/log"
	"xtiny/units"
)

// Source selects the main clock oscillator.
type Source uint8

const (
	Osc20M    Source = 0x0 // 20 MHz internal oscillator
	OscUlp32K Source = 0x1 // 32.768 kHz internal ULP oscillator
)

// Prescaler selects the main prescaler tap deriving CLK_PER.
type Prescaler uint8

const (
	PrescalerOff Prescaler = iota
	Prescaler2
	Prescaler4
	Prescaler6
	Prescaler8
	Prescaler10
	Prescaler12
	Prescaler16
	Prescaler24
	Prescaler32
	Prescaler48
	Prescaler64
)

var prescalerTab = map[Prescaler]struct {
	div   uint32
	field uint8
}{
	Prescaler2:  {2, 0x0},
	Prescaler4:  {4, 0x1},
	Prescaler8:  {8, 0x2},
	Prescaler16: {16, 0x3},
	Prescaler32: {32, 0x4},
	Prescaler64: {64, 0x5},
	Prescaler6:  {6, 0x8},
	Prescaler10: {10, 0x9},
	Prescaler12: {12, 0xA},
	Prescaler24: {24, 0xB},
	Prescaler48: {48, 0xC},
}

// ClkCtrl is the clock controller constrained to this driver. It is a
// value: option methods return an updated copy, Freeze commits.
type ClkCtrl struct {
	clk    *hw.CLKCTRL
	mainHz units.Hertz
	src    Source
	div    Prescaler
	lock   bool
}

// Constrain takes ownership of the clock controller. The configuration
// starts at full speed: 20 MHz oscillator, prescaler off.
func Constrain(clk *hw.CLKCTRL) ClkCtrl {
	return ConstrainAt(clk, units.MHz(20))
}

// ConstrainAt is Constrain for parts running the main oscillator at a
// non-default rate (the 16 MHz fuse option, or an external clock).
func ConstrainAt(clk *hw.CLKCTRL, mainHz units.Hertz) ClkCtrl {
	return ClkCtrl{clk: clk, mainHz: mainHz}
}

// Source selects the main oscillator.
func (c ClkCtrl) Source(s Source) ClkCtrl {
	c.src = s
	return c
}

// Prescaler selects the CLK_PER division.
func (c ClkCtrl) Prescaler(p Prescaler) ClkCtrl {
	c.div = p
	return c
}

// Locked makes Freeze write-protect the clock registers after
// committing, so no later store can silently re-rate the system.
func (c ClkCtrl) Locked() ClkCtrl {
	c.lock = true
	return c
}

// Freeze commits the configuration to the registers and returns the
// resulting clock rates. The returned Clocks is the single source of
// truth for downstream rate math.
func (c ClkCtrl) Freeze() Clocks {
	ctrlb := uint8(0)
	div := uint32(1)
	if c.div != PrescalerOff {
		e := prescalerTab[c.div]
		ctrlb = e.field<<1 | 0x01
		div = e.div
	}
	c.clk.MCLKCTRLA.Set(uint8(c.src))
	c.clk.MCLKCTRLB.Set(ctrlb)
	if c.lock {
		c.clk.MCLKLOCK.Set(0x01)
	}

	main := c.mainHz
	if c.src == OscUlp32K {
		main = 32768
	}
	per := units.Hertz(uint32(main) / div)
	log.ModClk.InfoZ("clock tree frozen").
		Stringer("main", main).
		Stringer("per", per).
		Bool("locked", c.lock).
		End()
	return Clocks{main: main, per: per}
}

// Clocks is the frozen clock tree.
type Clocks struct {
	main units.Hertz
	per  units.Hertz
}

// Main is the main clock rate (CLK_MAIN).
func (c Clocks) Main() units.Hertz { return c.main }

// Per is the peripheral clock rate (CLK_PER).
func (c Clocks) Per() units.Hertz { return c.per }
