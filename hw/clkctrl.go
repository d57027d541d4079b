package hw

import (
	"xtiny/hw/hwio"
	"xtiny/log"
	"xtiny/units"
)

// CLKCTRL models the clock controller: main clock source selection and
// the main prescaler that derives CLK_PER, the clock every peripheral in
// this model runs from.
type CLKCTRL struct {
	MCLKCTRLA  hwio.Reg8 `hwio:"offset=0x0,rwmask=0x83,wcb"`
	MCLKCTRLB  hwio.Reg8 `hwio:"offset=0x1,reset=0x11,rwmask=0x1F,wcb"`
	MCLKLOCK   hwio.Reg8 `hwio:"offset=0x2,rwmask=0x01"`
	MCLKSTATUS hwio.Reg8 `hwio:"offset=0x3,readonly,rcb"`

	mainHz uint64
	extHz  uint64

	// changed runs after a rate-affecting write, before the caller sees
	// the result. The MCU wires it to catch dependent timers up.
	changed func()
}

const (
	mclkSelOSC20M    = 0
	mclkSelOSCULP32K = 1
	mclkSelXOSC32K   = 2
	mclkSelEXTCLK    = 3

	mclkLockEn = 0x01
	mclkPen    = 0x01
)

func newCLKCTRL(mainHz, extHz units.Hertz) *CLKCTRL {
	c := &CLKCTRL{mainHz: uint64(mainHz), extHz: uint64(extHz)}
	hwio.MustInitRegs(c)
	return c
}

// MainRate is the undivided main clock (CLK_MAIN).
func (c *CLKCTRL) MainRate() units.Hertz {
	switch c.MCLKCTRLA.Value & 0x03 {
	case mclkSelOSC20M:
		return units.Hertz(c.mainHz)
	case mclkSelOSCULP32K, mclkSelXOSC32K:
		return 32768
	default:
		return units.Hertz(c.extHz)
	}
}

// PerRate is the peripheral clock (CLK_PER): CLK_MAIN through the main
// prescaler. Truncating division, same as the value firmware computes.
func (c *CLKCTRL) PerRate() units.Hertz {
	return units.Hertz(uint64(c.MainRate()) / c.mainDiv())
}

// mainDiv decodes MCLKCTRLB. The PDIV field has the power-of-two taps
// plus the odd 6/10/12/24/48 ones.
func (c *CLKCTRL) mainDiv() uint64 {
	b := c.MCLKCTRLB.Value
	if b&mclkPen == 0 {
		return 1
	}
	switch (b >> 1) & 0x0F {
	case 0x0:
		return 2
	case 0x1:
		return 4
	case 0x2:
		return 8
	case 0x3:
		return 16
	case 0x4:
		return 32
	case 0x5:
		return 64
	case 0x8:
		return 6
	case 0x9:
		return 10
	case 0xA:
		return 12
	case 0xB:
		return 24
	case 0xC:
		return 48
	default:
		return 1
	}
}

func (c *CLKCTRL) WriteMCLKCTRLA(old, val uint8) {
	if c.MCLKLOCK.Value&mclkLockEn != 0 {
		c.MCLKCTRLA.Value = old
		log.ModClk.WarnZ("MCLKCTRLA write dropped, configuration locked").Hex8("val", val).End()
		return
	}
	if old != val && c.changed != nil {
		c.changed()
	}
}

func (c *CLKCTRL) WriteMCLKCTRLB(old, val uint8) {
	if c.MCLKLOCK.Value&mclkLockEn != 0 {
		c.MCLKCTRLB.Value = old
		log.ModClk.WarnZ("MCLKCTRLB write dropped, configuration locked").Hex8("val", val).End()
		return
	}
	if old != val && c.changed != nil {
		c.changed()
	}
}

// ReadMCLKSTATUS reports the active source as stable. Source switches
// settle instantly in this model, so SOSC never reads as set.
func (c *CLKCTRL) ReadMCLKSTATUS(val uint8) uint8 {
	switch c.MCLKCTRLA.Value & 0x03 {
	case mclkSelOSC20M:
		return 0x10
	case mclkSelOSCULP32K:
		return 0x20
	case mclkSelXOSC32K:
		return 0x40
	default:
		return 0x80
	}
}
