package hw

import (
	"xtiny/hw/hwio"
	"xtiny/log"
	"xtiny/units"
)

// TCB models the 16-bit Timer/Counter type B. Two of its count modes are
// implemented: periodic interrupt (CNT counts to CCMP inclusive, wraps,
// raises CAPT) and 8-bit PWM (low byte of CNT counts to CCMPL, CCMPH is
// the duty). The clock input is CLK_PER, CLK_PER/2 or the prescaled
// clock of TCA0; the last one is what makes timer chaining work.
//
// Same catch-up discipline as TCA: nothing advances except under a
// register access, and a rate change on the TCA side settles this
// counter's account before taking effect.
type TCB struct {
	CTRLA    hwio.Reg8  `hwio:"offset=0x00,rwmask=0x57,wcb"`
	CTRLB    hwio.Reg8  `hwio:"offset=0x01,rwmask=0x77,wcb"`
	EVCTRL   hwio.Reg8  `hwio:"offset=0x04,rwmask=0x51"`
	INTCTRL  hwio.Reg8  `hwio:"offset=0x05,rwmask=0x01,wcb"`
	INTFLAGS hwio.Reg8  `hwio:"offset=0x06,rcb,wcb"`
	STATUS   hwio.Reg8  `hwio:"offset=0x07,readonly,rcb=ReadSTATUS,pcb=ReadSTATUS"`
	DBGCTRL  hwio.Reg8  `hwio:"offset=0x08,rwmask=0x01"`
	TEMP     hwio.Reg8  `hwio:"offset=0x0A"`
	CNT      hwio.Reg16 `hwio:"offset=0x0C,rcb,wcb"`
	CCMP     hwio.Reg16 `hwio:"offset=0x0E,wcb"`

	tb   Timebase
	clk  *CLKCTRL
	tca  *TCA
	irq  *CPUInt
	tick ticker

	enabled bool
	clksel  uint8
	mode    uint8
}

const (
	tcbEnable = 0x01

	tcbClkDiv1 = 0x0
	tcbClkDiv2 = 0x1
	tcbClkTCA  = 0x2

	tcbModeInt  = 0x0
	tcbModePwm8 = 0x7

	tcbCcmpEn = 0x10

	tcbFlagCapt = 0x01

	tcbStatusRun = 0x01
)

func newTCB(tb Timebase, clk *CLKCTRL, tca *TCA, irq *CPUInt) *TCB {
	b := &TCB{tb: tb, clk: clk, tca: tca, irq: irq}
	hwio.MustInitRegs(b)
	b.tick.rebase(tb.Now(), b.inputRate())
	return b
}

// inputRate is the selected clock input before the /1 or /2 divider.
func (b *TCB) inputRate() units.Hertz {
	if b.clksel == tcbClkTCA {
		return b.tca.ClockOutRate()
	}
	return b.clk.PerRate()
}

func (b *TCB) div() uint64 {
	if b.clksel == tcbClkDiv2 {
		return 2
	}
	return 1
}

func (b *TCB) catchUp() {
	now := b.tb.Now()
	if !b.enabled {
		b.tick.rebase(now, b.inputRate())
	} else if steps := b.tick.take(now, b.div()); steps != 0 {
		b.advance(steps)
	}
	b.syncIrq()
}

func (b *TCB) clockChanged() {
	b.catchUp()
	b.tick.rebase(b.tb.Now(), b.inputRate())
}

// tcaRateChanged runs just after the TCA prescaled output moved. The
// catch-up above consumes the backlog at the rate stored when this
// counter last rebased, which is still the old TCA rate.
func (b *TCB) tcaRateChanged() {
	b.catchUp()
	if b.clksel == tcbClkTCA {
		b.tick.rebase(b.tb.Now(), b.inputRate())
	}
}

func (b *TCB) advance(steps uint64) {
	if b.mode == tcbModePwm8 {
		b.advance8(steps)
		return
	}
	// Periodic interrupt mode. Other modes are not modeled and count the
	// same way.
	cnt := uint64(b.CNT.Value)
	for steps > 0 {
		top := uint64(b.CCMP.Value) + 1
		if cnt >= top {
			top = 0x10000
		}
		left := top - cnt
		if steps < left {
			cnt += steps
			break
		}
		steps -= left
		cnt = 0
		b.INTFLAGS.Value |= tcbFlagCapt
		if top = uint64(b.CCMP.Value) + 1; steps >= top {
			steps %= top
		}
	}
	b.CNT.Value = uint16(cnt)
}

func (b *TCB) advance8(steps uint64) {
	cnt := uint64(b.CNT.Value & 0xFF)
	top := uint64(b.CCMP.Value&0xFF) + 1
	if cnt >= top {
		cnt = 0
	}
	if steps >= top-cnt {
		b.INTFLAGS.Value |= tcbFlagCapt
	}
	cnt = (cnt + steps) % top
	b.CNT.Value = uint16(cnt)
}

func (b *TCB) syncIrq() {
	fl := b.INTFLAGS.Value & b.INTCTRL.Value
	b.irq.SetLevel(VecTCB0Int, fl&tcbFlagCapt != 0)
	b.irq.Dispatch()
}

func (b *TCB) WriteCTRLA(old, val uint8) {
	b.catchUp()
	b.enabled = val&tcbEnable != 0
	b.clksel = (val >> 1) & 0x03
	b.tick.rebase(b.tb.Now(), b.inputRate())
	log.ModTCB.DebugZ("ctrla").Bool("enable", b.enabled).Uint8("clksel", b.clksel).End()
}

func (b *TCB) WriteCTRLB(old, val uint8) {
	b.catchUp()
	b.mode = val & 0x07
}

func (b *TCB) WriteINTCTRL(old, val uint8) {
	b.catchUp()
}

func (b *TCB) ReadINTFLAGS(val uint8) uint8 {
	b.catchUp()
	return b.INTFLAGS.Value
}

// WriteINTFLAGS: CAPT is write-1-to-clear.
func (b *TCB) WriteINTFLAGS(old, val uint8) {
	b.INTFLAGS.Value = old
	b.catchUp()
	b.INTFLAGS.Value &^= val & tcbFlagCapt
	b.syncIrq()
}

func (b *TCB) ReadSTATUS(val uint8) uint8 {
	if b.enabled {
		return tcbStatusRun
	}
	return 0
}

func (b *TCB) ReadCNT(val uint16) uint16 {
	b.catchUp()
	return b.CNT.Value
}

func (b *TCB) WriteCNT(old, val uint16) {
	b.CNT.Value = old
	b.catchUp()
	b.CNT.Value = val
}

func (b *TCB) WriteCCMP(old, val uint16) {
	b.CCMP.Value = old
	b.catchUp()
	b.CCMP.Value = val
}

// Waveform returns the level of the single waveform output and whether
// it overrides its pin. Only 8-bit PWM mode drives the pin. Same duty
// rule as TCA: zero duty is constant low, duty at or above the period
// saturates high.
func (b *TCB) Waveform() (level, active bool) {
	b.catchUp()
	return b.waveform()
}

func (b *TCB) WaveformPeek() (level, active bool) {
	return b.waveform()
}

func (b *TCB) waveform() (bool, bool) {
	if b.mode != tcbModePwm8 || b.CTRLB.Value&tcbCcmpEn == 0 {
		return false, false
	}
	per := uint8(b.CCMP.Value)
	duty := uint8(b.CCMP.Value >> 8)
	cnt := uint8(b.CNT.Value)
	return duty != 0 && (cnt < duty || duty >= per), true
}
