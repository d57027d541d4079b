package hw

import (
	"xtiny/hw/hwio"
	"xtiny/log"
	"xtiny/units"
)

// TCA models the 16-bit Timer/Counter type A in single (16-bit) mode.
// The counter runs from CLK_PER through an eight-tap prescaler, counts
// up to PER inclusive, wraps to zero and raises OVF. Three compare
// channels raise CMPn flags on match and, in single-slope waveform mode,
// drive the waveform outputs. PER and CMPn are double-buffered: writes
// to the BUF registers latch at the wrap (or on a forced UPDATE
// command).
//
// Nothing here runs on its own. Every register access first catches the
// counter up to the timebase, so reads always see the counter as of
// "now" and writes take effect at "now". Whole periods between two
// accesses are skipped in one step once the first wrap is accounted.
type TCA struct {
	CTRLA    hwio.Reg8  `hwio:"offset=0x00,rwmask=0x0F,wcb"`
	CTRLB    hwio.Reg8  `hwio:"offset=0x01,rwmask=0x7F,wcb"`
	CTRLC    hwio.Reg8  `hwio:"offset=0x02,rwmask=0x0F"`
	CTRLD    hwio.Reg8  `hwio:"offset=0x03,rwmask=0x01"`
	CTRLECLR hwio.Reg8  `hwio:"offset=0x04,rcb=ReadCTRLE,pcb=ReadCTRLE,wcb"`
	CTRLESET hwio.Reg8  `hwio:"offset=0x05,rcb=ReadCTRLE,pcb=ReadCTRLE,wcb"`
	CTRLFCLR hwio.Reg8  `hwio:"offset=0x06,rcb=ReadCTRLF,pcb=ReadCTRLF,wcb"`
	CTRLFSET hwio.Reg8  `hwio:"offset=0x07,rcb=ReadCTRLF,pcb=ReadCTRLF,wcb"`
	EVCTRL   hwio.Reg8  `hwio:"offset=0x09,rwmask=0x07"`
	INTCTRL  hwio.Reg8  `hwio:"offset=0x0A,rwmask=0x71,wcb"`
	INTFLAGS hwio.Reg8  `hwio:"offset=0x0B,rcb,wcb"`
	DBGCTRL  hwio.Reg8  `hwio:"offset=0x0E,rwmask=0x01"`
	TEMP     hwio.Reg8  `hwio:"offset=0x0F"`
	CNT      hwio.Reg16 `hwio:"offset=0x20,rcb,wcb"`
	PER      hwio.Reg16 `hwio:"offset=0x26,reset=0xFFFF,wcb"`
	CMP0     hwio.Reg16 `hwio:"offset=0x28,wcb"`
	CMP1     hwio.Reg16 `hwio:"offset=0x2A,wcb"`
	CMP2     hwio.Reg16 `hwio:"offset=0x2C,wcb"`
	PERBUF   hwio.Reg16 `hwio:"offset=0x36,wcb"`
	CMP0BUF  hwio.Reg16 `hwio:"offset=0x38,wcb"`
	CMP1BUF  hwio.Reg16 `hwio:"offset=0x3A,wcb"`
	CMP2BUF  hwio.Reg16 `hwio:"offset=0x3C,wcb"`

	tb   Timebase
	clk  *CLKCTRL
	irq  *CPUInt
	tick ticker

	enabled bool
	div     uint64
	ctrle   uint8 // DIR and LUPD bits, shared by CTRLECLR/CTRLESET
	bv      uint8 // buffer-valid flags, shared by CTRLFCLR/CTRLFSET

	// rateOut runs before the prescaled clock output changes rate, so a
	// chained TCB can settle its account under the old rate first.
	rateOut func()
}

const (
	tcaEnable = 0x01

	tcaWgmNormal      = 0x0
	tcaWgmSingleSlope = 0x3

	tcaCmp0En = 0x10

	tcaCmdUpdate  = 0x1
	tcaCmdRestart = 0x2
	tcaCmdReset   = 0x3

	tcaCtrleMask = 0x03 // DIR | LUPD
	tcaLupd      = 0x02

	tcaBvPer  = 0x01
	tcaBvCmp0 = 0x02
	tcaBvMask = 0x0F

	tcaFlagOvf  = 0x01
	tcaFlagCmp0 = 0x10
	tcaFlagMask = 0x71
)

var tcaDivTab = [8]uint64{1, 2, 4, 8, 16, 64, 256, 1024}

func newTCA(tb Timebase, clk *CLKCTRL, irq *CPUInt) *TCA {
	t := &TCA{tb: tb, clk: clk, irq: irq, div: 1}
	hwio.MustInitRegs(t)
	t.tick.rebase(tb.Now(), clk.PerRate())
	return t
}

// catchUp advances the counter to the current time. Called at the top of
// every register access. While disabled the tick account is continuously
// rebased so no backlog builds up.
func (t *TCA) catchUp() {
	now := t.tb.Now()
	if !t.enabled {
		t.tick.rebase(now, t.clk.PerRate())
	} else if steps := t.tick.take(now, t.div); steps != 0 {
		t.advance(steps)
	}
	t.syncIrq()
}

// clockChanged is called by the clock controller when CLK_PER moves. The
// backlog was already consumed under the old rate by catchUp, which runs
// with the rate stored at the last rebase.
func (t *TCA) clockChanged() {
	t.catchUp()
	t.tick.rebase(t.tb.Now(), t.clk.PerRate())
	if t.rateOut != nil {
		t.rateOut()
	}
}

// advance moves the counter by steps counter increments, raising OVF and
// CMPn flags on the way. After the first wrap whole remaining periods
// are skipped arithmetically; that shortcut is only safe while no
// buffered value is waiting, since a latch can change PER mid-skip.
func (t *TCA) advance(steps uint64) {
	cnt := uint64(t.CNT.Value)
	for steps > 0 {
		top := uint64(t.PER.Value) + 1
		if cnt >= top {
			// PER was moved below CNT: count through MAX first.
			top = 0x10000
		}
		left := top - cnt
		if steps < left {
			t.compareScan(cnt+1, cnt+steps)
			cnt += steps
			break
		}
		t.compareScan(cnt+1, top-1)
		steps -= left
		cnt = 0
		t.wrapEvents()
		t.compareScan(0, 0)
		if top = uint64(t.PER.Value) + 1; steps >= top && t.bv&tcaBvMask == 0 {
			t.compareScan(0, top-1)
			steps %= top
		}
	}
	t.CNT.Value = uint16(cnt)
}

// compareScan raises CMPn for every channel whose compare value lies in
// the counter range [lo, hi] just traversed. A compare value of zero
// never matches, the same rule that pins a zero-duty waveform low.
func (t *TCA) compareScan(lo, hi uint64) {
	if lo > hi {
		return
	}
	cmps := [3]uint16{t.CMP0.Value, t.CMP1.Value, t.CMP2.Value}
	for n, c := range cmps {
		if c != 0 && uint64(c) >= lo && uint64(c) <= hi {
			t.INTFLAGS.Value |= tcaFlagCmp0 << n
		}
	}
}

func (t *TCA) wrapEvents() {
	t.INTFLAGS.Value |= tcaFlagOvf
	if t.ctrle&tcaLupd == 0 {
		t.latchBuffers()
	}
}

func (t *TCA) latchBuffers() {
	if t.bv&tcaBvPer != 0 {
		t.PER.Value = t.PERBUF.Value
	}
	bufs := [3]*hwio.Reg16{&t.CMP0BUF, &t.CMP1BUF, &t.CMP2BUF}
	regs := [3]*hwio.Reg16{&t.CMP0, &t.CMP1, &t.CMP2}
	for n := range bufs {
		if t.bv&(tcaBvCmp0<<n) != 0 {
			regs[n].Value = bufs[n].Value
		}
	}
	t.bv = 0
}

func (t *TCA) syncIrq() {
	fl := t.INTFLAGS.Value & t.INTCTRL.Value
	t.irq.SetLevel(VecTCA0Ovf, fl&tcaFlagOvf != 0)
	t.irq.SetLevel(VecTCA0Cmp0, fl&tcaFlagCmp0 != 0)
	t.irq.SetLevel(VecTCA0Cmp1, fl&(tcaFlagCmp0<<1) != 0)
	t.irq.SetLevel(VecTCA0Cmp2, fl&(tcaFlagCmp0<<2) != 0)
	t.irq.Dispatch()
}

func (t *TCA) WriteCTRLA(old, val uint8) {
	t.catchUp()
	t.enabled = val&tcaEnable != 0
	t.div = tcaDivTab[(val>>1)&0x07]
	t.tick.rebase(t.tb.Now(), t.clk.PerRate())
	log.ModTCA.DebugZ("ctrla").Bool("enable", t.enabled).Uint64("div", t.div).End()
	if t.rateOut != nil && (old^val)&0x0F != 0 {
		t.rateOut()
	}
}

func (t *TCA) WriteCTRLB(old, val uint8) {
	t.catchUp()
}

func (t *TCA) ReadCTRLE(val uint8) uint8 {
	return t.ctrle
}

func (t *TCA) WriteCTRLECLR(old, val uint8) {
	t.CTRLECLR.Value = 0
	t.catchUp()
	t.ctrle &^= val & tcaCtrleMask
}

// WriteCTRLESET executes timer commands. UPDATE force-latches pending
// buffers, RESTART rewinds the count, RESET restores the whole block to
// its reset state (only honored while disabled, as on silicon).
func (t *TCA) WriteCTRLESET(old, val uint8) {
	t.CTRLESET.Value = 0
	t.catchUp()
	t.ctrle |= val & tcaCtrleMask
	switch (val >> 2) & 0x03 {
	case tcaCmdUpdate:
		t.latchBuffers()
	case tcaCmdRestart:
		t.CNT.Value = 0
	case tcaCmdReset:
		if !t.enabled {
			t.resetRegs()
		}
	}
}

func (t *TCA) ReadCTRLF(val uint8) uint8 {
	return t.bv
}

func (t *TCA) WriteCTRLFCLR(old, val uint8) {
	t.CTRLFCLR.Value = 0
	t.bv &^= val & tcaBvMask
}

func (t *TCA) WriteCTRLFSET(old, val uint8) {
	t.CTRLFSET.Value = 0
	t.bv |= val & tcaBvMask
}

func (t *TCA) WriteINTCTRL(old, val uint8) {
	t.catchUp()
}

func (t *TCA) ReadINTFLAGS(val uint8) uint8 {
	t.catchUp()
	return t.INTFLAGS.Value
}

// WriteINTFLAGS treats the written byte as a clear mask: flags are
// write-1-to-clear. The store is replayed so the catch-up still sees the
// old flags.
func (t *TCA) WriteINTFLAGS(old, val uint8) {
	t.INTFLAGS.Value = old
	t.catchUp()
	t.INTFLAGS.Value &^= val & tcaFlagMask
	t.syncIrq()
}

func (t *TCA) ReadCNT(val uint16) uint16 {
	t.catchUp()
	return t.CNT.Value
}

func (t *TCA) WriteCNT(old, val uint16) {
	t.CNT.Value = old
	t.catchUp()
	t.CNT.Value = val
}

func (t *TCA) WritePER(old, val uint16) {
	t.PER.Value = old
	t.catchUp()
	t.PER.Value = val
}

func (t *TCA) WriteCMP0(old, val uint16) { t.writeCmp(&t.CMP0, old, val) }
func (t *TCA) WriteCMP1(old, val uint16) { t.writeCmp(&t.CMP1, old, val) }
func (t *TCA) WriteCMP2(old, val uint16) { t.writeCmp(&t.CMP2, old, val) }

func (t *TCA) writeCmp(reg *hwio.Reg16, old, val uint16) {
	reg.Value = old
	t.catchUp()
	reg.Value = val
}

func (t *TCA) WritePERBUF(old, val uint16) {
	t.catchUp()
	t.bv |= tcaBvPer
}

func (t *TCA) WriteCMP0BUF(old, val uint16) {
	t.catchUp()
	t.bv |= tcaBvCmp0
}

func (t *TCA) WriteCMP1BUF(old, val uint16) {
	t.catchUp()
	t.bv |= tcaBvCmp0 << 1
}

func (t *TCA) WriteCMP2BUF(old, val uint16) {
	t.catchUp()
	t.bv |= tcaBvCmp0 << 2
}

func (t *TCA) resetRegs() {
	t.CTRLA.Value = 0
	t.CTRLB.Value = 0
	t.CTRLC.Value = 0
	t.CTRLD.Value = 0
	t.INTCTRL.Value = 0
	t.INTFLAGS.Value = 0
	t.CNT.Value = 0
	t.PER.Value = 0xFFFF
	t.CMP0.Value = 0
	t.CMP1.Value = 0
	t.CMP2.Value = 0
	t.PERBUF.Value = 0
	t.CMP0BUF.Value = 0
	t.CMP1BUF.Value = 0
	t.CMP2BUF.Value = 0
	t.ctrle = 0
	t.bv = 0
	t.enabled = false
	t.div = 1
	t.tick.rebase(t.tb.Now(), t.clk.PerRate())
	t.syncIrq()
}

// Waveform returns the live level of waveform output n and whether the
// channel overrides its pin. The channel overrides whenever it is
// enabled in single-slope mode, counter running or not.
//
// Level rule: high while CNT < CMPn, with CMPn == 0 pinned low and
// CMPn >= PER pinned high. A duty equal to the period is a constant
// high, a duty above it saturates.
func (t *TCA) Waveform(n int) (level, active bool) {
	t.catchUp()
	return t.waveform(n)
}

// WaveformPeek is the side-effect-free variant for tracing; the level is
// as of the last catch-up.
func (t *TCA) WaveformPeek(n int) (level, active bool) {
	return t.waveform(n)
}

func (t *TCA) waveform(n int) (bool, bool) {
	ctrlb := t.CTRLB.Value
	if ctrlb&0x07 != tcaWgmSingleSlope || ctrlb&(tcaCmp0En<<n) == 0 {
		return false, false
	}
	var cmp uint16
	switch n {
	case 0:
		cmp = t.CMP0.Value
	case 1:
		cmp = t.CMP1.Value
	default:
		cmp = t.CMP2.Value
	}
	per, cnt := t.PER.Value, t.CNT.Value
	return cmp != 0 && (cnt < cmp || cmp >= per), true
}

// ClockOutRate is the rate of the prescaled clock this timer exports as
// CLKTCA to TCB. Zero while disabled.
func (t *TCA) ClockOutRate() units.Hertz {
	if !t.enabled {
		return 0
	}
	return units.Hertz(uint64(t.clk.PerRate()) / t.div)
}
