package hw

import (
	"time"

	"xtiny/hw/hwio"
	"xtiny/log"
	"xtiny/units"
)

// RTC models the real-time counter. It runs from its own low-frequency
// clock domain (32.768 kHz ULP oscillator, the same divided to 1.024
// kHz, or an external clock on TOSC1) through a power-of-two prescaler
// up to /32768.
//
// CTRLA, CNT, PER and CMP live in the RTC clock domain: a write opens a
// two-source-cycle synchronization window, flagged per register in
// STATUS. A write landing while the matching busy bit is still set is
// lost, which is exactly what happens on silicon when software skips the
// busy poll. The model drops such writes and logs them.
type RTC struct {
	CTRLA    hwio.Reg8  `hwio:"offset=0x00,rwmask=0xF9,wcb"`
	STATUS   hwio.Reg8  `hwio:"offset=0x01,readonly,rcb=ReadSTATUS,pcb=ReadSTATUS"`
	INTCTRL  hwio.Reg8  `hwio:"offset=0x02,rwmask=0x03,wcb"`
	INTFLAGS hwio.Reg8  `hwio:"offset=0x03,rcb,wcb"`
	TEMP     hwio.Reg8  `hwio:"offset=0x04"`
	DBGCTRL  hwio.Reg8  `hwio:"offset=0x05,rwmask=0x01"`
	CLKSEL   hwio.Reg8  `hwio:"offset=0x07,rwmask=0x03,wcb"`
	CNT      hwio.Reg16 `hwio:"offset=0x08,rcb,wcb"`
	PER      hwio.Reg16 `hwio:"offset=0x0A,reset=0xFFFF,wcb"`
	CMP      hwio.Reg16 `hwio:"offset=0x0C,wcb"`

	tb   Timebase
	irq  *CPUInt
	tick ticker

	tosc1Hz uint64
	enabled bool
	div     uint64
	srcRate uint64

	busyUntil [4]uint64
}

const (
	rtcEnable = 0x01

	rtcClkInt32k  = 0x0
	rtcClkInt1k   = 0x1
	rtcClkTosc32k = 0x2
	rtcClkExt     = 0x3

	rtcBusyCtrlA = 0
	rtcBusyCnt   = 1
	rtcBusyPer   = 2
	rtcBusyCmp   = 3

	rtcFlagOvf = 0x01
	rtcFlagCmp = 0x02
)

func newRTC(tb Timebase, irq *CPUInt, tosc1Hz units.Hertz) *RTC {
	r := &RTC{tb: tb, irq: irq, tosc1Hz: uint64(tosc1Hz), div: 1, srcRate: 32768}
	hwio.MustInitRegs(r)
	r.tick.rebase(tb.Now(), units.Hertz(r.srcRate))
	return r
}

func (r *RTC) srcRateFor(clksel uint8) uint64 {
	switch clksel & 0x03 {
	case rtcClkInt1k:
		return 1024
	case rtcClkExt:
		return r.tosc1Hz
	default:
		return 32768
	}
}

// syncWindow is the synchronization delay of the RTC register file: two
// cycles of the source clock.
func (r *RTC) syncWindow() uint64 {
	if r.srcRate == 0 {
		return 0
	}
	return 2 * uint64(time.Second) / r.srcRate
}

func (r *RTC) busy(which int, now uint64) bool {
	return now < r.busyUntil[which]
}

func (r *RTC) syncStatus(now uint64) {
	var st uint8
	for i, until := range r.busyUntil {
		if now < until {
			st |= 1 << i
		}
	}
	r.STATUS.Value = st
}

func (r *RTC) catchUp() {
	now := r.tb.Now()
	r.syncStatus(now)
	if !r.enabled {
		r.tick.rebase(now, units.Hertz(r.srcRate))
	} else if steps := r.tick.take(now, r.div); steps != 0 {
		r.advance(steps)
	}
	r.syncIrq()
}

func (r *RTC) advance(steps uint64) {
	cnt := uint64(r.CNT.Value)
	for steps > 0 {
		top := uint64(r.PER.Value) + 1
		if cnt >= top {
			top = 0x10000
		}
		left := top - cnt
		if steps < left {
			r.compareScan(cnt+1, cnt+steps)
			cnt += steps
			break
		}
		r.compareScan(cnt+1, top-1)
		steps -= left
		cnt = 0
		r.INTFLAGS.Value |= rtcFlagOvf
		r.compareScan(0, 0)
		if top = uint64(r.PER.Value) + 1; steps >= top {
			r.compareScan(0, top-1)
			steps %= top
		}
	}
	r.CNT.Value = uint16(cnt)
}

// compareScan raises CMP when the compare value lies in the counter
// range just traversed. Zero never matches.
func (r *RTC) compareScan(lo, hi uint64) {
	if lo > hi {
		return
	}
	if c := uint64(r.CMP.Value); c != 0 && c >= lo && c <= hi {
		r.INTFLAGS.Value |= rtcFlagCmp
	}
}

func (r *RTC) syncIrq() {
	fl := r.INTFLAGS.Value & r.INTCTRL.Value
	// Both RTC flags share the single RTC_CNT vector.
	r.irq.SetLevel(VecRTCCnt, fl&(rtcFlagOvf|rtcFlagCmp) != 0)
	r.irq.Dispatch()
}

func (r *RTC) WriteCTRLA(old, val uint8) {
	now := r.tb.Now()
	if r.busy(rtcBusyCtrlA, now) {
		r.CTRLA.Value = old
		log.ModRTC.WarnZ("CTRLA write dropped, register busy").Hex8("val", val).End()
		return
	}
	r.CTRLA.Value = old
	r.catchUp()
	r.CTRLA.Value = val
	r.enabled = val&rtcEnable != 0
	r.div = 1 << ((val >> 3) & 0x0F)
	now = r.tb.Now()
	r.tick.rebase(now, units.Hertz(r.srcRate))
	r.busyUntil[rtcBusyCtrlA] = now + r.syncWindow()
	r.syncStatus(now)
	log.ModRTC.DebugZ("ctrla").Bool("enable", r.enabled).Uint64("div", r.div).End()
}

func (r *RTC) WriteCLKSEL(old, val uint8) {
	r.CLKSEL.Value = old
	r.catchUp()
	r.CLKSEL.Value = val
	r.srcRate = r.srcRateFor(val)
	r.tick.rebase(r.tb.Now(), units.Hertz(r.srcRate))
}

func (r *RTC) WriteINTCTRL(old, val uint8) {
	r.catchUp()
}

func (r *RTC) ReadINTFLAGS(val uint8) uint8 {
	r.catchUp()
	return r.INTFLAGS.Value
}

func (r *RTC) WriteINTFLAGS(old, val uint8) {
	r.INTFLAGS.Value = old
	r.catchUp()
	r.INTFLAGS.Value &^= val & (rtcFlagOvf | rtcFlagCmp)
	r.syncIrq()
}

func (r *RTC) ReadSTATUS(val uint8) uint8 {
	r.syncStatus(r.tb.Now())
	return r.STATUS.Value
}

func (r *RTC) ReadCNT(val uint16) uint16 {
	r.catchUp()
	return r.CNT.Value
}

func (r *RTC) WriteCNT(old, val uint16) {
	r.writeSynced(&r.CNT, rtcBusyCnt, old, val)
}

func (r *RTC) WritePER(old, val uint16) {
	r.writeSynced(&r.PER, rtcBusyPer, old, val)
}

func (r *RTC) WriteCMP(old, val uint16) {
	r.writeSynced(&r.CMP, rtcBusyCmp, old, val)
}

func (r *RTC) writeSynced(reg *hwio.Reg16, which int, old, val uint16) {
	now := r.tb.Now()
	if r.busy(which, now) {
		reg.Value = old
		log.ModRTC.WarnZ("write dropped, register busy").
			String("reg", reg.Name).
			Hex16("val", val).
			End()
		return
	}
	reg.Value = old
	r.catchUp()
	reg.Value = val
	now = r.tb.Now()
	r.busyUntil[which] = now + r.syncWindow()
	r.syncStatus(now)
}
