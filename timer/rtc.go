package timer

import (
	"fmt"
	"math/bits"

	"xtiny/hw"
	"xtiny/units"
)

const (
	rtcCtrlaEnable    = 0x01
	rtcCtrlaPrescaler = 0x78

	rtcClkInt32k = 0x0
	rtcClkInt1k  = 0x1
	rtcClkTosc   = 0x2
	rtcClkExt    = 0x3

	rtcStatusCtrlABusy = 0x01
	rtcStatusCntBusy   = 0x02
	rtcStatusPerBusy   = 0x04
	rtcStatusCmpBusy   = 0x08

	rtcFlagOvf = 0x01
	rtcFlagCmp = 0x02
)

var rtcPrescalers = []uint32{
	1, 2, 4, 8, 16, 32, 64, 128,
	256, 512, 1024, 2048, 4096, 8192, 16384, 32768,
}

// RTC adapts the real-time counter. Its register file runs in the
// clock domain of the selected source, not the bus clock, so every
// mutation first waits out the per-register busy flag: the hardware
// silently drops a write issued while the previous one still
// propagates.
type RTC struct {
	r *hw.RTC
}

func NewRTC(r *hw.RTC) *RTC {
	return &RTC{r: r}
}

// sync spins until the given STATUS busy bits clear. The hardware
// bounds the window at two source-clock cycles, so the spin always
// terminates.
func (c *RTC) sync(mask uint8) {
	for c.r.STATUS.Get()&mask != 0 {
	}
}

func (c *RTC) InputClockRate(src ClockSource) units.Hertz {
	switch s := src.(type) {
	case RTCOscillator:
		return s.rate()
	case RTCExtClock:
		return s.Hz
	}
	panic(fmt.Sprintf("timer: RTC cannot run from %v", src))
}

func (c *RTC) PrepareClockSource(src ClockSource) {
	var sel uint8
	switch s := src.(type) {
	case RTCOscillator:
		switch s {
		case RTCUlp1k:
			sel = rtcClkInt1k
		case RTCXosc32k:
			sel = rtcClkTosc
		default:
			sel = rtcClkInt32k
		}
	case RTCExtClock:
		sel = rtcClkExt
	default:
		panic(fmt.Sprintf("timer: RTC cannot run from %v", src))
	}
	c.r.CLKSEL.Set(sel)
}

func (c *RTC) ValidPrescalers(ClockSource) []uint32 {
	return rtcPrescalers
}

func (c *RTC) SetPrescaler(p uint32) {
	if bits.OnesCount32(p) != 1 || p > 32768 {
		panic(fmt.Sprintf("timer: RTC has no /%d prescaler", p))
	}
	field := uint8(bits.TrailingZeros32(p))
	c.sync(rtcStatusCtrlABusy)
	v := c.r.CTRLA.Get()
	c.r.CTRLA.Set(v&^uint8(rtcCtrlaPrescaler) | field<<3)
}

func (c *RTC) ReadPrescaler() uint32 {
	return 1 << ((c.r.CTRLA.Get() >> 3) & 0x0F)
}

func (c *RTC) ResetCounterPeripheral() {
	c.sync(rtcStatusCtrlABusy)
	c.r.CTRLA.Set(0)
	c.r.INTCTRL.Set(0)
	c.r.INTFLAGS.Set(rtcFlagOvf | rtcFlagCmp)
	c.sync(rtcStatusCntBusy)
	c.r.CNT.Set(0)
	c.sync(rtcStatusPerBusy)
	c.r.PER.Set(0xFFFF)
	c.sync(rtcStatusCmpBusy)
	c.r.CMP.Set(0)
	c.r.CLKSEL.Set(rtcClkInt32k)
}

func (c *RTC) EnableCounter() {
	c.sync(rtcStatusCtrlABusy)
	c.r.CTRLA.SetBits(rtcCtrlaEnable)
}

func (c *RTC) DisableCounter() {
	c.sync(rtcStatusCtrlABusy)
	c.r.CTRLA.ClearBits(rtcCtrlaEnable)
}

func (c *RTC) IsCounterEnabled() bool {
	return c.r.CTRLA.Bit(0)
}

func (c *RTC) ResetCount() {
	c.sync(rtcStatusCntBusy)
	c.r.CNT.Set(0)
}

func (c *RTC) ReadCount() uint32 {
	return uint32(c.r.CNT.Get())
}

func (c *RTC) interruptBit(i Interrupt) uint8 {
	switch i {
	case IntOverflow:
		return rtcFlagOvf
	case IntCompare0:
		return rtcFlagCmp
	}
	panic(fmt.Sprintf("timer: RTC has no %v interrupt", i))
}

func (c *RTC) eventBit(e Event) uint8 {
	switch e {
	case EvtOverflow:
		return rtcFlagOvf
	case EvtCompare0:
		return rtcFlagCmp
	}
	panic(fmt.Sprintf("timer: RTC has no %v event", e))
}

func (c *RTC) EnableInterrupt(i Interrupt) {
	c.r.INTCTRL.SetBits(c.interruptBit(i))
}

func (c *RTC) DisableInterrupt(i Interrupt) {
	c.r.INTCTRL.ClearBits(c.interruptBit(i))
}

func (c *RTC) SetInterrupts(ints ...Interrupt) {
	var m uint8
	for _, i := range ints {
		m |= c.interruptBit(i)
	}
	c.r.INTCTRL.Set(m)
}

func (c *RTC) IsInterruptConfigured(i Interrupt) bool {
	return c.r.INTCTRL.Get()&c.interruptBit(i) != 0
}

func (c *RTC) IsEventTriggered(e Event) bool {
	return c.r.INTFLAGS.Get()&c.eventBit(e) != 0
}

func (c *RTC) ClearEvent(e Event) {
	c.r.INTFLAGS.Set(c.eventBit(e))
}

// SetPeriodicMode is a no-op: the RTC always counts zero to PER.
func (c *RTC) SetPeriodicMode() {}

func (c *RTC) ReadPeriod() uint32 {
	return uint32(c.r.PER.Get())
}

func (c *RTC) SetPeriodUnchecked(n uint32) {
	c.sync(rtcStatusPerBusy)
	c.r.PER.Set(uint16(n))
}

// TriggerUpdate is a no-op: no double buffering on the RTC.
func (c *RTC) TriggerUpdate() {}

func (c *RTC) MaxPeriod() uint32 {
	return 0xFFFF
}

func (c *RTC) Overflow() bool {
	return c.r.INTFLAGS.Get()&rtcFlagOvf != 0
}

func (c *RTC) ClearOverflow() {
	c.r.INTFLAGS.Set(rtcFlagOvf)
}

// SetCompare programs the compare match value behind EvtCompare0.
func (c *RTC) SetCompare(v uint16) {
	c.sync(rtcStatusCmpBusy)
	c.r.CMP.Set(v)
}

func (c *RTC) Compare() uint16 {
	return c.r.CMP.Get()
}
