package timer

import (
	"fmt"

	"xtiny/hw"
	"xtiny/hw/hwio"
	"xtiny/portmux"
	"xtiny/units"
)

const (
	tcaCtrlaEnable = 0x01
	tcaCtrlaClksel = 0x0E

	tcaCtrlbWgmode      = 0x07
	tcaCtrlbSingleSlope = 0x03
	tcaCtrlbCmp0En      = 0x10

	tcaCmdUpdate = 0x1 << 2
	tcaCmdReset  = 0x3 << 2

	tcaFlagOvf  = 0x01
	tcaFlagCmp0 = 0x10
)

var tcaPrescalers = []uint32{1, 2, 4, 8, 16, 64, 256, 1024}

// TCA0 adapts timer/counter A. It implements Periodic, AsClockSource
// and PwmTimer: the one counter on the chip that can do everything.
type TCA0 struct {
	t *hw.TCA
}

func NewTCA0(t *hw.TCA) *TCA0 {
	return &TCA0{t: t}
}

func (a *TCA0) InputClockRate(src ClockSource) units.Hertz {
	s, ok := src.(PeripheralClock)
	if !ok {
		panic(fmt.Sprintf("timer: TCA0 cannot run from %v", src))
	}
	return s.Clocks.Per()
}

// PrepareClockSource only validates: TCA0 has a single clock input, so
// there is no source field to commit.
func (a *TCA0) PrepareClockSource(src ClockSource) {
	a.InputClockRate(src)
}

func (a *TCA0) ValidPrescalers(ClockSource) []uint32 {
	return tcaPrescalers
}

func (a *TCA0) SetPrescaler(p uint32) {
	for i, d := range tcaPrescalers {
		if d == p {
			v := a.t.CTRLA.Get()
			a.t.CTRLA.Set(v&^uint8(tcaCtrlaClksel) | uint8(i)<<1)
			return
		}
	}
	panic(fmt.Sprintf("timer: TCA0 has no /%d prescaler", p))
}

func (a *TCA0) ReadPrescaler() uint32 {
	return tcaPrescalers[(a.t.CTRLA.Get()>>1)&0x07]
}

// ResetCounterPeripheral restores the block to its reset state. The
// RESET command is only honored while the counter is disabled.
func (a *TCA0) ResetCounterPeripheral() {
	a.t.CTRLA.ClearBits(tcaCtrlaEnable)
	a.t.CTRLESET.Set(tcaCmdReset)
}

func (a *TCA0) EnableCounter() {
	a.t.CTRLA.SetBits(tcaCtrlaEnable)
}

func (a *TCA0) DisableCounter() {
	a.t.CTRLA.ClearBits(tcaCtrlaEnable)
}

func (a *TCA0) IsCounterEnabled() bool {
	return a.t.CTRLA.Bit(0)
}

func (a *TCA0) ResetCount() {
	a.t.CNT.Set(0)
}

func (a *TCA0) ReadCount() uint32 {
	return uint32(a.t.CNT.Get())
}

func (a *TCA0) interruptBit(i Interrupt) uint8 {
	switch i {
	case IntOverflow:
		return tcaFlagOvf
	case IntCompare0, IntCompare1, IntCompare2:
		return tcaFlagCmp0 << (i - IntCompare0)
	}
	panic(fmt.Sprintf("timer: TCA0 has no %v interrupt", i))
}

func (a *TCA0) eventBit(e Event) uint8 {
	switch e {
	case EvtOverflow:
		return tcaFlagOvf
	case EvtCompare0, EvtCompare1, EvtCompare2:
		return tcaFlagCmp0 << (e - EvtCompare0)
	}
	panic(fmt.Sprintf("timer: TCA0 has no %v event", e))
}

func (a *TCA0) EnableInterrupt(i Interrupt) {
	a.t.INTCTRL.SetBits(a.interruptBit(i))
}

func (a *TCA0) DisableInterrupt(i Interrupt) {
	a.t.INTCTRL.ClearBits(a.interruptBit(i))
}

func (a *TCA0) SetInterrupts(ints ...Interrupt) {
	var m uint8
	for _, i := range ints {
		m |= a.interruptBit(i)
	}
	a.t.INTCTRL.Set(m)
}

func (a *TCA0) IsInterruptConfigured(i Interrupt) bool {
	return a.t.INTCTRL.Get()&a.interruptBit(i) != 0
}

func (a *TCA0) IsEventTriggered(e Event) bool {
	return a.t.INTFLAGS.Get()&a.eventBit(e) != 0
}

// ClearEvent writes the flag bit back: the flag register is
// write-1-to-clear.
func (a *TCA0) ClearEvent(e Event) {
	a.t.INTFLAGS.Set(a.eventBit(e))
}

func (a *TCA0) SetPeriodicMode() {
	v := a.t.CTRLB.Get()
	a.t.CTRLB.Set(v &^ tcaCtrlbWgmode)
}

func (a *TCA0) ReadPeriod() uint32 {
	return uint32(a.t.PER.Get())
}

func (a *TCA0) SetPeriodUnchecked(n uint32) {
	a.t.PER.Set(uint16(n))
}

// TriggerUpdate force-latches any pending buffered period/compare
// values instead of waiting for the next wrap.
func (a *TCA0) TriggerUpdate() {
	a.t.CTRLESET.Set(tcaCmdUpdate)
}

func (a *TCA0) MaxPeriod() uint32 {
	return 0xFFFF
}

func (a *TCA0) Overflow() bool {
	return a.t.INTFLAGS.Get()&tcaFlagOvf != 0
}

func (a *TCA0) ClearOverflow() {
	a.t.INTFLAGS.Set(tcaFlagOvf)
}

// UseAsClockSource presents the prescaled output at the given rate as
// a clock input for TCB0. Only trustworthy while this counter stays
// configured and enabled.
func (a *TCA0) UseAsClockSource(rate units.Hertz) ClockSource {
	return TCAClock{rate: rate}
}

func (a *TCA0) WaveformTarget() portmux.Target {
	return portmux.TargetTCA0
}

func (a *TCA0) Channels() int {
	return 3
}

func (a *TCA0) SetWaveformMode() {
	v := a.t.CTRLB.Get()
	a.t.CTRLB.Set(v&^uint8(tcaCtrlbWgmode) | tcaCtrlbSingleSlope)
}

func (a *TCA0) cmpEnBit(ch Channel) uint8 {
	if ch > Ch2 {
		panic(fmt.Sprintf("timer: TCA0 has no channel %v", ch))
	}
	return tcaCtrlbCmp0En << ch
}

func (a *TCA0) cmpReg(ch Channel) *hwio.Reg16 {
	switch ch {
	case Ch0:
		return &a.t.CMP0
	case Ch1:
		return &a.t.CMP1
	case Ch2:
		return &a.t.CMP2
	}
	panic(fmt.Sprintf("timer: TCA0 has no channel %v", ch))
}

func (a *TCA0) EnableChannel(ch Channel) {
	a.t.CTRLB.SetBits(a.cmpEnBit(ch))
}

func (a *TCA0) DisableChannel(ch Channel) {
	a.t.CTRLB.ClearBits(a.cmpEnBit(ch))
}

func (a *TCA0) Duty(ch Channel) uint16 {
	return a.cmpReg(ch).Get()
}

func (a *TCA0) SetDuty(ch Channel, duty uint16) {
	a.cmpReg(ch).Set(duty)
}
