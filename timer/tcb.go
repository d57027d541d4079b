package timer

import (
	"fmt"

	"xtiny/hw"
	"xtiny/portmux"
	"xtiny/units"
)

const (
	tcbCtrlaEnable = 0x01
	tcbCtrlaClksel = 0x06
	tcbClkDiv1     = 0x0 << 1
	tcbClkDiv2     = 0x1 << 1
	tcbClkTCA      = 0x2 << 1

	tcbCtrlbCntmode = 0x07
	tcbModeInt      = 0x0
	tcbModePwm8     = 0x7
	tcbCtrlbCcmpEn  = 0x10

	tcbFlagCapt = 0x01
)

// TCB0 adapts timer/counter B in periodic interrupt mode. Besides
// CLK_PER it can run from TCA0's prescaled output, which is how the
// two counters chain into division ratios neither reaches alone.
type TCB0 struct {
	t *hw.TCB

	// set by PrepareClockSource; the clock-select field encodes the
	// source and the divider together.
	fromTCA bool
}

func NewTCB0(t *hw.TCB) *TCB0 {
	return &TCB0{t: t}
}

func (b *TCB0) InputClockRate(src ClockSource) units.Hertz {
	switch s := src.(type) {
	case PeripheralClock:
		return s.Clocks.Per()
	case TCAClock:
		return s.rate
	}
	panic(fmt.Sprintf("timer: TCB0 cannot run from %v", src))
}

func (b *TCB0) PrepareClockSource(src ClockSource) {
	b.InputClockRate(src)
	_, b.fromTCA = src.(TCAClock)
}

// ValidPrescalers: TCB0 has only a /1 and /2 divider on CLK_PER, and
// no divider at all on the chained TCA0 clock.
func (b *TCB0) ValidPrescalers(src ClockSource) []uint32 {
	if _, ok := src.(TCAClock); ok {
		return []uint32{1}
	}
	return []uint32{1, 2}
}

func (b *TCB0) SetPrescaler(p uint32) {
	var sel uint8
	switch {
	case b.fromTCA && p == 1:
		sel = tcbClkTCA
	case p == 1:
		sel = tcbClkDiv1
	case p == 2:
		sel = tcbClkDiv2
	default:
		panic(fmt.Sprintf("timer: TCB0 has no /%d prescaler", p))
	}
	v := b.t.CTRLA.Get()
	b.t.CTRLA.Set(v&^uint8(tcbCtrlaClksel) | sel)
}

func (b *TCB0) ReadPrescaler() uint32 {
	if b.t.CTRLA.Get()&tcbCtrlaClksel == tcbClkDiv2 {
		return 2
	}
	return 1
}

// ResetCounterPeripheral writes the reset values back by hand: TCB has
// no reset command.
func (b *TCB0) ResetCounterPeripheral() {
	b.t.CTRLA.Set(0)
	b.t.CTRLB.Set(0)
	b.t.INTCTRL.Set(0)
	b.t.INTFLAGS.Set(tcbFlagCapt)
	b.t.CNT.Set(0)
	b.t.CCMP.Set(0)
	b.fromTCA = false
}

func (b *TCB0) EnableCounter() {
	b.t.CTRLA.SetBits(tcbCtrlaEnable)
}

func (b *TCB0) DisableCounter() {
	b.t.CTRLA.ClearBits(tcbCtrlaEnable)
}

func (b *TCB0) IsCounterEnabled() bool {
	return b.t.CTRLA.Bit(0)
}

func (b *TCB0) ResetCount() {
	b.t.CNT.Set(0)
}

func (b *TCB0) ReadCount() uint32 {
	return uint32(b.t.CNT.Get())
}

func (b *TCB0) interruptBit(i Interrupt) uint8 {
	if i != IntCapture {
		panic(fmt.Sprintf("timer: TCB0 has no %v interrupt", i))
	}
	return tcbFlagCapt
}

func (b *TCB0) eventBit(e Event) uint8 {
	if e != EvtCapture {
		panic(fmt.Sprintf("timer: TCB0 has no %v event", e))
	}
	return tcbFlagCapt
}

func (b *TCB0) EnableInterrupt(i Interrupt) {
	b.t.INTCTRL.SetBits(b.interruptBit(i))
}

func (b *TCB0) DisableInterrupt(i Interrupt) {
	b.t.INTCTRL.ClearBits(b.interruptBit(i))
}

func (b *TCB0) SetInterrupts(ints ...Interrupt) {
	var m uint8
	for _, i := range ints {
		m |= b.interruptBit(i)
	}
	b.t.INTCTRL.Set(m)
}

func (b *TCB0) IsInterruptConfigured(i Interrupt) bool {
	return b.t.INTCTRL.Get()&b.interruptBit(i) != 0
}

func (b *TCB0) IsEventTriggered(e Event) bool {
	return b.t.INTFLAGS.Get()&b.eventBit(e) != 0
}

func (b *TCB0) ClearEvent(e Event) {
	b.t.INTFLAGS.Set(b.eventBit(e))
}

func (b *TCB0) SetPeriodicMode() {
	v := b.t.CTRLB.Get()
	b.t.CTRLB.Set(v&^uint8(tcbCtrlbCntmode) | tcbModeInt)
}

func (b *TCB0) ReadPeriod() uint32 {
	return uint32(b.t.CCMP.Get())
}

func (b *TCB0) SetPeriodUnchecked(n uint32) {
	b.t.CCMP.Set(uint16(n))
}

// TriggerUpdate is a no-op: TCB has no double-buffered registers.
func (b *TCB0) TriggerUpdate() {}

func (b *TCB0) MaxPeriod() uint32 {
	return 0xFFFF
}

// Overflow reports the CAPT flag, which in periodic interrupt mode is
// the wrap event.
func (b *TCB0) Overflow() bool {
	return b.t.INTFLAGS.Get()&tcbFlagCapt != 0
}

func (b *TCB0) ClearOverflow() {
	b.t.INTFLAGS.Set(tcbFlagCapt)
}

// Into8BitPwm re-views the counter as an 8-bit PWM generator: the
// compare register splits into period (low byte) and duty (high
// byte). The TCB0 value must not be used afterwards.
func (b *TCB0) Into8BitPwm() *TCB0Pwm8 {
	return &TCB0Pwm8{TCB0: b}
}

// TCB0Pwm8 is TCB0 in 8-bit PWM mode. Period and duty live in the two
// halves of CCMP; there is a single waveform channel.
type TCB0Pwm8 struct {
	*TCB0
}

func (b *TCB0Pwm8) ReadPeriod() uint32 {
	return uint32(b.t.CCMP.GetLo())
}

func (b *TCB0Pwm8) SetPeriodUnchecked(n uint32) {
	b.t.CCMP.SetLo(uint8(n))
}

func (b *TCB0Pwm8) MaxPeriod() uint32 {
	return 0xFF
}

func (b *TCB0Pwm8) WaveformTarget() portmux.Target {
	return portmux.TargetTCB0
}

func (b *TCB0Pwm8) Channels() int {
	return 1
}

func (b *TCB0Pwm8) SetWaveformMode() {
	v := b.t.CTRLB.Get()
	b.t.CTRLB.Set(v&^uint8(tcbCtrlbCntmode) | tcbModePwm8)
}

func (b *TCB0Pwm8) channelBit(ch Channel) uint8 {
	if ch != Ch0 {
		panic(fmt.Sprintf("timer: TCB0 has no channel %v", ch))
	}
	return tcbCtrlbCcmpEn
}

func (b *TCB0Pwm8) EnableChannel(ch Channel) {
	b.t.CTRLB.SetBits(b.channelBit(ch))
}

func (b *TCB0Pwm8) DisableChannel(ch Channel) {
	b.t.CTRLB.ClearBits(b.channelBit(ch))
}

func (b *TCB0Pwm8) Duty(ch Channel) uint16 {
	b.channelBit(ch)
	return uint16(b.t.CCMP.GetHi())
}

func (b *TCB0Pwm8) SetDuty(ch Channel, duty uint16) {
	b.channelBit(ch)
	b.t.CCMP.SetHi(uint8(duty))
}
