package hw

import (
	"testing"
	"time"

	"xtiny/units"
)

func TestCLKCTRLResetState(t *testing.T) {
	vc := NewVirtualClock(0)
	m := New(Profile{Clock: vc})

	// Out of reset the main prescaler is enabled at /6: 3.33 MHz.
	if got := m.CLKCTRL.PerRate(); got != 3_333_333 {
		t.Fatalf("PerRate = %d, want 3333333", got)
	}
	if got := m.CLKCTRL.MainRate(); got != units.MHz(20) {
		t.Fatalf("MainRate = %d, want 20MHz", got)
	}
}

func TestCLKCTRLPrescalerTaps(t *testing.T) {
	taps := []struct {
		pdiv uint8
		want units.Hertz
	}{
		{0x0, 10_000_000}, // /2
		{0x1, 5_000_000},  // /4
		{0x2, 2_500_000},  // /8
		{0x3, 1_250_000},  // /16
		{0x4, 625_000},    // /32
		{0x5, 312_500},    // /64
		{0x8, 3_333_333},  // /6
		{0x9, 2_000_000},  // /10
		{0xA, 1_666_666},  // /12
		{0xB, 833_333},    // /24
		{0xC, 416_666},    // /48
	}
	m, _ := testMCU()
	for _, tt := range taps {
		m.CLKCTRL.MCLKCTRLB.Set(tt.pdiv<<1 | mclkPen)
		if got := m.CLKCTRL.PerRate(); got != tt.want {
			t.Errorf("pdiv %#x: PerRate = %d, want %d", tt.pdiv, got, tt.want)
		}
	}
	m.CLKCTRL.MCLKCTRLB.Set(0)
	if got := m.CLKCTRL.PerRate(); got != units.MHz(20) {
		t.Errorf("prescaler off: PerRate = %d, want 20MHz", got)
	}
}

func TestCLKCTRLSourceSelect(t *testing.T) {
	m, _ := testMCU()
	m.CLKCTRL.MCLKCTRLA.Set(mclkSelOSCULP32K)
	if got := m.CLKCTRL.PerRate(); got != 32768 {
		t.Fatalf("PerRate = %d, want 32768", got)
	}
	if st := m.CLKCTRL.MCLKSTATUS.Get(); st != 0x20 {
		t.Fatalf("MCLKSTATUS = %#02x, want OSC32KS", st)
	}
}

func TestCLKCTRLLock(t *testing.T) {
	m, _ := testMCU()
	m.CLKCTRL.MCLKLOCK.Set(mclkLockEn)
	m.CLKCTRL.MCLKCTRLB.Set(0)
	if got := m.CLKCTRL.MCLKCTRLB.Peek8(0); got != 0x11 {
		t.Fatalf("MCLKCTRLB = %#02x, want locked reset value", got)
	}
	m.CLKCTRL.MCLKCTRLA.Set(mclkSelOSCULP32K)
	if got := m.CLKCTRL.MCLKCTRLA.Peek8(0); got != 0 {
		t.Fatalf("MCLKCTRLA = %#02x, want locked reset value", got)
	}
}

// A CLK_PER change must settle running counters first, not re-rate their
// elapsed time.
func TestCLKCTRLChangeCatchesTimersUp(t *testing.T) {
	m, vc := testMCU() // 20 MHz
	m.TCA0.PER.Set(0xFFFF)
	tcaEnableDiv(m, tcaDiv1)

	vc.Advance(time.Millisecond)                 // 20000 ticks at 20 MHz
	m.CLKCTRL.MCLKCTRLB.Set(0x4<<1 | mclkPen)    // /32: 625 kHz
	vc.Advance(time.Millisecond)                 // 625 more
	if got := m.TCA0.CNT.Get(); got != 20625 {
		t.Fatalf("CNT = %d, want 20625", got)
	}
}
