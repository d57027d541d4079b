package hw

import (
	"testing"
	"time"
)

func TestTCBPeriodicMode(t *testing.T) {
	m, vc := testMCU()
	m.TCB0.CCMP.Set(999)
	m.TCB0.CTRLA.Set(tcbEnable) // CLK_PER, 20 MHz

	vc.Advance(49950 * time.Nanosecond) // 999 ticks
	if got := m.TCB0.CNT.Get(); got != 999 {
		t.Fatalf("CNT = %d, want 999", got)
	}
	if m.TCB0.INTFLAGS.Get()&tcbFlagCapt != 0 {
		t.Fatal("CAPT set before reaching TOP")
	}

	vc.Advance(50 * time.Nanosecond) // the 1000th tick wraps
	if got := m.TCB0.CNT.Get(); got != 0 {
		t.Fatalf("CNT after wrap = %d, want 0", got)
	}
	if m.TCB0.INTFLAGS.Get()&tcbFlagCapt == 0 {
		t.Fatal("CAPT not set at TOP")
	}

	m.TCB0.INTFLAGS.Set(tcbFlagCapt)
	if m.TCB0.INTFLAGS.Get() != 0 {
		t.Fatal("CAPT not cleared by writing 1")
	}
}

func TestTCBClockDiv2(t *testing.T) {
	m, vc := testMCU()
	m.TCB0.CCMP.Set(0xFFFF)
	m.TCB0.CTRLA.Set(tcbClkDiv2<<1 | tcbEnable)

	vc.Advance(100 * time.Microsecond) // 2000 CLK_PER ticks
	if got := m.TCB0.CNT.Get(); got != 1000 {
		t.Fatalf("CNT = %d, want 1000", got)
	}
}

func TestTCBChainedToTCA(t *testing.T) {
	m, vc := testMCU()

	// TCA prescales CLK_PER by 64: 312500 Hz out.
	m.TCA0.PER.Set(0xFFFF)
	tcaEnableDiv(m, tcaDiv64)

	m.TCB0.CCMP.Set(999)
	m.TCB0.CTRLA.Set(tcbClkTCA<<1 | tcbEnable)

	vc.Advance(3200 * time.Microsecond) // 1000 ticks at 312500 Hz
	if got := m.TCB0.CNT.Get(); got != 0 {
		t.Fatalf("CNT = %d, want 0 (wrapped at TOP)", got)
	}
	if m.TCB0.INTFLAGS.Get()&tcbFlagCapt == 0 {
		t.Fatal("CAPT not set after one chained period")
	}
}

// A TCA reconfiguration must not retroactively re-rate ticks the chained
// TCB already earned.
func TestTCBChainRateChange(t *testing.T) {
	m, vc := testMCU()
	m.TCA0.PER.Set(0xFFFF)
	tcaEnableDiv(m, tcaDiv64) // 312500 Hz out

	m.TCB0.CCMP.Set(999)
	m.TCB0.CTRLA.Set(tcbClkTCA<<1 | tcbEnable)

	vc.Advance(1600 * time.Microsecond) // 500 ticks at the old rate
	tcaEnableDiv(m, 0x6)                // /256: 78125 Hz out
	vc.Advance(6400 * time.Microsecond) // 500 ticks at the new rate

	if got := m.TCB0.CNT.Get(); got != 0 {
		t.Fatalf("CNT = %d, want 0 (exactly at TOP)", got)
	}
	if m.TCB0.INTFLAGS.Get()&tcbFlagCapt == 0 {
		t.Fatal("CAPT not set")
	}
}

// While TCA is disabled its clock output is dead and a chained TCB holds
// still.
func TestTCBChainedSourceDisabled(t *testing.T) {
	m, vc := testMCU()
	m.TCB0.CCMP.Set(0xFFFF)
	m.TCB0.CTRLA.Set(tcbClkTCA<<1 | tcbEnable)

	vc.Advance(time.Millisecond)
	if got := m.TCB0.CNT.Get(); got != 0 {
		t.Fatalf("CNT = %d without a running TCA", got)
	}
}

func TestTCBPwm8(t *testing.T) {
	m, vc := testMCU()
	// Period 199, duty 50: high the first quarter of each 200-tick cycle.
	m.TCB0.CCMP.Set(50<<8 | 199)
	m.TCB0.CTRLB.Set(tcbCcmpEn | tcbModePwm8)
	m.TCB0.CTRLA.Set(tcbEnable)

	if lvl, act := m.TCB0.Waveform(); !act || !lvl {
		t.Fatalf("WO at CNT=0: lvl=%v act=%v, want high", lvl, act)
	}
	vc.Advance(5 * time.Microsecond) // CNT=100
	if lvl, _ := m.TCB0.Waveform(); lvl {
		t.Fatal("WO high past the duty")
	}
	vc.Advance(5 * time.Microsecond) // CNT=200 -> wrapped to 0
	if got := m.TCB0.CNT.Get(); got != 0 {
		t.Fatalf("CNT = %d, want 0", got)
	}
	if m.TCB0.INTFLAGS.Get()&tcbFlagCapt == 0 {
		t.Fatal("CAPT not set at the PWM wrap")
	}

	// Duty above the period saturates high; zero duty pins low.
	m.TCB0.CCMP.Set(250<<8 | 199)
	if lvl, _ := m.TCB0.Waveform(); !lvl {
		t.Fatal("saturated duty must idle high")
	}
	m.TCB0.CCMP.Set(0<<8 | 199)
	if lvl, _ := m.TCB0.Waveform(); lvl {
		t.Fatal("zero duty must idle low")
	}
}

func TestTCBStatusRun(t *testing.T) {
	m, _ := testMCU()
	if m.TCB0.STATUS.Get()&tcbStatusRun != 0 {
		t.Fatal("RUN set while disabled")
	}
	m.TCB0.CTRLA.Set(tcbEnable)
	if m.TCB0.STATUS.Get()&tcbStatusRun == 0 {
		t.Fatal("RUN clear while enabled")
	}
}
