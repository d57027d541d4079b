package hw

import (
	"os"
	"testing"

	"xtiny/log"
)

func TestMain(m *testing.M) {
	log.Disable()
	os.Exit(m.Run())
}

func TestTakeOnce(t *testing.T) {
	m, _ := testMCU()
	if m.TakeTCA0() != m.TCA0 {
		t.Fatal("TakeTCA0 returned a different block")
	}
	defer func() {
		if recover() == nil {
			t.Fatal("second TakeTCA0 did not panic")
		}
	}()
	m.TakeTCA0()
}

func TestBusRegisterMap(t *testing.T) {
	m, _ := testMCU()

	// TCA0.PER is a 16-bit register at 0x0A26: byte halves on the bus,
	// full width through the register accessor.
	m.Bus.Write8(0x0A26, 0xE8)
	m.Bus.Write8(0x0A27, 0x03)
	if got := m.TCA0.PER.Get(); got != 1000 {
		t.Fatalf("PER = %d, want 1000", got)
	}
	if lo := m.Bus.Read8(0x0A26); lo != 0xE8 {
		t.Fatalf("PER low byte = %#02x", lo)
	}

	// RTC at 0x0140, PORTMUX at 0x0200, PORTB at 0x0420.
	m.Bus.Write8(0x0202, 0x01)
	if !m.PORTMUX.TCA0Alt(0) {
		t.Fatal("PORTMUX.CTRLC write via bus not visible")
	}
	m.Bus.Write8(0x0425, 0x40) // OUTSET PB6
	if m.PORTB.OUT.Value != 0x40 {
		t.Fatal("PORTB.OUTSET write via bus not visible")
	}
	if got := m.Bus.Read8(0x0140 + 0x0A); got != 0xFF {
		t.Fatalf("RTC.PERL = %#02x, want reset 0xFF", got)
	}
}

func TestVportAlias(t *testing.T) {
	m, _ := testMCU()

	// VPORTB.DIR and OUT alias the full port registers.
	m.Bus.Write8(0x0004, 0xC0)
	if m.PORTB.DIR.Value != 0xC0 {
		t.Fatalf("PORTB.DIR = %#02x", m.PORTB.DIR.Value)
	}
	m.Bus.Write8(0x0005, 0x40)
	if got := m.Bus.Read8(0x0427); got != 0x40 { // OUTTGL reads back OUT
		t.Fatalf("PORTB.OUT = %#02x", got)
	}

	// Driven output pins read back on IN.
	if got := m.Bus.Read8(0x0006); got != 0x40 {
		t.Fatalf("VPORTB.IN = %#02x, want PB6 high", got)
	}

	// Writing VPORT.IN toggles OUT.
	m.Bus.Write8(0x0006, 0x40)
	if got := m.Bus.Read8(0x0006); got != 0x00 {
		t.Fatalf("VPORTB.IN after toggle = %#02x, want 0", got)
	}
}

func TestPortInputOverride(t *testing.T) {
	m, _ := testMCU()

	// Undriven pins read the external level.
	m.PORTA.SetInput(3, true)
	if !m.PORTA.PinLevel(3) {
		t.Fatal("external input not visible on IN")
	}
	// Once driven, OUT wins.
	m.PORTA.DIRSET.Set(1 << 3)
	if m.PORTA.PinLevel(3) {
		t.Fatal("driven-low pin reads high")
	}
}

// PWM override: the waveform level wins over OUT on the routed pin, and
// follows the PORTMUX alternate selection.
func TestPortWaveformOverride(t *testing.T) {
	m, _ := testMCU()

	m.TCA0.PER.Set(999)
	m.TCA0.CMP0.Set(500)
	m.TCA0.CTRLB.Set(tcaCmp0En | tcaWgmSingleSlope)
	tcaEnableDiv(m, tcaDiv1)

	// Default route: WO0 on PB0.
	if !m.PORTB.PinLevel(0) {
		t.Fatal("PB0 low with the waveform high")
	}
	if m.PORTB.PinLevel(3) {
		t.Fatal("PB3 driven while WO0 routes to PB0")
	}

	// Alternate route: WO0 on PB3.
	m.PORTMUX.CTRLC.Set(0x01)
	if m.PORTB.PinLevel(0) {
		t.Fatal("PB0 still driven after rerouting")
	}
	if !m.PORTB.PinLevel(3) {
		t.Fatal("PB3 low with the waveform high")
	}
}

func TestSram(t *testing.T) {
	m, _ := testMCU()
	m.Bus.Write8(0x3E05, 0xAB)
	if got := m.Bus.Read8(0x3E05); got != 0xAB {
		t.Fatalf("SRAM readback = %#02x", got)
	}
}

func TestProfileDefaults(t *testing.T) {
	p := Profile{}.withDefaults()
	if p.MainHz != 20_000_000 || p.Tosc1Hz != 32768 || p.Clock == nil {
		t.Fatalf("withDefaults = %+v", p)
	}
}
