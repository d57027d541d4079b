package timer

import (
	"errors"
	"testing"
	"time"

	"xtiny/clkctrl"
	"xtiny/hw"
)

func TestStartTicksValidates(t *testing.T) {
	m, clocks := testMCU(t)
	a := NewTCA0(m.TakeTCA0())
	ft, err := NewFTimer(a, PeripheralClock{Clocks: clocks}, 312_500)
	if err != nil {
		t.Fatal(err)
	}
	c := ft.Counter()

	if err := c.StartTicks(100); err != nil {
		t.Fatal(err)
	}
	if !a.IsCounterEnabled() {
		t.Fatal("counter not running after a valid start")
	}

	// A failed start on a running counter leaves it stopped, not
	// half-programmed.
	if err := c.StartTicks(0); !errors.Is(err, ErrImpossiblePrescaler) {
		t.Fatalf("StartTicks(0): err = %v, want ErrImpossiblePrescaler", err)
	}
	if a.IsCounterEnabled() {
		t.Error("counter running after StartTicks(0)")
	}
	if err := c.StartTicks(70_000); !errors.Is(err, ErrImpossiblePrescaler) {
		t.Fatalf("StartTicks(70000): err = %v, want ErrImpossiblePrescaler", err)
	}
	if err := c.Start(224 * time.Millisecond); !errors.Is(err, ErrImpossiblePrescaler) {
		t.Fatalf("Start(224ms): err = %v, want ErrImpossiblePrescaler", err)
	}

	if err := c.StartTicks(65_535); err != nil {
		t.Fatal(err)
	}
	if got := a.ReadPeriod(); got != 65_534 {
		t.Errorf("PER = %d, want 65534", got)
	}
	if !a.IsCounterEnabled() {
		t.Error("counter not running after the full-width start")
	}
}

func TestCounterOverflowTiming(t *testing.T) {
	vc := &hw.VirtualClock{}
	m := hw.New(hw.Profile{Clock: vc})
	clocks := clkctrl.Constrain(m.TakeCLKCTRL()).Freeze()

	a := NewTCA0(m.TakeTCA0())
	ft, err := NewFTimer(a, PeripheralClock{Clocks: clocks}, 312_500)
	if err != nil {
		t.Fatal(err)
	}
	c := ft.Counter()
	if err := c.Start(10 * time.Millisecond); err != nil { // 3125 ticks
		t.Fatal(err)
	}
	if got := a.ReadPeriod(); got != 3_124 {
		t.Fatalf("PER = %d, want 3124", got)
	}

	vc.Advance(9900 * time.Microsecond)
	if c.Overflow() {
		t.Fatal("overflow before the period elapsed")
	}
	if got := c.Count(); got != 3_093 {
		t.Errorf("CNT at 9.9ms = %d, want 3093", got)
	}

	vc.Advance(200 * time.Microsecond)
	if !c.Overflow() {
		t.Fatal("no overflow after the period elapsed")
	}
	if got := c.Count(); got != 31 {
		t.Errorf("CNT after the wrap = %d, want 31", got)
	}
	c.ClearOverflow()
	if c.Overflow() {
		t.Error("overflow flag survived the clear")
	}

	c.Cancel()
	if a.IsCounterEnabled() {
		t.Error("counter running after Cancel")
	}
}

// TestCounterInterrupt arms the overflow interrupt and lets the vector
// handler acknowledge each wrap. The counter free-runs between wraps:
// no reprogramming in the handler, the period register re-arms itself.
func TestCounterInterrupt(t *testing.T) {
	vc := &hw.VirtualClock{}
	m := hw.New(hw.Profile{Clock: vc})
	clocks := clkctrl.Constrain(m.TakeCLKCTRL()).Freeze()

	a := NewTCA0(m.TakeTCA0())
	ft, err := NewFTimer(a, PeripheralClock{Clocks: clocks}, 312_500)
	if err != nil {
		t.Fatal(err)
	}
	c := ft.Counter()

	fired := 0
	m.Handle(hw.VecTCA0Ovf, func() {
		c.ClearEvent(EvtOverflow)
		fired++
	})
	c.SetInterrupts(IntOverflow)
	if !c.IsInterruptConfigured(IntOverflow) {
		t.Fatal("interrupt mask not committed")
	}
	m.EnableInterrupts()

	if err := c.StartTicks(625); err != nil { // 2ms
		t.Fatal(err)
	}

	vc.Advance(2 * time.Millisecond)
	if got := c.Count(); got != 0 {
		t.Errorf("CNT at the wrap = %d, want 0", got)
	}
	if fired != 1 {
		t.Fatalf("handler ran %d times, want 1", fired)
	}
	if c.Overflow() {
		t.Error("flag still set after the handler acknowledged it")
	}

	vc.Advance(time.Millisecond)
	if got := c.Count(); got != 312 {
		t.Errorf("CNT mid-period = %d, want 312", got)
	}
	if fired != 1 {
		t.Fatalf("handler ran %d times mid-period, want 1", fired)
	}

	vc.Advance(time.Millisecond)
	if got := c.Count(); got != 0 {
		t.Errorf("CNT at the second wrap = %d, want 0", got)
	}
	if fired != 2 {
		t.Fatalf("handler ran %d times, want 2", fired)
	}
}

func TestCounterHzTCA(t *testing.T) {
	vc := &hw.VirtualClock{}
	m := hw.New(hw.Profile{Clock: vc})
	clocks := clkctrl.Constrain(m.TakeCLKCTRL()).Freeze()

	a := NewTCA0(m.TakeTCA0())
	tm := NewTimer(a, PeripheralClock{Clocks: clocks})
	c := tm.CounterHz()

	if err := c.Start(0); !errors.Is(err, ErrImpossiblePrescaler) {
		t.Fatalf("Start(0): err = %v, want ErrImpossiblePrescaler", err)
	}

	if err := c.Start(500); err != nil {
		t.Fatal(err)
	}
	if got := a.ReadPrescaler(); got != 1 {
		t.Errorf("500Hz prescaler = %d, want 1", got)
	}
	if got := a.ReadPeriod(); got != 39_999 {
		t.Errorf("500Hz PER = %d, want 39999", got)
	}
	vc.Advance(2 * time.Millisecond)
	if !c.Overflow() {
		t.Error("no overflow after one 500Hz period")
	}
	if got := c.Count(); got != 0 {
		t.Errorf("CNT after the wrap = %d, want 0", got)
	}
	c.ClearOverflow()

	// 250Hz forces the /2 divider: /1 would need an 80000-tick period.
	if err := c.Start(250); err != nil {
		t.Fatal(err)
	}
	if got := a.ReadPrescaler(); got != 2 {
		t.Errorf("250Hz prescaler = %d, want 2", got)
	}
	if got := a.ReadPeriod(); got != 39_999 {
		t.Errorf("250Hz PER = %d, want 39999", got)
	}

	// Each start resolves from scratch: back at 1kHz the divider drops
	// to /1 again.
	if err := c.Start(1_000); err != nil {
		t.Fatal(err)
	}
	if got := a.ReadPrescaler(); got != 1 {
		t.Errorf("1kHz prescaler = %d, want 1", got)
	}
	if got := a.ReadPeriod(); got != 19_999 {
		t.Errorf("1kHz PER = %d, want 19999", got)
	}

	// 2Hz has no exact prescaler/period pair at 20MHz.
	if err := c.Start(2); !errors.Is(err, ErrImpossiblePrescaler) {
		t.Fatalf("Start(2): err = %v, want ErrImpossiblePrescaler", err)
	}
	if a.IsCounterEnabled() {
		t.Error("counter running after a failed start")
	}

	raw := c.Release().Release()
	if raw != a {
		t.Error("Release returned a different adapter")
	}
	if a.IsCounterEnabled() {
		t.Error("Release left the counter running")
	}
}

func TestCounterHzRTC(t *testing.T) {
	vc := hw.NewVirtualClock(time.Microsecond)
	m := hw.New(hw.Profile{Clock: vc})

	r := NewRTC(m.TakeRTC())
	tm := NewTimer(r, RTCUlp32k)
	c := tm.CounterHz()

	if err := c.Start(1); err != nil {
		t.Fatal(err)
	}
	if got := r.ReadPrescaler(); got != 1 {
		t.Errorf("1Hz prescaler = %d, want 1", got)
	}
	if got := r.ReadPeriod(); got != 32_767 {
		t.Errorf("1Hz PER = %d, want 32767", got)
	}
	if !r.IsCounterEnabled() {
		t.Fatal("counter not running")
	}

	vc.Advance(1100 * time.Millisecond)
	if !c.Overflow() {
		t.Error("no overflow after one second")
	}
	c.ClearOverflow()

	// 3Hz does not divide a power-of-two clock.
	if err := c.Start(3); !errors.Is(err, ErrImpossiblePrescaler) {
		t.Fatalf("Start(3): err = %v, want ErrImpossiblePrescaler", err)
	}

	if err := c.Start(1_024); err != nil {
		t.Fatal(err)
	}
	if got := r.ReadPeriod(); got != 31 {
		t.Errorf("1024Hz PER = %d, want 31", got)
	}
}
