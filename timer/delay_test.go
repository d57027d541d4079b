package timer

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"xtiny/clkctrl"
	"xtiny/hw"
	"xtiny/units"
)

// fakeTimer implements Periodic in memory and overflows on the first
// poll after an enable, so the chunking arithmetic of Delay is
// observable without a clock behind it.
type fakeTimer struct {
	rate units.Hertz
	max  uint32

	periods                   []uint32
	period                    uint32
	enabled                   bool
	enables, disables, clears int
	resets, modeSets          int
}

func (f *fakeTimer) InputClockRate(ClockSource) units.Hertz { return f.rate }
func (f *fakeTimer) PrepareClockSource(ClockSource)         {}
func (f *fakeTimer) ValidPrescalers(ClockSource) []uint32   { return []uint32{1} }
func (f *fakeTimer) SetPrescaler(uint32)                    {}
func (f *fakeTimer) ReadPrescaler() uint32                  { return 1 }

func (f *fakeTimer) ResetCounterPeripheral() {}
func (f *fakeTimer) EnableCounter()          { f.enabled = true; f.enables++ }
func (f *fakeTimer) DisableCounter()         { f.enabled = false; f.disables++ }
func (f *fakeTimer) IsCounterEnabled() bool  { return f.enabled }
func (f *fakeTimer) ResetCount()             { f.resets++ }
func (f *fakeTimer) ReadCount() uint32       { return 0 }

func (f *fakeTimer) EnableInterrupt(Interrupt)            {}
func (f *fakeTimer) DisableInterrupt(Interrupt)           {}
func (f *fakeTimer) SetInterrupts(...Interrupt)           {}
func (f *fakeTimer) IsInterruptConfigured(Interrupt) bool { return false }
func (f *fakeTimer) IsEventTriggered(Event) bool          { return false }
func (f *fakeTimer) ClearEvent(Event)                     {}

func (f *fakeTimer) SetPeriodicMode() { f.modeSets++ }
func (f *fakeTimer) ReadPeriod() uint32 {
	return f.period
}
func (f *fakeTimer) SetPeriodUnchecked(n uint32) {
	f.period = n
	f.periods = append(f.periods, n)
}
func (f *fakeTimer) TriggerUpdate()    {}
func (f *fakeTimer) MaxPeriod() uint32 { return f.max }
func (f *fakeTimer) Overflow() bool    { return f.enabled }
func (f *fakeTimer) ClearOverflow()    { f.clears++ }

func fakeDelay(t *testing.T) (*fakeTimer, *Delay[*fakeTimer]) {
	t.Helper()
	f := &fakeTimer{rate: 312_500, max: 0xFFFF}
	ft, err := NewFTimer(f, PeripheralClock{}, f.rate)
	if err != nil {
		t.Fatal(err)
	}
	return f, ft.Delay()
}

// TestWaitTicksChunks: a request longer than one hardware period tiles
// into full periods plus a remainder, each programmed as chunk-1, and
// the chunks sum to the request exactly.
func TestWaitTicksChunks(t *testing.T) {
	f, d := fakeDelay(t)
	d.WaitTicks(70_000)

	if diff := cmp.Diff([]uint32{65_534, 4_464}, f.periods); diff != "" {
		t.Errorf("programmed periods (-want +got):\n%s", diff)
	}
	var total uint64
	for _, p := range f.periods {
		total += uint64(p) + 1
	}
	if total != 70_000 {
		t.Errorf("chunks cover %d ticks, want 70000", total)
	}
	if f.enables != 2 || f.disables != 2 || f.clears != 2 || f.resets != 2 {
		t.Errorf("enable/disable/clear/reset = %d/%d/%d/%d, want 2 each",
			f.enables, f.disables, f.clears, f.resets)
	}
	if f.enabled {
		t.Error("counter left running")
	}
}

func TestWaitTicksEdges(t *testing.T) {
	tests := []struct {
		n       uint64
		periods []uint32
	}{
		{0, nil},
		{1, []uint32{0}},
		{65_535, []uint32{65_534}},
		{65_536, []uint32{65_534, 0}},
	}
	for _, tt := range tests {
		f, d := fakeDelay(t)
		d.WaitTicks(tt.n)
		if diff := cmp.Diff(tt.periods, f.periods); diff != "" {
			t.Errorf("WaitTicks(%d) periods (-want +got):\n%s", tt.n, diff)
		}
	}
}

// TestWaitDuration runs the duration path through the tick conversion.
func TestWaitDuration(t *testing.T) {
	f, d := fakeDelay(t)
	d.Wait(224 * time.Millisecond) // 70000 ticks at 312.5 kHz
	if diff := cmp.Diff([]uint32{65_534, 4_464}, f.periods); diff != "" {
		t.Errorf("programmed periods (-want +got):\n%s", diff)
	}
}

func TestMaxDelay(t *testing.T) {
	_, d := fakeDelay(t)
	if got := d.MaxDelay(); got != 209_712*time.Microsecond {
		t.Errorf("MaxDelay = %v, want 209.712ms", got)
	}
}

// TestWaitElapsedOnChip runs a wait against the modeled TCA0 and checks
// the simulated time that actually passed. The clock autosteps, so the
// overflow spin terminates and the wait overshoots by at most the poll
// granularity.
func TestWaitElapsedOnChip(t *testing.T) {
	vc := hw.NewVirtualClock(time.Microsecond)
	m := hw.New(hw.Profile{Clock: vc})
	clocks := clkctrl.Constrain(m.TakeCLKCTRL()).Freeze()

	ft, err := NewFTimer(NewTCA0(m.TakeTCA0()), PeripheralClock{Clocks: clocks}, 312_500)
	if err != nil {
		t.Fatal(err)
	}
	d := ft.Delay()

	tests := []time.Duration{
		10 * time.Millisecond,
		224 * time.Millisecond, // two chunks
	}
	for _, want := range tests {
		start := vc.Now()
		d.Wait(want)
		elapsed := time.Duration(vc.Now() - start)
		if elapsed < want || elapsed > want+time.Millisecond {
			t.Errorf("Wait(%v) took %v of simulated time", want, elapsed)
		}
	}
}

func TestDelayRelease(t *testing.T) {
	f, d := fakeDelay(t)
	f.enabled = true
	ft := d.Release()
	if f.enabled {
		t.Error("Release left the counter running")
	}
	if ft.tim != f {
		t.Error("Release returned a different timer")
	}
}
