package isr

import (
	"os"
	"testing"
	"time"

	"xtiny/hw"
	"xtiny/log"
)

func TestMain(m *testing.M) {
	log.Disable()
	os.Exit(m.Run())
}

type fakeGate struct {
	masked  int
	restore int
}

func (g *fakeGate) MaskInterrupts() func() {
	g.masked++
	return func() { g.restore++ }
}

func TestCellRoundTrip(t *testing.T) {
	var c Cell[int]
	g := &fakeGate{}
	c.Init(g, 41)

	c.With(func(v *int) { *v++ })

	var got int
	c.With(func(v *int) { got = *v })
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
	if g.masked != 2 || g.restore != 2 {
		t.Fatalf("mask/restore calls: %d/%d, want 2/2", g.masked, g.restore)
	}
}

func TestCellDoubleInitPanics(t *testing.T) {
	var c Cell[int]
	c.Init(&fakeGate{}, 0)
	defer func() {
		if recover() == nil {
			t.Fatal("second Init did not panic")
		}
	}()
	c.Init(&fakeGate{}, 0)
}

func TestCellBeforeInitPanics(t *testing.T) {
	var c Cell[int]
	defer func() {
		if recover() == nil {
			t.Fatal("With before Init did not panic")
		}
	}()
	c.With(func(*int) {})
}

// A handler must not run in the middle of a With section even when
// its flag goes pending there.
func TestCellMasksDispatch(t *testing.T) {
	m := hw.New(hw.Profile{Clock: hw.NewVirtualClock(time.Microsecond)})
	tca := m.TakeTCA0()
	tca.PER.Set(99)
	tca.INTCTRL.Set(0x01)
	tca.CTRLA.Set(0x01)
	m.EnableInterrupts()

	var c Cell[int]
	c.Init(m.CPUINT, 0)

	fired := 0
	m.Handle(hw.VecTCA0Ovf, func() {
		tca.INTFLAGS.Set(0x01)
		fired++
		c.With(func(v *int) { *v++ })
	})

	c.With(func(v *int) {
		// Ride well past several overflows; dispatch stays masked.
		for i := 0; i < 2000; i++ {
			tca.CNT.Get()
		}
		if fired != 0 {
			t.Fatalf("handler ran inside the critical section (%d times)", fired)
		}
	})

	// The pending level fires on the restore path or the next access.
	tca.CNT.Get()
	if fired == 0 {
		t.Fatal("handler never ran after the critical section")
	}
	var got int
	c.With(func(v *int) { got = *v })
	if got != fired {
		t.Fatalf("cell count %d, handler count %d", got, fired)
	}
}
