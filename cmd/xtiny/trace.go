package main

import (
	"bufio"
	"fmt"
	"io"
	"math/bits"
	"os"
	"strings"
	"time"

	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"

	"xtiny/clkctrl"
	"xtiny/gpio"
	"xtiny/hw"
	"xtiny/log"
	"xtiny/portmux"
	"xtiny/timer"
	"xtiny/units"
)

// A scenario is a small firmware run against the modeled chip through
// the timer layer, with the event tap recording what the pins and
// interrupt flags do.
type scenario struct {
	name string
	desc string
	run  func(s *sim) error
}

var scenarios = []scenario{
	{"blink", "toggle PA3 every 50ms with a TCA0 delay", runBlink},
	{"pwmsweep", "sweep the duty of a slow PWM on PB0", runPwmSweep},
	{"counter", "100ms periodic overflow interrupt toggling PA4", runCounter},
}

func findScenario(name string) (scenario, bool) {
	for _, sc := range scenarios {
		if sc.name == name {
			return sc, true
		}
	}
	return scenario{}, false
}

func scenarioNames() string {
	names := make([]string, len(scenarios))
	for i, sc := range scenarios {
		names[i] = sc.name
	}
	return strings.Join(names, ", ")
}

func runTrace(args Trace, cfg Config) error {
	name := args.Scenario
	if name == "" {
		name = cfg.Trace.Scenario
	}
	sc, ok := findScenario(name)
	if !ok {
		return fmt.Errorf("unknown scenario %q (valid: %s)", name, scenarioNames())
	}

	dur := args.For
	if dur == 0 {
		dur = cfg.Trace.For.Duration
	}
	step := args.Step
	if step == 0 {
		step = cfg.Trace.Step.Duration
	}
	if dur <= 0 || step <= 0 {
		return fmt.Errorf("durations must be positive")
	}

	var w io.Writer = os.Stdout
	if args.Out != nil {
		defer args.Out.Close()
		w = args.Out
	}
	return trace(sc, cfg.Chip, step, dur, w)
}

// traceEvent is one observed change: a pad level or an interrupt flag.
type traceEvent struct {
	ns   uint64
	kind string
	name string
	val  bool
}

// Sampled bus addresses: the IN register of each port and the
// interrupt flags of the three counters.
const (
	addrInA = 0x0408
	addrInB = 0x0428
	addrInC = 0x0448

	addrFlagsTCA = 0x0A0B
	addrFlagsTCB = 0x0A46
	addrFlagsRTC = 0x0143
)

var flagNames = [3][8]string{
	{0: "TCA0.OVF", 4: "TCA0.CMP0", 5: "TCA0.CMP1", 6: "TCA0.CMP2"},
	{0: "TCB0.CAPT"},
	{0: "RTC.OVF", 1: "RTC.CMP"},
}

// sim is one simulated chip plus the event tap feeding the trace
// writer. The clock autosteps: every register access charges one step,
// so polling loops double as the passage of time.
type sim struct {
	vc     *hw.VirtualClock
	m      *hw.MCU
	clocks clkctrl.Clocks
	end    uint64

	events chan traceEvent

	pins  [3]uint8
	flags [3]uint8
}

func newSim(chip ChipConfig, step, dur time.Duration) *sim {
	vc := hw.NewVirtualClock(step)
	m := hw.New(hw.Profile{
		MainHz:  units.Hertz(chip.MainHz),
		Tosc1Hz: units.Hertz(chip.Tosc1Hz),
		Clock:   vc,
	})
	clocks := clkctrl.ConstrainAt(m.TakeCLKCTRL(), units.Hertz(chip.MainHz)).
		Locked().
		Freeze()

	s := &sim{
		vc:     vc,
		m:      m,
		clocks: clocks,
		end:    uint64(dur),
		events: make(chan traceEvent, 1024),
	}
	s.prime()
	vc.OnTick(s.sample)
	return s
}

// now charges one clock step, like any other access to the chip.
func (s *sim) now() uint64 { return s.vc.Now() }

func (s *sim) prime() {
	for i, addr := range [...]uint16{addrInA, addrInB, addrInC} {
		s.pins[i] = s.m.Bus.Peek8(addr)
	}
	for i, addr := range [...]uint16{addrFlagsTCA, addrFlagsTCB, addrFlagsRTC} {
		s.flags[i] = s.m.Bus.Peek8(addr)
	}
}

// sample runs on every clock step, in the middle of whatever register
// access moved time. It may only peek at the bus.
func (s *sim) sample(now uint64) {
	for i, addr := range [...]uint16{addrInA, addrInB, addrInC} {
		v := s.m.Bus.Peek8(addr)
		for d := v ^ s.pins[i]; d != 0; d &= d - 1 {
			bit := uint8(bits.TrailingZeros8(d))
			id := gpio.ID(uint8(i)*8 + bit)
			s.events <- traceEvent{ns: now, kind: "pin", name: id.String(), val: v&(1<<bit) != 0}
		}
		s.pins[i] = v
	}

	for i, addr := range [...]uint16{addrFlagsTCA, addrFlagsTCB, addrFlagsRTC} {
		v := s.m.Bus.Peek8(addr)
		for d := v ^ s.flags[i]; d != 0; d &= d - 1 {
			bit := uint8(bits.TrailingZeros8(d))
			name := flagNames[i][bit]
			if name == "" {
				continue
			}
			s.events <- traceEvent{ns: now, kind: "flag", name: name, val: v&(1<<bit) != 0}
		}
		s.flags[i] = v
	}
}

// trace runs one scenario against a fresh chip and streams every pin
// and interrupt flag change as one JSON object per line.
func trace(sc scenario, chip ChipConfig, step, dur time.Duration, w io.Writer) error {
	s := newSim(chip, step, dur)

	log.ModMain.InfoZ("scenario start").
		String("name", sc.name).
		Duration("for", dur).
		Duration("step", step).
		End()

	var g errgroup.Group
	g.Go(func() error {
		bw := bufio.NewWriter(w)
		var e jx.Encoder
		var werr error
		n := 0
		for ev := range s.events {
			if werr != nil {
				continue
			}
			e.Reset()
			e.Obj(func(e *jx.Encoder) {
				e.Field("t", func(e *jx.Encoder) { e.UInt64(ev.ns) })
				e.Field("kind", func(e *jx.Encoder) { e.Str(ev.kind) })
				e.Field("name", func(e *jx.Encoder) { e.Str(ev.name) })
				e.Field("v", func(e *jx.Encoder) { e.Bool(ev.val) })
			})
			if _, err := bw.Write(e.Bytes()); err != nil {
				werr = err
				continue
			}
			if err := bw.WriteByte('\n'); err != nil {
				werr = err
				continue
			}
			n++
		}
		if werr != nil {
			return werr
		}
		if err := bw.Flush(); err != nil {
			return err
		}
		log.ModMain.InfoZ("trace done").Int("events", n).End()
		return nil
	})

	runErr := sc.run(s)
	close(s.events)
	if err := g.Wait(); runErr == nil {
		runErr = err
	}
	return runErr
}

// runBlink is the classic first firmware: a LED on PA3, toggled every
// 50ms with a busy delay off TCA0.
func runBlink(s *sim) error {
	led := gpio.Split(s.m.TakePORTA()).P3.IntoOutput()

	ft, err := timer.NewFTimer(timer.NewTCA0(s.m.TakeTCA0()),
		timer.PeripheralClock{Clocks: s.clocks}, s.clocks.Per()/64)
	if err != nil {
		return err
	}
	d := ft.Delay()

	for s.now() < s.end {
		led.Toggle()
		d.Wait(50 * time.Millisecond)
	}
	return nil
}

// runPwmSweep fades PB0: a single-slope PWM whose duty climbs a step
// every 10ms or so. The RTC counter paces the sweep; reads of a probe
// pin on the same port keep the waveform moving between steps.
func runPwmSweep(s *sim) error {
	pb := gpio.Split(s.m.TakePORTB())
	mux := portmux.Constrain(s.m.TakePORTMUX())

	ft, err := timer.NewFTimer(timer.NewTCA0(s.m.TakeTCA0()),
		timer.PeripheralClock{Clocks: s.clocks}, s.clocks.Per()/64)
	if err != nil {
		return err
	}
	pwm := timer.NewPwm(ft, mux.RouteTCA0(pb.P0.IntoStatelessOutput()))
	pwm.SetPeriod(999)
	pwm.Enable(timer.Ch0)

	pace, err := timer.NewFTimer(timer.NewRTC(s.m.TakeRTC()), timer.RTCUlp32k, 1024)
	if err != nil {
		return err
	}
	cnt := pace.Counter()

	probe := pb.P7.IntoInput()
	duty := uint16(0)
	for s.now() < s.end {
		pwm.SetDuty(timer.Ch0, duty)
		duty += 50
		if duty > pwm.MaxDuty() {
			duty = 0
		}

		if err := cnt.StartTicks(10); err != nil {
			return err
		}
		for !cnt.Overflow() && s.now() < s.end {
			probe.Read()
		}
		cnt.ClearOverflow()
		cnt.Cancel()
	}
	return nil
}

// runCounter arms a 100ms periodic overflow interrupt on TCA0. The
// handler acknowledges the flag and toggles PA4; the foreground spins
// reading the count, which is what dispatches the interrupt.
func runCounter(s *sim) error {
	led := gpio.Split(s.m.TakePORTA()).P4.IntoOutput()

	ft, err := timer.NewFTimer(timer.NewTCA0(s.m.TakeTCA0()),
		timer.PeripheralClock{Clocks: s.clocks}, s.clocks.Per()/64)
	if err != nil {
		return err
	}
	cnt := ft.Counter()

	s.m.Handle(hw.VecTCA0Ovf, func() {
		cnt.ClearEvent(timer.EvtOverflow)
		led.Toggle()
	})
	cnt.SetInterrupts(timer.IntOverflow)
	s.m.EnableInterrupts()

	if err := cnt.Start(100 * time.Millisecond); err != nil {
		return err
	}
	for s.now() < s.end {
		cnt.Count()
	}
	cnt.Cancel()
	return nil
}
