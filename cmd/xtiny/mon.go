package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"xtiny/hw"
	"xtiny/log"
	"xtiny/units"
)

// monitor is an interactive probe on the data-space bus. Time stands
// still between commands: the clock only moves on step, so the
// catch-up discipline is directly observable from the prompt.
type monitor struct {
	vc  *hw.VirtualClock
	m   *hw.MCU
	out io.Writer
}

func newMonitor(chip ChipConfig, out io.Writer) *monitor {
	vc := &hw.VirtualClock{}
	m := hw.New(hw.Profile{
		MainHz:  units.Hertz(chip.MainHz),
		Tosc1Hz: units.Hertz(chip.Tosc1Hz),
		Clock:   vc,
	})
	return &monitor{vc: vc, m: m, out: out}
}

type regDesc struct {
	name string
	off  uint16
	wide bool
}

type blockDesc struct {
	base uint16
	regs []regDesc
}

var portRegs = []regDesc{
	{"DIR", 0x00, false}, {"OUT", 0x04, false}, {"IN", 0x08, false},
	{"INTFLAGS", 0x09, false},
}

// blocks maps the regs argument to the datasheet register map of each
// modeled peripheral.
var blocks = map[string]blockDesc{
	"clkctrl": {0x0060, []regDesc{
		{"MCLKCTRLA", 0x00, false}, {"MCLKCTRLB", 0x01, false},
		{"MCLKLOCK", 0x02, false}, {"MCLKSTATUS", 0x03, false},
	}},
	"cpuint": {0x0110, []regDesc{
		{"CTRLA", 0x00, false}, {"STATUS", 0x01, false},
		{"LVL0PRI", 0x02, false}, {"LVL1VEC", 0x03, false},
	}},
	"rtc": {0x0140, []regDesc{
		{"CTRLA", 0x00, false}, {"STATUS", 0x01, false}, {"INTCTRL", 0x02, false},
		{"INTFLAGS", 0x03, false}, {"TEMP", 0x04, false}, {"DBGCTRL", 0x05, false},
		{"CLKSEL", 0x07, false}, {"CNT", 0x08, true}, {"PER", 0x0A, true},
		{"CMP", 0x0C, true},
	}},
	"portmux": {0x0200, []regDesc{
		{"CTRLA", 0x00, false}, {"CTRLB", 0x01, false},
		{"CTRLC", 0x02, false}, {"CTRLD", 0x03, false},
	}},
	"porta": {0x0400, portRegs},
	"portb": {0x0420, portRegs},
	"portc": {0x0440, portRegs},
	"tca0": {0x0A00, []regDesc{
		{"CTRLA", 0x00, false}, {"CTRLB", 0x01, false}, {"CTRLC", 0x02, false},
		{"CTRLD", 0x03, false}, {"CTRLECLR", 0x04, false}, {"CTRLESET", 0x05, false},
		{"CTRLFCLR", 0x06, false}, {"CTRLFSET", 0x07, false}, {"EVCTRL", 0x09, false},
		{"INTCTRL", 0x0A, false}, {"INTFLAGS", 0x0B, false}, {"DBGCTRL", 0x0E, false},
		{"TEMP", 0x0F, false}, {"CNT", 0x20, true}, {"PER", 0x26, true},
		{"CMP0", 0x28, true}, {"CMP1", 0x2A, true}, {"CMP2", 0x2C, true},
		{"PERBUF", 0x36, true}, {"CMP0BUF", 0x38, true}, {"CMP1BUF", 0x3A, true},
		{"CMP2BUF", 0x3C, true},
	}},
	"tcb0": {0x0A40, []regDesc{
		{"CTRLA", 0x00, false}, {"CTRLB", 0x01, false}, {"EVCTRL", 0x04, false},
		{"INTCTRL", 0x05, false}, {"INTFLAGS", 0x06, false}, {"STATUS", 0x07, false},
		{"DBGCTRL", 0x08, false}, {"TEMP", 0x0A, false}, {"CNT", 0x0C, true},
		{"CCMP", 0x0E, true},
	}},
}

func blockNames() []string {
	names := make([]string, 0, len(blocks))
	for name := range blocks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// runMon opens the interactive register monitor.
func runMon(chip ChipConfig) error {
	mn := newMonitor(chip, os.Stdout)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeMonLine)

	histpath := filepath.Join(configDir(), "mon.history")
	if f, err := os.Open(histpath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(histpath)
		if err != nil {
			log.ModMon.Warnf("cannot save history: %v", err)
			return
		}
		line.WriteHistory(f)
		f.Close()
	}()

	fmt.Fprintln(mn.out, "xtiny monitor. 'help' for commands, 'q' to quit.")
	for {
		in, err := line.Prompt("xtiny> ")
		if err == liner.ErrPromptAborted {
			continue
		}
		if err == io.EOF {
			fmt.Fprintln(mn.out)
			return nil
		}
		if err != nil {
			return err
		}

		in = strings.TrimSpace(in)
		if in == "" {
			continue
		}
		line.AppendHistory(in)

		quit, err := mn.exec(in)
		if err != nil {
			fmt.Fprintln(mn.out, "error:", err)
		}
		if quit {
			return nil
		}
	}
}

var monCommands = []string{"rd", "wr", "dump", "step", "regs", "help", "q"}

func completeMonLine(line string) []string {
	var out []string
	if rest, ok := strings.CutPrefix(line, "regs "); ok {
		for _, b := range blockNames() {
			if strings.HasPrefix(b, rest) {
				out = append(out, "regs "+b)
			}
		}
		return out
	}
	for _, c := range monCommands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

func (mn *monitor) exec(in string) (quit bool, err error) {
	f := strings.Fields(in)
	switch f[0] {
	case "q", "quit", "exit":
		return true, nil

	case "help", "h", "?":
		mn.help()

	case "rd":
		if len(f) != 2 {
			return false, fmt.Errorf("usage: rd <addr>")
		}
		addr, err := parseAddr(f[1])
		if err != nil {
			return false, err
		}
		fmt.Fprintf(mn.out, "%04X: %02X\n", addr, mn.m.Bus.Read8(addr))

	case "wr":
		if len(f) != 3 {
			return false, fmt.Errorf("usage: wr <addr> <val>")
		}
		addr, err := parseAddr(f[1])
		if err != nil {
			return false, err
		}
		val, err := parseVal(f[2])
		if err != nil {
			return false, err
		}
		mn.m.Bus.Write8(addr, val)

	case "dump":
		if len(f) != 3 {
			return false, fmt.Errorf("usage: dump <addr> <len>")
		}
		addr, err := parseAddr(f[1])
		if err != nil {
			return false, err
		}
		n, err := strconv.ParseUint(f[2], 0, 16)
		if err != nil || n == 0 || n > 256 {
			return false, fmt.Errorf("len must be 1..256")
		}
		mn.dump(addr, int(n))

	case "step":
		if len(f) != 2 {
			return false, fmt.Errorf("usage: step <duration>")
		}
		d, err := parseStep(f[1])
		if err != nil {
			return false, err
		}
		mn.vc.Advance(d)
		fmt.Fprintf(mn.out, "t=%v\n", time.Duration(mn.vc.Now()))

	case "regs":
		if len(f) != 2 {
			return false, fmt.Errorf("usage: regs <block>")
		}
		name := strings.ToLower(f[1])
		b, ok := blocks[name]
		if !ok {
			return false, fmt.Errorf("unknown block %q (%s)", f[1], strings.Join(blockNames(), " "))
		}
		mn.regs(name, b)

	default:
		return false, fmt.Errorf("unknown command %q (try 'help')", f[0])
	}
	return false, nil
}

func (mn *monitor) help() {
	fmt.Fprint(mn.out, `commands:
  rd <addr>          read one byte (full access: catch-up, W1C, interrupts)
  wr <addr> <val>    write one byte
  dump <addr> <len>  hex dump, peek only, no side effects
  step <duration>    advance virtual time (1ms, 500us, bare number = ns)
  regs <block>       named registers of one block, peek only
  q                  quit

numbers accept 0x prefixes. blocks:
  `+strings.Join(blockNames(), " ")+`
`)
}

func (mn *monitor) dump(base uint16, n int) {
	for row := 0; row < n; row += 16 {
		fmt.Fprintf(mn.out, "%04X:", base+uint16(row))
		for i := row; i < row+16 && i < n; i++ {
			if i%8 == 0 && i%16 != 0 {
				fmt.Fprint(mn.out, " ")
			}
			fmt.Fprintf(mn.out, " %02X", mn.m.Bus.Peek8(base+uint16(i)))
		}
		fmt.Fprintln(mn.out)
	}
}

func (mn *monitor) regs(name string, b blockDesc) {
	fmt.Fprintf(mn.out, "%s @ %04X\n", strings.ToUpper(name), b.base)
	for _, r := range b.regs {
		if r.wide {
			v := uint16(mn.m.Bus.Peek8(b.base+r.off)) |
				uint16(mn.m.Bus.Peek8(b.base+r.off+1))<<8
			fmt.Fprintf(mn.out, "  %-10s = %04X\n", r.name, v)
		} else {
			fmt.Fprintf(mn.out, "  %-10s = %02X\n", r.name, mn.m.Bus.Peek8(b.base+r.off))
		}
	}
}

func parseAddr(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("bad address %q", s)
	}
	return uint16(v), nil
}

func parseVal(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("bad value %q", s)
	}
	return uint8(v), nil
}

// parseStep accepts a duration ("1ms", "500us") or a bare nanosecond
// count.
func parseStep(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("step must be positive")
		}
		return d, nil
	}
	n, err := strconv.ParseUint(s, 0, 63)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("bad duration %q", s)
	}
	return time.Duration(n), nil
}
