package hw

import (
	"math/bits"
	"strconv"

	"xtiny/hw/hwio"
	"xtiny/log"
)

// Vector is an interrupt vector number from the device vector table.
type Vector uint8

const (
	VecRTCCnt   Vector = 6
	VecTCA0Ovf  Vector = 8
	VecTCA0Cmp0 Vector = 10
	VecTCA0Cmp1 Vector = 11
	VecTCA0Cmp2 Vector = 12
	VecTCB0Int  Vector = 13

	numVectors = 26
)

func (v Vector) String() string {
	switch v {
	case VecRTCCnt:
		return "RTC_CNT"
	case VecTCA0Ovf:
		return "TCA0_OVF"
	case VecTCA0Cmp0:
		return "TCA0_CMP0"
	case VecTCA0Cmp1:
		return "TCA0_CMP1"
	case VecTCA0Cmp2:
		return "TCA0_CMP2"
	case VecTCB0Int:
		return "TCB0_INT"
	}
	return "VEC" + strconv.Itoa(int(v))
}

// CPUInt models the interrupt controller. Peripherals drive per-vector
// request levels (flag AND enable, recomputed on every catch-up), and
// Dispatch runs registered handlers between register accesses, which is
// this model's instruction boundary. Levels are not latched: a handler
// that does not clear its peripheral flag will be entered again at the
// next boundary, exactly like the silicon re-fetching a level-held
// vector.
type CPUInt struct {
	CTRLA   hwio.Reg8 `hwio:"offset=0x0,rwmask=0x61"`
	STATUS  hwio.Reg8 `hwio:"offset=0x1,readonly"`
	LVL0PRI hwio.Reg8 `hwio:"offset=0x2"`
	LVL1VEC hwio.Reg8 `hwio:"offset=0x3"`

	levels   uint32
	handlers [numVectors]func()
	global   bool
	inISR    bool
	orphaned uint32
}

const statusLvl0Ex = 0x01

func newCPUInt() *CPUInt {
	ic := &CPUInt{}
	hwio.MustInitRegs(ic)
	return ic
}

// Handle registers fn as the handler for vector v. A nil fn removes the
// handler.
func (ic *CPUInt) Handle(v Vector, fn func()) {
	ic.handlers[v] = fn
	ic.orphaned &^= 1 << v
}

// SetLevel drives the request line of vector v. Owned by the peripheral
// models.
func (ic *CPUInt) SetLevel(v Vector, on bool) {
	if on {
		ic.levels |= 1 << v
	} else {
		ic.levels &^= 1 << v
	}
}

// Pending returns the vectors currently requesting service.
func (ic *CPUInt) Pending() uint32 { return ic.levels }

func (ic *CPUInt) EnableGlobal() {
	ic.global = true
	ic.Dispatch()
}

func (ic *CPUInt) DisableGlobal() {
	ic.global = false
}

func (ic *CPUInt) GlobalEnabled() bool { return ic.global }

// MaskInterrupts disables interrupts and returns the closure that
// restores the previous state, dispatching anything that became pending
// in between. Critical sections in foreground code build on this.
func (ic *CPUInt) MaskInterrupts() func() {
	prev := ic.global
	ic.global = false
	return func() {
		ic.global = prev
		if prev {
			ic.Dispatch()
		}
	}
}

// Dispatch runs handlers for pending vectors, lowest vector number
// first. Handlers never nest: levels raised while one runs wait for the
// next boundary. Each pending vector runs at most once per call so a
// handler that leaves its flag set cannot wedge the caller.
func (ic *CPUInt) Dispatch() {
	if !ic.global || ic.inISR {
		return
	}
	snap := ic.levels
	for snap != 0 {
		v := Vector(bits.TrailingZeros32(snap))
		snap &^= 1 << v
		if ic.levels&(1<<v) == 0 {
			continue
		}
		h := ic.handlers[v]
		if h == nil {
			if ic.orphaned&(1<<v) == 0 {
				ic.orphaned |= 1 << v
				log.ModIrq.ErrorZ("interrupt pending with no handler").Stringer("vec", v).End()
			}
			continue
		}
		log.ModIrq.DebugZ("enter isr").Stringer("vec", v).End()
		ic.inISR = true
		ic.STATUS.Value |= statusLvl0Ex
		h()
		ic.STATUS.Value &^= statusLvl0Ex
		ic.inISR = false
	}
}
