package hwio

import (
	"xtiny/log"
)

type MemFlags int

const (
	MemFlagReadWrite MemFlags = 0
	MemFlag8ReadOnly MemFlags = (1 << iota) // read-only accesses
	MemFlagNoROLog                          // skip logging attempts to write when configured to readonly
)

// Mem is a linear memory area that can be mapped into a Table. The physical
// buffer must be a power of two; VSize may be larger, in which case the
// buffer is mirrored across the virtual range.
type Mem struct {
	Name    string              // name of the memory area (for debugging)
	Data    []byte              // actual memory buffer
	VSize   int                 // virtual size of the memory (can be bigger than physical size)
	Flags   MemFlags            // flags determining how the memory can be accessed
	WriteCb func(uint16, uint8) // optional write callback (if set, the callback is called instead of writing)
}

// BankIO8 adapts the memory area for bus mapping. The flags are folded into
// the adaptor once, instead of being re-parsed on every access.
func (m *Mem) BankIO8() BankIO8 {
	if len(m.Data)&(len(m.Data)-1) != 0 {
		panic("memory buffer size is not pow2")
	}
	return &mem{
		data: m.Data,
		mask: uint16(len(m.Data) - 1),
		wcb:  m.WriteCb,
		ro:   m.Flags,
	}
}

type mem struct {
	data []byte
	mask uint16
	wcb  func(uint16, uint8)
	ro   MemFlags
}

func (m *mem) Read8(addr uint16) uint8 {
	return m.data[addr&m.mask]
}

func (m *mem) Peek8(addr uint16) uint8 {
	return m.data[addr&m.mask]
}

func (m *mem) Write8(addr uint16, val uint8) {
	if m.wcb != nil {
		m.wcb(addr, val)
		return
	}

	switch m.ro {
	case MemFlagReadWrite:
		m.data[addr&m.mask] = val
	case MemFlag8ReadOnly:
		log.ModHwIo.ErrorZ("Write8 to readonly memory").
			Hex8("val", val).
			Hex16("addr", addr).
			End()
	case MemFlagNoROLog:
		return
	}
}
