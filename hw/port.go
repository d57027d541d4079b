package hw

import "xtiny/hw/hwio"

// Port models one digital I/O port. DIR selects the driver, OUT the
// driven level; IN reads back the pin. Timer waveform outputs override
// the port driver per pin: the MCU wires those in as closures so the
// port stays ignorant of who owns which pin.
//
// The SET/CLR/TGL registers are strobes into DIR and OUT. Reading a
// strobe returns the backing register, as on silicon.
type Port struct {
	DIR      hwio.Reg8 `hwio:"offset=0x00"`
	DIRSET   hwio.Reg8 `hwio:"offset=0x01,rcb,wcb"`
	DIRCLR   hwio.Reg8 `hwio:"offset=0x02,rcb,wcb"`
	DIRTGL   hwio.Reg8 `hwio:"offset=0x03,rcb,wcb"`
	OUT      hwio.Reg8 `hwio:"offset=0x04"`
	OUTSET   hwio.Reg8 `hwio:"offset=0x05,rcb,wcb"`
	OUTCLR   hwio.Reg8 `hwio:"offset=0x06,rcb,wcb"`
	OUTTGL   hwio.Reg8 `hwio:"offset=0x07,rcb,wcb"`
	IN       hwio.Reg8 `hwio:"offset=0x08,rcb,pcb"`
	INTFLAGS hwio.Reg8 `hwio:"offset=0x09,wcb"`

	name  string
	index uint8
	pins  uint8 // population mask, PORTC has only PC0..PC5
	extIn uint8

	read [8]func() (level, active bool)
	peek [8]func() (level, active bool)
}

func newPort(name string, index uint8, npins int) *Port {
	p := &Port{name: name, index: index, pins: uint8(1<<npins - 1)}
	hwio.MustInitRegs(p)
	p.DIR.RoMask = ^p.pins
	p.OUT.RoMask = ^p.pins
	return p
}

func (p *Port) Name() string { return p.name }

// Index is 0 for PORTA, 1 for PORTB, 2 for PORTC.
func (p *Port) Index() uint8 { return p.index }

// SetOverride attaches a waveform source to a pin. read may advance the
// source to now; peek must be side-effect free. While active is true the
// source level wins over DIR/OUT.
func (p *Port) SetOverride(bit uint8, read, peek func() (level, active bool)) {
	p.read[bit] = read
	p.peek[bit] = peek
}

// SetInput drives an input pin from outside the chip.
func (p *Port) SetInput(bit uint8, level bool) {
	if level {
		p.extIn |= 1 << bit
	} else {
		p.extIn &^= 1 << bit
	}
}

// PinLevel reads one pin through the full IN path.
func (p *Port) PinLevel(bit uint8) bool {
	return p.IN.Get()&(1<<bit) != 0
}

func (p *Port) levels(peek bool) uint8 {
	ov := &p.read
	if peek {
		ov = &p.peek
	}
	var v uint8
	for bit := uint8(0); bit < 8; bit++ {
		m := uint8(1) << bit
		if p.pins&m == 0 {
			continue
		}
		if fn := ov[bit]; fn != nil {
			if lvl, act := fn(); act {
				if lvl {
					v |= m
				}
				continue
			}
		}
		if p.DIR.Value&m != 0 {
			v |= p.OUT.Value & m
		} else {
			v |= p.extIn & m
		}
	}
	return v
}

func (p *Port) ReadIN(val uint8) uint8 {
	v := p.levels(false)
	p.IN.Value = v
	return v
}

func (p *Port) PeekIN(val uint8) uint8 {
	return p.levels(true)
}

func (p *Port) WriteDIRSET(old, val uint8) {
	p.DIRSET.Value = 0
	p.DIR.Value |= val & p.pins
}

func (p *Port) WriteDIRCLR(old, val uint8) {
	p.DIRCLR.Value = 0
	p.DIR.Value &^= val
}

func (p *Port) WriteDIRTGL(old, val uint8) {
	p.DIRTGL.Value = 0
	p.DIR.Value ^= val & p.pins
}

func (p *Port) WriteOUTSET(old, val uint8) {
	p.OUTSET.Value = 0
	p.OUT.Value |= val & p.pins
}

func (p *Port) WriteOUTCLR(old, val uint8) {
	p.OUTCLR.Value = 0
	p.OUT.Value &^= val
}

func (p *Port) WriteOUTTGL(old, val uint8) {
	p.OUTTGL.Value = 0
	p.OUT.Value ^= val & p.pins
}

func (p *Port) ReadDIRSET(val uint8) uint8 { return p.DIR.Value }
func (p *Port) ReadDIRCLR(val uint8) uint8 { return p.DIR.Value }
func (p *Port) ReadDIRTGL(val uint8) uint8 { return p.DIR.Value }
func (p *Port) ReadOUTSET(val uint8) uint8 { return p.OUT.Value }
func (p *Port) ReadOUTCLR(val uint8) uint8 { return p.OUT.Value }
func (p *Port) ReadOUTTGL(val uint8) uint8 { return p.OUT.Value }

// INTFLAGS is write-1-to-clear.
func (p *Port) WriteINTFLAGS(old, val uint8) {
	p.INTFLAGS.Value = old &^ val
}
