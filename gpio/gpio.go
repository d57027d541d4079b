// Package gpio splits the port peripherals into individually owned
// pins. A Pin is a movable capability: converting it into an Output
// consumes it, so two drivers can never fight over the same pad.
package gpio

import (
	"xtiny/hw"
)

// ID names a pad. The numeric value is port index * 8 + bit, so it
// survives round-trips through tables and log lines.
type ID uint8

const (
	PA0 ID = iota
	PA1
	PA2
	PA3
	PA4
	PA5
	PA6
	PA7
	PB0
	PB1
	PB2
	PB3
	PB4
	PB5
	PB6
	PB7
	PC0
	PC1
	PC2
	PC3
	PC4
	PC5
	PC6
	PC7
)

func (id ID) String() string {
	return string([]byte{'P', 'A' + uint8(id)/8, '0' + uint8(id)%8})
}

// PortIndex is 0 for PORTA, 1 for PORTB, 2 for PORTC.
func (id ID) PortIndex() uint8 { return uint8(id) / 8 }

// Bit is the pin position within its port.
func (id ID) Bit() uint8 { return uint8(id) % 8 }

// Pins is a port broken into its pads.
type Pins struct {
	P0, P1, P2, P3, P4, P5, P6, P7 Pin
}

// Split breaks a port into its pins. Call it on the port returned by
// the Take accessor so the ownership chain stays intact.
func Split(port *hw.Port) Pins {
	pin := func(bit uint8) Pin { return Pin{port: port, bit: bit} }
	return Pins{
		P0: pin(0), P1: pin(1), P2: pin(2), P3: pin(3),
		P4: pin(4), P5: pin(5), P6: pin(6), P7: pin(7),
	}
}

// Pin is an unconfigured pad.
type Pin struct {
	port *hw.Port
	bit  uint8
}

func (p Pin) ID() ID {
	return ID(p.port.Index()*8 + p.bit)
}

// IntoOutput drives the pad and returns a stateful output whose level
// can be set, cleared, toggled and read back.
func (p Pin) IntoOutput() Output {
	p.port.DIRSET.Write8(0, 1<<p.bit)
	return Output{port: p.port, bit: p.bit}
}

// IntoStatelessOutput drives the pad but keeps no level API. It is the
// form waveform routing wants: the timer owns the level, the firmware
// only owns the direction.
func (p Pin) IntoStatelessOutput() StatelessOutput {
	p.port.DIRSET.Write8(0, 1<<p.bit)
	return StatelessOutput{port: p.port, bit: p.bit}
}

// IntoInput releases the driver and returns a readable input.
func (p Pin) IntoInput() Input {
	p.port.DIRCLR.Write8(0, 1<<p.bit)
	return Input{port: p.port, bit: p.bit}
}

// Output is a pad in push-pull output mode.
type Output struct {
	port *hw.Port
	bit  uint8
}

func (o Output) ID() ID { return ID(o.port.Index()*8 + o.bit) }

// Set drives the pad high.
func (o Output) Set() { o.port.OUTSET.Write8(0, 1<<o.bit) }

// Clear drives the pad low.
func (o Output) Clear() { o.port.OUTCLR.Write8(0, 1<<o.bit) }

// Toggle inverts the driven level.
func (o Output) Toggle() { o.port.OUTTGL.Write8(0, 1<<o.bit) }

// Read samples the pad itself, not the output latch.
func (o Output) Read() bool {
	return o.port.IN.Read8(0)&(1<<o.bit) != 0
}

// StatelessOutput is a pad driven by a peripheral, not by firmware.
type StatelessOutput struct {
	port *hw.Port
	bit  uint8
}

func (o StatelessOutput) ID() ID { return ID(o.port.Index()*8 + o.bit) }

// Input is a pad in input mode.
type Input struct {
	port *hw.Port
	bit  uint8
}

func (i Input) ID() ID { return ID(i.port.Index()*8 + i.bit) }

// Read samples the pad.
func (i Input) Read() bool {
	return i.port.IN.Read8(0)&(1<<i.bit) != 0
}
