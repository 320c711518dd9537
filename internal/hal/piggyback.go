package hal

import (
	"github.com/muurk/bromdump/internal/chip"
)

// Piggyback reuses the routines of an already resident Download Agent.
// The agent's putc is a raw transmit; CRLF injection still happens here.
type Piggyback struct {
	bus    Bus
	caller Caller
	ep     chip.EntryPoints
}

// NewPiggyback validates the entry points and runs the agent's init
// routine, if it has one.
func NewPiggyback(bus Bus, caller Caller, ep chip.EntryPoints) (*Piggyback, error) {
	required := []struct {
		name string
		addr uint32
	}{
		{"uart_putc", ep.UARTPutc},
		{"usb_write", ep.USBWrite},
		{"usb_readl", ep.USBReadl},
		{"usb_writel", ep.USBWritel},
	}
	for _, r := range required {
		if r.addr == 0 || r.addr&1 == 0 {
			return nil, &EntryPointError{Name: r.name, Address: r.addr}
		}
	}
	if ep.Init != 0 && ep.Init&1 == 0 {
		return nil, &EntryPointError{Name: "init", Address: ep.Init}
	}

	p := &Piggyback{
		bus:    bus,
		caller: caller,
		ep:     ep,
	}
	if ep.Init != 0 {
		p.caller.Call(ep.Init)
	}
	return p, nil
}

// PutByte implements ByteSink.
func (p *Piggyback) PutByte(b byte) {
	if b == '\n' {
		p.caller.Call(p.ep.UARTPutc, '\r')
	}
	p.caller.Call(p.ep.UARTPutc, uint32(b))
}

// ReadWord receives one word through the agent.
func (p *Piggyback) ReadWord() uint32 {
	return p.caller.Call(p.ep.USBReadl)
}

// WriteWord sends one word through the agent.
func (p *Piggyback) WriteWord(w uint32) {
	p.caller.Call(p.ep.USBWritel, w)
}

// WriteBytes hands the memory block to the agent's USB write routine.
func (p *Piggyback) WriteBytes(addr, length uint32) {
	if !p.ep.USBWriteSingleByte {
		p.caller.Call(p.ep.USBWrite, addr, length)
		return
	}
	for i := uint32(0); i < length; i++ {
		p.caller.Call(p.ep.USBWrite, addr+i, 1, 0, 0)
	}
}

// Memory implements Transport.
func (p *Piggyback) Memory() Bus {
	return p.bus
}

// Mode implements Transport.
func (p *Piggyback) Mode() Mode {
	return ModePiggyback
}
