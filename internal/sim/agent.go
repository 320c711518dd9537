package sim

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/muurk/bromdump/internal/chip"
)

// Agent simulates a resident Download Agent: it answers calls to the
// profile's entry points the way the real routines behave.
type Agent struct {
	bus  *Bus
	ep   chip.EntryPoints
	uart io.Writer
	in   io.Reader
	out  io.Writer

	// Calls counts invocations per entry point
	Calls map[uint32]int

	// MaxBlock is the largest block handed to usb_write
	MaxBlock uint32

	// Initialized is set once the init routine ran
	Initialized bool
}

// NewAgent returns an agent whose UART output goes to uart and whose USB
// pipe reads from usbIn and writes to usbOut.
func NewAgent(bus *Bus, ep chip.EntryPoints, uart io.Writer, usbIn io.Reader, usbOut io.Writer) *Agent {
	if uart == nil {
		uart = io.Discard
	}
	if usbOut == nil {
		usbOut = io.Discard
	}
	return &Agent{
		bus:   bus,
		ep:    ep,
		uart:  uart,
		in:    usbIn,
		out:   usbOut,
		Calls: make(map[uint32]int),
	}
}

func arg(args []uint32, i int) uint32 {
	if i < len(args) {
		return args[i]
	}
	return 0
}

// Call implements hal.Caller. Calling an address that is not one of the
// agent's entry points panics, like jumping into the weeds would crash
// the real device.
func (a *Agent) Call(entry uint32, args ...uint32) uint32 {
	a.Calls[entry]++

	switch {
	case entry == 0:
		panic("sim: call to null entry point")

	case entry == a.ep.Init:
		a.Initialized = true

	case entry == a.ep.UARTPutc:
		_, _ = a.uart.Write([]byte{byte(arg(args, 0))})

	case entry == a.ep.USBWrite:
		ptr, n := arg(args, 0), arg(args, 1)
		if n > a.MaxBlock {
			a.MaxBlock = n
		}
		_, _ = a.out.Write(a.bus.ReadBytes(ptr, n))

	case entry == a.ep.USBReadl:
		var buf [4]byte
		if a.in == nil {
			return 0
		}
		if _, err := io.ReadFull(a.in, buf[:]); err != nil {
			return 0
		}
		return binary.BigEndian.Uint32(buf[:])

	case entry == a.ep.USBWritel:
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], arg(args, 0))
		_, _ = a.out.Write(buf[:])

	default:
		panic(fmt.Sprintf("sim: call to unknown entry point 0x%08x", entry))
	}

	return 0
}
