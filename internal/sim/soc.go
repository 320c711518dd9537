package sim

import (
	"fmt"
	"io"

	"github.com/muurk/bromdump/internal/chip"
)

// Options configures a simulated SoC.
type Options struct {
	// Console receives bytes transmitted on the UART, by the registers or
	// by the agent's putc
	Console io.Writer

	// USBIn and USBOut are the device side of the USB pipe
	USBIn  io.Reader
	USBOut io.Writer

	// BusyPolls is passed to every simulated UART
	BusyPolls int

	// Images replaces the default fill of named regions. Shorter images
	// are zero padded; longer ones are truncated.
	Images map[string][]byte

	// Fill generates the default content of a region. Nil uses Pattern.
	Fill func(r chip.MemoryRegion, data []byte)
}

// SoC is a simulated chip built from a profile: RAM for every region,
// UARTs at the profile's bases, the chip-id register and a resident agent.
type SoC struct {
	Profile *chip.Profile
	Bus     *Bus
	UARTs   []*UART
	Agent   *Agent
}

// New builds a SoC for profile.
func New(profile *chip.Profile, opts Options) (*SoC, error) {
	bus := NewBus()

	fill := opts.Fill
	if fill == nil {
		fill = Pattern
	}

	for _, r := range profile.Regions {
		data := make([]byte, r.Length)
		if img, ok := opts.Images[r.Name]; ok {
			copy(data, img)
		} else {
			fill(r, data)
		}
		bus.MapRAM(r.Name, r.Base, data)
	}
	for name := range opts.Images {
		if _, ok := profile.Region(name); !ok {
			return nil, fmt.Errorf("chip %s has no region %q for image", profile.Name, name)
		}
	}

	if profile.ChipIDRegister != 0 {
		bus.MapDevice(profile.ChipIDRegister, 4, Register(uint32(profile.HWCode)))
	}

	s := &SoC{
		Profile: profile,
		Bus:     bus,
	}

	for _, base := range profile.UARTBases {
		u := NewUART(opts.Console)
		u.BusyPolls = opts.BusyPolls
		bus.MapDevice(base, UARTWindow, u)
		s.UARTs = append(s.UARTs, u)
	}

	s.Agent = NewAgent(bus, profile.Agent, opts.Console, opts.USBIn, opts.USBOut)

	return s, nil
}

// Pattern fills data with a deterministic sequence derived from the
// region's base, so every region has distinct, reproducible content.
func Pattern(r chip.MemoryRegion, data []byte) {
	seed := byte(r.Base>>24) ^ byte(r.Base>>16) ^ byte(len(r.Name))
	for i := range data {
		data[i] = byte(i) ^ byte(i>>8)*31 ^ seed
	}
}
