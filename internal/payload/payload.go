// Package payload holds the device-side demonstration programs. Each one
// drives the console or dump layer over a bound transport and then parks
// in the idle loop.
package payload

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/muurk/bromdump/internal/chip"
	"github.com/muurk/bromdump/internal/console"
	"github.com/muurk/bromdump/internal/dump"
	"github.com/muurk/bromdump/internal/hal"
	"github.com/muurk/bromdump/internal/logging"
)

// Env is what a program runs against.
type Env struct {
	Transport hal.Transport
	Profile   *chip.Profile

	// Regions overrides the program's default region table
	Regions []chip.MemoryRegion
}

// Program is the body of a payload. It returns when its work is done.
type Program struct {
	Name        string
	Description string
	Body        func(env Env)

	// Output is how the host collects what the program sends
	Output Output

	// Regions selects the default region table from a profile
	Regions func(p *chip.Profile) []chip.MemoryRegion
}

// Output names the stream a program produces.
type Output int

const (
	// OutputConsole is free text on the UART
	OutputConsole Output = iota
	// OutputText is a text dump of "dump:" lines on the UART
	OutputText
	// OutputBinary is a framed binary dump over the word transport
	OutputBinary
)

func (o Output) String() string {
	switch o {
	case OutputText:
		return "text"
	case OutputBinary:
		return "binary"
	default:
		return "console"
	}
}

var programs = map[string]*Program{
	"hello": {
		Name:        "hello",
		Description: "print the chip id and formatter examples on the UART",
		Body:        Hello,
	},
	"uart-dump": {
		Name:        "uart-dump",
		Description: "text dump of brom and sram on the UART",
		Body:        UARTDump,
		Output:      OutputText,
		Regions:     withoutAgent,
	},
	"usb-dump": {
		Name:        "usb-dump",
		Description: "binary dump of every region over the word transport",
		Body:        USBDump,
		Output:      OutputBinary,
		Regions:     allRegions,
	},
}

// Lookup returns the named program.
func Lookup(name string) (*Program, error) {
	p, ok := programs[name]
	if !ok {
		return nil, fmt.Errorf("unknown payload %q (available: %v)", name, Names())
	}
	return p, nil
}

// Names returns the program names, sorted.
func Names() []string {
	names := make([]string, 0, len(programs))
	for n := range programs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultRegions returns the regions prog dumps on profile when env does
// not override them.
func (prog *Program) DefaultRegions(p *chip.Profile) []chip.MemoryRegion {
	if prog.Regions == nil || p == nil {
		return nil
	}
	return prog.Regions(p)
}

// Run executes the program body and then idles until ctx is done. On a
// device ctx is never cancelled and Run never returns.
func Run(ctx context.Context, prog *Program, env Env) {
	if env.Regions == nil {
		env.Regions = prog.DefaultRegions(env.Profile)
	}

	logging.Debug("Running payload",
		zap.String("payload", prog.Name),
		zap.Stringer("mode", env.Transport.Mode()),
		zap.Int("regions", len(env.Regions)),
	)
	if prog.Output != OutputConsole {
		for _, r := range env.Regions {
			logging.LogRegion(prog.Output.String(), r.Name, r.Base, r.Length)
		}
	}
	prog.Body(env)
	logging.Debug("Payload finished, idling", zap.String("payload", prog.Name))

	hal.Idle(ctx)
}

func allRegions(p *chip.Profile) []chip.MemoryRegion {
	out := make([]chip.MemoryRegion, len(p.Regions))
	copy(out, p.Regions)
	return out
}

// the agent image is the payload itself when running standalone
func withoutAgent(p *chip.Profile) []chip.MemoryRegion {
	var out []chip.MemoryRegion
	for _, r := range p.Regions {
		if r.Name != "da" {
			out = append(out, r)
		}
	}
	return out
}

// Hello prints the chip id read from the chip-id register, a few
// formatter examples and a smiley.
func Hello(env Env) {
	p := console.ForTransport(env.Transport)

	var chipID uint32
	if env.Profile != nil && env.Profile.ChipIDRegister != 0 {
		chipID = env.Transport.Memory().Read32(env.Profile.ChipIDRegister)
	}
	p.PrintfString("\n\n\nHello from mt%x!\n", chipID, 0, 0)

	p.PrintHex(0x12, 2)
	p.PutByte('\n')

	p.PrintHex(0x3456, 4)
	p.PutByte('\n')

	p.PrintHex(0x789ABCDE, 8)
	p.PutByte('\n')

	for i := uint32(0); i < 0x10; i++ {
		p.PrintHex(i, 2)
		p.PutByte(' ')
	}
	p.PutByte('\n')

	p.PutByte(':')
	p.PutByte(')')
	p.PutByte('\n')
}

// UARTDump prints env.Regions as a text dump.
func UARTDump(env Env) {
	dump.WriteText(console.ForTransport(env.Transport), env.Transport.Memory(), env.Regions, dump.DefaultBanners)
}

// USBDump streams env.Regions with binary framing.
func USBDump(env Env) {
	dump.WriteBinary(env.Transport, env.Regions)
}
