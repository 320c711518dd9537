package hal

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/bromdump/internal/chip"
	"github.com/muurk/bromdump/internal/logging"
)

// Bus is the processor's view of the physical address space. Register and
// memory accesses go through it so the same code drives real hardware and
// the simulator.
type Bus interface {
	Read32(addr uint32) uint32
	Write32(addr uint32, val uint32)
	Read8(addr uint32) uint8
}

// Caller invokes a routine at a fixed code address with up to four word
// arguments and returns the routine's r0.
type Caller interface {
	Call(entry uint32, args ...uint32) uint32
}

// ByteSink transmits one byte at a time. PutByte blocks until the
// transport accepted the byte and precedes every '\n' with a '\r'.
type ByteSink interface {
	PutByte(b byte)
}

// WordTransport moves raw words and memory blocks without any text
// translation.
type WordTransport interface {
	ReadWord() uint32
	WriteWord(w uint32)
	WriteBytes(addr, length uint32)
}

// Transport is the capability set of one bound I/O variant.
type Transport interface {
	ByteSink
	WordTransport

	// Memory returns the bus used for direct memory loads
	Memory() Bus

	// Mode reports which variant is bound
	Mode() Mode
}

// Mode selects a Transport variant.
type Mode int

const (
	// ModeStandalone drives UART registers directly
	ModeStandalone Mode = iota + 1
	// ModePiggyback calls into a resident Download Agent
	ModePiggyback
)

func (m Mode) String() string {
	switch m {
	case ModeStandalone:
		return "standalone"
	case ModePiggyback:
		return "piggyback"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "standalone" or "piggyback".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "standalone":
		return ModeStandalone, nil
	case "piggyback":
		return ModePiggyback, nil
	default:
		return 0, fmt.Errorf("%w: %q (want standalone or piggyback)", ErrUnknownMode, s)
	}
}

var (
	// ErrUnknownMode is returned for a mode other than standalone or piggyback
	ErrUnknownMode = errors.New("unknown transport mode")
	// ErrNoBus is returned when no bus was supplied
	ErrNoBus = errors.New("no bus")
	// ErrNoCaller is returned for piggyback mode without a Caller
	ErrNoCaller = errors.New("piggyback mode needs a caller for agent entry points")
	// ErrNoUART is returned for standalone mode on a chip without the requested UART
	ErrNoUART = errors.New("standalone mode needs a UART")
)

// EntryPointError reports an agent entry point that cannot be called.
type EntryPointError struct {
	Name    string
	Address uint32
}

func (e *EntryPointError) Error() string {
	if e.Address == 0 {
		return fmt.Sprintf("agent entry point %s is not known for this chip", e.Name)
	}
	return fmt.Sprintf("agent entry point %s at 0x%08x is not a Thumb address (bit 0 clear)", e.Name, e.Address)
}

// Config selects and parameterises a Transport. It is consumed once at
// startup; the resulting Transport is never switched.
type Config struct {
	Mode    Mode
	Profile *chip.Profile
	// UART is the index into Profile.UARTBases (standalone only)
	UART   int
	Bus    Bus
	Caller Caller
}

// New binds the configured Transport variant.
func New(cfg Config) (Transport, error) {
	if cfg.Bus == nil {
		return nil, ErrNoBus
	}
	if cfg.Profile == nil {
		return nil, errors.New("no chip profile")
	}

	switch cfg.Mode {
	case ModeStandalone:
		base, err := cfg.Profile.UARTBase(cfg.UART)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoUART, err)
		}
		logging.Debug("Binding standalone transport",
			zap.String("chip", cfg.Profile.Name),
			zap.Int("uart", cfg.UART),
			zap.String("uart_base", fmt.Sprintf("0x%08x", base)),
		)
		return NewStandalone(cfg.Bus, base), nil

	case ModePiggyback:
		if cfg.Caller == nil {
			return nil, ErrNoCaller
		}
		logging.Debug("Binding piggyback transport",
			zap.String("chip", cfg.Profile.Name),
			zap.String("uart_putc", fmt.Sprintf("0x%08x", cfg.Profile.Agent.UARTPutc)),
			zap.String("usb_writel", fmt.Sprintf("0x%08x", cfg.Profile.Agent.USBWritel)),
		)
		return NewPiggyback(cfg.Bus, cfg.Caller, cfg.Profile.Agent)

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownMode, cfg.Mode)
	}
}

// Idle is the terminal state of a payload: a no-op spin that only ends
// when ctx is cancelled. On a device ctx is context.Background().
func Idle(ctx context.Context) {
	done := ctx.Done()
	for {
		select {
		case <-done:
			return
		default:
			runtime.Gosched()
		}
	}
}
