package hal

import (
	"github.com/usbarmory/tamago/bits"
)

// 16550-compatible UART register offsets and LSR bits.
const (
	UART_RBR = 0x00
	UART_THR = 0x00
	UART_LSR = 0x14

	LSR_DR   = 0 // receive data ready
	LSR_THRE = 5 // transmit holding register empty
)

// HardwareHandle holds the UART register addresses resolved from a base
// address. It is built once and never reassigned.
type HardwareHandle struct {
	THR uint32
	RBR uint32
	LSR uint32
}

// NewHardwareHandle resolves the register addresses of the UART at base.
func NewHardwareHandle(base uint32) HardwareHandle {
	return HardwareHandle{
		THR: base + UART_THR,
		RBR: base + UART_RBR,
		LSR: base + UART_LSR,
	}
}

// Standalone drives a UART through its registers. Every primitive
// busy-polls the line status register; there is no timeout.
type Standalone struct {
	bus Bus
	hw  HardwareHandle
}

// NewStandalone binds the UART at uartBase.
func NewStandalone(bus Bus, uartBase uint32) *Standalone {
	return &Standalone{
		bus: bus,
		hw:  NewHardwareHandle(uartBase),
	}
}

// Hardware returns the resolved register addresses.
func (s *Standalone) Hardware() HardwareHandle {
	return s.hw
}

func (s *Standalone) lineStatus(pos int) bool {
	lsr := s.bus.Read32(s.hw.LSR)
	return bits.Get(&lsr, pos, 1) != 0
}

func (s *Standalone) transmit(b byte) {
	for !s.lineStatus(LSR_THRE) {
	}
	s.bus.Write32(s.hw.THR, uint32(b))
}

func (s *Standalone) receive() byte {
	for !s.lineStatus(LSR_DR) {
	}
	return byte(s.bus.Read32(s.hw.RBR))
}

// PutByte implements ByteSink.
func (s *Standalone) PutByte(b byte) {
	if b == '\n' {
		s.transmit('\r')
	}
	s.transmit(b)
}

// ReadWord receives four raw bytes, most significant first.
func (s *Standalone) ReadWord() uint32 {
	var w uint32
	for i := 0; i < 4; i++ {
		w = w<<8 | uint32(s.receive())
	}
	return w
}

// WriteWord sends four raw bytes, most significant first.
func (s *Standalone) WriteWord(w uint32) {
	s.transmit(byte(w >> 24))
	s.transmit(byte(w >> 16))
	s.transmit(byte(w >> 8))
	s.transmit(byte(w))
}

// WriteBytes sends length raw bytes read from memory starting at addr.
func (s *Standalone) WriteBytes(addr, length uint32) {
	for i := uint32(0); i < length; i++ {
		s.transmit(s.bus.Read8(addr + i))
	}
}

// Memory implements Transport.
func (s *Standalone) Memory() Bus {
	return s.bus
}

// Mode implements Transport.
func (s *Standalone) Mode() Mode {
	return ModeStandalone
}
