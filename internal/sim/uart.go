package sim

import (
	"io"

	"github.com/usbarmory/tamago/bits"
)

// UART register layout, mirroring the 16550-style block on the SoCs.
const (
	uartRBR = 0x00
	uartTHR = 0x00
	uartLSR = 0x14

	lsrDR   = 0
	lsrTHRE = 5

	// UARTWindow is the size of the mapped register block
	UARTWindow = 0x1000
)

// UART simulates a polled UART. Transmitted bytes go to Out; bytes queued
// with Feed are returned by RBR reads.
type UART struct {
	// Out receives every byte written to THR
	Out io.Writer

	// BusyPolls is the number of LSR reads after each transmit that report
	// the holding register as full
	BusyPolls int

	// Polls counts LSR reads
	Polls int

	// Transmitted counts bytes written to THR
	Transmitted int

	busy int
	rx   []byte
}

// NewUART returns a UART writing transmitted bytes to out.
func NewUART(out io.Writer) *UART {
	if out == nil {
		out = io.Discard
	}
	return &UART{Out: out}
}

// Feed queues bytes for the receive side.
func (u *UART) Feed(data []byte) {
	u.rx = append(u.rx, data...)
}

// Read32 implements Device.
func (u *UART) Read32(offs uint32) uint32 {
	switch offs {
	case uartRBR:
		if len(u.rx) == 0 {
			return 0
		}
		b := u.rx[0]
		u.rx = u.rx[1:]
		return uint32(b)

	case uartLSR:
		u.Polls++
		var lsr uint32
		if u.busy > 0 {
			u.busy--
		} else {
			bits.Set(&lsr, lsrTHRE)
		}
		if len(u.rx) > 0 {
			bits.Set(&lsr, lsrDR)
		}
		return lsr
	}
	return 0
}

// Write32 implements Device.
func (u *UART) Write32(offs uint32, val uint32) {
	if offs != uartTHR {
		return
	}
	_, _ = u.Out.Write([]byte{byte(val)})
	u.Transmitted++
	u.busy = u.BusyPolls
}
