// Package dump streams memory regions off the device and decodes the
// captured streams on the host.
//
// The binary framing is positional:
//
//	HELLO  LEN0 DATA0[LEN0]  LEN1 DATA1[LEN1] ...  GOODBYE
//
// Every word is sent most significant byte first. There is no checksum or
// acknowledgment; the receiver tells length words from data by position.
//
// The text variant prints each region as one "dump:" line of 8-digit hex
// words, byte-reversed so the text reads in memory order.
package dump

import (
	"math/bits"

	"github.com/muurk/bromdump/internal/chip"
	"github.com/muurk/bromdump/internal/console"
	"github.com/muurk/bromdump/internal/hal"
)

// Stream markers.
const (
	Hello   uint32 = 0x3E4D746B
	Goodbye uint32 = 0x4D746B3C
)

// TextLabel starts every region line of a text dump.
const TextLabel = "dump:"

// Banners bracket a text dump.
type Banners struct {
	Open  string
	Close string
}

// DefaultBanners are the banners printed by the uart-dump payload.
var DefaultBanners = Banners{
	Open:  "\n\n",
	Close: "done :)",
}

// WriteBinary streams regions in table order. Region lengths need not be
// word multiples.
func WriteBinary(t hal.WordTransport, regions []chip.MemoryRegion) {
	t.WriteWord(Hello)
	for _, r := range regions {
		t.WriteWord(r.Length)
		t.WriteBytes(r.Base, r.Length)
	}
	t.WriteWord(Goodbye)
}

// WriteText prints regions as hex text. The loop steps strictly by four
// bytes: a trailing partial word is not printed.
func WriteText(p *console.Printer, mem hal.Bus, regions []chip.MemoryRegion, b Banners) {
	p.PrintString(b.Open)
	for _, r := range regions {
		p.PrintString(TextLabel)
		for off, end := uint32(0), TextLength(r); off < end; off += 4 {
			p.PrintHex(bits.ReverseBytes32(mem.Read32(r.Base+off)), 8)
		}
		p.PrintString("\n")
	}
	p.PrintString(b.Close)
}

// TextLength returns the number of bytes a text dump of r recovers.
func TextLength(r chip.MemoryRegion) uint32 {
	return r.Length &^ 3
}
