package console

import (
	"github.com/muurk/bromdump/internal/hal"
)

// maxArgs is the number of printf arguments and honoured conversions.
const maxArgs = 3

// hexDigit returns the ASCII digit for a nibble: '0'-'9', then '7'+v.
func hexDigit(v uint32) byte {
	if v < 10 {
		return byte(v) + '0'
	}
	return byte(v) + '7'
}

// PrintHex emits value as hexadecimal, most significant digit first.
// width is a minimum digit count: a value that needs more digits is
// printed in full, and width 0 behaves like width 1.
func PrintHex(sink hal.ByteSink, value uint32, width uint8) {
	if width != 0 {
		width--
	}

	if value&0xFFFFFFF0 != 0 || width != 0 {
		PrintHex(sink, value>>4, width)
		value &= 0xF
	}

	sink.PutByte(hexDigit(value))
}

// Printer is the line printer: plain strings, strings in device memory
// and a three-argument printf.
type Printer struct {
	sink hal.ByteSink
	mem  hal.Bus
}

// NewPrinter returns a Printer writing to sink. mem resolves %s pointers
// and PrintAt addresses; it may be nil if neither is used.
func NewPrinter(sink hal.ByteSink, mem hal.Bus) *Printer {
	return &Printer{sink: sink, mem: mem}
}

// ForTransport returns a Printer over a bound transport and its memory.
func ForTransport(t hal.Transport) *Printer {
	return NewPrinter(t, t.Memory())
}

// Sink returns the underlying byte sink.
func (p *Printer) Sink() hal.ByteSink {
	return p.sink
}

// PutByte emits one byte.
func (p *Printer) PutByte(b byte) {
	p.sink.PutByte(b)
}

// PrintHex emits value with at least width digits.
func (p *Printer) PrintHex(value uint32, width uint8) {
	PrintHex(p.sink, value, width)
}

// Print emits s up to, not including, its first NUL byte.
func (p *Printer) Print(s []byte) {
	for _, b := range s {
		if b == 0 {
			return
		}
		p.sink.PutByte(b)
	}
}

// PrintString is Print for Go strings.
func (p *Printer) PrintString(s string) {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return
		}
		p.sink.PutByte(s[i])
	}
}

// PrintAt emits the NUL-terminated string stored in device memory at addr.
// The read is unbounded: the caller guarantees termination.
func (p *Printer) PrintAt(addr uint32) {
	for {
		b := p.mem.Read8(addr)
		if b == 0 {
			return
		}
		p.sink.PutByte(b)
		addr++
	}
}

// Printf is a minimal formatter. %s prints the NUL-terminated string at
// the next positional argument's address. %x prints arg0 as 8 hex digits,
// whatever its position. At most three conversions are honoured; any
// other byte, including an unmatched '%', is emitted as is.
func (p *Printer) Printf(format []byte, arg0, arg1, arg2 uint32) {
	args := [maxArgs]uint32{arg0, arg1, arg2}
	idx := 0

	for i := 0; i < len(format) && format[i] != 0; i++ {
		c := format[i]
		if c != '%' || idx >= maxArgs || i+1 >= len(format) {
			p.sink.PutByte(c)
			continue
		}

		switch format[i+1] {
		case 's':
			p.PrintAt(args[idx])
			idx++
			i++
		case 'x':
			p.PrintHex(arg0, 8)
			idx++
			i++
		default:
			p.sink.PutByte(c)
		}
	}
}

// PrintfString is Printf for Go string formats.
func (p *Printer) PrintfString(format string, arg0, arg1, arg2 uint32) {
	p.Printf([]byte(format), arg0, arg1, arg2)
}
