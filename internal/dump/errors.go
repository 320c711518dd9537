package dump

import (
	"fmt"
)

// MagicError is returned when a marker word does not match.
type MagicError struct {
	// Want is the expected marker (Hello or Goodbye)
	Want uint32
	// Got is the word actually read
	Got uint32
	// Offset is the stream offset of the word
	Offset int64
}

func (e *MagicError) Error() string {
	name := "HELLO"
	if e.Want == Goodbye {
		name = "GOODBYE"
	}
	return fmt.Sprintf("bad %s marker at offset %d: got 0x%08x, want 0x%08x\n"+
		"\n"+
		"The stream is out of sync. Check that the payload and the region\n"+
		"count match, and that nothing else is writing to the port.",
		name, e.Offset, e.Got, e.Want)
}

// TruncatedError is returned when the stream ends inside a word or block.
type TruncatedError struct {
	// Block is the index of the region being read, or -1 for a marker
	Block int
	// Want and Got are byte counts for the item being read
	Want uint64
	Got  uint64
	Err  error
}

func (e *TruncatedError) Error() string {
	what := "marker"
	if e.Block >= 0 {
		what = fmt.Sprintf("block %d", e.Block)
	}
	return fmt.Sprintf("stream ended in %s: got %d of %d bytes: %v", what, e.Got, e.Want, e.Err)
}

func (e *TruncatedError) Unwrap() error {
	return e.Err
}

// CountError is returned when GOODBYE arrives before the expected number
// of regions.
type CountError struct {
	Want int
	Got  int
}

func (e *CountError) Error() string {
	return fmt.Sprintf("stream carried %d regions, expected %d", e.Got, e.Want)
}

// TextError reports an unparsable line of a text dump.
type TextError struct {
	Line int
	Err  error
}

func (e *TextError) Error() string {
	return fmt.Sprintf("text dump line %d: %v", e.Line, e.Err)
}

func (e *TextError) Unwrap() error {
	return e.Err
}
