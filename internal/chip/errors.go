package chip

import (
	"fmt"
	"strings"
)

// ProfileUnsupportedError is returned when a chip name is not in the catalog.
type ProfileUnsupportedError struct {
	// Name is the requested chip name
	Name string
	// Available lists known chip names
	Available []string
}

func (e *ProfileUnsupportedError) Error() string {
	return fmt.Sprintf("unsupported chip: %s\n"+
		"\n"+
		"Known chips:\n%s\n"+
		"List them with: bromdump chips",
		e.Name, formatNameList(e.Available))
}

// UARTUnavailableError is returned when a profile has no UART with the
// requested index.
type UARTUnavailableError struct {
	Chip  string
	Index int
	Count int
}

func (e *UARTUnavailableError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("chip %s has no documented UART; standalone mode is unavailable", e.Chip)
	}
	return fmt.Sprintf("chip %s has no uart%d (only %d UARTs)", e.Chip, e.Index, e.Count)
}

func formatNameList(names []string) string {
	if len(names) == 0 {
		return "  (none)"
	}
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "  - %s\n", n)
	}
	return b.String()
}
