package replay

import (
	"fmt"
	"strings"
)

// UnsupportedError is returned when no replay sequence exists for a chip.
type UnsupportedError struct {
	HWCode uint16
	Chip   string
}

func (e *UnsupportedError) Error() string {
	var names []string
	for _, p := range platforms {
		names = append(names, p.Chip)
	}
	what := e.Chip
	if what == "" {
		what = fmt.Sprintf("HW code 0x%04x", e.HWCode)
	}
	return fmt.Sprintf("no replay sequence for %s\n"+
		"\n"+
		"Replay is known for: %s",
		what, strings.Join(names, ", "))
}

// StepError reports which stage of a replay failed.
type StepError struct {
	Chip string
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s replay: %s: %v", e.Chip, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
