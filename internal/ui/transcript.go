package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Transcript is a box showing raw text a payload printed on the serial port.
type Transcript struct {
	Title    string
	Lines    []string
	Width    int
	MaxLines int // Keep only the last MaxLines lines (0 = unlimited)
}

// NewTranscript creates a transcript box. CRLF line endings are accepted.
func NewTranscript(content string) *Transcript {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return &Transcript{
		Title: "Device Output",
		Lines: strings.Split(strings.TrimRight(content, "\n"), "\n"),
		Width: GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (t *Transcript) SetWidth(width int) *Transcript {
	t.Width = width
	return t
}

// SetMaxLines limits the box to the last max lines
func (t *Transcript) SetMaxLines(max int) *Transcript {
	t.MaxLines = max
	return t
}

// Without drops lines starting with any of prefixes, e.g. "dump:" data
// lines that would otherwise flood the box.
func (t *Transcript) Without(prefixes ...string) *Transcript {
	var kept []string
	for _, line := range t.Lines {
		drop := false
		for _, p := range prefixes {
			if strings.HasPrefix(strings.TrimSpace(line), p) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, line)
		}
	}
	t.Lines = kept
	return t
}

// Render returns the styled box as a string
func (t *Transcript) Render() string {
	width := t.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	lines := t.Lines
	if t.MaxLines > 0 && len(lines) > t.MaxLines {
		skipped := len(lines) - t.MaxLines
		lines = append([]string{fmt.Sprintf("... (%d earlier lines)", skipped)}, lines[skipped:]...)
	}

	inner := lipgloss.JoinVertical(lipgloss.Left,
		sectionStyle.Render(t.Title),
		"",
		plainStyle.Render(strings.Join(lines, "\n")),
	)

	return frame(width-4, MutedColor).Padding(0, 1).MarginLeft(2).Render(inner)
}

// String implements fmt.Stringer
func (t *Transcript) String() string {
	return t.Render()
}
