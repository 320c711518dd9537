package ui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Header is the banner printed before a device operation.
type Header struct {
	Title   string            // e.g., "BROM REPLAY"
	Command string            // e.g., "bromdump run usb-dump"
	Params  map[string]string // e.g., {"Port": "/dev/ttyACM0", "Chip": "mt6577"}
	Width   int
}

// NewHeader creates a new header with the given values
func NewHeader(title, command string, params map[string]string) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header as a string
func (h *Header) Render() string {
	width := h.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	top := lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render(strings.ToUpper(h.Title)),
		SubtitleStyle.Render(h.Command),
	)
	if len(h.Params) == 0 {
		return frame(width-2, AccentColor).Render(top)
	}

	dividerWidth := width - 6
	if dividerWidth < 10 {
		dividerWidth = 10
	}

	var params []string
	for _, key := range sortedKeys(h.Params) {
		params = append(params, paramKeyStyle.Render(key+":")+" "+plainStyle.Render(h.Params[key]))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		top,
		divider(dividerWidth),
		strings.Join(params, "\n"),
	)
	return frame(width-2, AccentColor).Render(content)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
