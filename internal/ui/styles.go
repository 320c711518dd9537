package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette
var (
	AccentColor  = lipgloss.Color("#7D56F4") // header frame and divider
	SuccessColor = lipgloss.Color("#43BF6D")
	ErrorColor   = lipgloss.Color("#FF5555")
	WarningColor = lipgloss.Color("#FFA500")
	MutedColor   = lipgloss.Color("#626262")
	TextColor    = lipgloss.Color("#FFFFFF")
)

// Rendering is clamped to MinTerminalWidth..MaxContentWidth columns.
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
)

// Markers
const (
	StepMarkerComplete = "✓"
	StepMarkerRunning  = "●"
	StepMarkerPending  = "·"
	StepMarkerSkipped  = "⊘"
	SuccessMarker      = "✓"
	WarningMarker      = "⚠"
	FailureMarker      = "✗"
)

var (
	plainStyle = lipgloss.NewStyle().Foreground(TextColor)
	mutedStyle = lipgloss.NewStyle().Foreground(MutedColor)

	// TitleStyle renders command and chip names in headers.
	TitleStyle = plainStyle.Bold(true).PaddingLeft(2)
	// SubtitleStyle renders the command line or chip description under a title.
	SubtitleStyle = mutedStyle.PaddingLeft(2)

	paramKeyStyle  = mutedStyle.PaddingLeft(2)
	detailKeyStyle = mutedStyle.Width(15)
	noteStyle      = mutedStyle.Italic(true)
	labelStyle     = plainStyle.PaddingLeft(2)
	sectionStyle   = mutedStyle.Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(ErrorColor)
	warningStyle   = lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
)

// stepLooks is the marker and colour of each step status.
var stepLooks = map[StepStatus]struct {
	marker string
	style  lipgloss.Style
}{
	StepPending:  {StepMarkerPending, mutedStyle},
	StepRunning:  {StepMarkerRunning, lipgloss.NewStyle().Foreground(WarningColor)},
	StepComplete: {StepMarkerComplete, lipgloss.NewStyle().Foreground(SuccessColor)},
	StepFailed:   {FailureMarker, errorStyle.Bold(true)},
	StepSkipped:  {StepMarkerSkipped, mutedStyle},
}

// resultLooks is the banner of each result box.
var resultLooks = map[ResultType]struct {
	marker, word string
	color        lipgloss.Color
}{
	ResultSuccess: {SuccessMarker, "SUCCESS", SuccessColor},
	ResultFailure: {FailureMarker, "FAILED", ErrorColor},
	ResultWarning: {WarningMarker, "WARNING", WarningColor},
}

// banner renders "marker  WORD  ─  title" in color.
func banner(marker, word, title string, color lipgloss.Color) string {
	return lipgloss.NewStyle().Foreground(color).Bold(true).
		Render("   " + marker + "  " + word + "  ─  " + title)
}

// GetTerminalWidth returns the stdout width clamped to the supported range.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < MinTerminalWidth {
		return MinTerminalWidth
	}
	return min(width, MaxContentWidth)
}

// frame draws a rounded border of the given color around content width
// columns wide.
func frame(width int, color lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Width(width)
}

// divider is a horizontal rule in the accent color.
func divider(width int) string {
	return lipgloss.NewStyle().Foreground(AccentColor).Render(strings.Repeat("─", max(width, 0)))
}
