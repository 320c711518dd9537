package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ResultType selects the banner and border color of a result box.
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Result is the box printed when an operation ends.
type Result struct {
	Type    ResultType
	Title   string            // e.g. "Receive"
	Details map[string]string // printed sorted by key
	Files   []string          // dump files written, in region order

	// Failure results only
	Error           error
	Troubleshooting []string

	Width int
}

func newResult(typ ResultType, title string, details map[string]string) *Result {
	return &Result{Type: typ, Title: title, Details: details, Width: GetTerminalWidth()}
}

func NewSuccessResult(title string, details map[string]string) *Result {
	return newResult(ResultSuccess, title, details)
}

// NewWarningResult is for operations that stopped early but kept some
// output, such as a dump cut short after two regions.
func NewWarningResult(title string, details map[string]string) *Result {
	return newResult(ResultWarning, title, details)
}

func NewFailureResult(title string, err error, troubleshooting []string) *Result {
	r := newResult(ResultFailure, title, nil)
	r.Error = err
	r.Troubleshooting = troubleshooting
	return r
}

// SetWidth sets the terminal width for responsive rendering
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// SetFiles lists the dump files an operation wrote.
func (r *Result) SetFiles(paths []string) *Result {
	r.Files = paths
	return r
}

// Render draws a double-bordered box: banner, details, files, then the
// error and troubleshooting tips of a failure.
func (r *Result) Render() string {
	width := max(r.Width, MinTerminalWidth)
	look := resultLooks[r.Type]

	lines := []string{"", banner(look.marker, look.word, r.Title, look.color), ""}
	for _, key := range sortedKeys(r.Details) {
		lines = append(lines, detailKeyStyle.Render("   "+key+":")+" "+plainStyle.Render(r.Details[key]))
	}
	if len(r.Files) > 0 {
		lines = append(lines, inset("Files:", r.Files, width))
	}
	if r.Type == ResultFailure {
		if r.Error != nil {
			lines = append(lines, errorStyle.Render("   Error: "+r.Error.Error()), "")
		}
		if len(r.Troubleshooting) > 0 {
			lines = append(lines, inset("Troubleshooting:", r.Troubleshooting, width))
		}
	}
	lines = append(lines, "")

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(look.color).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))
}

// inset is a titled bullet list in a muted rounded box.
func inset(title string, items []string, width int) string {
	lines := []string{sectionStyle.Render(title), ""}
	for _, item := range items {
		lines = append(lines, mutedStyle.Render("  • "+item))
	}
	return frame(max(width-12, 40), MutedColor).
		Padding(0, 1).
		MarginLeft(3).
		Render(strings.Join(lines, "\n"))
}
