package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus is where a replay step stands.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
	StepSkipped // not reached because an earlier step failed
)

// StepCallback reports progress of a numbered step.
type StepCallback func(stepNumber int, name string, status StepStatus, message string)

// Step is one line of a replay step list.
type Step struct {
	Name   string
	Status StepStatus
	Note   string // e.g. "checksum 0x1A2B"

	// Sent and Size count payload bytes pushed through send_da while the
	// step runs. Size is zero for steps that move no payload.
	Sent int
	Size int
}

// StepList tracks the numbered steps of a boot ROM replay. Each change
// returns the affected line so the caller can print it in place.
type StepList struct {
	Steps   []Step
	Current int // 1-based index of the running step, 0 when none is running
	bar     progress.Model
}

// NewStepList creates a step list with every step pending.
func NewStepList(names []string, width int) *StepList {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Name: name}
	}
	return &StepList{
		Steps: steps,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth(width))),
	}
}

// Set records a status change for step n. An empty name keeps the
// planned one. ok is false for steps outside the list.
func (l *StepList) Set(n int, name string, status StepStatus, note string) (line string, ok bool) {
	if n < 1 || n > len(l.Steps) {
		return "", false
	}
	s := &l.Steps[n-1]
	if name != "" {
		s.Name = name
	}
	s.Status = status
	s.Note = note

	switch {
	case status == StepRunning:
		l.Current = n
	case l.Current == n:
		l.Current = 0
	}
	return l.line(n), true
}

// Transfer records send_da progress on the running step.
func (l *StepList) Transfer(sent, total int) (line string, ok bool) {
	if l.Current == 0 {
		return "", false
	}
	s := &l.Steps[l.Current-1]
	s.Sent, s.Size = sent, total
	return l.line(l.Current), true
}

// SkipPending marks every step that never started as skipped and returns
// their lines.
func (l *StepList) SkipPending() []string {
	var lines []string
	for i := range l.Steps {
		if l.Steps[i].Status == StepPending {
			l.Steps[i].Status = StepSkipped
			lines = append(lines, l.line(i+1))
		}
	}
	return lines
}

// Completed returns the number of steps that finished successfully.
func (l *StepList) Completed() int {
	n := 0
	for _, s := range l.Steps {
		if s.Status == StepComplete {
			n++
		}
	}
	return n
}

// line renders step n as "[n/N] name  marker (note)". A running step
// that is sending payload bytes shows a bar instead of its note.
func (l *StepList) line(n int) string {
	s := l.Steps[n-1]
	look := stepLooks[s.Status]

	var b strings.Builder
	fmt.Fprintf(&b, "  [%d/%d] ", n, len(l.Steps))
	b.WriteString(look.style.Render(s.Name))
	b.WriteString(strings.Repeat(" ", max(1, 28-lipgloss.Width(s.Name))))
	b.WriteString(look.style.Render(look.marker))

	switch {
	case s.Status == StepRunning && s.Size > 0:
		b.WriteString("  ")
		b.WriteString(l.bar.ViewAs(float64(s.Sent) / float64(s.Size)))
		b.WriteString(noteStyle.Render(fmt.Sprintf("  %d/%d bytes", s.Sent, s.Size)))
	case s.Status == StepComplete && s.Size > 0 && s.Note == "":
		b.WriteString(noteStyle.Render(fmt.Sprintf("  (%d bytes)", s.Size)))
	case s.Note != "":
		b.WriteString(noteStyle.Render("  (" + s.Note + ")"))
	}
	return b.String()
}
