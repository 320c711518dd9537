package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// DefaultTroubleshooting is shown when an operation fails and the command
// gave no tips of its own.
var DefaultTroubleshooting = []string{
	"Power the phone off, then plug it in so the boot ROM enumerates",
	"Check the serial port with --port (the boot ROM shows up as a CDC ACM device)",
	"Confirm the chip with: bromdump identify",
	"Run with BROMDUMP_LOG_LEVEL=debug for the full boot ROM exchange",
}

// RunnerConfig holds configuration for a device operation
type RunnerConfig struct {
	Title           string            // e.g., "BROM Replay"
	Command         string            // e.g., "bromdump run usb-dump"
	Params          map[string]string // Shown in the header
	StepNames       []string          // One entry per step; empty disables the step list
	Troubleshooting []string          // Defaults to DefaultTroubleshooting
	Output          io.Writer         // Defaults to os.Stdout
}

// Runner prints the header, step progress and result of one operation.
type Runner struct {
	config RunnerConfig
	header *Header
	steps  *StepList
	output io.Writer
	width  int
}

// NewRunner creates a new runner
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Troubleshooting == nil {
		config.Troubleshooting = DefaultTroubleshooting
	}

	width := GetTerminalWidth()
	header := NewHeader(config.Title, config.Command, config.Params).SetWidth(width)

	var steps *StepList
	if len(config.StepNames) > 0 {
		steps = NewStepList(config.StepNames, width)
	}

	return &Runner{
		config: config,
		header: header,
		steps:  steps,
		output: config.Output,
		width:  width,
	}
}

// Operation is the work a Runner wraps. It returns the details shown in
// the success box.
type Operation func(ctx context.Context, onStep StepCallback) (map[string]string, error)

// Run executes the operation with UI updates.
func (r *Runner) Run(ctx context.Context, operation Operation) (map[string]string, error) {
	start := time.Now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	details, err := operation(ctx, r.OnStep)
	duration := time.Since(start).Round(time.Millisecond)

	if err != nil && r.steps != nil {
		for _, line := range r.steps.SkipPending() {
			_, _ = fmt.Fprintln(r.output, line)
		}
	}

	_, _ = fmt.Fprintln(r.output)
	if err != nil {
		res := NewFailureResult(r.config.Title+" failed", err, r.config.Troubleshooting)
		_, _ = fmt.Fprintln(r.output, res.SetWidth(r.width).Render())
		return details, err
	}

	if details == nil {
		details = make(map[string]string)
	}
	details["Duration"] = duration.String()
	if r.steps != nil {
		details["Steps"] = fmt.Sprintf("%d/%d", r.steps.Completed(), len(r.steps.Steps))
	}
	res := NewSuccessResult(r.config.Title+" complete", details)
	_, _ = fmt.Fprintln(r.output, res.SetWidth(r.width).Render())
	return details, nil
}

// OnStep is the StepCallback handed to the operation.
func (r *Runner) OnStep(stepNumber int, name string, status StepStatus, message string) {
	if r.steps == nil {
		return
	}
	line, ok := r.steps.Set(stepNumber, name, status, message)
	if !ok {
		return
	}
	if status == StepRunning {
		// overwritten when the step ends
		_, _ = fmt.Fprint(r.output, line+"\r")
		return
	}
	_, _ = fmt.Fprintln(r.output, line)
}

// OnTransfer redraws the running step with send_da progress. Its
// signature matches brom.Client.Progress.
func (r *Runner) OnTransfer(sent, total int) {
	if r.steps == nil {
		return
	}
	if line, ok := r.steps.Transfer(sent, total); ok {
		_, _ = fmt.Fprint(r.output, line+"\r")
	}
}
