// Package ui provides terminal UI components for the bromdump CLI.
//
// Components render once and exit; nothing here waits for input except
// the confirmation prompt.
//
//   - Header: command banner showing operation name and parameters
//   - Progress: step list for the boot ROM replay
//   - Transfer: Bubble Tea byte-transfer bar while a dump is received
//   - Result: success, failure and warning boxes
//   - Transcript: raw device output for --verbose
//
// A Runner ties the header, step list and result box together:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:     "BROM Replay",
//	    Command:   "bromdump run usb-dump",
//	    Params:    map[string]string{"Port": port, "Chip": "mt6577"},
//	    StepNames: plat.StepNames(opts),
//	})
//
//	_, err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) (map[string]string, error) {
//	    onStep(1, "", ui.StepRunning, "")
//	    // ...
//	    return map[string]string{"Checksum": "0x1A2B"}, nil
//	})
//
// Logging is controlled separately by BROMDUMP_LOG_LEVEL; when unset zap is
// silent so only these components reach the terminal.
package ui
