package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/muurk/bromdump/internal/brom"
	"github.com/muurk/bromdump/internal/chip"
	"github.com/muurk/bromdump/internal/replay"
	"github.com/muurk/bromdump/internal/ui"
)

var (
	simpleReplay  bool
	skipRemaining bool
	receiveFormat string
	regionList    []string
)

var runCmd = &cobra.Command{
	Use:   "run <payload.bin>",
	Short: "Replay the vendor setup, send a payload and receive its dump",
	Long: `Handshake with the boot ROM, replay the flash tool's setup traffic for
the detected chip, load the payload at the chip's payload address and jump
to it. Whatever the payload sends back is then received in --format.

The full replay programs PMIC, RTC and memory controller registers and
asks for confirmation unless --yes is given. --simple only disables the
watchdog before sending the payload, which is enough for payloads that
do not need the Download Agent.`,
	Example: `  # Piggybacked usb-dump payload, binary dump to ./dumps
  bromdump run usb-dump.bin --port /dev/ttyACM0 -o dumps

  # Standalone UART payload, text dump on the same port
  bromdump run uart-dump.bin --simple --format text`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&simpleReplay, "simple", false, "Only disable the watchdog before sending the payload")
	runCmd.Flags().BoolVar(&skipRemaining, "skip-remaining", false, "Do not drain the Download Agent's output after the jump")
	runCmd.Flags().StringVarP(&receiveFormat, "format", "f", "binary", "What the payload sends: binary, text, greedy or none")
	runCmd.Flags().StringSliceVar(&regionList, "regions", nil, "Names for the received regions, in order")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx := cmd.Context()
	p := ui.NewPrinter(nil)

	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}
	db, err := chip.Load()
	if err != nil {
		return err
	}

	port, c, err := connect(ctx, p)
	if err != nil {
		p.PrintError("Handshake", err, ui.DefaultTroubleshooting)
		return err
	}
	defer port.Close()

	plat, prof, err := resolvePlatform(c, db)
	if err != nil {
		p.PrintError("Chip detection", err, []string{
			"Supported chips: bromdump chips",
			"Drop --chip to use the detected chip",
		})
		return err
	}

	if !simpleReplay && !assumeYes && !ui.ReplayConfirmation(os.Stdin, os.Stdout, prof.Name) {
		return fmt.Errorf("cancelled")
	}

	opts := replay.Options{Simple: simpleReplay, SkipRemaining: skipRemaining}
	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "BROM Replay",
		Command: "bromdump run " + filepath.Base(args[0]),
		Params: map[string]string{
			"Port":    portName,
			"Chip":    prof.Name,
			"Payload": fmt.Sprintf("%s (%d bytes)", args[0], len(image)),
			"Load at": fmt.Sprintf("0x%08x", prof.BROM.PayloadAddress),
		},
		StepNames: plat.StepNames(opts),
	})

	c.Progress = runner.OnTransfer
	_, err = runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) (map[string]string, error) {
		return replayWithSteps(ctx, c, plat, prof, image, opts, onStep)
	})
	c.Progress = nil
	if err != nil {
		return err
	}

	names, err := regionNames(prof, receiveFormat, regionList)
	if err != nil {
		return err
	}
	got, err := receiveDump(ctx, p, port, receiveFormat, names)
	if receiveFormat != "none" {
		printCollected(p, "Receive", got, err)
	}
	return err
}

// replayWithSteps runs replay.Replay, reporting its steps on onStep.
func replayWithSteps(ctx context.Context, c *brom.Client, plat *replay.Platform, prof *chip.Profile, image []byte, opts replay.Options, onStep ui.StepCallback) (map[string]string, error) {
	opts.OnStep = func(i int, name string, done bool, err error) {
		switch {
		case !done:
			onStep(i, name, ui.StepRunning, "")
		case err != nil:
			onStep(i, name, ui.StepFailed, "")
		default:
			onStep(i, name, ui.StepComplete, "")
		}
	}

	res, err := replay.Replay(ctx, c, plat, prof, image, opts)
	if err != nil {
		return nil, err
	}

	details := map[string]string{
		"Checksum": fmt.Sprintf("0x%04X", res.Checksum),
	}
	if want := brom.Checksum(image); want != res.Checksum {
		details["Expected"] = fmt.Sprintf("0x%04X (mismatch)", want)
	}
	if len(res.Remaining) > 0 {
		details["DA output"] = fmt.Sprintf("%X", res.Remaining)
	}
	return details, nil
}
