package main

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/muurk/bromdump/internal/chip"
	"github.com/muurk/bromdump/internal/hal"
	"github.com/muurk/bromdump/internal/payload"
	"github.com/muurk/bromdump/internal/sim"
	"github.com/muurk/bromdump/internal/ui"
)

var busyPolls int

var emulateCmd = &cobra.Command{
	Use:   "emulate <payload>",
	Short: "Run a built-in payload on a simulated SoC",
	Long: `Run one of the built-in payloads against a simulated chip and collect
its output the way the host would: UART text is shown, text and binary
dumps are decoded into region files under --output-dir.

Simulated memory holds a per-region pattern, so every dump is
reproducible.`,
	Example: `  bromdump emulate hello --chip mt6577
  bromdump emulate usb-dump --chip mt6589 -o /tmp/dump
  bromdump emulate uart-dump --chip mt6577 --mode standalone --uart 1`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: payload.Names(),
	RunE:      runEmulate,
}

func init() {
	emulateCmd.Flags().IntVar(&busyPolls, "busy-polls", 0, "UART polls that report busy before each byte")
	rootCmd.AddCommand(emulateCmd)
}

func runEmulate(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	p := ui.NewPrinter(cmd.OutOrStdout())

	prog, err := payload.Lookup(args[0])
	if err != nil {
		return err
	}
	mode, err := hal.ParseMode(modeName)
	if err != nil {
		return err
	}
	if chipName == "" {
		return fmt.Errorf("no chip given (use --chip, see 'bromdump chips')")
	}
	db, err := chip.Load()
	if err != nil {
		return err
	}
	prof, err := db.Lookup(chipName)
	if err != nil {
		return err
	}

	p.PrintHeader("Emulate", "bromdump emulate "+prog.Name, map[string]string{
		"Chip":    prof.Name,
		"Mode":    mode.String(),
		"Payload": prog.Description,
	})

	var uart, usb bytes.Buffer
	soc, err := sim.New(prof, sim.Options{Console: &uart, USBOut: &usb, BusyPolls: busyPolls})
	if err != nil {
		return err
	}
	tr, err := hal.New(hal.Config{Mode: mode, Profile: prof, UART: uartIndex, Bus: soc.Bus, Caller: soc.Agent})
	if err != nil {
		p.PrintError("Emulate", err, []string{
			"Piggyback mode needs agent entry points for the chip",
			"Standalone mode needs a UART at --uart",
		})
		return err
	}

	// a cancelled context makes the payload's idle loop return at once
	done, cancel := context.WithCancel(cmd.Context())
	cancel()
	payload.Run(done, prog, payload.Env{Transport: tr, Profile: prof})

	// standalone word output goes out on the UART
	var stream io.Reader = &usb
	if mode == hal.ModeStandalone {
		stream = &uart
	}

	switch prog.Output {
	case payload.OutputBinary:
		names := regionsOf(prog.DefaultRegions(prof))
		got, err := receiveDump(cmd.Context(), p, stream, "binary", names)
		printCollected(p, "Emulate "+prog.Name, got, err)
		return err
	case payload.OutputText:
		names := regionsOf(prog.DefaultRegions(prof))
		got, err := receiveDump(cmd.Context(), p, &uart, "text", names)
		printCollected(p, "Emulate "+prog.Name, got, err)
		return err
	default:
		p.PrintTranscript(uart.String(), 0)
		p.PrintSuccess("Emulate "+prog.Name, map[string]string{
			"UART bytes": fmt.Sprintf("%d", uart.Len()),
		})
		return nil
	}
}

func regionsOf(regions []chip.MemoryRegion) []string {
	names := make([]string, 0, len(regions))
	for _, r := range regions {
		names = append(names, r.Name)
	}
	return names
}
