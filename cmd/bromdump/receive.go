package main

import (
	"github.com/spf13/cobra"

	"github.com/muurk/bromdump/internal/chip"
	"github.com/muurk/bromdump/internal/ui"
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Receive a dump from a payload that is already running",
	Long: `Open the serial port and receive what a running payload sends, without
talking to the boot ROM. Use this after 'bromdump run --format none', or
on the UART of a standalone payload.

  binary  framed dump, one file per region
  text    "dump:" lines up to the closing banner, one file per region
  greedy  print every 4-byte word until the port closes or Ctrl-C`,
	Example: `  bromdump receive --port /dev/ttyUSB0 --format text --chip mt6577
  bromdump receive --format greedy`,
	Args: cobra.NoArgs,
	RunE: runReceive,
}

func init() {
	receiveCmd.Flags().StringVarP(&receiveFormat, "format", "f", "binary", "What the payload sends: binary, text or greedy")
	receiveCmd.Flags().StringSliceVar(&regionList, "regions", nil, "Names for the received regions, in order")
	rootCmd.AddCommand(receiveCmd)
}

func runReceive(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx := cmd.Context()
	p := ui.NewPrinter(nil)

	db, err := chip.Load()
	if err != nil {
		return err
	}
	prof, err := profileOrNil(db)
	if err != nil {
		return err
	}
	names, err := regionNames(prof, receiveFormat, regionList)
	if err != nil {
		return err
	}

	p.PrintHeader("Receive", "bromdump receive", map[string]string{
		"Port":   portName,
		"Format": receiveFormat,
		"Output": outputDir,
	})

	port, err := openPort(ctx)
	if err != nil {
		p.PrintError("Receive", err, ui.DefaultTroubleshooting)
		return err
	}
	defer port.Close()

	got, err := receiveDump(ctx, p, port, receiveFormat, names)
	printCollected(p, "Receive", got, err)
	return err
}
