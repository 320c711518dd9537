package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/bromdump/internal/chip"
	"github.com/muurk/bromdump/internal/receiver"
	"github.com/muurk/bromdump/internal/ui"
)

var (
	decodeText  bool
	closeBanner string
)

var decodeCmd = &cobra.Command{
	Use:   "decode <capture>",
	Short: "Split a captured dump stream into region files",
	Long: `Decode a dump captured earlier (for example with a terminal program
logging the UART) into one file per region.

By default the capture is a binary dump. With --text it is a UART
transcript holding "dump:" lines, ended by the closing banner.`,
	Example: `  bromdump decode usb.cap --chip mt6589 -o dumps
  bromdump decode minicom.log --text`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeText, "text", false, "Capture is a text dump transcript")
	decodeCmd.Flags().StringVar(&closeBanner, "banner", "", "Closing banner of a text dump (default \"done :)\")")
	decodeCmd.Flags().StringSliceVar(&regionList, "regions", nil, "Names for the regions, in order")
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx := cmd.Context()
	p := ui.NewPrinter(cmd.OutOrStdout())

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	db, err := chip.Load()
	if err != nil {
		return err
	}
	prof, err := profileOrNil(db)
	if err != nil {
		return err
	}
	format := "binary"
	if decodeText {
		format = "text"
	}
	names, err := regionNames(prof, format, regionList)
	if err != nil {
		return err
	}

	got := &collected{}
	if decodeText {
		var res *receiver.TextResult
		res, err = receiver.ReceiveText(ctx, f, nil, closeBanner)
		if err == nil {
			got.Files, err = receiver.SaveAll(outputDir, res.Regions, names)
		}
	} else {
		got.Files, err = receiver.ReceiveBinary(ctx, f, receiver.Options{Dir: outputDir, Names: names})
	}
	for _, file := range got.Files {
		got.Bytes += file.Size
	}

	printCollected(p, "Decode "+args[0], got, err)
	return err
}
