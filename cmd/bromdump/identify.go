package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/bromdump/internal/chip"
	"github.com/muurk/bromdump/internal/config"
	"github.com/muurk/bromdump/internal/logging"
	"github.com/muurk/bromdump/internal/replay"
	"github.com/muurk/bromdump/internal/ui"
)

var noRecord bool

var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Identify the chip in boot ROM mode",
	Long: `Handshake with the boot ROM and report the chip's HW code, versions,
ME ID and security configuration.

The device is recorded in the config file under its ME ID together with
the chip name and the port it was seen on.`,
	Example: `  bromdump identify --port /dev/ttyACM0
  bromdump identify --no-record`,
	Args: cobra.NoArgs,
	RunE: runIdentify,
}

func init() {
	identifyCmd.Flags().BoolVar(&noRecord, "no-record", false, "Do not record the device in the config file")
	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx := cmd.Context()
	p := ui.NewPrinter(nil)

	p.PrintHeader("Identify", "bromdump identify", map[string]string{
		"Port": portName,
	})

	db, err := chip.Load()
	if err != nil {
		return err
	}
	port, c, err := connect(ctx, p)
	if err != nil {
		p.PrintError("Identify", err, ui.DefaultTroubleshooting)
		return err
	}
	defer port.Close()

	id, err := replay.Identify(c)
	if err != nil {
		p.PrintError("Identify", err, ui.DefaultTroubleshooting)
		return err
	}

	details := map[string]string{
		"HW code":    fmt.Sprintf("0x%04X", id.HWCode),
		"HW version": fmt.Sprintf("0x%04X", id.HWVersion),
		"SW version": fmt.Sprintf("0x%04X", id.SWVersion),
	}
	if id.SubCode != 0 {
		details["Sub code"] = fmt.Sprintf("0x%04X", id.SubCode)
	}

	chipLabel := "unknown"
	if prof, ok := db.ByHWCode(id.HWCode); ok {
		chipLabel = prof.Name
		details["Chip"] = prof.Name + " - " + prof.Description
	} else {
		details["Chip"] = "not in catalog"
	}

	// Older boot ROMs do not know these commands; report what answered.
	meid, err := c.MEID()
	if err != nil {
		logging.Warn("ME ID unavailable", zap.Error(err))
	} else {
		details["ME ID"] = fmt.Sprintf("%X", meid)
	}
	var targetConfig uint32
	if tc, err := c.TargetConfig(); err != nil {
		logging.Warn("Target config unavailable", zap.Error(err))
	} else {
		targetConfig = uint32(tc)
		details["Security"] = strings.Join(tc.Lines()[1:], ", ")
	}

	if meid != nil && !noRecord {
		reg, err := config.LoadRegistry()
		if err == nil {
			dev := reg.RecordDevice(meid, chipLabel, id.HWCode, targetConfig, portName)
			err = reg.Save()
			if dev.Nickname != "" {
				details["Nickname"] = dev.Nickname
			}
		}
		if err != nil {
			logging.Warn("Could not record device", zap.Error(err))
		}
	}

	p.PrintSuccess("Boot ROM answered", details)
	return nil
}
