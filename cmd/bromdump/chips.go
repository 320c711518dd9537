package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/muurk/bromdump/internal/chip"
	"github.com/muurk/bromdump/internal/replay"
	"github.com/muurk/bromdump/internal/ui"
)

var chipsCmd = &cobra.Command{
	Use:   "chips [name]",
	Short: "List supported chips or show one chip's addresses",
	Example: `  bromdump chips
  bromdump chips mt6577`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChips,
}

func init() {
	rootCmd.AddCommand(chipsCmd)
}

func runChips(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	db, err := chip.Load()
	if err != nil {
		return err
	}
	p := ui.NewPrinter(cmd.OutOrStdout())

	if len(args) == 1 {
		prof, err := db.Lookup(args[0])
		if err != nil {
			return err
		}
		p.Println(ui.TitleStyle.Render(strings.ToUpper(prof.Name)) + "  " + ui.SubtitleStyle.Render(prof.Description))
		p.Newline()
		p.Println(prof.FormatAddresses())
		p.Newline()
		p.Println(fmt.Sprintf("Boot ROM payload address: 0x%08x", prof.BROM.PayloadAddress))
		p.Println("Replay: " + replaySupport(prof))
		return nil
	}

	key := lipgloss.NewStyle().Foreground(ui.MutedColor)
	p.Println(key.Render(fmt.Sprintf("  %-8s %-8s %-10s %-8s %s", "CHIP", "HW CODE", "PIGGYBACK", "REPLAY", "DESCRIPTION")))
	for _, prof := range db.List() {
		piggyback := "no"
		if prof.HasAgent() {
			piggyback = "yes"
		}
		p.Println(fmt.Sprintf("  %-8s 0x%04x   %-10s %-8s %s",
			prof.Name, prof.HWCode, piggyback, replaySupport(prof), prof.Description))
	}
	return nil
}

func replaySupport(prof *chip.Profile) string {
	if _, err := replay.ForChip(prof.Name); err != nil {
		return "simple"
	}
	return "full"
}
