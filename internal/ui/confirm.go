package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ConfirmPhrase is what the user must type to go ahead.
const ConfirmPhrase = "I AGREE"

// ConfirmDangerousOperation prints a warning box to out and reads one line
// from in. It returns true only if the line is ConfirmPhrase.
func ConfirmDangerousOperation(in io.Reader, out io.Writer, title string, warnings []string, disclaimer string) bool {
	width := GetTerminalWidth()

	lines := []string{"", banner(WarningMarker, "WARNING", title, WarningColor), ""}
	bullet := lipgloss.NewStyle().Foreground(TextColor)
	for _, w := range warnings {
		lines = append(lines, bullet.Render("   • "+w))
	}
	lines = append(lines, "")

	if disclaimer != "" {
		lines = append(lines, lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true).
			Width(width-12).
			PaddingLeft(3).
			Render(disclaimer), "")
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(WarningColor).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))

	_, _ = fmt.Fprintln(out, box)
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprint(out, warningStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", ConfirmPhrase)))

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}
	if strings.TrimSpace(input) == ConfirmPhrase {
		return true
	}

	_, _ = fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	_, _ = fmt.Fprintln(out)
	return false
}

// ReplayConfirmation asks before a full replay, which programs PMIC, RTC
// and EMI registers on the phone.
func ReplayConfirmation(in io.Reader, out io.Writer, chip string) bool {
	return ConfirmDangerousOperation(in, out,
		"BOOT ROM REPLAY ON "+strings.ToUpper(chip),
		[]string{
			"PMIC, RTC and memory controller registers will be written",
			"Use a charged battery; the watchdog is disabled until the phone reboots",
			"Do not unplug the phone while the payload runs",
			"Pass --yes to skip this prompt",
		},
		"DISCLAIMER: This software is provided as-is, without warranty of any kind. "+
			"The authors accept no responsibility for any damage to your device. "+
			"Wrong register values can leave the phone unable to power on until "+
			"the battery is removed.",
	)
}
