// Bromdump pushes small payloads through the MediaTek boot ROM and
// collects the memory dumps they stream back.
//
// The device side (internal/payload) runs either standalone on a UART or
// piggybacked on a resident Download Agent. The host side talks to the
// boot ROM over its USB-CDC serial port, replays the vendor tool's setup
// traffic, sends the payload and receives the dump.
//
// Usage:
//
//	bromdump [command] [flags]
//
// See 'bromdump --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/muurk/bromdump/internal/config"
	"github.com/muurk/bromdump/internal/logging"
	"github.com/muurk/bromdump/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Persistent flags
var (
	portName  string
	baudRate  uint
	chipName  string
	modeName  string
	uartIndex int
	outputDir string
	logLevel  string
	verbose   bool
	assumeYes bool
)

var rootCmd = &cobra.Command{
	Use:   "bromdump",
	Short: "MediaTek boot ROM payload runner and memory dumper",
	Long: `Run small payloads on MediaTek phones through the boot ROM download
mode and collect the memory they dump.

Payloads run either standalone (driving a UART directly) or piggybacked
on the vendor Download Agent (using its USB and UART routines). The
'emulate' command runs the same payloads against a simulated SoC.

Settings not given as flags come from the config file
(see 'bromdump config show').`,
	Version: version.Version,
	Example: `  # List supported chips
  bromdump chips

  # Identify a phone in boot ROM mode
  bromdump identify --port /dev/ttyACM0

  # Replay the vendor setup, run a payload and save the dump
  bromdump run payload.bin --port /dev/ttyACM0 --output-dir dumps

  # Try a payload on the simulator
  bromdump emulate usb-dump --chip mt6577`,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port of the boot ROM (e.g., /dev/ttyACM0, COM3)")
	rootCmd.PersistentFlags().UintVar(&baudRate, "baud", 115200, "Serial baud rate")
	rootCmd.PersistentFlags().StringVarP(&chipName, "chip", "c", "", "Chip name (see 'bromdump chips'); detected from the boot ROM when empty")
	rootCmd.PersistentFlags().StringVar(&modeName, "mode", "piggyback", "Payload transport: standalone or piggyback")
	rootCmd.PersistentFlags().IntVar(&uartIndex, "uart", 0, "UART index for standalone mode")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory for dump files")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $"+logging.LogLevelEnvVar+" or silent)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show device output after the result")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask before writing device registers")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bromdump %s\n", version.Full())
		fmt.Printf("built with %s\n", version.Platform())
	},
}

// loadSettings starts logging and fills flags the user did not set from
// the config file defaults.
func loadSettings(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	applyDefaults(cmd, reg.Defaults)

	if logLevel == "" && os.Getenv(logging.LogLevelEnvVar) == "" && reg.Defaults.LogLevel != "" {
		if err := logging.Initialize(reg.Defaults.LogLevel); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
	}
	return nil
}

func applyDefaults(cmd *cobra.Command, d *config.Defaults) {
	if d == nil {
		return
	}
	flags := cmd.Flags()
	if !flags.Changed("port") && d.Port != "" {
		portName = d.Port
	}
	if !flags.Changed("baud") && d.Baud != 0 {
		baudRate = d.Baud
	}
	if !flags.Changed("chip") && d.Chip != "" {
		chipName = d.Chip
	}
	if !flags.Changed("mode") && d.Mode != "" {
		modeName = d.Mode
	}
	if !flags.Changed("uart") {
		uartIndex = d.UART
	}
	if !flags.Changed("output-dir") && d.OutputDir != "" {
		outputDir = d.OutputDir
	}
}
