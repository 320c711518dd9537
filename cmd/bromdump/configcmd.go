package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/bromdump/internal/config"
	"github.com/muurk/bromdump/internal/ui"
)

var forceConfig bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the bromdump config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		path, err := config.CreateDefaultConfig(forceConfig)
		if err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Config file written", map[string]string{"Path": path})
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		p := ui.NewPrinter(cmd.OutOrStdout())
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			p.PrintWarning("No config file", map[string]string{
				"Path": path,
				"Hint": "bromdump config init",
			})
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		p.Print(string(data))
		return nil
	},
}

var configNicknameCmd = &cobra.Command{
	Use:   "nickname <me-id> <name>",
	Short: "Name a device recorded by 'bromdump identify'",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		reg, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		if reg.GetDevice(args[0]) == nil {
			return fmt.Errorf("no device with ME ID %s in the config file", args[0])
		}
		reg.SetDeviceNickname(args[0], args[1])
		return reg.Save()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceConfig, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd, configNicknameCmd)
	rootCmd.AddCommand(configCmd)
}
