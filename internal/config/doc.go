// Package config provides user configuration management for bromdump.
//
// This package manages a YAML-based configuration file that stores default
// connection settings (serial port, baud rate, chip, transport mode, output
// directory) and the devices bromdump has identified. Command-line flags
// always take precedence over the file.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/bromdump/config.yaml or $HOME/.config/bromdump/config.yaml
//   - macOS: $HOME/.config/bromdump/config.yaml
//   - Windows: %LOCALAPPDATA%\bromdump\config.yaml
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.RecordDevice(meid, "mt6589", 0x6583, 0, "/dev/ttyACM0")
//
//	// Save changes atomically
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// LoadRegistry reads the file once per process. Saves go through a
// temporary file and a rename.
package config
