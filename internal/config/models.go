package config

import (
	"fmt"
	"time"
)

// Registry represents the entire user configuration file.
type Registry struct {
	Version  int                `yaml:"version"`
	Defaults *Defaults          `yaml:"defaults,omitempty"`
	Devices  map[string]*Device `yaml:"devices,omitempty"` // Keyed by ME ID (hex)
}

// Defaults are used when the matching command-line flag is not given.
type Defaults struct {
	Port      string `yaml:"port,omitempty"`       // Serial device, e.g. /dev/ttyACM0
	Baud      uint   `yaml:"baud,omitempty"`       // Serial baud rate
	Chip      string `yaml:"chip,omitempty"`       // Chip catalog name
	Mode      string `yaml:"mode,omitempty"`       // "standalone" or "piggyback"
	UART      int    `yaml:"uart"`                 // UART index for standalone mode
	OutputDir string `yaml:"output_dir,omitempty"` // Where dump files are written
	LogLevel  string `yaml:"log_level,omitempty"`  // debug, info, warn, error
}

// Device is what bromdump remembers about a phone it has identified.
type Device struct {
	Nickname     string    `yaml:"nickname,omitempty"`
	Chip         string    `yaml:"chip,omitempty"`
	HWCode       uint16    `yaml:"hw_code,omitempty"`
	TargetConfig uint32    `yaml:"target_config"`
	LastPort     string    `yaml:"last_port,omitempty"`
	LastSeen     time.Time `yaml:"last_seen,omitempty"`
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:  1,
		Defaults: defaultDefaults(),
		Devices:  make(map[string]*Device),
	}
}

func defaultDefaults() *Defaults {
	return &Defaults{
		Baud:      115200,
		Mode:      "piggyback",
		OutputDir: ".",
	}
}

// GetDevice retrieves device metadata by ME ID.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(meid string) *Device {
	return r.Devices[meid]
}

// EnsureDevice ensures a device entry exists in the registry.
func (r *Registry) EnsureDevice(meid string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[meid]; exists {
		return device
	}

	device := &Device{}
	r.Devices[meid] = device
	return device
}

// RecordDevice stores the identification of a device seen on port.
func (r *Registry) RecordDevice(meid []byte, chip string, hwCode uint16, targetConfig uint32, port string) *Device {
	device := r.EnsureDevice(fmt.Sprintf("%X", meid))
	device.Chip = chip
	device.HWCode = hwCode
	device.TargetConfig = targetConfig
	device.LastPort = port
	device.LastSeen = time.Now()
	return device
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(meid, nickname string) {
	device := r.EnsureDevice(meid)
	device.Nickname = nickname
}
