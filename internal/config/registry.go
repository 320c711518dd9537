package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName        = "bromdump"
	configFile     = "config.yaml"
	currentVersion = 1
)

const fileHeader = `# bromdump configuration file
# Defaults apply when the matching flag is not given on the command line.
# Devices are recorded by "bromdump identify", keyed by ME ID.
#
# Location: %s

`

var (
	globalRegistry     *Registry
	globalRegistryOnce sync.Once
	globalRegistryErr  error

	saveMu sync.Mutex
)

// GetConfigDir returns the directory holding config.yaml:
//   - Linux: $XDG_CONFIG_HOME/bromdump, else $HOME/.config/bromdump
//   - macOS: $HOME/.config/bromdump
//   - Windows: %LOCALAPPDATA%\bromdump
func GetConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			profile := os.Getenv("USERPROFILE")
			if profile == "" {
				return "", errors.New("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			base = filepath.Join(profile, "AppData", "Local")
		}
		return filepath.Join(base, appName), nil
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && runtime.GOOS != "darwin" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// GetConfigPath returns the full path to the configuration file.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// LoadRegistry loads the configuration file once per process.
func LoadRegistry() (*Registry, error) {
	globalRegistryOnce.Do(func() {
		path, err := GetConfigPath()
		if err != nil {
			globalRegistryErr = fmt.Errorf("failed to get config path: %w", err)
			return
		}
		globalRegistry, globalRegistryErr = LoadFile(path)
	})
	return globalRegistry, globalRegistryErr
}

// LoadFile reads a registry from path. A missing or empty file yields a
// new default registry; unknown keys are rejected.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var reg Registry
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	switch err := dec.Decode(&reg); {
	case errors.Is(err, io.EOF):
		return NewRegistry(), nil
	case err != nil:
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if reg.Version != currentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", reg.Version, currentVersion)
	}
	if reg.Devices == nil {
		reg.Devices = make(map[string]*Device)
	}
	if reg.Defaults == nil {
		reg.Defaults = defaultDefaults()
	}
	return &reg, nil
}

// Save writes the registry to the standard location.
func (r *Registry) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return r.SaveFile(path)
}

// SaveFile writes the registry to path through a temporary file in the
// same directory, so a crash leaves either the old or the new file.
func (r *Registry) SaveFile(path string) error {
	saveMu.Lock()
	defer saveMu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, fileHeader, path)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+configFile+"-*")
	if err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil && runtime.GOOS != "windows" {
		tmp.Close()
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// CreateDefaultConfig writes a default configuration file unless one
// already exists. It returns the file's path.
func CreateDefaultConfig(force bool) (string, error) {
	path, err := GetConfigPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return path, fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}

	reg := NewRegistry()
	reg.Defaults.Port = defaultPort()
	return path, reg.SaveFile(path)
}

// defaultPort is where the boot ROM's CDC ACM device usually appears.
func defaultPort() string {
	switch runtime.GOOS {
	case "windows":
		return "COM3"
	case "darwin":
		return "/dev/cu.usbmodem1"
	default:
		return "/dev/ttyACM0"
	}
}
