package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "bromdump") {
		t.Errorf("GetConfigDir() = %v, should contain 'bromdump'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("macOS config dir should contain '.config', got: %v", configDir)
		}
	}

	t.Logf("Config directory: %s", configDir)
}

func TestGetConfigDir_XDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME is only honoured on Linux")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if dir != "/tmp/xdg/bromdump" {
		t.Errorf("GetConfigDir() = %v, want /tmp/xdg/bromdump", dir)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Devices == nil {
		t.Error("NewRegistry().Devices should not be nil")
	}
	if reg.Defaults == nil {
		t.Fatal("NewRegistry().Defaults should not be nil")
	}
	if reg.Defaults.Baud != 115200 {
		t.Errorf("Defaults.Baud = %v, want 115200", reg.Defaults.Baud)
	}
	if reg.Defaults.Mode != "piggyback" {
		t.Errorf("Defaults.Mode = %v, want piggyback", reg.Defaults.Mode)
	}
}

func TestRegistryEnsureDevice(t *testing.T) {
	reg := NewRegistry()

	device1 := reg.EnsureDevice("4D544B00")
	if device1 == nil {
		t.Fatal("EnsureDevice() returned nil")
	}

	device2 := reg.EnsureDevice("4D544B00")
	if device1 != device2 {
		t.Error("EnsureDevice() should return same instance for same ME ID")
	}

	device3 := reg.EnsureDevice("01020304")
	if device1 == device3 {
		t.Error("EnsureDevice() should create new instance for different ME ID")
	}
}

func TestRegistryRecordDevice(t *testing.T) {
	reg := NewRegistry()

	before := time.Now()
	reg.RecordDevice([]byte{0x4D, 0x54, 0x4B, 0x00}, "mt6589", 0x6583, 0x2, "/dev/ttyACM0")
	after := time.Now()

	device := reg.GetDevice("4D544B00")
	if device == nil {
		t.Fatal("Device should exist after RecordDevice()")
	}
	if device.Chip != "mt6589" || device.HWCode != 0x6583 || device.TargetConfig != 0x2 {
		t.Errorf("device = %+v", device)
	}
	if device.LastPort != "/dev/ttyACM0" {
		t.Errorf("LastPort = %v, want /dev/ttyACM0", device.LastPort)
	}
	if device.LastSeen.Before(before) || device.LastSeen.After(after) {
		t.Errorf("LastSeen = %v, should be between %v and %v", device.LastSeen, before, after)
	}
}

func TestRegistrySetDeviceNickname(t *testing.T) {
	reg := NewRegistry()

	reg.SetDeviceNickname("4D544B00", "Test Phone")

	device := reg.GetDevice("4D544B00")
	if device == nil {
		t.Fatal("Device should exist after SetDeviceNickname()")
	}
	if device.Nickname != "Test Phone" {
		t.Errorf("Nickname = %v, want 'Test Phone'", device.Nickname)
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	reg := NewRegistry()
	reg.Defaults.Port = "/dev/ttyUSB0"
	reg.Defaults.Chip = "mt6577"
	reg.Defaults.UART = 1
	reg.RecordDevice([]byte{0xAB, 0xCD}, "mt6577", 0x6577, 0, "/dev/ttyUSB0")
	reg.SetDeviceNickname("ABCD", "Test Phone")

	if err := reg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "# bromdump configuration file") {
		t.Error("saved file should start with the header comment")
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil || len(entries) != 1 {
		t.Errorf("config dir should hold only config.yaml, got %v (%v)", entries, err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if loaded.Defaults.Port != "/dev/ttyUSB0" || loaded.Defaults.Chip != "mt6577" || loaded.Defaults.UART != 1 {
		t.Errorf("loaded defaults = %+v", loaded.Defaults)
	}
	device := loaded.GetDevice("ABCD")
	if device == nil {
		t.Fatal("Device should exist in loaded registry")
	}
	if device.Nickname != "Test Phone" || device.HWCode != 0x6577 {
		t.Errorf("loaded device = %+v", device)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	reg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if reg.Version != 1 || reg.Defaults == nil {
		t.Errorf("missing file should give the default registry, got %+v", reg)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad version", "version: 2\n", "unsupported config version"},
		{"bad yaml", "version: [1\n", "failed to parse"},
		{"unknown key", "version: 1\ndefaults:\n  prot: /dev/ttyACM0\n", "field prot not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := LoadFile(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadFile() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}
	reg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if reg.Version != 1 || reg.Defaults.Mode != "piggyback" {
		t.Errorf("registry = %+v", reg)
	}
}

func TestLoadFile_FillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	reg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if reg.Devices == nil || reg.Defaults == nil || reg.Defaults.Baud != 115200 {
		t.Errorf("registry = %+v", reg)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("relies on XDG_CONFIG_HOME")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := CreateDefaultConfig(false)
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}
	reg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if reg.Defaults.Port != "/dev/ttyACM0" {
		t.Errorf("Defaults.Port = %v", reg.Defaults.Port)
	}

	if _, err := CreateDefaultConfig(false); err == nil {
		t.Error("second CreateDefaultConfig() without force should fail")
	}
	if _, err := CreateDefaultConfig(true); err != nil {
		t.Errorf("CreateDefaultConfig(force) error = %v", err)
	}
}

func BenchmarkGetConfigDir(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = GetConfigDir()
	}
}

func BenchmarkEnsureDevice(b *testing.B) {
	reg := NewRegistry()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.EnsureDevice("4D544B00")
	}
}
