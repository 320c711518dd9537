package chip

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed profiles/chips.yaml
var chipsYAML []byte

// MemoryRegion is a contiguous address range designated for exfiltration.
type MemoryRegion struct {
	// Name identifies the region in dump file names (e.g., "brom")
	Name string `yaml:"name"`

	// Base is the first byte address of the region
	Base uint32 `yaml:"base"`

	// Length is the region size in bytes
	Length uint32 `yaml:"length"`
}

// End returns the first address past the region.
func (r MemoryRegion) End() uint64 {
	return uint64(r.Base) + uint64(r.Length)
}

// WordAligned reports whether the region can be dumped word by word
// without losing a trailing partial word.
func (r MemoryRegion) WordAligned() bool {
	return r.Length%4 == 0
}

func (r MemoryRegion) String() string {
	return fmt.Sprintf("%s [0x%08x..0x%08x) %d bytes", r.Name, r.Base, r.End(), r.Length)
}

// EntryPoints holds code addresses inside a resident Download Agent.
// Addresses are Thumb addresses, so bit 0 is set. Zero means absent.
type EntryPoints struct {
	// Init is called once before any other routine (e.g., reset_uart_and_log)
	Init uint32 `yaml:"init,omitempty"`

	// UARTPutc transmits a single byte over the agent's UART
	UARTPutc uint32 `yaml:"uart_putc"`

	// UARTPrintHex and UARTPrintf are the agent's own formatters. Payloads
	// format with internal/console instead; these are listed for reference.
	UARTPrintHex uint32 `yaml:"uart_print_hex,omitempty"`
	UARTPrintf   uint32 `yaml:"uart_printf,omitempty"`

	// USBWrite sends a block of memory: (ptr, len)
	USBWrite uint32 `yaml:"usb_write"`

	// USBWriteSingleByte marks agents whose USBWrite must be called one
	// byte at a time with the (ptr, 1, 0, 0) signature.
	USBWriteSingleByte bool `yaml:"usb_write_single_byte,omitempty"`

	// USBReadl receives one 32-bit word
	USBReadl uint32 `yaml:"usb_readl"`

	// USBWritel sends one 32-bit word
	USBWritel uint32 `yaml:"usb_writel"`
}

// BROMInfo holds what the host needs to push a payload through the boot ROM.
type BROMInfo struct {
	// PayloadAddress is where the boot ROM loads and jumps to the payload
	PayloadAddress uint32 `yaml:"payload_address"`

	// SignatureLength is the trailing signature size announced to send_da
	SignatureLength uint32 `yaml:"signature_length,omitempty"`
}

// Profile describes one SoC family: register addresses, UARTs, memory map
// and the resident agent's entry points.
type Profile struct {
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description"`
	HWCode         uint16         `yaml:"hw_code"`
	ChipIDRegister uint32         `yaml:"chip_id_register"`
	UARTBases      []uint32       `yaml:"uart_bases"`
	Regions        []MemoryRegion `yaml:"regions"`
	Agent          EntryPoints    `yaml:"agent"`
	BROM           BROMInfo       `yaml:"brom"`
}

// UARTBase returns the base address of UART n.
func (p *Profile) UARTBase(n int) (uint32, error) {
	if n < 0 || n >= len(p.UARTBases) {
		return 0, &UARTUnavailableError{Chip: p.Name, Index: n, Count: len(p.UARTBases)}
	}
	return p.UARTBases[n], nil
}

// Region returns the named region.
func (p *Profile) Region(name string) (MemoryRegion, bool) {
	for _, r := range p.Regions {
		if r.Name == name {
			return r, true
		}
	}
	return MemoryRegion{}, false
}

// SelectRegions returns the regions with the given names in the given
// order. An empty name list selects every region in table order.
func (p *Profile) SelectRegions(names []string) ([]MemoryRegion, error) {
	if len(names) == 0 {
		out := make([]MemoryRegion, len(p.Regions))
		copy(out, p.Regions)
		return out, nil
	}

	out := make([]MemoryRegion, 0, len(names))
	for _, name := range names {
		r, ok := p.Region(name)
		if !ok {
			return nil, fmt.Errorf("chip %s has no region %q", p.Name, name)
		}
		out = append(out, r)
	}
	return out, nil
}

// HasAgent reports whether the profile knows enough agent entry points
// to run in piggyback mode.
func (p *Profile) HasAgent() bool {
	return p.Agent.UARTPutc != 0 || p.Agent.USBWritel != 0
}

func (p *Profile) String() string {
	return fmt.Sprintf("%s (hw code 0x%04x) - %s", p.Name, p.HWCode, p.Description)
}

// FormatAddresses returns a human-readable table of the profile's addresses.
func (p *Profile) FormatAddresses() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Registers:\n")
	fmt.Fprintf(&b, "  chip_id:    0x%08x\n", p.ChipIDRegister)
	for i, base := range p.UARTBases {
		fmt.Fprintf(&b, "  uart%d:      0x%08x\n", i, base)
	}

	fmt.Fprintf(&b, "\nRegions:\n")
	for _, r := range p.Regions {
		fmt.Fprintf(&b, "  %-10s  0x%08x  0x%x\n", r.Name+":", r.Base, r.Length)
	}

	fmt.Fprintf(&b, "\nAgent entry points:\n")
	fmt.Fprintf(&b, "  init:       0x%08x\n", p.Agent.Init)
	fmt.Fprintf(&b, "  uart_putc:  0x%08x\n", p.Agent.UARTPutc)
	if p.Agent.UARTPrintHex != 0 {
		fmt.Fprintf(&b, "  print_hex:  0x%08x\n", p.Agent.UARTPrintHex)
	}
	if p.Agent.UARTPrintf != 0 {
		fmt.Fprintf(&b, "  printf:     0x%08x\n", p.Agent.UARTPrintf)
	}
	fmt.Fprintf(&b, "  usb_write:  0x%08x\n", p.Agent.USBWrite)
	fmt.Fprintf(&b, "  usb_readl:  0x%08x\n", p.Agent.USBReadl)
	fmt.Fprintf(&b, "  usb_writel: 0x%08x", p.Agent.USBWritel)

	return b.String()
}

// DB holds all known chip profiles.
type DB struct {
	// Profiles is every profile in catalog order
	Profiles []*Profile

	byName   map[string]*Profile
	byHWCode map[uint16]*Profile
	mu       sync.RWMutex
}

type dbContainer struct {
	Chips []*Profile `yaml:"chips"`
}

var (
	globalDB     *DB
	globalDBOnce sync.Once
	globalDBErr  error
)

// Load returns the embedded chip catalog. The catalog is parsed once.
func Load() (*DB, error) {
	globalDBOnce.Do(func() {
		globalDB, globalDBErr = Parse(chipsYAML)
	})
	return globalDB, globalDBErr
}

// Parse builds a DB from a YAML catalog document.
func Parse(data []byte) (*DB, error) {
	var container dbContainer
	if err := yaml.Unmarshal(data, &container); err != nil {
		return nil, fmt.Errorf("failed to parse chip catalog: %w", err)
	}

	db := &DB{
		Profiles: container.Chips,
		byName:   make(map[string]*Profile),
		byHWCode: make(map[uint16]*Profile),
	}

	for _, p := range db.Profiles {
		key := strings.ToLower(p.Name)
		if _, dup := db.byName[key]; dup {
			return nil, fmt.Errorf("duplicate chip profile %q", p.Name)
		}
		db.byName[key] = p
		if p.HWCode != 0 {
			db.byHWCode[p.HWCode] = p
		}
	}

	return db, nil
}

// Get returns the profile with the given name (case-insensitive).
func (db *DB) Get(name string) (*Profile, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	p, ok := db.byName[strings.ToLower(name)]
	return p, ok
}

// Lookup is Get with a descriptive error for unknown names.
func (db *DB) Lookup(name string) (*Profile, error) {
	if p, ok := db.Get(name); ok {
		return p, nil
	}
	return nil, &ProfileUnsupportedError{Name: name, Available: db.Names()}
}

// ByHWCode returns the profile whose boot ROM reports the given HW code.
func (db *DB) ByHWCode(code uint16) (*Profile, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	p, ok := db.byHWCode[code]
	return p, ok
}

// List returns all profiles in catalog order.
func (db *DB) List() []*Profile {
	return db.Profiles
}

// Names returns all profile names, sorted.
func (db *DB) Names() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	names := make([]string, 0, len(db.Profiles))
	for _, p := range db.Profiles {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}
