package sim

import (
	"encoding/binary"
	"fmt"
)

// Device is a memory-mapped peripheral. Offsets are relative to the
// start of its mapping.
type Device interface {
	Read32(offs uint32) uint32
	Write32(offs uint32, val uint32)
}

// Mapping places a Device in the address space.
type Mapping struct {
	Start  uint32
	Length uint32
	Device Device
}

func (m Mapping) contains(addr uint32) bool {
	return addr >= m.Start && uint64(addr) < uint64(m.Start)+uint64(m.Length)
}

// RAM is a byte-addressable memory block. Words are little-endian, as on
// the ARM cores this simulates.
type RAM struct {
	Name string
	Base uint32
	Data []byte
}

func (r *RAM) contains(addr uint32, n uint32) bool {
	return addr >= r.Base && uint64(addr)+uint64(n) <= uint64(r.Base)+uint64(len(r.Data))
}

// Bus is a simulated physical address space. Unmapped reads return zero
// and unmapped writes are dropped; both are counted in Faults.
type Bus struct {
	rams    []*RAM
	devices []Mapping

	// Faults counts accesses that hit nothing
	Faults int
}

// NewBus returns an empty address space.
func NewBus() *Bus {
	return &Bus{}
}

// MapRAM maps a memory block of len(data) bytes at base.
func (b *Bus) MapRAM(name string, base uint32, data []byte) *RAM {
	r := &RAM{Name: name, Base: base, Data: data}
	b.rams = append(b.rams, r)
	return r
}

// MapDevice maps a peripheral over [start, start+length).
func (b *Bus) MapDevice(start, length uint32, dev Device) {
	b.devices = append(b.devices, Mapping{Start: start, Length: length, Device: dev})
}

// RAM returns the block with the given name.
func (b *Bus) RAM(name string) (*RAM, bool) {
	for _, r := range b.rams {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

func (b *Bus) device(addr uint32) (Mapping, bool) {
	for _, m := range b.devices {
		if m.contains(addr) {
			return m, true
		}
	}
	return Mapping{}, false
}

func (b *Bus) ram(addr uint32, n uint32) (*RAM, bool) {
	for _, r := range b.rams {
		if r.contains(addr, n) {
			return r, true
		}
	}
	return nil, false
}

// Mapped reports whether a word access at addr hits RAM or a device.
func (b *Bus) Mapped(addr uint32) bool {
	if _, ok := b.device(addr); ok {
		return true
	}
	_, ok := b.ram(addr, 4)
	return ok
}

// Read32 implements hal.Bus.
func (b *Bus) Read32(addr uint32) uint32 {
	if m, ok := b.device(addr); ok {
		return m.Device.Read32(addr - m.Start)
	}
	if r, ok := b.ram(addr, 4); ok {
		off := addr - r.Base
		return binary.LittleEndian.Uint32(r.Data[off : off+4])
	}
	b.Faults++
	return 0
}

// Write32 implements hal.Bus.
func (b *Bus) Write32(addr uint32, val uint32) {
	if m, ok := b.device(addr); ok {
		m.Device.Write32(addr-m.Start, val)
		return
	}
	if r, ok := b.ram(addr, 4); ok {
		off := addr - r.Base
		binary.LittleEndian.PutUint32(r.Data[off:off+4], val)
		return
	}
	b.Faults++
}

// Read8 implements hal.Bus.
func (b *Bus) Read8(addr uint32) uint8 {
	if m, ok := b.device(addr); ok {
		aligned := addr &^ 3
		return uint8(m.Device.Read32(aligned-m.Start) >> (8 * (addr & 3)))
	}
	if r, ok := b.ram(addr, 1); ok {
		return r.Data[addr-r.Base]
	}
	b.Faults++
	return 0
}

// Load copies data into RAM at addr.
func (b *Bus) Load(addr uint32, data []byte) error {
	r, ok := b.ram(addr, uint32(len(data)))
	if !ok {
		return fmt.Errorf("no RAM covers 0x%08x..0x%08x", addr, uint64(addr)+uint64(len(data)))
	}
	copy(r.Data[addr-r.Base:], data)
	return nil
}

// ReadBytes copies n bytes starting at addr out of RAM. Unmapped bytes
// read as zero.
func (b *Bus) ReadBytes(addr, n uint32) []byte {
	if r, ok := b.ram(addr, n); ok {
		off := addr - r.Base
		out := make([]byte, n)
		copy(out, r.Data[off:off+n])
		return out
	}
	out := make([]byte, n)
	for i := uint32(0); i < n; i++ {
		out[i] = b.Read8(addr + i)
	}
	return out
}

// Register is a read-only 32-bit register, such as a chip-id register.
type Register uint32

// Read32 implements Device.
func (r Register) Read32(offs uint32) uint32 {
	if offs != 0 {
		return 0
	}
	return uint32(r)
}

// Write32 implements Device. Writes are ignored.
func (r Register) Write32(offs uint32, val uint32) {}
