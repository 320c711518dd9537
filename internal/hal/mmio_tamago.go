//go:build tamago

package hal

import (
	"sync/atomic"
	"unsafe"
)

// MMIO is the on-target Bus: every access is a volatile load or store at
// the physical address.
type MMIO struct{}

// Read32 implements Bus.
func (MMIO) Read32(addr uint32) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(uintptr(addr))))
}

// Write32 implements Bus.
func (MMIO) Write32(addr uint32, val uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(uintptr(addr))), val)
}

// Read8 implements Bus.
func (MMIO) Read8(addr uint32) uint8 {
	return *(*uint8)(unsafe.Pointer(uintptr(addr)))
}
