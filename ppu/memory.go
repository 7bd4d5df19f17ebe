package ppu

import (
	"encoding/binary"
	"sync"
)

// Memory is the virtual-memory collaborator (§6): guest-visible reads
// and writes over the flat PPU address space. Production wiring plugs
// in the emulator's real virtual-memory manager (reserve/commit/
// decommit/page-protect); this package only needs the byte-swapped
// load/store/compare-and-swap surface described in §6 and §4.4's
// reservation protocol.
type Memory interface {
	Load32(addr uint32) uint32
	Store32(addr uint32, v uint32)
	// CompareAndSwap32 performs the single atomic compare-exchange the
	// store-conditional path needs (§5 Ordering guarantees).
	CompareAndSwap32(addr uint32, old, new uint32) bool
}

// FlatMemory is a byte-swapped, mutex-guarded guest address space,
// grounded on the teacher's machine_bus.go (a contiguous byte slice
// behind a sync.RWMutex, accessed with binary.LittleEndian helpers).
// Guest PPU memory is big-endian; FlatMemory keeps it big-endian in the
// host slice and converts on every access so the rest of the core only
// ever sees host byte order once a word is loaded.
type FlatMemory struct {
	mu   sync.RWMutex
	bank []byte
}

// NewFlatMemory allocates size bytes of guest memory, zeroed.
func NewFlatMemory(size uint32) *FlatMemory {
	return &FlatMemory{bank: make([]byte, size)}
}

func (m *FlatMemory) Load32(addr uint32) uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return binary.BigEndian.Uint32(m.bank[addr : addr+4])
}

func (m *FlatMemory) Store32(addr uint32, v uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	binary.BigEndian.PutUint32(m.bank[addr:addr+4], v)
}

func (m *FlatMemory) CompareAndSwap32(addr uint32, old, new uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := binary.BigEndian.Uint32(m.bank[addr : addr+4])
	if cur != old {
		return false
	}
	binary.BigEndian.PutUint32(m.bank[addr:addr+4], new)
	return true
}

// LoadBytes and StoreBytes give the loader a way to populate guest
// memory without going through the word-at-a-time interface.
func (m *FlatMemory) LoadBytes(addr uint32, dst []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	copy(dst, m.bank[addr:])
}

func (m *FlatMemory) StoreBytes(addr uint32, src []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.bank[addr:], src)
}

func (m *FlatMemory) Size() uint32 { return uint32(len(m.bank)) }
