// Package jitmem implements the JIT Memory Manager (§4.6): the Code
// Arena bump allocator, its trampoline pool for far symbols, and the
// Windows-only unwind-table registrar.
package jitmem

import (
	"encoding/binary"
	"fmt"
	"sync"
)

const (
	// ArenaSize is the fixed reservation for the Code Arena (§4.6,
	// Testable Property 8): large enough for a real title's compiled
	// code while every offset into the arena still fits in 32 bits. The
	// arena itself is mapped wherever the host OS places it.
	ArenaSize = 512 * 1024 * 1024

	// trampolinePoolSize reserves the top of the arena for far-call
	// trampolines, carved out of the same reservation rather than a
	// second mapping.
	trampolinePoolSize = 16 * 1024 * 1024

	// TrampolineSize is one far-call stub: the absolute target address
	// in its first eight bytes, padded to 16 bytes. Trampoline writes
	// only the target address.
	TrampolineSize = 16

	// FarCallWindow is the +/-2 GiB signed displacement a direct call
	// can reach; anything further is routed through a trampoline (§4.3
	// "Symbol linkage").
	FarCallWindow = 1 << 31
)

// Section records one committed region for the Windows unwind
// registrar and for operator inspection.
type Section struct {
	Base uint32
	Size uint32
	Exec bool
}

// platformArena is the OS-specific reservation and protection
// primitive, implemented by arena_unix.go (mmap/mprotect) and
// arena_windows.go (VirtualAlloc/VirtualProtect).
type platformArena interface {
	base() uintptr
	protect(offset, size uint32, exec bool) error
	write(offset uint32, data []byte)
	read(offset, size uint32) []byte
	release() error
}

// Arena is the JIT Memory Manager's Code Arena (§4.6): one reservation,
// one bump pointer, and a trampoline pool. It is one of the
// process-wide singletons §5/§9 describe, owned by whoever constructs
// it rather than a package-level global.
type Arena struct {
	mu   sync.Mutex
	mem  platformArena
	size uint32
	bump uint32

	sections []Section

	trampolineBase uint32
	nextTrampoline uint32
	trampolines    map[uint64]uint32
}

// NewArena reserves and backs a fresh Code Arena.
func NewArena() (*Arena, error) {
	mem, err := newPlatformArena(ArenaSize)
	if err != nil {
		return nil, fmt.Errorf("ppu/jitmem: reserve arena: %w", err)
	}
	return &Arena{
		mem:            mem,
		size:           ArenaSize,
		trampolineBase: ArenaSize - trampolinePoolSize,
		trampolines:    make(map[uint64]uint32),
	}, nil
}

// AllocateCodeSection bumps the arena pointer by size and commits the
// region write+execute, recording it for the Windows unwind registrar
// (§4.6 "records the section base for later unwind fixups").
func (a *Arena) AllocateCodeSection(size uint32) (uint32, error) {
	return a.allocate(size, true)
}

// AllocateDataSection bumps the arena pointer by size and commits the
// region read/write. Read-only sections are not separately protected:
// every data section stays read/write.
func (a *Arena) AllocateDataSection(size uint32) (uint32, error) {
	return a.allocate(size, false)
}

func (a *Arena) allocate(size uint32, exec bool) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	aligned := (size + 15) &^ 15
	if aligned == 0 {
		aligned = 16
	}
	if a.bump+aligned > a.trampolineBase {
		return 0, fmt.Errorf("ppu/jitmem: out of arena: need %d, have %d", aligned, a.trampolineBase-a.bump)
	}
	base := a.bump
	if err := a.mem.protect(base, aligned, exec); err != nil {
		return 0, err
	}
	a.bump += aligned
	a.sections = append(a.sections, Section{Base: base, Size: aligned, Exec: exec})
	return base, nil
}

// Write copies data into the arena at offset, used by the driver to
// place a compiled object's bytes after allocation.
func (a *Arena) Write(offset uint32, data []byte) { a.mem.write(offset, data) }

// Read returns a copy of size bytes at offset.
func (a *Arena) Read(offset, size uint32) []byte { return a.mem.read(offset, size) }

// Base returns the arena's host base address, against which cache
// entries and handler pointers are computed.
func (a *Arena) Base() uintptr { return a.mem.base() }

// Contains reports whether [offset, offset+size) lies within the
// arena, the precondition Testable Property 8 requires of every cache
// write derived from a compiled entry point.
func (a *Arena) Contains(offset, size uint32) bool {
	return offset <= a.size && size <= a.size-offset
}

// Trampoline returns the arena offset of a stub whose first eight
// bytes hold target, allocating and writing a new one the first time
// target is requested (§4.3 "routed through a trampoline").
func (a *Arena) Trampoline(target uint64) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if off, ok := a.trampolines[target]; ok {
		return off, nil
	}
	off := a.trampolineBase + a.nextTrampoline
	if off+TrampolineSize > a.size {
		return 0, fmt.Errorf("ppu/jitmem: trampoline pool exhausted")
	}
	a.nextTrampoline += TrampolineSize

	if err := a.mem.protect(off, TrampolineSize, true); err != nil {
		return 0, err
	}
	stub := make([]byte, TrampolineSize)
	binary.LittleEndian.PutUint64(stub, target)
	a.mem.write(off, stub)

	a.trampolines[target] = off
	return off, nil
}

// InReach reports whether target is within FarCallWindow of base, the
// direct-call test the driver performs before requesting a trampoline
// (§4.3).
func InReach(base uintptr, target uint64) bool {
	diff := int64(target) - int64(base)
	if diff < 0 {
		diff = -diff
	}
	return diff < FarCallWindow
}

// Sections returns a snapshot of committed sections, consumed by the
// Windows unwind registrar to walk every loaded object's .pdata.
func (a *Arena) Sections() []Section {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Section, len(a.sections))
	copy(out, a.sections)
	return out
}

// Teardown releases the arena's host reservation. The original design
// keeps the reservation until process exit (§4.6); here Teardown lets a
// graceful shutdown release it deterministically. NewArena does not
// register it anywhere; the caller calls it (cmd/ppuexec's run command
// registers it with github.com/tebeka/atexit).
func (a *Arena) Teardown() error { return a.mem.release() }
