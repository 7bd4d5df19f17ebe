//go:build windows

package jitmem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modkernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procRtlAddFunctionTable    = modkernel32.NewProc("RtlAddFunctionTable")
	procRtlDeleteFunctionTable = modkernel32.NewProc("RtlDeleteFunctionTable")
)

// UnwindRegistrar relocates and registers a loaded object's .pdata
// records with the OS unwinder, and reverses every registration it
// made on Teardown (§4.6, Windows only).
type UnwindRegistrar struct {
	arena *Arena
	funcs [][]RuntimeFunction
}

func NewUnwindRegistrar(arena *Arena) *UnwindRegistrar {
	return &UnwindRegistrar{arena: arena}
}

// Register relocates every record in raw to be arena-relative and
// registers the result with RtlAddFunctionTable. Any relocation other
// than relocTypeAddr32NB is rejected rather than silently ignored.
func (r *UnwindRegistrar) Register(sectionBase uint32, raw []RuntimeFunction, relocs []PDataRelocation) error {
	for _, rel := range relocs {
		if rel.Type != relocTypeAddr32NB {
			return fmt.Errorf("ppu/jitmem: unsupported .pdata relocation type %d at offset %#x", rel.Type, rel.Offset)
		}
	}
	if len(raw) == 0 {
		return nil
	}

	table := make([]RuntimeFunction, len(raw))
	for i, f := range raw {
		table[i] = RuntimeFunction{
			BeginAddress: f.BeginAddress + sectionBase,
			EndAddress:   f.EndAddress + sectionBase,
			UnwindData:   f.UnwindData + sectionBase,
		}
	}

	ret, _, callErr := procRtlAddFunctionTable.Call(
		uintptr(unsafe.Pointer(&table[0])),
		uintptr(len(table)),
		r.arena.Base(),
	)
	if ret == 0 {
		return fmt.Errorf("ppu/jitmem: RtlAddFunctionTable: %w", callErr)
	}
	r.funcs = append(r.funcs, table)
	return nil
}

// Teardown reverses every registration this registrar made.
func (r *UnwindRegistrar) Teardown() {
	for _, table := range r.funcs {
		if len(table) == 0 {
			continue
		}
		procRtlDeleteFunctionTable.Call(uintptr(unsafe.Pointer(&table[0])))
	}
	r.funcs = nil
}
