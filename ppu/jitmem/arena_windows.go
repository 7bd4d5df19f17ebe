//go:build windows

package jitmem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

type windowsArena struct {
	addr uintptr
	size uint32
}

func newPlatformArena(size uint32) (platformArena, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("ppu/jitmem: VirtualAlloc: %w", err)
	}
	return &windowsArena{addr: addr, size: size}, nil
}

func (w *windowsArena) base() uintptr { return w.addr }

func (w *windowsArena) protect(offset, size uint32, exec bool) error {
	prot := uint32(windows.PAGE_READWRITE)
	if exec {
		prot = windows.PAGE_EXECUTE_READWRITE
	}
	var old uint32
	return windows.VirtualProtect(w.addr+uintptr(offset), uintptr(size), prot, &old)
}

func (w *windowsArena) write(offset uint32, data []byte) {
	dst := unsafe.Slice((*byte)(unsafe.Pointer(w.addr+uintptr(offset))), len(data))
	copy(dst, data)
}

func (w *windowsArena) read(offset, size uint32) []byte {
	src := unsafe.Slice((*byte)(unsafe.Pointer(w.addr+uintptr(offset))), size)
	out := make([]byte, size)
	copy(out, src)
	return out
}

func (w *windowsArena) release() error {
	return windows.VirtualFree(w.addr, 0, windows.MEM_RELEASE)
}
