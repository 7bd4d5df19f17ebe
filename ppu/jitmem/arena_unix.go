//go:build unix

package jitmem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

type unixArena struct {
	data []byte
}

func newPlatformArena(size uint32) (platformArena, error) {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("ppu/jitmem: mmap: %w", err)
	}
	return &unixArena{data: data}, nil
}

func (u *unixArena) base() uintptr {
	return uintptr(unsafe.Pointer(&u.data[0]))
}

func (u *unixArena) protect(offset, size uint32, exec bool) error {
	prot := unix.PROT_READ | unix.PROT_WRITE
	if exec {
		prot |= unix.PROT_EXEC
	}
	return unix.Mprotect(u.data[offset:offset+size], prot)
}

func (u *unixArena) write(offset uint32, data []byte) {
	copy(u.data[offset:], data)
}

func (u *unixArena) read(offset, size uint32) []byte {
	out := make([]byte, size)
	copy(out, u.data[offset:offset+size])
	return out
}

func (u *unixArena) release() error {
	return unix.Munmap(u.data)
}
