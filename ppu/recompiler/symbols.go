package recompiler

import (
	"fmt"
	"sync"
)

// SymbolTable is the driver's name-to-address table for runtime
// helpers the compiled code calls back into (§4.3 "Symbol linkage"):
// the memory base pointer, the executable-cache base pointer,
// trap/error/check/trace callbacks, load-linked/store-conditional
// helpers, Altivec emulation helpers, the timebase, and per-index
// syscall entries.
type SymbolTable struct {
	mu      sync.RWMutex
	symbols map[string]uint64
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{symbols: make(map[string]uint64)}
}

// Register records addr under name, overwriting any previous binding.
func (st *SymbolTable) Register(name string, addr uint64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.symbols[name] = addr
}

// RegisterSyscall records the resolved host address for a PPU syscall
// index (§6 "Indices 0..1023"), under the name the syscall peephole
// rewrite looks up.
func (st *SymbolTable) RegisterSyscall(index int, addr uint64) {
	st.Register(syscallSymbolName(index), addr)
}

// Resolve looks up name, reporting whether it has been registered.
func (st *SymbolTable) Resolve(name string) (uint64, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	v, ok := st.symbols[name]
	return v, ok
}

func syscallSymbolName(index int) string {
	return fmt.Sprintf("syscall[%d]", index)
}

// resolveSyscall adapts SymbolTable to the SyscallResolver signature
// the IRBackend's peephole rewrite expects.
func (st *SymbolTable) resolveSyscall(index int) (uint64, bool) {
	return st.Resolve(syscallSymbolName(index))
}
