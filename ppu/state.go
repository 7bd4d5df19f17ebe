// Package ppu implements the PPU execution core: the executable-address
// cache, the dispatch handlers installed into it, the threaded
// interpreter that drives guest threads through it, and the guest-thread
// command loop that feeds guest work in.
package ppu

import "sync/atomic"

// State is the cooperative-cancellation bitfield checked at every
// suspension point (§5). Multiple bits may be set at once.
type State uint32

const (
	// StateSuspend requests the thread park until resumed.
	StateSuspend State = 1 << iota
	// StateMemory is set from thread creation until Initialize has
	// allocated the thread's guest stack.
	StateMemory
	// StatePause is raised by the breakpoint and TOC-check handlers.
	StatePause
	// StateStop requests cooperative, non-exceptional termination.
	StateStop
	// StateExit requests termination because the process is tearing
	// down.
	StateExit
	// StateRet is the typed non-local return used to unwind fast_call
	// (§4.5, §9 "Coroutine/unwinding control flow").
	StateRet
)

// stateFlags wraps an atomic bitfield with the handful of operations the
// interpreter and command loop need. It intentionally does not expose
// general bit manipulation so every caller states its intent (Raise,
// Clear, Has) the way the teacher's CPU cores use named atomic.Bool
// fields (running, resetting, rdyLine) instead of a raw flags word.
type stateFlags struct {
	bits atomic.Uint32
}

func (s *stateFlags) Raise(bit State) {
	for {
		old := s.bits.Load()
		if s.bits.CompareAndSwap(old, old|uint32(bit)) {
			return
		}
	}
}

func (s *stateFlags) Clear(bit State) {
	for {
		old := s.bits.Load()
		if s.bits.CompareAndSwap(old, old&^uint32(bit)) {
			return
		}
	}
}

func (s *stateFlags) Has(bit State) bool {
	return s.bits.Load()&uint32(bit) != 0
}

// Any reports whether any bit in mask is set, used by the command loop,
// the command queue's blocking Pop, and the breakpoint handler.
func (s *stateFlags) Any(mask State) bool {
	return s.bits.Load()&uint32(mask) != 0
}

func (s *stateFlags) Load() State {
	return State(s.bits.Load())
}
