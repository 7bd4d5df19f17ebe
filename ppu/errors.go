package ppu

import "fmt"

// FatalKind enumerates the fatal-exception cases of §7. Recoverable
// conditions (linkage failure, TOC mismatch, IR verification failure,
// cache I/O error) are returned as plain errors elsewhere and never
// constructed here.
type FatalKind int

const (
	FatalGuestTrap FatalKind = iota
	FatalStackOverflow
	FatalCommandCorruption
	FatalOutOfArena
)

// FatalError is the single exception value that unwinds through
// fast_call (§4.5, §7). It is recovered at the fast_call boundary,
// which restores the caller's saved context before re-panicking (or
// absorbing it, for the ret sentinel — see call.go).
type FatalError struct {
	Kind    FatalKind
	Addr    uint32
	Message string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("ppu: fatal (%v) at %#x: %s", e.Kind, e.Addr, e.Message)
}

func (k FatalKind) String() string {
	switch k {
	case FatalGuestTrap:
		return "guest-trap"
	case FatalStackOverflow:
		return "stack-overflow"
	case FatalCommandCorruption:
		return "command-corruption"
	case FatalOutOfArena:
		return "out-of-arena"
	default:
		return "unknown"
	}
}

// fail raises a fatal guest exception at the thread's current PC and
// unwinds the call stack via panic, to be recovered by fast_call's
// scope guard (§4.5, §7).
func (th *Thread) fail(err error) {
	panic(&FatalError{Kind: FatalGuestTrap, Addr: th.CIA, Message: err.Error()})
}

// failStack raises the stack-overflow fatal exception naming SP,
// requested size, and stack base (§7).
func (th *Thread) failStack(requested uint32) {
	panic(&FatalError{
		Kind:    FatalStackOverflow,
		Addr:    th.CIA,
		Message: fmt.Sprintf("sp=%#x requested=%d base=%#x", th.GPR[1], requested, th.StackBase),
	})
}
