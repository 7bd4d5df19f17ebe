package ppu

import (
	"fmt"
	"runtime"
	"sync"
)

const (
	// MinStackSize is the minimum guest stack size (§3).
	MinStackSize = 16 * 1024
	// GuardPageSize is the inaccessible guard region placed below a
	// guest stack (§3).
	GuardPageSize = 4 * 1024
)

// StackAllocator is the guest-stack lifecycle collaborator: part of the
// virtual-memory surface (§6) specialized to stack regions. The default
// bumpStackAllocator below is a minimal in-process implementation
// sufficient for tests and for driving the core end to end; production
// wiring plugs in the emulator's real guest virtual-memory manager.
type StackAllocator interface {
	AllocStack(size uint32) (base uint32, guardBase uint32, err error)
	FreeStack(base uint32)
}

type bumpStackAllocator struct {
	mu   sync.Mutex
	next uint32
}

// NewBumpStackAllocator returns a StackAllocator that bump-allocates
// guest stacks downward from a high guest address, never reusing freed
// space — adequate for test harnesses and short-lived guest programs,
// not for long-running production use.
func NewBumpStackAllocator(top uint32) StackAllocator {
	return &bumpStackAllocator{next: top}
}

func (a *bumpStackAllocator) AllocStack(size uint32) (uint32, uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := size + GuardPageSize
	if total > a.next {
		return 0, 0, fmt.Errorf("ppu: stack allocator exhausted")
	}
	a.next -= total
	guardBase := a.next
	base := guardBase + GuardPageSize
	return base, guardBase, nil
}

func (a *bumpStackAllocator) FreeStack(uint32) {
	// Bump allocator never reclaims; see the doc comment above.
}

// Thread is the guest-thread context (§3 "Guest thread"): the register
// file, reservation state, stack, command queue, and bookkeeping a
// single PPU hardware thread owns. It holds only its own state and an
// integer ID back to the owning Runtime's thread registry, never a
// pointer cycle (§9 "Cyclic references").
type Thread struct {
	ID int

	GPR [32]uint64
	FPR [32]float64
	VR  [32][16]byte
	CR  uint32
	LR  uint64
	CTR uint64
	XER uint32
	FPSCR uint32

	CIA uint32 // current instruction address

	Reservation Reservation

	StackBase  uint32
	StackTop   uint32
	GuardBase  uint32

	Priority     int
	LastFunction string
	joined       chan struct{}

	state    stateFlags
	Commands *CommandQueue

	rt *Runtime
}

// NewThread creates a guest thread owned by rt, in the §3-specified
// initial lifecycle state: suspended, with its memory not yet backed by
// a stack.
func NewThread(rt *Runtime, priority int, queueCapacity int) *Thread {
	th := &Thread{
		Priority: priority,
		Commands: NewCommandQueue(queueCapacity),
		rt:       rt,
		joined:   make(chan struct{}),
	}
	th.state.Raise(StateSuspend | StateMemory)
	th.ID = rt.registerThread(th)
	return th
}

// Initialize allocates the guest thread's stack and clears the
// *memory* suspension flag, the §3 lifecycle step between creation and
// running the command loop. The thread remains suspended until Resume
// is called.
func (th *Thread) Initialize(alloc StackAllocator, stackSize uint32) error {
	if stackSize < MinStackSize {
		stackSize = MinStackSize
	}
	base, guard, err := alloc.AllocStack(stackSize)
	if err != nil {
		return err
	}
	th.StackBase = base
	th.StackTop = base + stackSize
	th.GuardBase = guard
	th.GPR[1] = uint64(th.StackTop) // r1 is the PPU stack pointer
	th.state.Clear(StateMemory)
	return nil
}

// Resume clears the suspend flag, letting the command loop (or the
// interpreter, if one is driving this thread directly) proceed.
func (th *Thread) Resume() { th.state.Clear(StateSuspend) }

// Suspend raises the suspend flag.
func (th *Thread) Suspend() { th.state.Raise(StateSuspend) }

// RequestStop raises the cooperative stop flag and wakes the command
// queue so a thread blocked waiting for work notices it (§5).
func (th *Thread) RequestStop() {
	th.state.Raise(StateStop)
	th.Commands.Broadcast()
}

// waitResume cooperatively spins while paused, mirroring the teacher's
// own reset-rendezvous spin loop in cpu_six5go2.go
// (`for cpu_6502.resetting.Load() { runtime.Gosched() }`), generalized
// from a reset handshake to the breakpoint pause handshake.
func (th *Thread) waitResume() { runtime.Gosched() }

// Teardown frees the thread's stack and closes its join channel,
// completing the §3 lifecycle ("destroys itself by freeing the stack on
// teardown").
func (th *Thread) Teardown(alloc StackAllocator) {
	if th.StackBase != 0 {
		alloc.FreeStack(th.GuardBase)
	}
	th.rt.unregisterThread(th.ID)
	close(th.joined)
}

// Join blocks until Teardown has run.
func (th *Thread) Join() { <-th.joined }

// pushStack reserves size bytes below the current stack pointer,
// raising the stack-overflow fatal exception if doing so would cross
// the guard page (§7 "Stack overflow").
func (th *Thread) pushStack(size uint32) uint32 {
	sp := uint32(th.GPR[1])
	if sp < th.GuardBase+GuardPageSize+size {
		th.failStack(size)
	}
	sp -= size
	th.GPR[1] = uint64(sp)
	return sp
}
