package recompiler

import "github.com/cellcore/ppuexec/ppu/jitmem"

// IRFunction and IRModule are opaque values owned entirely by the
// external IR backend (§6 "IR translator... returns an IR function
// whose signature is (context*) -> void where the context type is
// supplied by the translator"). This package never inspects them; it
// only threads them between backend calls in the order §4.3 specifies.
type IRFunction any
type IRModule any

// SyscallResolver resolves a compile-time-constant syscall number to
// the address of its resolved symbol, used by the first peephole
// rewrite (§4.3 "Replace calls to the generic __syscall indirection
// with direct calls to the resolved syscall symbol whenever the
// syscall number is a compile-time constant").
type SyscallResolver func(syscallNumber int) (addr uint64, ok bool)

// IRBackend is the external IR translator, optimizer, and object
// emitter (§6). No LLVM Go bindings exist in this module's dependency
// tree; production wiring supplies a backend fronting the host LLVM
// libraries, and tests use a small deterministic stub (see
// driver_test.go).
type IRBackend interface {
	// Translate converts one function record to IR.
	Translate(fn Function) (IRFunction, error)

	// Optimize runs the fixed function-level pipeline (§4.3: CFG
	// simplification, mem2reg, early CSE, tail-call elimination,
	// reassociation, instruction combining, LICM, loop-instruction
	// simplification, GVN, DSE, SCCP, instruction combining and
	// simplification, aggressive DCE, CFG simplification).
	Optimize(fn IRFunction) (IRFunction, error)

	// ResolveConstantSyscalls applies peephole rewrite 1.
	ResolveConstantSyscalls(fn IRFunction, resolve SyscallResolver) (IRFunction, error)

	// DropDeadVolatileLoads applies peephole rewrite 2 ("Drop volatile
	// loads with no users").
	DropDeadVolatileLoads(fn IRFunction) (IRFunction, error)

	// DropEntryBlockVolatileStoresOfUndef applies peephole rewrite 3
	// ("Drop volatile stores of undef placed in a function's entry
	// block").
	DropEntryBlockVolatileStoresOfUndef(fn IRFunction) (IRFunction, error)

	// Finalize links a part's optimized functions into one module, runs
	// the module-level strip-dead-prototypes and dead-instruction-
	// elimination passes, and verifies the result. A verification
	// failure is reported as an error (§7 "IR verification failure").
	Finalize(fns []IRFunction) (IRModule, error)

	// Emit lowers a verified module to a host object file's bytes.
	Emit(mod IRModule) ([]byte, error)

	// ExternalSymbols reports the names fn still calls out to after the
	// peephole rewrites have run (§4.3 "Symbol linkage": the memory and
	// executable-cache base pointers, trap/error/check/trace callbacks,
	// lwarx/stwcx helpers, Altivec helpers, the timebase, and any
	// syscall not resolved by ResolveConstantSyscalls). The driver
	// resolves each one and links it before Finalize.
	ExternalSymbols(fn IRFunction) []string

	// LinkSymbol binds name within fn to hostAddr, which the driver has
	// already decided is either directly reachable or the address of a
	// trampoline stub (§4.3 "routed through a trampoline").
	LinkSymbol(fn IRFunction, name string, hostAddr uint64) (IRFunction, error)

	// ExtractPData returns obj's .pdata runtime-function records and
	// their relocations, if any, for the Windows unwind registrar (§4.6
	// "On each loaded object (Windows only)"). Backends that don't emit
	// unwind data return (nil, nil, nil).
	ExtractPData(obj []byte) ([]jitmem.RuntimeFunction, []jitmem.PDataRelocation, error)
}
