package main

import (
	"github.com/cellcore/ppuexec/ppu/jitmem"
	"github.com/cellcore/ppuexec/ppu/recompiler"
)

// cliBackend stands in for the real LLVM-backed IR translator (§6 "IR
// translator"), exactly as stubDecoder stands in for the real PowerPC
// decode tables: every pipeline stage is a passthrough that threads the
// function record along unchanged, and Emit encodes just enough bytes
// for the object cache and arena to round-trip. No LLVM Go bindings
// exist for this module to import, so the pipeline itself — partition,
// hash, peephole order, symbol linkage, arena install — runs for real
// while the actual code generation remains an external collaborator.
type cliBackend struct{}

func (cliBackend) Translate(fn recompiler.Function) (recompiler.IRFunction, error) { return fn, nil }

func (cliBackend) Optimize(fn recompiler.IRFunction) (recompiler.IRFunction, error) { return fn, nil }

func (cliBackend) ResolveConstantSyscalls(fn recompiler.IRFunction, _ recompiler.SyscallResolver) (recompiler.IRFunction, error) {
	return fn, nil
}

func (cliBackend) DropDeadVolatileLoads(fn recompiler.IRFunction) (recompiler.IRFunction, error) {
	return fn, nil
}

func (cliBackend) DropEntryBlockVolatileStoresOfUndef(fn recompiler.IRFunction) (recompiler.IRFunction, error) {
	return fn, nil
}

func (cliBackend) ExternalSymbols(recompiler.IRFunction) []string { return nil }

func (cliBackend) LinkSymbol(fn recompiler.IRFunction, _ string, _ uint64) (recompiler.IRFunction, error) {
	return fn, nil
}

func (cliBackend) Finalize(fns []recompiler.IRFunction) (recompiler.IRModule, error) {
	return fns, nil
}

func (cliBackend) Emit(mod recompiler.IRModule) ([]byte, error) {
	fns := mod.([]recompiler.IRFunction)
	out := make([]byte, 0, len(fns)*8)
	for _, f := range fns {
		fn := f.(recompiler.Function)
		out = append(out, byte(fn.Addr), byte(fn.Addr>>8), byte(fn.Addr>>16), byte(fn.Addr>>24),
			byte(fn.Size), byte(fn.Size>>8), byte(fn.Size>>16), byte(fn.Size>>24))
	}
	return out, nil
}

func (cliBackend) ExtractPData([]byte) ([]jitmem.RuntimeFunction, []jitmem.PDataRelocation, error) {
	return nil, nil, nil
}
