// Package recompiler implements the LLVM Recompiler Driver (§4.3): the
// module partitioner, object-cache-aware translation pipeline, symbol
// linkage, and executable-cache publication. The actual IR translation
// and optimization passes are an external collaborator (§6 "IR
// translator"); this package only orchestrates calls into it.
package recompiler

import "fmt"

// MaxPartSize bounds a module part's aggregate guest-instruction size
// (§4.3 "accumulate into a working part until adding the next function
// would exceed 1 MiB of guest-instruction bytes").
const MaxPartSize = 1 << 20

// Function is one guest function record as the partitioner and hasher
// see it: its address, size, the raw guest bytes of each basic block,
// and the raw bytes of the whole function body. Special (e.g.
// zero-size or stub) functions are skipped by translation but still
// counted toward a part's size.
type Function struct {
	Addr    uint32
	Size    uint32
	Blocks  [][]byte
	Body    []byte
	Special bool
}

// Module is a named, ordered function list, the partitioner's input.
type Module struct {
	Name      string
	Functions []Function
}

// Part is a size-bounded compilation unit: never empty, and either a
// single function or bounded by MaxPartSize (Testable Property 6).
type Part struct {
	Name      string
	Functions []Function
}

// Partition walks mod's function list in order and accumulates
// functions into parts, starting a new part whenever adding the next
// function would exceed MaxPartSize, but never leaving a part empty
// (§4.3 "Partitioning").
func Partition(mod Module) []Part {
	var parts []Part
	var current []Function
	var currentSize uint32

	flush := func() {
		if len(current) == 0 {
			return
		}
		parts = append(parts, Part{
			Name:      partName(mod.Name, current[0].Addr, len(parts) == 0),
			Functions: current,
		})
		current = nil
		currentSize = 0
	}

	for _, fn := range mod.Functions {
		if currentSize > 0 && currentSize+fn.Size > MaxPartSize {
			flush()
		}
		current = append(current, fn)
		currentSize += fn.Size
	}
	flush()
	return parts
}

// partName encodes the module name and, for a part that starts mid-
// module, a suffix naming the first function's address (§4.3 "Emit
// part names that encode the module name and — if the part starts
// mid-module — the first function address in hex", Scenario S3's
// "+080000" suffix).
func partName(moduleName string, firstAddr uint32, isFirstPart bool) string {
	if isFirstPart {
		return moduleName
	}
	return fmt.Sprintf("%s+%06x", moduleName, firstAddr&0xFFFFFF)
}

// FunctionName is the flattened per-basic-block IR function name (§4.3
// "flatten its basic blocks into individual IR functions named
// __0xADDR").
func FunctionName(addr uint32) string {
	return fmt.Sprintf("__0x%X", addr)
}
