package ppu

// Decoder is the instruction-decoder-table collaborator (§6): a dense
// array indexed by the decoded opcode field, returning a handler for
// one PPU instruction. Two variants are named in spec.md (precise,
// fast); a third, llvm, means "do not install an interpreter slot at
// all, the recompiler owns this address". The decoder is supplied by
// the emulator and treated as a black box here, exactly as spec.md §1
// requires ("per-instruction semantics of PowerPC... treated as a
// black-box decode table").
type Decoder interface {
	// DecodeWord returns the handler for a raw 32-bit opcode word,
	// independent of where that word came from (cache-driven dispatch
	// fetches it from guest memory at a PC; the command loop's opcode
	// command supplies it directly from the queue payload).
	DecodeWord(opcode uint32) Handler
}

// DecoderKind selects which Decoder variant the driver and runtime were
// configured with (§6 Environment: "decoder kind ∈ {precise, fast,
// llvm}").
type DecoderKind string

const (
	DecoderPrecise DecoderKind = "precise"
	DecoderFast    DecoderKind = "fast"
	DecoderLLVM    DecoderKind = "llvm"
)

// decodeAt resolves and registers the handler for the instruction word
// at addr, returning both the handler and the registry index it was (or
// already was) installed at, so callers can both invoke it immediately
// and publish it into the cache.
func (rt *Runtime) decodeAt(addr uint32) (uint32, Handler) {
	rt.decodedMu.Lock()
	defer rt.decodedMu.Unlock()
	if idx, ok := rt.decoded[addr]; ok {
		return idx, rt.Handlers.at(idx)
	}
	opcode := rt.Mem.Load32(addr)
	h := rt.Decoder.DecodeWord(opcode)
	idx := rt.Handlers.append(h)
	rt.decoded[addr] = idx
	return idx, h
}
