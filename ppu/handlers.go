package ppu

import "fmt"

// Handler is the calling convention every cache entry ultimately
// resolves to (§4.1): given a thread and the raw 32-bit opcode word at
// its current PC, return true to advance PC by 4 and dispatch the next
// instruction, or false if PC was already updated or a suspension is
// pending.
type Handler func(th *Thread, opcode uint32) bool

// Fixed handler slots. These occupy the low end of the handler registry
// and are installed once at Runtime construction; every other index is
// either an interpreter-decoded opcode handler or a compiled-function
// entry point, both registered at runtime (§9 "Inheritance": a closed
// variant set modeled as a uniform function table with a discriminator
// — here the discriminator is simply which region of the registry an
// index falls in — rather than a type hierarchy).
const (
	handlerFallback = iota
	handlerBreakpoint
	handlerTOCCheck
	handlerInterpreterEntry
	firstDynamicHandler
)

// handlerRegistry is a grow-only table of handlers. Cache entries store
// an index into this table. Appends are rare (happen only while
// installing interpreter slots or publishing compiled code); every
// append, set, and read goes through the same lock, so a read briefly
// waits while an append is in progress.
type handlerRegistry struct {
	mu    chan struct{} // 1-buffered channel used as a cheap non-reentrant lock for readers and writers
	table []Handler
}

func newHandlerRegistry() *handlerRegistry {
	r := &handlerRegistry{mu: make(chan struct{}, 1), table: make([]Handler, firstDynamicHandler)}
	return r
}

func (r *handlerRegistry) lock()   { r.mu <- struct{}{} }
func (r *handlerRegistry) unlock() { <-r.mu }

func (r *handlerRegistry) set(idx int, h Handler) {
	r.lock()
	defer r.unlock()
	for idx >= len(r.table) {
		r.table = append(r.table, nil)
	}
	r.table[idx] = h
}

// append adds h and returns its index.
func (r *handlerRegistry) append(h Handler) uint32 {
	r.lock()
	defer r.unlock()
	idx := len(r.table)
	r.table = append(r.table, h)
	return uint32(idx)
}

func (r *handlerRegistry) at(idx uint32) Handler {
	r.lock()
	h := r.table[int(idx)]
	r.unlock()
	return h
}

// fallbackHandler is installed in every freshly committed cache page. In
// interpreter mode it retroactively installs the decoded handler for its
// own PC and re-dispatches (generalizing the teacher's
// ensureOpcodeTableReady lazy-population pattern from a single 256-entry
// table to the whole cache); with the recompiler enabled, reaching
// fallback at run time means a guest function was called without ever
// being registered, which is fatal (§4.2, §7).
func fallbackHandler(rt *Runtime) Handler {
	return func(th *Thread, _ uint32) bool {
		if rt.RecompilerEnabled {
			th.fail(fmt.Errorf("ppu: unregistered PPU function at %#x", th.CIA))
			return false
		}
		idx, handler := rt.decodeAt(th.CIA)
		rt.Cache.CompareAndSwap(th.CIA, rt.Cache.Fallback(), idx)
		opcode := rt.Mem.Load32(th.CIA)
		return handler(th, opcode)
	}
}

// breakpointHandler sets the pause flag, notifies the attached debugger,
// waits while paused, then forwards to the handler the breakpoint is
// shadowing (§4.1, §4.2, Testable Property 3 / Scenario S2).
func breakpointHandler(rt *Runtime) Handler {
	return func(th *Thread, opcode uint32) bool {
		bp := rt.breakpointAt(th.CIA)
		if bp != nil && bp.cond != nil && !bp.cond(th) {
			underlying := rt.Handlers.at(bp.shadow)
			return underlying(th, opcode)
		}

		th.state.Raise(StatePause)
		if rt.Debugger != nil {
			rt.Debugger.Notify(th.ID, th.CIA)
		}
		for th.state.Has(StatePause) && !th.state.Any(StateStop|StateExit) {
			th.waitResume()
		}

		if bp == nil {
			// No breakpoint was recorded for this PC when the handler
			// started (it was cleared after the cache entry was read);
			// re-dispatch through the now-restored entry.
			return rt.Dispatch(th, th.CIA)
		}
		underlying := rt.Handlers.at(bp.shadow)
		return underlying(th, opcode)
	}
}

// tocCheckHandler verifies r2 against the recorded TOC for the function
// containing the current PC, warns on mismatch, and always forwards to
// the interpreter (§4.2, §7).
func tocCheckHandler(rt *Runtime) Handler {
	return func(th *Thread, opcode uint32) bool {
		if want, ok := rt.tocFor(th.CIA); ok && want != th.GPR[2] {
			rt.Log.Warnf("ppu: TOC mismatch at %#x: r2=%#x want %#x", th.CIA, th.GPR[2], want)
			th.state.Raise(StatePause)
		}
		_, handler := rt.decodeAt(th.CIA)
		return handler(th, opcode)
	}
}

// interpreterEntryHandler forces interpretation of one instruction even
// when the recompiler is enabled, used to single-step into a compiled
// region without leaving the cache in a half-specialized state.
func interpreterEntryHandler(rt *Runtime) Handler {
	return func(th *Thread, opcode uint32) bool {
		return rt.InterpretInstruction(th, opcode)
	}
}
