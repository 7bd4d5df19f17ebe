package ppu

import "sync"

// Logger is the minimal leveled-logging surface the core needs; it is
// satisfied by internal/rtlog.Logger without this package importing it
// directly, following the accept-an-interface idiom the rest of the
// pack uses for its own collaborator boundaries.
type Logger interface {
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Debugger is the external debugger collaborator (§6): notified from
// the breakpoint handler when a thread pauses.
type Debugger interface {
	Notify(threadID int, addr uint32)
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

type breakpoint struct {
	shadow uint32 // handler index the breakpoint is shadowing
	cond   func(*Thread) bool
}

// Runtime is the explicit handle scoping the process-wide singletons
// spec.md §5/§9 describe (cache, handler registry, reservation clock,
// decoder, debugger hook) behind one value constructed once per
// process, rather than package-level globals (§9 "Global mutable
// state").
type Runtime struct {
	Cache             *Cache
	Handlers          *handlerRegistry
	Decoder           Decoder
	// FastDecoder decodes command-queue *opcode* commands (§4.4: "Decode
	// once under the fast interpreter and execute"), independent of
	// whichever decoder the cache was installed with. Defaults to
	// Decoder when nil.
	FastDecoder       Decoder
	Mem               Memory
	Debugger          Debugger
	Log               Logger
	HLE               HLERegistry
	Scheduler         Scheduler
	RecompilerEnabled bool
	ReservationClock  *ReservationClock

	tocMu    sync.RWMutex
	tocTable map[uint32]uint64

	decodedMu sync.Mutex
	decoded   map[uint32]uint32

	bpMu        sync.Mutex
	breakpoints map[uint32]*breakpoint

	threadsMu    sync.Mutex
	threads      map[int]*Thread
	nextThreadID int
}

// NewRuntime constructs a runtime over mem using decoder for
// interpreter-decoded slots. recompilerEnabled selects the §4.2
// fallback-handler policy (retroactive install vs. fatal).
func NewRuntime(mem Memory, decoder Decoder, recompilerEnabled bool, log Logger, debugger Debugger) *Runtime {
	if log == nil {
		log = nopLogger{}
	}
	rt := &Runtime{
		Decoder:           decoder,
		Mem:               mem,
		Debugger:          debugger,
		Log:               log,
		RecompilerEnabled: recompilerEnabled,
		ReservationClock:  NewReservationClock(),
		tocTable:          make(map[uint32]uint64),
		decoded:           make(map[uint32]uint32),
		breakpoints:       make(map[uint32]*breakpoint),
		threads:           make(map[int]*Thread),
		nextThreadID:      1,
	}
	rt.Handlers = newHandlerRegistry()
	rt.Handlers.set(handlerFallback, fallbackHandler(rt))
	rt.Handlers.set(handlerBreakpoint, breakpointHandler(rt))
	rt.Handlers.set(handlerTOCCheck, tocCheckHandler(rt))
	rt.Handlers.set(handlerInterpreterEntry, interpreterEntryHandler(rt))
	rt.Cache = NewCache(handlerFallback)
	return rt
}

// InstallInterpreterSlot computes the decoder-table entry for addr
// under the runtime's configured decoder and writes it only if the
// current entry is still the fallback handler (§4.1, Testable Property
// 2): applying it twice never clobbers a specialized entry (compiled,
// breakpoint, or TOC-check) and is idempotent on its own output.
func (rt *Runtime) InstallInterpreterSlot(addr uint32) {
	idx, _ := rt.decodeAt(addr)
	rt.Cache.CompareAndSwap(addr, rt.Cache.Fallback(), idx)
}

// InstallCompiled publishes a compiled function's entry point, used by
// the recompiler driver after JIT finalization (§4.3 "the driver
// enumerates every function block and writes its compiled entry into
// the executable cache").
func (rt *Runtime) InstallCompiled(addr uint32, h Handler) {
	idx := rt.Handlers.append(h)
	rt.Cache.InstallFunctionAt(addr, idx)
}

// RegisterTOC records the expected r2 value for a function entry point,
// consulted by the TOC-check handler (§4.2, §4.3 Module part toc field).
func (rt *Runtime) RegisterTOC(addr uint32, toc uint64) {
	rt.tocMu.Lock()
	defer rt.tocMu.Unlock()
	rt.tocTable[addr] = toc
}

func (rt *Runtime) tocFor(addr uint32) (uint64, bool) {
	rt.tocMu.RLock()
	defer rt.tocMu.RUnlock()
	v, ok := rt.tocTable[addr]
	return v, ok
}

// InstallTOCCheck installs the TOC-check handler at a function entry
// point, typically done alongside RegisterTOC when the recompiler
// publishes a function whose TOC it knows statically.
func (rt *Runtime) InstallTOCCheck(addr uint32) {
	rt.Cache.InstallFunctionAt(addr, handlerTOCCheck)
}

// Dispatch resolves and invokes the handler currently installed at
// addr, the single entry point every caller (interpreter, fast_call,
// single-step) goes through.
func (rt *Runtime) Dispatch(th *Thread, addr uint32) bool {
	idx := rt.Cache.Get(addr)
	h := rt.Handlers.at(idx)
	opcode := rt.Mem.Load32(addr)
	return h(th, opcode)
}

// InterpretInstruction decodes and executes exactly one instruction at
// th's current PC through the configured decoder, bypassing whatever
// the cache currently holds for that address. It is the mechanism
// behind both the interpreter-entry handler and a compiled function's
// redispatch into interpretation (see ppu/recompiler).
func (rt *Runtime) InterpretInstruction(th *Thread, opcode uint32) bool {
	_, handler := rt.decodeAt(th.CIA)
	return handler(th, opcode)
}

// registerThread assigns a stable integer identifier to th and records
// it in the central registry, the §9 "Cyclic references" design: the
// runtime owns an arena of threads, and threads hold only an ID back to
// the registry rather than a live pointer cycle.
func (rt *Runtime) registerThread(th *Thread) int {
	rt.threadsMu.Lock()
	defer rt.threadsMu.Unlock()
	id := rt.nextThreadID
	rt.nextThreadID++
	rt.threads[id] = th
	return id
}

func (rt *Runtime) unregisterThread(id int) {
	rt.threadsMu.Lock()
	defer rt.threadsMu.Unlock()
	delete(rt.threads, id)
}

// Thread looks up a registered guest thread by ID, used by the
// debugger front end to resolve breakpoint notifications.
func (rt *Runtime) Thread(id int) (*Thread, bool) {
	rt.threadsMu.Lock()
	defer rt.threadsMu.Unlock()
	th, ok := rt.threads[id]
	return th, ok
}
