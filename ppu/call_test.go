package ppu

import "testing"

// opIncrement and opReturn are the two "instructions" the fake decoder
// below understands, just enough to drive FastCall and the threaded
// interpreter through a handful of blocks without a real PowerPC decode
// table.
const (
	opIncrement uint32 = 0x00000001
	opReturn    uint32 = 0xFFFFFFFF
)

type fakeDecoder struct{}

func (fakeDecoder) DecodeWord(opcode uint32) Handler {
	if opcode == opReturn {
		return func(th *Thread, _ uint32) bool {
			th.CIA = SentinelReturnAddress
			return false
		}
	}
	return func(th *Thread, _ uint32) bool {
		th.GPR[0]++
		return true
	}
}

func newTestRuntime(memSize uint32) (*Runtime, *FlatMemory) {
	mem := NewFlatMemory(memSize)
	rt := NewRuntime(mem, fakeDecoder{}, false, nil, nil)
	return rt, mem
}

func storeWordBE(mem *FlatMemory, addr uint32, word uint32) {
	mem.Store32(addr, word)
}

func TestFastCallRunsUntilSentinelReturn(t *testing.T) {
	rt, mem := newTestRuntime(256)
	// Three straight-line instructions followed by a return, all inside
	// one 16-byte block so runBlock's full four-wide pass is exercised.
	storeWordBE(mem, 0, opIncrement)
	storeWordBE(mem, 4, opIncrement)
	storeWordBE(mem, 8, opIncrement)
	storeWordBE(mem, 12, opReturn)

	th := NewThread(rt, 0, 8)
	if err := th.Initialize(NewBumpStackAllocator(1 << 20), MinStackSize); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	th.Resume()

	rt.FastCall(th, 0, 0x1234)

	if th.GPR[0] != 3 {
		t.Fatalf("GPR[0] = %d, want 3", th.GPR[0])
	}
	if th.CIA != 0 {
		t.Fatalf("CIA after FastCall = %#x, want restored to 0", th.CIA)
	}
	if th.state.Has(StateRet) {
		t.Fatalf("StateRet flag leaked past FastCall's scope guard")
	}
}

func TestFastCallSavesAndRestoresCallerContext(t *testing.T) {
	rt, mem := newTestRuntime(256)
	storeWordBE(mem, 0x40, opReturn)

	th := NewThread(rt, 0, 8)
	if err := th.Initialize(NewBumpStackAllocator(1 << 20), MinStackSize); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	th.Resume()
	th.CIA = 0xAAAA
	th.GPR[2] = 0xBEEF
	th.LR = 0xCAFE
	th.LastFunction = "caller"

	rt.FastCall(th, 0x40, 0x99)

	if th.CIA != 0xAAAA {
		t.Fatalf("CIA = %#x, want restored 0xAAAA", th.CIA)
	}
	if th.GPR[2] != 0xBEEF {
		t.Fatalf("GPR[2] = %#x, want restored 0xBEEF", th.GPR[2])
	}
	if th.LR != 0xCAFE {
		t.Fatalf("LR = %#x, want restored 0xCAFE", th.LR)
	}
	if th.LastFunction != "caller" {
		t.Fatalf("LastFunction = %q, want restored %q", th.LastFunction, "caller")
	}
}

func TestFastCallPropagatesFatalErrorAndKeepsLastFunction(t *testing.T) {
	rt, mem := newTestRuntime(256)
	_ = mem

	rt.Handlers.set(handlerFallback, func(th *Thread, _ uint32) bool {
		th.fail(errTrapForTest{})
		return false
	})

	th := NewThread(rt, 0, 8)
	th.Resume()
	th.LastFunction = "caller"

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("FastCall did not propagate the fatal error")
		}
		fe, ok := r.(*FatalError)
		if !ok {
			t.Fatalf("recovered %T, want *FatalError", r)
		}
		if fe.Kind != FatalGuestTrap {
			t.Fatalf("Kind = %v, want FatalGuestTrap", fe.Kind)
		}
		if th.LastFunction != "caller" {
			t.Fatalf("LastFunction = %q, want preserved innermost frame %q", th.LastFunction, "caller")
		}
	}()

	rt.FastCall(th, 0, 0)
}

type errTrapForTest struct{}

func (errTrapForTest) Error() string { return "trap" }
