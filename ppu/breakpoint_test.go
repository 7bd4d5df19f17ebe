package ppu

import (
	"testing"
	"time"
)

func TestSetBreakpointShadowsAndRestoresEntry(t *testing.T) {
	rt, mem := newTestRuntime(64)
	storeWordBE(mem, 0x20, opIncrement)

	// Seed the cache with a specialized entry before the breakpoint is
	// set, so ClearBreakpoint's restore can be checked against a
	// non-fallback shadow value (Testable Property 3).
	rt.Cache.InstallFunctionAt(0x20, 77)

	rt.SetBreakpoint(0x20)
	if !rt.HasBreakpoint(0x20) {
		t.Fatalf("HasBreakpoint = false after SetBreakpoint")
	}
	if got := rt.Cache.Get(0x20); got != handlerBreakpoint {
		t.Fatalf("cache entry = %d, want handlerBreakpoint", got)
	}

	if !rt.ClearBreakpoint(0x20) {
		t.Fatalf("ClearBreakpoint reported no breakpoint present")
	}
	if got := rt.Cache.Get(0x20); got != 77 {
		t.Fatalf("cache entry after clear = %d, want restored 77", got)
	}
	if rt.HasBreakpoint(0x20) {
		t.Fatalf("HasBreakpoint still true after ClearBreakpoint")
	}
}

func TestSetBreakpointTwiceKeepsOriginalShadow(t *testing.T) {
	rt, _ := newTestRuntime(64)
	rt.Cache.InstallFunctionAt(0x30, 11)

	rt.SetBreakpoint(0x30)
	rt.SetBreakpoint(0x30) // must not re-shadow handlerBreakpoint itself

	rt.ClearBreakpoint(0x30)
	if got := rt.Cache.Get(0x30); got != 11 {
		t.Fatalf("cache entry after clear = %d, want original shadow 11", got)
	}
}

func TestBreakpointPausesAndResumeForwardsToShadow(t *testing.T) {
	rt, mem := newTestRuntime(128)
	storeWordBE(mem, 0x50, opIncrement)
	rt.Cache.InstallFunctionAt(0x50, firstDynamicHandler)
	rt.Handlers.set(firstDynamicHandler, func(th *Thread, _ uint32) bool {
		th.GPR[0]++
		return true
	})

	rt.SetBreakpoint(0x50)

	th := NewThread(rt, 0, 8)
	th.Resume()
	th.CIA = 0x50

	done := make(chan struct{})
	go func() {
		rt.Dispatch(th, 0x50)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !th.state.Has(StatePause) {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for the breakpoint handler to pause the thread")
		}
		time.Sleep(time.Millisecond)
	}
	if !rt.HasBreakpoint(0x50) {
		t.Fatalf("breakpoint missing while thread is paused")
	}

	rt.Resume(th)
	<-done

	if th.GPR[0] != 1 {
		t.Fatalf("GPR[0] = %d, want 1 (shadow handler ran once)", th.GPR[0])
	}
}

func TestConditionalBreakpointSkipsWhenConditionFalse(t *testing.T) {
	rt, _ := newTestRuntime(128)
	rt.Cache.InstallFunctionAt(0x60, firstDynamicHandler)
	rt.Handlers.set(firstDynamicHandler, func(th *Thread, _ uint32) bool {
		th.GPR[1]++
		return true
	})

	rt.SetConditionalBreakpoint(0x60, func(th *Thread) bool { return false })

	th := NewThread(rt, 0, 8)
	th.Resume()
	th.CIA = 0x60

	if cont := rt.Dispatch(th, 0x60); !cont {
		t.Fatalf("Dispatch returned false for a condition that should forward silently")
	}
	if th.state.Has(StatePause) {
		t.Fatalf("thread paused despite a false breakpoint condition")
	}
	if th.GPR[1] != 1 {
		t.Fatalf("GPR[1] = %d, want 1 (forwarded to shadow without pausing)", th.GPR[1])
	}
}
