package ppu

// BreakpointCondition gates a breakpoint on guest state, generalizing
// spec.md's plain address breakpoints the way the teacher's
// DebuggableCPU.SetConditionalBreakpoint does (§5 "Supplemented
// Features"). It returns true when the breakpoint should actually pause
// the thread.
type BreakpointCondition func(th *Thread) bool

// SetBreakpoint installs the breakpoint handler at addr, recording the
// entry it shadows so ClearBreakpoint can restore it exactly (§4.1,
// Testable Property 3). Setting a breakpoint that is already set keeps
// the originally shadowed entry (it is not overwritten with
// "breakpoint") and only replaces the breakpoint's condition, so a
// conditional breakpoint becomes unconditional.
func (rt *Runtime) SetBreakpoint(addr uint32) {
	rt.setBreakpoint(addr, nil)
}

// SetConditionalBreakpoint installs a breakpoint that only pauses the
// thread when cond returns true; otherwise dispatch forwards silently
// through the shadowed entry.
func (rt *Runtime) SetConditionalBreakpoint(addr uint32, cond BreakpointCondition) {
	rt.setBreakpoint(addr, cond)
}

func (rt *Runtime) setBreakpoint(addr uint32, cond BreakpointCondition) {
	rt.bpMu.Lock()
	defer rt.bpMu.Unlock()
	if existing, ok := rt.breakpoints[addr]; ok {
		existing.cond = cond
		return
	}
	rt.breakpoints[addr] = &breakpoint{shadow: rt.Cache.Get(addr), cond: cond}
	rt.Cache.InstallFunctionAt(addr, handlerBreakpoint)
}

// ClearBreakpoint removes a breakpoint at addr, restoring the
// pre-set cache entry exactly (§4.1, Testable Property 3). Reports
// whether a breakpoint was present.
func (rt *Runtime) ClearBreakpoint(addr uint32) bool {
	rt.bpMu.Lock()
	bp, ok := rt.breakpoints[addr]
	if !ok {
		rt.bpMu.Unlock()
		return false
	}
	delete(rt.breakpoints, addr)
	rt.bpMu.Unlock()
	rt.Cache.InstallFunctionAt(addr, bp.shadow)
	return true
}

// ClearAllBreakpoints clears every installed breakpoint.
func (rt *Runtime) ClearAllBreakpoints() {
	rt.bpMu.Lock()
	addrs := make([]uint32, 0, len(rt.breakpoints))
	for a := range rt.breakpoints {
		addrs = append(addrs, a)
	}
	rt.bpMu.Unlock()
	for _, a := range addrs {
		rt.ClearBreakpoint(a)
	}
}

// ListBreakpoints returns the addresses with an active breakpoint, for
// operator inspection (grounded on the teacher's cmdBreakpointList).
func (rt *Runtime) ListBreakpoints() []uint32 {
	rt.bpMu.Lock()
	defer rt.bpMu.Unlock()
	out := make([]uint32, 0, len(rt.breakpoints))
	for a := range rt.breakpoints {
		out = append(out, a)
	}
	return out
}

// HasBreakpoint reports whether addr currently carries a breakpoint.
func (rt *Runtime) HasBreakpoint(addr uint32) bool {
	rt.bpMu.Lock()
	defer rt.bpMu.Unlock()
	_, ok := rt.breakpoints[addr]
	return ok
}

func (rt *Runtime) breakpointAt(addr uint32) *breakpoint {
	rt.bpMu.Lock()
	defer rt.bpMu.Unlock()
	return rt.breakpoints[addr]
}

// Resume clears the pause flag on a paused thread, letting the
// breakpoint handler's wait loop return control to the shadowed entry.
func (rt *Runtime) Resume(th *Thread) {
	th.state.Clear(StatePause)
}
