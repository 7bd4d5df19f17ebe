package ppu

// SentinelReturnAddress is the placeholder link-register value fast_call
// installs before entering a guest function (§4.5 "lr = sentinel HLE
// stop address"). A guest `blr` that lands here is a function return,
// not a jump to real guest code.
const SentinelReturnAddress uint32 = 0xFFFFFFF0

// retSignal is the typed non-local return §9 recommends in place of an
// ad hoc sentinel exception: exec_task panics with retSignal{} the
// instant it observes CIA == SentinelReturnAddress, unwinding directly
// back to the nearest enclosing FastCall regardless of interpreter
// nesting depth.
type retSignal struct{}

// FastCall performs a guest function call (§4.5): it saves the caller's
// (cia, r2, lr, last-function), sets up the callee's entry/TOC/sentinel
// return address, and runs the thread until the callee returns to the
// sentinel or a fatal exception unwinds through it. The restore happens
// exactly once, whether FastCall returns normally or a fatal exception
// is propagating, via the deferred scope guard below.
func (rt *Runtime) FastCall(th *Thread, entry uint32, toc uint64) {
	savedCIA := th.CIA
	savedR2 := th.GPR[2]
	savedLR := th.LR
	savedLastFunction := th.LastFunction

	defer func() {
		r := recover()
		switch r.(type) {
		case nil:
			th.CIA, th.GPR[2], th.LR, th.LastFunction = savedCIA, savedR2, savedLR, savedLastFunction
		case retSignal:
			th.CIA, th.GPR[2], th.LR, th.LastFunction = savedCIA, savedR2, savedLR, savedLastFunction
			th.state.Clear(StateRet)
		default:
			// A real fatal exception: restore the call-frame bookkeeping
			// but keep LastFunction pointing at the innermost guest frame,
			// so crash reports retain it (§4.5), then keep unwinding.
			th.CIA, th.GPR[2], th.LR = savedCIA, savedR2, savedLR
			panic(r)
		}
	}()

	th.CIA = entry
	th.GPR[2] = toc
	th.LR = uint64(SentinelReturnAddress)
	rt.execTask(th)
}

// execTask drives th through the threaded interpreter until it returns
// to the sentinel, is asked to stop/exit, or a handler raises a fatal
// exception (§4.5 "enters exec_task()").
func (rt *Runtime) execTask(th *Thread) {
	RunThreaded(rt, th)
}
