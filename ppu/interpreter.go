package ppu

import "math/bits"

// blockSize is the width of the speculative inner pipeline (§4.2): guest
// code is overwhelmingly straight-line at four-instruction granularity,
// so the interpreter prefetches cache entries and instruction words four
// at a time instead of one.
const blockSize = 4

// RunThreaded runs th's main interpreter loop (§4.2) until a state flag
// requests termination or th returns to the fast_call sentinel, in which
// case it raises *ret* and unwinds back to the nearest FastCall via the
// retSignal non-local return (see call.go).
func RunThreaded(rt *Runtime, th *Thread) {
	for {
		if th.CIA == SentinelReturnAddress {
			th.state.Raise(StateRet)
			panic(retSignal{})
		}

		flags := th.state.Load()
		if flags&(StateStop|StateExit) != 0 {
			return
		}
		if flags != 0 {
			stepOne(rt, th)
			continue
		}
		if th.CIA&0xF != 0 {
			stepOne(rt, th)
			continue
		}
		runBlock(rt, th)
	}
}

// stepOne executes exactly one instruction through the cache (§4.2 steps
// 1-2), advancing PC only if the handler didn't already move it.
func stepOne(rt *Runtime, th *Thread) {
	if rt.Dispatch(th, th.CIA) {
		th.CIA += 4
	}
}

// runBlock executes the four-wide speculative pipeline (§4.2 step 3): it
// loads four cache entries and four byte-swapped instruction words up
// front, then dispatches them in order, prefetching the next block's
// cache entries between handler 1 and handler 2. It returns to the outer
// loop on any handler signaling a suspension-relevant result, a state
// flag appearing between iterations, or misalignment.
func runBlock(rt *Runtime, th *Thread) {
	base := th.CIA

	var entries [blockSize]uint32
	var words [blockSize]uint32
	for i := 0; i < blockSize; i++ {
		addr := base + uint32(i)*4
		entries[i] = rt.Cache.Get(addr)
		words[i] = loadInstructionLE(rt.Mem, addr)
	}

	for i := 0; i < blockSize; i++ {
		h := rt.Handlers.at(entries[i])
		cont := h(th, words[i])

		if i == 1 {
			prefetchBlock(rt, base+blockSize*4)
		}

		if !cont {
			return
		}
		th.CIA += 4
		if th.state.Load() != 0 {
			return
		}
	}
}

// prefetchBlock warms the cache's page table for the next block's
// addresses. It has no correctness effect; it exists purely to touch the
// same page-table structure runBlock's next iteration will need, which
// is the only thing "prefetch" can mean for a software dispatch table.
func prefetchBlock(rt *Runtime, base uint32) {
	for i := 0; i < blockSize; i++ {
		rt.Cache.Get(base + uint32(i)*4)
	}
}

// loadInstructionLE loads the big-endian guest instruction word at addr
// and byte-swaps it for handlers whose dispatch payload expects
// little-endian words (§4.2 "byte-swapping them into little-endian for
// dispatch payloads").
func loadInstructionLE(mem Memory, addr uint32) uint32 {
	return bits.ReverseBytes32(mem.Load32(addr))
}
