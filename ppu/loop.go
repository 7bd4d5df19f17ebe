package ppu

import "fmt"

// HLEHandler is one high-level-emulation function invoked by an
// hle-call command.
type HLEHandler func(th *Thread)

// HLERegistry is the HLE dispatch collaborator (§4.4 "Invoke the HLE
// handler at that index (external collaborator)").
type HLERegistry interface {
	Lookup(index int) (HLEHandler, bool)
}

// Scheduler is the lv2-scheduler collaborator the *sleep* command yields
// to (§4.4).
type Scheduler interface {
	Sleep(th *Thread)
}

// Reinitializer is invoked by the *initialize* command to trigger full
// module re-initialization (partition + compile), an external
// collaborator boundary onto the recompiler driver (§4.4).
type Reinitializer interface {
	Reinitialize() error
}

// RunCommandLoop drains th's command queue in FIFO order until a stop
// or exit state flag is observed with the queue empty (§4.4). The state
// bitfield is checked after every command (§5 "After every command in
// the command loop.").
func RunCommandLoop(rt *Runtime, th *Thread, reinit Reinitializer) {
	for {
		if th.state.Any(StateStop | StateExit) {
			return
		}
		cmd, ok := th.Commands.Pop(th)
		if !ok {
			return
		}
		rt.execCommand(th, cmd, reinit)
		if th.state.Any(StateStop | StateExit) {
			return
		}
	}
}

func (rt *Runtime) execCommand(th *Thread, cmd Command, reinit Reinitializer) {
	switch cmd.Tag {
	case CmdOpcode:
		opcode := uint32(cmd.Words[0])
		dec := rt.FastDecoder
		if dec == nil {
			dec = rt.Decoder
		}
		h := dec.DecodeWord(opcode)
		h(th, opcode)

	case CmdSetGPR:
		idx := int(cmd.Words[0])
		th.GPR[idx] = cmd.Words[1]

	case CmdSetArgs:
		count := int(cmd.Words[0])
		if count > 8 {
			count = 8
		}
		for i := 0; i < count; i++ {
			th.GPR[3+i] = cmd.Words[1+i]
		}

	case CmdLLECall:
		descAddr := uint32(cmd.Words[0])
		entry := rt.Mem.Load32(descAddr)
		toc := uint64(rt.Mem.Load32(descAddr + 4))
		rt.FastCall(th, entry, toc)

	case CmdHLECall:
		idx := int(cmd.Words[0])
		handler, ok := rt.HLE.Lookup(idx)
		if !ok {
			panic(&FatalError{Kind: FatalCommandCorruption, Addr: th.CIA,
				Message: fmt.Sprintf("unregistered hle-call index %d", idx)})
		}
		handler(th)

	case CmdInitialize:
		if reinit != nil {
			if err := reinit.Reinitialize(); err != nil {
				rt.Log.Errorf("ppu: module reinitialize failed: %v", err)
			}
		}

	case CmdSleep:
		if rt.Scheduler != nil {
			rt.Scheduler.Sleep(th)
		}

	default:
		panic(&FatalError{Kind: FatalCommandCorruption, Addr: th.CIA,
			Message: fmt.Sprintf("unknown command tag %v", cmd.Tag)})
	}
}
