package main

import (
	"fmt"

	"github.com/cellcore/ppuexec/ppu"
)

// stubDecoder stands in for the real PowerPC decode tables (§6
// "Instruction decoder tables"), which this module does not ship —
// they are a black-box collaborator supplied by the emulator. Every
// opcode traps, which is enough to exercise the dispatch path in
// `run` without a production decoder wired in.
type stubDecoder struct{}

func (stubDecoder) DecodeWord(opcode uint32) ppu.Handler {
	return func(th *ppu.Thread, _ uint32) bool {
		panic(&ppu.FatalError{
			Kind:    ppu.FatalGuestTrap,
			Addr:    th.CIA,
			Message: fmt.Sprintf("no decoder wired: opcode %#08x", opcode),
		})
	}
}
