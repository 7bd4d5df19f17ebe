package ppu

import (
	"testing"
	"time"
)

func TestCommandQueuePushPopFIFO(t *testing.T) {
	rt, _ := newTestRuntime(16)
	th := NewThread(rt, 0, 4)

	if err := th.Commands.Push(Command{Tag: CmdSetGPR, Words: []uint64{0, 1}}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := th.Commands.Push(Command{Tag: CmdSleep}); err != nil {
		t.Fatalf("Push: %v", err)
	}

	cmd, ok := th.Commands.Pop(th)
	if !ok || cmd.Tag != CmdSetGPR {
		t.Fatalf("first Pop = %v, %v, want CmdSetGPR", cmd, ok)
	}
	cmd, ok = th.Commands.Pop(th)
	if !ok || cmd.Tag != CmdSleep {
		t.Fatalf("second Pop = %v, %v, want CmdSleep", cmd, ok)
	}
}

func TestCommandQueuePushRejectsWhenFull(t *testing.T) {
	rt, _ := newTestRuntime(16)
	th := NewThread(rt, 0, 1)

	if err := th.Commands.Push(Command{Tag: CmdSleep}); err != nil {
		t.Fatalf("first Push: %v", err)
	}
	if err := th.Commands.Push(Command{Tag: CmdSleep}); err != ErrQueueFull {
		t.Fatalf("second Push = %v, want ErrQueueFull", err)
	}
}

func TestCommandQueuePopUnblocksOnStop(t *testing.T) {
	rt, _ := newTestRuntime(16)
	th := NewThread(rt, 0, 4)
	th.Resume()

	done := make(chan bool, 1)
	go func() {
		_, ok := th.Commands.Pop(th)
		done <- ok
	}()

	th.RequestStop()

	select {
	case ok := <-done:
		if ok {
			t.Fatalf("Pop returned ok=true after RequestStop with an empty queue")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Pop did not unblock after RequestStop")
	}
}

func TestCommandQueuePopDrainsThenReturnsOnEmptyStop(t *testing.T) {
	rt, _ := newTestRuntime(16)
	th := NewThread(rt, 0, 4)
	th.Resume()

	var seen []CmdTag
	th.Commands.Push(Command{Tag: CmdSleep})
	th.Commands.Push(Command{Tag: CmdHLECall})

	done := make(chan struct{})
	go func() {
		for {
			cmd, ok := th.Commands.Pop(th)
			if !ok {
				close(done)
				return
			}
			seen = append(seen, cmd.Tag)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	th.RequestStop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("command drain loop did not observe RequestStop")
	}

	if len(seen) != 2 || seen[0] != CmdSleep || seen[1] != CmdHLECall {
		t.Fatalf("seen = %v, want [sleep hle-call]", seen)
	}
}
