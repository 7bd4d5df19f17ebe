package ppu

import (
	"errors"
	"testing"
	"time"
)

type fakeScheduler struct{ slept int }

func (s *fakeScheduler) Sleep(*Thread) { s.slept++ }

type fakeReinitializer struct {
	calls int
	err   error
}

func (r *fakeReinitializer) Reinitialize() error {
	r.calls++
	return r.err
}

func TestRunCommandLoopExecutesSetGPRAndSleep(t *testing.T) {
	rt, _ := newTestRuntime(16)
	sched := &fakeScheduler{}
	rt.Scheduler = sched

	th := NewThread(rt, 0, 4)
	th.Resume()

	th.Commands.Push(Command{Tag: CmdSetGPR, Words: []uint64{5, 0xBEEF}})
	th.Commands.Push(Command{Tag: CmdSleep})

	done := make(chan struct{})
	go func() {
		RunCommandLoop(rt, th, nil)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for sched.slept == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for the queued commands to run")
		}
		time.Sleep(time.Millisecond)
	}
	th.RequestStop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("RunCommandLoop did not return after RequestStop")
	}

	if th.GPR[5] != 0xBEEF {
		t.Fatalf("GPR[5] = %#x, want 0xBEEF", th.GPR[5])
	}
	if sched.slept != 1 {
		t.Fatalf("scheduler.slept = %d, want 1", sched.slept)
	}
}

func TestRunCommandLoopStopsImmediatelyWhenFlagAlreadySet(t *testing.T) {
	rt, _ := newTestRuntime(16)
	th := NewThread(rt, 0, 4)
	th.Resume()
	th.RequestStop()

	th.Commands.Push(Command{Tag: CmdSleep})
	RunCommandLoop(rt, th, nil)
	// The loop must observe the stop flag before popping, so the queued
	// command is left undrained.
	if th.Commands.Len() != 1 {
		t.Fatalf("queue len = %d, want 1 (command not drained after stop)", th.Commands.Len())
	}
}

func TestRunCommandLoopInvokesReinitializer(t *testing.T) {
	rt, _ := newTestRuntime(16)
	th := NewThread(rt, 0, 4)
	th.Resume()

	reinit := &fakeReinitializer{}
	th.Commands.Push(Command{Tag: CmdInitialize})

	done := make(chan struct{})
	go func() {
		RunCommandLoop(rt, th, reinit)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for reinit.calls == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for the initialize command to run")
		}
		time.Sleep(time.Millisecond)
	}
	th.RequestStop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("RunCommandLoop did not return after RequestStop")
	}

	if reinit.calls != 1 {
		t.Fatalf("Reinitialize calls = %d, want 1", reinit.calls)
	}
}

func TestRunCommandLoopLogsReinitializeFailure(t *testing.T) {
	rt, _ := newTestRuntime(16)
	th := NewThread(rt, 0, 4)
	th.Resume()

	reinit := &fakeReinitializer{err: errors.New("partition failed")}
	th.Commands.Push(Command{Tag: CmdInitialize})

	done := make(chan struct{})
	go func() {
		// Must not panic even though Reinitialize fails; the error is
		// logged and the loop continues toward its stop check.
		RunCommandLoop(rt, th, reinit)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for reinit.calls == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for the initialize command to run")
		}
		time.Sleep(time.Millisecond)
	}
	th.RequestStop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("RunCommandLoop did not return after RequestStop")
	}

	if reinit.calls != 1 {
		t.Fatalf("Reinitialize calls = %d, want 1", reinit.calls)
	}
}
