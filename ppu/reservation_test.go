package ppu

import "testing"

func TestStwcxSucceedsWhenReservationUntouched(t *testing.T) {
	rt, mem := newTestRuntime(64)
	mem.Store32(0x8, 0x11111111)

	th := NewThread(rt, 0, 8)
	got := rt.Lwarx(th, 0x8)
	if got != 0x11111111 {
		t.Fatalf("Lwarx = %#x, want %#x", got, 0x11111111)
	}

	if !rt.Stwcx(th, 0x8, 0x22222222) {
		t.Fatalf("Stwcx failed against an untouched reservation")
	}
	if got := mem.Load32(0x8); got != 0x22222222 {
		t.Fatalf("memory after Stwcx = %#x, want %#x", got, 0x22222222)
	}
	if th.Reservation.RAddr != 0 {
		t.Fatalf("reservation not cleared after a successful Stwcx")
	}
}

func TestStwcxFailsAfterAnotherThreadStores(t *testing.T) {
	rt, mem := newTestRuntime(64)
	mem.Store32(0xC, 0xAAAA0000)

	th1 := NewThread(rt, 0, 8)
	th2 := NewThread(rt, 0, 8)

	rt.Lwarx(th1, 0xC)
	rt.StoreWord(0xC, 0xBBBB0000) // a plain store from another thread ticks the clock

	if rt.Stwcx(th1, 0xC, 0xCCCC0000) {
		t.Fatalf("Stwcx succeeded despite an intervening store invalidating the reservation")
	}
	if got := mem.Load32(0xC); got != 0xBBBB0000 {
		t.Fatalf("memory = %#x, want unchanged %#x", got, 0xBBBB0000)
	}
	_ = th2
}

func TestStwcxFailsWithoutAMatchingLwarx(t *testing.T) {
	rt, _ := newTestRuntime(64)
	th := NewThread(rt, 0, 8)
	if rt.Stwcx(th, 0x10, 1) {
		t.Fatalf("Stwcx succeeded without a prior Lwarx on that address")
	}
}

func TestStwcxFailsForDifferentAddressThanLwarx(t *testing.T) {
	rt, mem := newTestRuntime(64)
	mem.Store32(0x14, 1)
	mem.Store32(0x18, 2)

	th := NewThread(rt, 0, 8)
	rt.Lwarx(th, 0x14)
	if rt.Stwcx(th, 0x18, 99) {
		t.Fatalf("Stwcx succeeded for an address that was never reserved")
	}
}
