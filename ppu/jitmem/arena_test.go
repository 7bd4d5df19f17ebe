package jitmem

import "testing"

func TestAllocateCodeSectionWithinArena(t *testing.T) {
	a, err := NewArena()
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	defer a.Teardown()

	base, err := a.AllocateCodeSection(4096)
	if err != nil {
		t.Fatalf("AllocateCodeSection: %v", err)
	}
	if !a.Contains(base, 4096) {
		t.Fatalf("allocated section %#x+%d not contained in arena", base, 4096)
	}

	data, err := a.AllocateDataSection(256)
	if err != nil {
		t.Fatalf("AllocateDataSection: %v", err)
	}
	if data < base+4096 {
		t.Fatalf("data section %#x overlaps code section ending at %#x", data, base+4096)
	}
}

func TestAllocateCodeSectionOutOfArena(t *testing.T) {
	a, err := NewArena()
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	defer a.Teardown()

	if _, err := a.AllocateCodeSection(ArenaSize); err == nil {
		t.Fatalf("expected out-of-arena error for an allocation spanning the whole reservation")
	}
}

func TestTrampolineDeduplicates(t *testing.T) {
	a, err := NewArena()
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	defer a.Teardown()

	const target = uint64(0x7fff00001000)
	first, err := a.Trampoline(target)
	if err != nil {
		t.Fatalf("Trampoline: %v", err)
	}
	second, err := a.Trampoline(target)
	if err != nil {
		t.Fatalf("Trampoline (second call): %v", err)
	}
	if first != second {
		t.Fatalf("Trampoline(%#x) returned %#x then %#x, want the same stub reused", target, first, second)
	}

	stub := a.Read(first, TrampolineSize)
	got := uint64(stub[0]) | uint64(stub[1])<<8 | uint64(stub[2])<<16 | uint64(stub[3])<<24 |
		uint64(stub[4])<<32 | uint64(stub[5])<<40 | uint64(stub[6])<<48 | uint64(stub[7])<<56
	if got != target {
		t.Fatalf("trampoline stub holds %#x, want %#x", got, target)
	}
}

func TestInReach(t *testing.T) {
	base := uintptr(0x100000000)
	if !InReach(base, uint64(base)+1<<20) {
		t.Fatalf("1 MiB offset should be in reach")
	}
	if InReach(base, uint64(base)+FarCallWindow+1) {
		t.Fatalf("offset beyond FarCallWindow should not be in reach")
	}
}
