package ppu

import "testing"

func TestCacheFreshEntryReadsFallback(t *testing.T) {
	c := NewCache(handlerFallback)
	if !c.IsFallback(0x1000) {
		t.Fatalf("fresh entry at 0x1000 is not fallback")
	}
	if got := c.Get(0x1000); got != handlerFallback {
		t.Fatalf("Get = %d, want %d", got, handlerFallback)
	}
}

func TestCacheInstallRangeFillsFallback(t *testing.T) {
	c := NewCache(handlerFallback)
	if err := c.InstallRange(0x2000, 16); err != nil {
		t.Fatalf("InstallRange: %v", err)
	}
	for a := uint32(0x2000); a < 0x2010; a += 4 {
		if !c.IsFallback(a) {
			t.Fatalf("addr %#x not fallback after InstallRange", a)
		}
	}
	if got := c.Stats().Installed; got != 4 {
		t.Fatalf("Installed = %d, want 4", got)
	}
}

func TestCacheInstallRangeRejectsMisaligned(t *testing.T) {
	c := NewCache(handlerFallback)
	if err := c.InstallRange(0x2001, 16); err == nil {
		t.Fatalf("InstallRange accepted a misaligned address")
	}
	if err := c.InstallRange(0x2000, 0); err == nil {
		t.Fatalf("InstallRange accepted a zero-sized range")
	}
}

func TestCacheInstallFunctionAtOverwritesUnconditionally(t *testing.T) {
	c := NewCache(handlerFallback)
	c.InstallFunctionAt(0x3000, 42)
	if got := c.Get(0x3000); got != 42 {
		t.Fatalf("Get = %d, want 42", got)
	}
	c.InstallFunctionAt(0x3000, 7)
	if got := c.Get(0x3000); got != 7 {
		t.Fatalf("Get after second install = %d, want 7", got)
	}
}

func TestCacheCompareAndSwapOnlyClobbersMatchingOld(t *testing.T) {
	c := NewCache(handlerFallback)
	c.InstallFunctionAt(0x4000, 99)

	if c.CompareAndSwap(0x4000, handlerFallback, 5) {
		t.Fatalf("CompareAndSwap succeeded against a non-matching old value")
	}
	if got := c.Get(0x4000); got != 99 {
		t.Fatalf("Get = %d, want 99 (unchanged)", got)
	}

	if !c.CompareAndSwap(0x4000, 99, 5) {
		t.Fatalf("CompareAndSwap failed against the correct old value")
	}
	if got := c.Get(0x4000); got != 5 {
		t.Fatalf("Get = %d, want 5", got)
	}
}

func TestCacheSpansMultiplePages(t *testing.T) {
	c := NewCache(handlerFallback)
	low := uint32(0x10)
	high := low + (pageEntries * 4) // forces a different page
	c.InstallFunctionAt(low, 1)
	c.InstallFunctionAt(high, 2)

	if got := c.Get(low); got != 1 {
		t.Fatalf("Get(low) = %d, want 1", got)
	}
	if got := c.Get(high); got != 2 {
		t.Fatalf("Get(high) = %d, want 2", got)
	}
	if got := c.Stats().PagesResident; got != 2 {
		t.Fatalf("PagesResident = %d, want 2", got)
	}
}
