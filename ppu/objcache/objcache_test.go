package objcache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPartHasherDeterministic(t *testing.T) {
	build := func() [20]byte {
		h := NewPartHasher()
		h.AddFunction(0x80000000, 64, [][]byte{{1, 2, 3, 4}}, []byte{0xde, 0xad, 0xbe, 0xef})
		return h.Sum()
	}
	a, b := build(), build()
	if a != b {
		t.Fatalf("PartHasher produced different digests for identical input")
	}
}

func TestStoreThenLookup(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	h := NewPartHasher()
	h.AddFunction(0x80000000, 64, nil, []byte{1, 2, 3})
	digest := h.Sum()

	if _, ok, err := c.Lookup("mymodule", digest); err != nil || ok {
		t.Fatalf("Lookup before Store: ok=%v err=%v, want ok=false err=nil", ok, err)
	}

	obj := []byte("fake object bytes")
	if err := c.Store("mymodule", digest, obj); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, ok, err := c.Lookup("mymodule", digest)
	if err != nil || !ok {
		t.Fatalf("Lookup after Store: ok=%v err=%v, want ok=true err=nil", ok, err)
	}
	if string(got) != string(obj) {
		t.Fatalf("Lookup returned %q, want %q", got, obj)
	}

	if _, err := os.Stat(filepath.Join(dir, fileName("mymodule", digest))); err != nil {
		t.Fatalf("expected object file on disk: %v", err)
	}
}
