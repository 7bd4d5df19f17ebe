// Package objcache implements the content-addressed object cache
// (§4.7): one file per compiled module part, keyed by a SHA-1 digest
// over that part's functions, with no eviction.
package objcache

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"
)

const namePrefix = "b1"

// PartHasher accumulates the SHA-1 digest for one module part, over
// the concatenation of each function's (addr, size) header plus the
// raw guest bytes for every block and for the function body (§4.3
// "Hashing").
type PartHasher struct {
	h hash.Hash
}

// NewPartHasher starts a fresh digest.
func NewPartHasher() *PartHasher {
	return &PartHasher{h: sha1.New()}
}

// AddFunction folds one function's header, block bytes, and body bytes
// into the digest, in the order the partitioner emitted the part's
// function list.
func (p *PartHasher) AddFunction(addr, size uint32, blocks [][]byte, body []byte) {
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], addr)
	binary.LittleEndian.PutUint32(hdr[4:8], size)
	p.h.Write(hdr[:])
	for _, b := range blocks {
		p.h.Write(b)
	}
	p.h.Write(body)
}

// Sum finalizes the digest. Testable Property 7 requires this to be
// identical across runs given identical module input, which holds here
// because AddFunction's inputs are deterministic function-list order
// plus raw guest bytes.
func (p *PartHasher) Sum() [sha1.Size]byte {
	var out [sha1.Size]byte
	copy(out[:], p.h.Sum(nil))
	return out
}

// Cache is the on-disk object cache rooted at Root. Concurrent probes
// for the same key are collapsed with singleflight so a burst of
// threads racing to reinitialize the same module part only touches
// disk once.
type Cache struct {
	Root string
	g    singleflight.Group
}

// New returns a cache rooted at root. The directory is created lazily
// on first Store.
func New(root string) *Cache {
	return &Cache{Root: root}
}

// fileName formats the §6 persistent-state-layout name:
// b1<part-name>-<16-hex-digits>.obj. The digest is truncated to its
// first eight bytes to match the documented 16-hex-digit key length.
func fileName(partName string, digest [sha1.Size]byte) string {
	return fmt.Sprintf("%s%s-%s.obj", namePrefix, partName, hex.EncodeToString(digest[:8]))
}

func (c *Cache) path(partName string, digest [sha1.Size]byte) string {
	return filepath.Join(c.Root, fileName(partName, digest))
}

// Lookup returns the cached object bytes for a part if present on
// disk, skipping translation entirely per §4.7 ("If the part's object
// file is already present in the cache, skip translation entirely").
func (c *Cache) Lookup(partName string, digest [sha1.Size]byte) ([]byte, bool, error) {
	path := c.path(partName, digest)
	v, err, _ := c.g.Do(path, func() (any, error) {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("objcache: read %s: %w", path, err)
	}
	if v == nil {
		return nil, false, nil
	}
	return v.([]byte), true, nil
}

// Store writes a newly compiled object to disk at its content-address
// key (§4.7 "After the JIT emits a new object, write it to the same
// path"). There is no eviction: Store never removes an existing file.
func (c *Cache) Store(partName string, digest [sha1.Size]byte, obj []byte) error {
	if err := os.MkdirAll(c.Root, 0o755); err != nil {
		return fmt.Errorf("objcache: mkdir %s: %w", c.Root, err)
	}
	path := c.path(partName, digest)
	if err := os.WriteFile(path, obj, 0o644); err != nil {
		return fmt.Errorf("objcache: write %s: %w", path, err)
	}
	return nil
}

// IRLogPath returns the optional sibling .log path used when IR
// logging is enabled (§6 "Optional sibling .log file... containing
// textual IR").
func (c *Cache) IRLogPath(partName string, digest [sha1.Size]byte) string {
	return strings.TrimSuffix(c.path(partName, digest), ".obj") + ".log"
}
