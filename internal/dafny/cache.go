package dafny

// cache.go - on-disk gutter snapshots keyed by document content.

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sanjit/dafny-mcp/internal/gutter"
)

// Bump when cachedGutter changes shape.
const gutterCacheSchema uint16 = 1

// GutterCache stores the last gutter computed for a given document content.
// Safe for concurrent use. A nil cache stores nothing.
type GutterCache struct {
	mu  sync.RWMutex
	dir string
}

type cachedGutter struct {
	Schema        uint16
	URI           string
	PerLineStatus []uint16
	Settled       bool
}

// OpenGutterCache uses dir, creating it if needed.
func OpenGutterCache(dir string) (*GutterCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create gutter cache: %w", err)
	}
	return &GutterCache{dir: dir}, nil
}

func (c *GutterCache) pathFor(content string) string {
	sum := sha256.Sum256([]byte(content))
	return filepath.Join(c.dir, "gutters", hex.EncodeToString(sum[:])+".mp")
}

// Put records status as the gutter of content.
func (c *GutterCache) Put(content string, status *GutterStatus) error {
	if c == nil {
		return nil
	}
	payload := cachedGutter{
		Schema:        gutterCacheSchema,
		URI:           status.URI,
		PerLineStatus: make([]uint16, len(status.PerLineStatus)),
		Settled:       status.Settled,
	}
	for i, code := range status.PerLineStatus {
		v, err := safecast.Conv[uint16](code)
		if err != nil {
			return fmt.Errorf("line %d: %w", i, err)
		}
		payload.PerLineStatus[i] = v
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(content)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	if err := msgpack.NewEncoder(f).Encode(&payload); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("encode gutter: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get returns the cached per-line codes for content. Entries written by
// another schema, or holding codes that no longer decode, are misses.
func (c *GutterCache) Get(content string) ([]int, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(content))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var payload cachedGutter
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false, fmt.Errorf("decode gutter: %w", err)
	}
	if payload.Schema != gutterCacheSchema {
		return nil, false, nil
	}
	codes := make([]int, len(payload.PerLineStatus))
	for i, v := range payload.PerLineStatus {
		codes[i] = int(v)
		if _, err := gutter.Decode(codes[i]); err != nil {
			return nil, false, nil
		}
	}
	return codes, true, nil
}
