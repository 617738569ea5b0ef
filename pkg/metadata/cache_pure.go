//go:build purego

package metadata

import (
	"os"
	"sync"
)

// memCache is the CGo-free cache backend: a sync.Map keyed on path, size
// and mtime, with no persistence across process runs.
type memCache struct {
	entries sync.Map
}

type memCacheEntry struct {
	size  int64
	mtime int64
	m     *ImageMetadata
}

// NewCache returns the pure-Go cache backend. dbPath is accepted for
// signature parity with the native backend but ignored: this backend
// never touches disk.
func NewCache(dbPath string) (Cache, error) {
	return &memCache{}, nil
}

func (c *memCache) Get(path string, info os.FileInfo) (*ImageMetadata, bool) {
	size, mtime := cacheStamp(info)
	v, ok := c.entries.Load(path)
	if !ok {
		return nil, false
	}
	entry := v.(memCacheEntry)
	if entry.size != size || entry.mtime != mtime {
		return nil, false
	}
	return entry.m, true
}

func (c *memCache) Put(path string, info os.FileInfo, m *ImageMetadata) {
	size, mtime := cacheStamp(info)
	c.entries.Store(path, memCacheEntry{size: size, mtime: mtime, m: m})
}

func (c *memCache) Close() error {
	return nil
}
