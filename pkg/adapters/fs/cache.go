package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// indexEntry is what the store last wrote (or saw) for one record file.
type indexEntry struct {
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// index is the persistent cache state.
type index struct {
	Version int                    `json:"version"`
	Entries map[string]*indexEntry `json:"entries"` // Key is "collection/key"
	dirty   bool
	mu      sync.RWMutex
}

// cache tracks the size and mtime of every record file. It backs the
// usage estimate and lets the watcher tell the store's own writes apart
// from changes made by other processes.
type cache struct {
	Path  string // Path to <systemDir>/index.json
	index *index
}

func newCache(root, systemDir string) *cache {
	return &cache{
		Path: filepath.Join(root, systemDir, "index.json"),
		index: &index{
			Version: 1,
			Entries: make(map[string]*indexEntry),
		},
	}
}

// Load reads the cache from disk. A missing or corrupted file yields an
// empty index.
func (c *cache) Load() error {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	data, err := os.ReadFile(c.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	if err := json.Unmarshal(data, c.index); err != nil || c.index.Entries == nil {
		c.index.Entries = make(map[string]*indexEntry)
	}
	c.index.dirty = false
	return nil
}

// Save persists the cache if it changed since the last Save.
func (c *cache) Save() error {
	c.index.mu.RLock()
	if !c.index.dirty {
		c.index.mu.RUnlock()
		return nil
	}
	data, err := json.MarshalIndent(c.index, "", "  ")
	c.index.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
		return err
	}
	if err := writeFileAtomic(c.Path, data, 0644); err != nil {
		return err
	}

	c.index.mu.Lock()
	c.index.dirty = false
	c.index.mu.Unlock()
	return nil
}

// Get returns the entry of relPath.
func (c *cache) Get(relPath string) (*indexEntry, bool) {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	entry, ok := c.index.Entries[relPath]
	return entry, ok
}

// Matches reports whether info is exactly what the cache remembers for
// relPath.
func (c *cache) Matches(relPath string, info os.FileInfo) bool {
	entry, ok := c.Get(relPath)
	if !ok {
		return false
	}
	return entry.Size == info.Size() && entry.LastModified.Equal(info.ModTime())
}

// Set records the stat of relPath.
func (c *cache) Set(relPath string, info os.FileInfo) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()
	c.index.Entries[relPath] = &indexEntry{Size: info.Size(), LastModified: info.ModTime()}
	c.index.dirty = true
}

// Delete removes a single entry.
func (c *cache) Delete(relPath string) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()
	if _, ok := c.index.Entries[relPath]; ok {
		delete(c.index.Entries, relPath)
		c.index.dirty = true
	}
}

// PrunePrefix removes every entry under prefix ("collection/").
func (c *cache) PrunePrefix(prefix string) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()
	for path := range c.index.Entries {
		if strings.HasPrefix(path, prefix) {
			delete(c.index.Entries, path)
			c.index.dirty = true
		}
	}
}

// Bytes sums the sizes of every entry.
func (c *cache) Bytes() uint64 {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	var total uint64
	for _, e := range c.index.Entries {
		if e.Size > 0 {
			total += uint64(e.Size)
		}
	}
	return total
}

// Len returns the number of entries.
func (c *cache) Len() int {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	return len(c.index.Entries)
}
