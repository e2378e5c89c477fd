// Package fs implements core.Store on a directory tree.
//
// Layout:
//
//	<root>/<collection>/<key>.json    one record per file
//	<root>/<systemDir>/seq/<collection> last key handed out by NextKey
//	<root>/<systemDir>/index.json    size and mtime of every record
//	<root>/<systemDir>/lock           cross-process write lock
package fs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/memovault/pkg/core"
)

const (
	// DefaultSystemDir holds the store's own bookkeeping.
	DefaultSystemDir = ".memovault"

	recordExt = ".json"
)

// Config holds the configuration of the filesystem store.
type Config struct {
	Path         string
	MustExist    bool
	SystemDir    string
	Logger       *slog.Logger
	ErrorHandler func(error)
	// Quota caps the usage estimate. Zero derives the total from the free
	// space of the underlying filesystem.
	Quota uint64
	// LockTimeout bounds how long a write waits for another process.
	LockTimeout time.Duration
}

// Store is a directory-backed core.Store.
type Store struct {
	Path   string
	config Config
	cache  *cache

	// ioMu serializes writes within the process; the lock file serializes
	// them across processes.
	ioMu sync.Mutex

	mu            sync.RWMutex
	watcherActive bool
	lastEvent     *time.Time
	closed        bool
	done          chan struct{}
	workers       []*watchWorker
}

// New creates a filesystem store. Call Initialize before use.
func New(config Config) *Store {
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.LockTimeout <= 0 {
		config.LockTimeout = 10 * time.Second
	}
	return &Store{
		Path:   config.Path,
		config: config,
		cache:  newCache(config.Path, config.SystemDir),
		done:   make(chan struct{}),
	}
}

// Initialize creates the directory layout and loads the index.
func (s *Store) Initialize(ctx context.Context) error {
	if s.config.MustExist {
		info, err := os.Stat(s.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("vault path does not exist: %s", s.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", s.Path)
		}
	}
	if err := os.MkdirAll(filepath.Join(s.Path, s.config.SystemDir, "seq"), 0755); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}

	if err := s.cache.Load(); err != nil {
		return err
	}
	if s.cache.Len() == 0 {
		if err := s.rebuildIndex(); err != nil {
			return err
		}
	}
	s.config.Logger.Debug("fs store ready", "path", s.Path, "records", s.cache.Len())
	return nil
}

// Get implements core.Store.
func (s *Store) Get(ctx context.Context, collection, key string) ([]byte, error) {
	path, err := s.recordPath(collection, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s/%s: %w", collection, key, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", collection, key, err)
	}
	return data, nil
}

// Put implements core.Store.
func (s *Store) Put(ctx context.Context, collection, key string, value []byte) error {
	path, err := s.recordPath(collection, key)
	if err != nil {
		return err
	}
	return s.write(ctx, func() error {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", collection, err)
		}
		if err := writeFileAtomic(path, value, 0644); err != nil {
			return err
		}
		return s.remember(collection, key, path)
	})
}

// Delete implements core.Store.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	path, err := s.recordPath(collection, key)
	if err != nil {
		return err
	}
	return s.write(ctx, func() error {
		s.cache.Delete(relKey(collection, key))
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%s/%s: %w", collection, key, core.ErrNotFound)
			}
			return fmt.Errorf("failed to remove %s/%s: %w", collection, key, err)
		}
		return nil
	})
}

// List implements core.Store.
func (s *Store) List(ctx context.Context, collection string) ([]core.Record, error) {
	if err := validName(collection); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.Path, collection)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []core.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	out := make([]core.Record, 0, len(entries))
	for _, e := range entries {
		key, ok := recordKey(e)
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s/%s: %w", collection, key, err)
		}
		out = append(out, core.Record{Key: key, Value: data})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// NextKey implements core.Store. Keys are zero-padded so that they sort
// in issue order.
func (s *Store) NextKey(ctx context.Context, collection string) (string, error) {
	if err := validName(collection); err != nil {
		return "", err
	}
	var key string
	err := s.write(ctx, func() error {
		path := filepath.Join(s.Path, s.config.SystemDir, "seq", collection)
		var last uint64
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			last, err = strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
			if err != nil {
				return fmt.Errorf("corrupted sequence %s: %w", collection, err)
			}
		case !os.IsNotExist(err):
			return fmt.Errorf("failed to read sequence %s: %w", collection, err)
		}

		last++
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := writeFileAtomic(path, []byte(strconv.FormatUint(last, 10)), 0644); err != nil {
			return err
		}
		key = fmt.Sprintf("%012d", last)
		return nil
	})
	return key, err
}

// ReplaceAll implements core.Store. The new collection is written to a
// staging directory and swapped in with renames.
func (s *Store) ReplaceAll(ctx context.Context, collection string, records []core.Record) error {
	if err := validName(collection); err != nil {
		return err
	}
	for _, r := range records {
		if err := validName(r.Key); err != nil {
			return err
		}
	}

	return s.write(ctx, func() error {
		staged, err := os.MkdirTemp(s.Path, TempFilePrefix+collection+"-")
		if err != nil {
			return fmt.Errorf("failed to create staging directory: %w", err)
		}
		defer os.RemoveAll(staged) // no-op after a successful swap

		for _, r := range records {
			if err := writeFileAtomic(filepath.Join(staged, r.Key+recordExt), r.Value, 0644); err != nil {
				return err
			}
		}
		if err := os.Chmod(staged, 0755); err != nil {
			return err
		}

		target := filepath.Join(s.Path, collection)
		if err := swapDir(staged, target); err != nil {
			return err
		}

		s.cache.PrunePrefix(collection + "/")
		for _, r := range records {
			if err := s.remember(collection, r.Key, filepath.Join(target, r.Key+recordExt)); err != nil {
				return err
			}
		}
		return s.cache.Save()
	})
}

// Close stops the watchers and persists the index.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()
	return s.cache.Save()
}

// write runs fn holding both the in-process and the cross-process lock.
func (s *Store) write(ctx context.Context, fn func() error) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return fmt.Errorf("fs store is closed")
	}

	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (s *Store) remember(collection, key, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s/%s: %w", collection, key, err)
	}
	s.cache.Set(relKey(collection, key), info)
	return nil
}

func (s *Store) rebuildIndex() error {
	entries, err := os.ReadDir(s.Path)
	if err != nil {
		return fmt.Errorf("failed to scan vault: %w", err)
	}
	for _, dir := range entries {
		if !dir.IsDir() || dir.Name() == s.config.SystemDir || isTemp(dir.Name()) || strings.HasPrefix(dir.Name(), ".") {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.Path, dir.Name()))
		if err != nil {
			return err
		}
		for _, f := range files {
			key, ok := recordKey(f)
			if !ok {
				continue
			}
			if info, err := f.Info(); err == nil {
				s.cache.Set(relKey(dir.Name(), key), info)
			}
		}
	}
	return s.cache.Save()
}

func (s *Store) recordPath(collection, key string) (string, error) {
	if err := validName(collection); err != nil {
		return "", err
	}
	if err := validName(key); err != nil {
		return "", err
	}
	return filepath.Join(s.Path, collection, key+recordExt), nil
}

// validName accepts names usable as a single path element.
func validName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid name %q", name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("invalid name %q: contains a path separator", name)
	case strings.HasPrefix(name, "."), isTemp(name):
		return fmt.Errorf("invalid name %q: reserved prefix", name)
	}
	return nil
}

func recordKey(e os.DirEntry) (string, bool) {
	if e.IsDir() || isTemp(e.Name()) || !strings.HasSuffix(e.Name(), recordExt) {
		return "", false
	}
	return strings.TrimSuffix(e.Name(), recordExt), true
}

func relKey(collection, key string) string { return collection + "/" + key }

var (
	_ core.Store          = (*Store)(nil)
	_ core.Watchable      = (*Store)(nil)
	_ core.QuotaEstimator = (*Store)(nil)
)
