package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// staleLockAge is how old a lock file must be before it is considered
// abandoned by a crashed process.
const staleLockAge = 30 * time.Second

// lock acquires the file-based write lock of the vault. It retries until
// the lock is free, ctx is done or the configured timeout expires.
func (s *Store) lock(ctx context.Context) (func(), error) {
	path := filepath.Join(s.Path, s.config.SystemDir, "lock")
	deadline := time.Now().Add(s.config.LockTimeout)

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}

		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > staleLockAge {
			s.config.Logger.Warn("removing stale lock", "path", path, "age", time.Since(info.ModTime()))
			_ = os.Remove(path)
			continue
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("failed to acquire lock %s: timed out after %s", path, s.config.LockTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}
