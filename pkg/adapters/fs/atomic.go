package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// TempFilePrefix is the prefix of temporary files and staging
	// directories. Watchers and listings skip anything carrying it.
	TempFilePrefix = "memovault-tmp-"
)

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over filename.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)

	tmpFile, err := os.CreateTemp(dir, TempFilePrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name()) // no-op after a successful rename

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpFile.Name(), perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), filename); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", filename, err)
	}
	return nil
}

// swapDir replaces target with staged. The previous target is moved
// aside first and put back if the swap fails. target need not exist.
func swapDir(staged, target string) error {
	backup := staged + ".old"

	hadTarget := true
	if err := os.Rename(target, backup); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to move %s aside: %w", target, err)
		}
		hadTarget = false
	}

	if err := os.Rename(staged, target); err != nil {
		if hadTarget {
			_ = os.Rename(backup, target)
		}
		return fmt.Errorf("failed to swap in %s: %w", target, err)
	}

	if hadTarget {
		if err := os.RemoveAll(backup); err != nil {
			return fmt.Errorf("failed to remove previous %s: %w", target, err)
		}
	}
	return nil
}

func isTemp(name string) bool {
	return strings.HasPrefix(filepath.Base(name), TempFilePrefix)
}
