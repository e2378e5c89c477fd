package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/memovault/pkg/adapters/fs"
)

// ErrNoVault is returned by FindRoot when no ancestor holds a vault.
var ErrNoVault = errors.New("no vault found")

// FindRoot returns the nearest directory, starting at startDir and walking
// towards the filesystem root, that holds a vault: a .memovault system
// directory or a memovault.yaml config file.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if isVault(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w above %s", ErrNoVault, startDir)
		}
		dir = parent
	}
}

// isVault matches the system dir only when it is a directory and the config
// only when it is a regular file.
func isVault(dir string) bool {
	if info, err := os.Stat(filepath.Join(dir, fs.DefaultSystemDir)); err == nil && info.IsDir() {
		return true
	}
	info, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil && info.Mode().IsRegular()
}
