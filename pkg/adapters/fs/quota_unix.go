//go:build unix

package fs

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/aretw0/memovault/pkg/core"
)

// Estimate implements core.QuotaEstimator. Used is the size of every
// record; Total is the configured quota, or Used plus the space still
// available to the vault's filesystem.
func (s *Store) Estimate(ctx context.Context) (core.Quota, error) {
	used := s.cache.Bytes()
	if s.config.Quota > 0 {
		return core.Quota{Used: used, Total: s.config.Quota}, nil
	}

	var st unix.Statfs_t
	if err := unix.Statfs(s.Path, &st); err != nil {
		return core.Quota{Used: used}, fmt.Errorf("statfs %s: %w", s.Path, err)
	}
	avail := uint64(st.Bavail) * uint64(st.Bsize)
	return core.Quota{Used: used, Total: used + avail}, nil
}
