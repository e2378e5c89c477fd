//go:build !unix

package fs

import (
	"context"

	"github.com/aretw0/memovault/pkg/core"
)

// Estimate implements core.QuotaEstimator. Without statfs the total is
// only known when a quota is configured.
func (s *Store) Estimate(ctx context.Context) (core.Quota, error) {
	return core.Quota{Used: s.cache.Bytes(), Total: s.config.Quota}, nil
}
