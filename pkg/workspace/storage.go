package workspace

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/aretw0/memovault/pkg/core"
)

// StorageInfo is a storage usage estimate.
type StorageInfo struct {
	Used    uint64  `json:"used"`
	Total   uint64  `json:"total"`
	Percent float64 `json:"percent"`
	Known   bool    `json:"known"`
}

// String renders the estimate for humans.
func (s StorageInfo) String() string {
	if !s.Known {
		return "storage usage unknown"
	}
	return fmt.Sprintf("%s of %s used (%.1f%%)", humanize.IBytes(s.Used), humanize.IBytes(s.Total), s.Percent)
}

// StorageInfo estimates storage usage and warns above StorageWarnThreshold.
func (w *Workspace) StorageInfo(ctx context.Context) (StorageInfo, error) {
	if w.quota == nil {
		return StorageInfo{}, nil
	}
	q, err := w.quota.Estimate(ctx)
	if err != nil {
		return StorageInfo{}, fmt.Errorf("estimate storage: %w", err)
	}
	if q.Total == 0 {
		return StorageInfo{Used: q.Used}, nil
	}

	info := StorageInfo{Used: q.Used, Total: q.Total, Percent: q.Ratio() * 100, Known: true}
	if q.Ratio() > StorageWarnThreshold {
		w.notifier.Notify(ctx, fmt.Sprintf("Storage is almost full: %s", info), core.SeverityWarning)
	}
	return info, nil
}
