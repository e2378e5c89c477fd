package workspace

import (
	"context"
	"time"

	"github.com/aretw0/lifecycle"
)

// DefaultAutoSnapshotInterval is the period of StartAutoSnapshots when none
// is given.
const DefaultAutoSnapshotInterval = 10 * time.Minute

// StartAutoSnapshots takes an automatic snapshot every interval until ctx
// is done. Skipped snapshots (recent or unchanged) are not an error.
func (w *Workspace) StartAutoSnapshots(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultAutoSnapshotInterval
	}
	w.stateMu.Lock()
	w.autoInterval = interval
	w.stateMu.Unlock()

	lifecycle.Go(ctx, func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer w.setAutoInterval(0)

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				w.autoSnapshot(ctx)
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		w.logger.Error("auto snapshot loop failed", "error", err)
	}))
}

func (w *Workspace) autoSnapshot(ctx context.Context) {
	_, created, err := w.CreateSnapshot(ctx, "")
	if err != nil {
		w.logger.Warn("auto snapshot failed", "error", err)
		return
	}
	if created {
		now := w.now()
		w.stateMu.Lock()
		w.lastAuto = &now
		w.stateMu.Unlock()
		w.logger.Debug("auto snapshot created")
	}
}

func (w *Workspace) setAutoInterval(d time.Duration) {
	w.stateMu.Lock()
	w.autoInterval = d
	w.stateMu.Unlock()
}
