package repository

import (
	"context"
	"errors"
	"time"
)

// ScheduleSave arms the autosave timer of a note. Re-arming replaces the
// pending timer, so at most one autosave per note is ever waiting.
func (r *Repository) ScheduleSave(id string) {
	r.timersMu.Lock()
	defer r.timersMu.Unlock()

	if t, ok := r.timers[id]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(r.delay, func() {
		r.timersMu.Lock()
		if r.timers[id] != t {
			r.timersMu.Unlock()
			return
		}
		delete(r.timers, id)
		r.timersMu.Unlock()

		// Failures are already logged and notified by Save.
		_ = r.Save(context.Background(), id)
	})
	r.timers[id] = t
}

// PendingSaves returns the ids with an armed autosave timer.
func (r *Repository) PendingSaves() []string {
	r.timersMu.Lock()
	defer r.timersMu.Unlock()
	out := make([]string, 0, len(r.timers))
	for id := range r.timers {
		out = append(out, id)
	}
	return out
}

// FlushSaves performs every pending autosave immediately.
func (r *Repository) FlushSaves(ctx context.Context) error {
	r.timersMu.Lock()
	ids := make([]string, 0, len(r.timers))
	for id, t := range r.timers {
		t.Stop()
		ids = append(ids, id)
	}
	r.timers = make(map[string]*time.Timer)
	r.timersMu.Unlock()

	var errs []error
	for _, id := range ids {
		if !r.Exists(id) {
			continue
		}
		if err := r.Save(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close flushes pending autosaves.
func (r *Repository) Close(ctx context.Context) error {
	return r.FlushSaves(ctx)
}

func (r *Repository) cancelSave(id string) {
	r.timersMu.Lock()
	defer r.timersMu.Unlock()
	if t, ok := r.timers[id]; ok {
		t.Stop()
		delete(r.timers, id)
	}
}

func (r *Repository) cancelAllSaves() {
	r.timersMu.Lock()
	defer r.timersMu.Unlock()
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}
