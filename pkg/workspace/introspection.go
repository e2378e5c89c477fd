package workspace

import (
	"time"

	"github.com/aretw0/introspection"
)

// State exposes the workspace for observability.
type State struct {
	Notes            int        `json:"notes"`
	Images           int        `json:"images"`
	Files            int        `json:"files"`
	ActiveNote       string     `json:"active_note,omitempty"`
	PendingSaves     int        `json:"pending_saves"`
	UndoDepth        int        `json:"undo_depth"`
	RedoDepth        int        `json:"redo_depth"`
	KeepSnapshots    int        `json:"keep_snapshots"`
	AutoSnapshotsOn  bool       `json:"auto_snapshots"`
	AutoInterval     string     `json:"auto_interval,omitempty"`
	LastAutoSnapshot *time.Time `json:"last_auto_snapshot,omitempty"`
	LastRestore      *time.Time `json:"last_restore,omitempty"`
}

// State implements introspection.Introspectable.
func (w *Workspace) State() any {
	stats := w.repo.Stats()
	undo, redo := w.session.History().Len()

	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	st := State{
		Notes:            stats.Notes,
		Images:           stats.Images,
		Files:            stats.Files,
		ActiveNote:       w.session.ActiveID(),
		PendingSaves:     len(w.repo.PendingSaves()),
		UndoDepth:        undo,
		RedoDepth:        redo,
		KeepSnapshots:    w.versions.Keep(),
		AutoSnapshotsOn:  w.autoInterval > 0,
		LastAutoSnapshot: w.lastAuto,
		LastRestore:      w.lastRestore,
	}
	if w.autoInterval > 0 {
		st.AutoInterval = w.autoInterval.String()
	}
	return st
}

// ComponentType implements introspection.Component.
func (w *Workspace) ComponentType() string {
	return "workspace"
}

var _ introspection.Introspectable = (*Workspace)(nil)
var _ introspection.Component = (*Workspace)(nil)
