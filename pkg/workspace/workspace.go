// Package workspace ties the note repository, the version store and the
// editing session together and implements the operations that span
// them: deleting notes, snapshot restore and import/export.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/memovault/pkg/core"
	"github.com/aretw0/memovault/pkg/editor"
	"github.com/aretw0/memovault/pkg/repository"
	"github.com/aretw0/memovault/pkg/transfer"
	"github.com/aretw0/memovault/pkg/versions"
)

// StorageWarnThreshold is the usage ratio above which StorageInfo warns.
const StorageWarnThreshold = 0.80

// Workspace is the top-level handle of an open vault.
type Workspace struct {
	repo      *repository.Repository
	versions  *versions.Store
	session   *editor.Session
	notifier  core.Notifier
	confirmer core.Confirmer
	quota     core.QuotaEstimator
	logger    *slog.Logger
	now       func() time.Time

	// mu serializes whole-collection operations.
	mu sync.Mutex

	stateMu      sync.Mutex
	autoInterval time.Duration
	lastAuto     *time.Time
	lastRestore  *time.Time
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithNotifier sets the notice sink.
func WithNotifier(n core.Notifier) Option {
	return func(w *Workspace) {
		if n != nil {
			w.notifier = n
		}
	}
}

// WithConfirmer sets who approves imports.
func WithConfirmer(c core.Confirmer) Option {
	return func(w *Workspace) {
		if c != nil {
			w.confirmer = c
		}
	}
}

// WithQuota sets the storage estimator.
func WithQuota(q core.QuotaEstimator) Option {
	return func(w *Workspace) { w.quota = q }
}

// WithClock sets the time source used for exports.
func WithClock(now func() time.Time) Option {
	return func(w *Workspace) { w.now = now }
}

// New creates a Workspace.
func New(repo *repository.Repository, store *versions.Store, session *editor.Session, opts ...Option) *Workspace {
	w := &Workspace{
		repo:      repo,
		versions:  store,
		session:   session,
		notifier:  core.NotifierFunc(func(context.Context, string, core.Severity) {}),
		confirmer: core.AlwaysConfirm,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Repository returns the note repository.
func (w *Workspace) Repository() *repository.Repository { return w.repo }

// Versions returns the version store.
func (w *Workspace) Versions() *versions.Store { return w.versions }

// Session returns the editing session.
func (w *Workspace) Session() *editor.Session { return w.session }

// DeleteNote takes a "before delete" snapshot and removes the note with
// its attachments.
func (w *Workspace) DeleteNote(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.repo.Exists(id) {
		return fmt.Errorf("%s: %w", id, core.ErrNoteNotFound)
	}
	if _, _, err := w.versions.Create(ctx, versions.BeforeDelete, w.repo.Snapshot()); err != nil {
		w.logger.Warn("snapshot before delete failed", "error", err)
	}
	if w.session.ActiveID() == id {
		w.session.Reset()
	}
	if err := w.repo.Delete(ctx, id); err != nil {
		return err
	}
	w.notifier.Notify(ctx, "Note deleted", core.SeveritySuccess)
	return nil
}

// CreateSnapshot records the current collection. created is false when an
// automatic snapshot was skipped.
func (w *Workspace) CreateSnapshot(ctx context.Context, description string) (core.Snapshot, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.createSnapshot(ctx, description)
}

func (w *Workspace) createSnapshot(ctx context.Context, description string) (core.Snapshot, bool, error) {
	snap, created, err := w.versions.Create(ctx, description, w.repo.Snapshot())
	if err != nil {
		w.notifier.Notify(ctx, "Snapshot failed: "+err.Error(), core.SeverityError)
		return core.Snapshot{}, false, err
	}
	if created && !versions.IsAutomatic(description) {
		w.notifier.Notify(ctx, "Snapshot created", core.SeveritySuccess)
	}
	return snap, created, nil
}

// Snapshots lists snapshots newest first.
func (w *Workspace) Snapshots(ctx context.Context) ([]core.SnapshotInfo, error) {
	return w.versions.List(ctx)
}

// Snapshot returns one snapshot with its notes.
func (w *Workspace) Snapshot(ctx context.Context, id string) (core.Snapshot, error) {
	return w.versions.Get(ctx, id)
}

// DeleteSnapshot removes a snapshot.
func (w *Workspace) DeleteSnapshot(ctx context.Context, id string) error {
	if err := w.versions.Delete(ctx, id); err != nil {
		return err
	}
	w.notifier.Notify(ctx, "Snapshot deleted", core.SeveritySuccess)
	return nil
}

// RestoreSnapshot replaces the live collection with the snapshot's notes.
// The current state is saved as a "before restore" snapshot first, and the
// selection is cleared.
func (w *Workspace) RestoreSnapshot(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	target, err := w.versions.Get(ctx, id)
	if err != nil {
		return err
	}

	if _, _, err := w.versions.Create(ctx, versions.BeforeRestore, w.repo.Snapshot()); err != nil {
		w.logger.Warn("snapshot before restore failed", "error", err)
	}

	w.session.Reset()
	if err := w.repo.ReplaceAll(ctx, target.Notes); err != nil {
		return err
	}

	now := w.now()
	w.stateMu.Lock()
	w.lastRestore = &now
	w.stateMu.Unlock()

	w.logger.Info("snapshot restored", "id", id, "notes", len(target.Notes))
	w.notifier.Notify(ctx, fmt.Sprintf("Restored %d notes", len(target.Notes)), core.SeveritySuccess)
	return nil
}

// Export writes the whole collection as an export document.
func (w *Workspace) Export(ctx context.Context, out io.Writer) error {
	if err := w.repo.FlushSaves(ctx); err != nil {
		w.logger.Warn("flush before export failed", "error", err)
	}
	if err := transfer.Export(out, w.repo.Snapshot(), w.now()); err != nil {
		return err
	}
	w.notifier.Notify(ctx, "Data exported", core.SeveritySuccess)
	return nil
}

// ExportFilename is the suggested name for an export taken now.
func (w *Workspace) ExportFilename() string {
	return transfer.ExportFilename(w.now())
}

// Import validates an export document and, after confirmation, replaces
// the whole collection with it. An invalid document changes nothing.
func (w *Workspace) Import(ctx context.Context, in io.Reader) (int, error) {
	doc, err := transfer.Import(in)
	if err != nil {
		w.notifier.Notify(ctx, "Invalid backup file", core.SeverityError)
		return 0, err
	}

	prompt := fmt.Sprintf("Import %d notes exported %s? This replaces all current notes.",
		len(doc.Notes), doc.ExportDate.Format(core.DisplayDateLayout))
	if !w.confirmer.Confirm(ctx, prompt) {
		return 0, core.ErrConfirmationDeclined
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, _, err := w.versions.Create(ctx, versions.BeforeImport, w.repo.Snapshot()); err != nil {
		w.logger.Warn("snapshot before import failed", "error", err)
	}
	w.session.Reset()
	if err := w.repo.ReplaceAll(ctx, doc.Notes); err != nil {
		return 0, err
	}
	w.notifier.Notify(ctx, "Data imported", core.SeveritySuccess)
	return len(doc.Notes), nil
}

// Close ends the session and flushes pending saves.
func (w *Workspace) Close(ctx context.Context) error {
	return errors.Join(w.session.Close(ctx), w.repo.Close(ctx))
}
