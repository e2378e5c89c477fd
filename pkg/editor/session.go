// Package editor implements the editing session of the active note.
//
// A Session holds the selection, feeds the undo history and schedules
// autosaves. Every operation that changes a note goes through the
// repository's per-note lock, so the text and the attachment lists are
// always mutated together.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/memovault/pkg/core"
	"github.com/aretw0/memovault/pkg/history"
	"github.com/aretw0/memovault/pkg/marker"
	"github.com/aretw0/memovault/pkg/reconcile"
	"github.com/aretw0/memovault/pkg/registry"
	"github.com/aretw0/memovault/pkg/repository"
)

// Quota thresholds above which an upload needs confirmation.
const (
	ImageQuotaThreshold = 0.90
	FileQuotaThreshold  = 0.85
)

// Session edits one note at a time.
type Session struct {
	repo      *repository.Repository
	sync      *reconcile.Synchronizer
	notifier  core.Notifier
	confirmer core.Confirmer
	quota     core.QuotaEstimator
	logger    *slog.Logger
	now       func() time.Time

	historyCapacity int
	historyWindow   time.Duration
	stack           *history.Stack
	recorder        *history.Recorder

	mu     sync.Mutex
	active string
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifier sets the notice sink.
func WithNotifier(n core.Notifier) Option {
	return func(s *Session) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithConfirmer sets who approves quota overruns and orphan deletion.
func WithConfirmer(c core.Confirmer) Option {
	return func(s *Session) {
		if c != nil {
			s.confirmer = c
		}
	}
}

// WithQuota sets the storage estimator consulted before uploads.
func WithQuota(q core.QuotaEstimator) Option {
	return func(s *Session) { s.quota = q }
}

// WithHistory sets the undo capacity and the quiet window after which a
// burst of edits becomes one undo entry.
func WithHistory(capacity int, window time.Duration) Option {
	return func(s *Session) {
		s.historyCapacity = capacity
		s.historyWindow = window
	}
}

// WithClock sets the time source for history entries.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a Session over repo. A nil synchronizer selects the default.
func New(repo *repository.Repository, syncer *reconcile.Synchronizer, opts ...Option) *Session {
	s := &Session{
		repo:      repo,
		sync:      syncer,
		notifier:  core.NotifierFunc(func(context.Context, string, core.Severity) {}),
		confirmer: core.NeverConfirm,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sync == nil {
		s.sync = reconcile.New(nil, reconcile.WithLogger(s.logger))
	}
	s.stack = history.NewStack(s.historyCapacity)
	s.recorder = history.NewRecorder(s.stack, s.historyWindow)
	return s
}

// Synchronizer returns the synchronizer used by the session.
func (s *Session) Synchronizer() *reconcile.Synchronizer { return s.sync }

// History returns the undo stack of the active note.
func (s *Session) History() *history.Stack { return s.stack }

// ActiveID returns the id of the selected note, or "".
func (s *Session) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Active returns a copy of the selected note.
func (s *Session) Active() (core.Note, bool) {
	id := s.ActiveID()
	if id == "" {
		return core.Note{}, false
	}
	n, err := s.repo.Get(id)
	if err != nil {
		return core.Note{}, false
	}
	return n, true
}

// NewNote creates a note and selects it.
func (s *Session) NewNote(ctx context.Context) (core.Note, error) {
	if err := s.ClearSelection(ctx); err != nil {
		return core.Note{}, err
	}
	n := s.repo.Create()
	s.mu.Lock()
	s.active = n.ID
	s.mu.Unlock()
	s.logger.Debug("note created", "id", n.ID)
	return n, nil
}

// Select makes id the active note. Leaving the previous note saves it,
// or prunes it when it is empty.
func (s *Session) Select(ctx context.Context, id string) (core.Note, error) {
	n, err := s.repo.Get(id)
	if err != nil {
		return core.Note{}, err
	}
	if s.ActiveID() == id {
		return n, nil
	}
	if err := s.ClearSelection(ctx); err != nil {
		return core.Note{}, err
	}

	s.mu.Lock()
	s.active = id
	s.mu.Unlock()
	return n, nil
}

// ClearSelection leaves the active note. An empty note is deleted; a note
// with a blank title is saved as Untitled.
func (s *Session) ClearSelection(ctx context.Context) error {
	s.mu.Lock()
	id := s.active
	s.active = ""
	s.mu.Unlock()
	if id == "" {
		return nil
	}

	s.recorder.Stop()
	s.stack.Reset()

	n, err := s.repo.Get(id)
	if errors.Is(err, core.ErrNoteNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if n.IsEmpty() {
		s.logger.Debug("empty note pruned", "id", id)
		return s.repo.Delete(ctx, id)
	}
	if strings.TrimSpace(n.Title) == "" {
		if _, err := s.repo.Update(id, func(n *core.Note) error {
			n.Title = core.UntitledNote
			return nil
		}); err != nil {
			return err
		}
	}
	return s.repo.Save(ctx, id)
}

// Reset drops the selection and the history without touching any note.
func (s *Session) Reset() {
	s.mu.Lock()
	s.active = ""
	s.mu.Unlock()
	s.recorder.Stop()
	s.stack.Reset()
}

// Edit replaces the title and content of the active note.
func (s *Session) Edit(ctx context.Context, title, content string) (core.Note, error) {
	id, err := s.requireActive()
	if err != nil {
		return core.Note{}, err
	}

	n, err := s.repo.Update(id, func(n *core.Note) error {
		if n.Title == title && n.Content == content {
			return nil
		}
		s.recorder.Touch(s.historyState(n))
		n.Title = title
		n.Content = content
		return nil
	})
	if err != nil {
		return core.Note{}, err
	}
	s.repo.ScheduleSave(id)
	return n, nil
}

// EditHTML replaces the active note from an editor DOM fragment. Marker
// spans serialize back to their literals.
func (s *Session) EditHTML(ctx context.Context, title, fragment string) (core.Note, error) {
	content, err := marker.Serialize(fragment)
	if err != nil {
		return core.Note{}, err
	}
	return s.Edit(ctx, title, content)
}

// Undo restores the previous title and content of the active note. With
// nothing to undo it emits an info notice and reports false.
func (s *Session) Undo(ctx context.Context) (core.Note, bool, error) {
	return s.step(ctx, "undo", s.stack.Undo)
}

// Redo re-applies what the last Undo reverted.
func (s *Session) Redo(ctx context.Context) (core.Note, bool, error) {
	return s.step(ctx, "redo", s.stack.Redo)
}

func (s *Session) step(ctx context.Context, op string, pop func(core.HistoryState) (core.HistoryState, bool)) (core.Note, bool, error) {
	id, err := s.requireActive()
	if err != nil {
		return core.Note{}, false, err
	}
	s.recorder.Flush()

	var applied bool
	var n core.Note
	s.stack.Apply(func() {
		n, err = s.repo.Update(id, func(n *core.Note) error {
			target, ok := pop(s.historyState(n))
			if !ok {
				return nil
			}
			n.Title = target.Title
			n.Content = target.Content
			applied = true
			return nil
		})
	})
	if err != nil {
		return core.Note{}, false, err
	}
	if !applied {
		s.notifier.Notify(ctx, "Nothing to "+op, core.SeverityInfo)
		return n, false, nil
	}
	if err := s.repo.Save(ctx, id); err != nil {
		return n, true, err
	}
	return n, true, nil
}

// AttachImage adds an image to the active note and inserts its marker.
func (s *Session) AttachImage(ctx context.Context, up registry.Upload) (core.Attachment, error) {
	return s.attach(ctx, core.MediaImage, up, ImageQuotaThreshold)
}

// AttachFile adds a file to the active note and inserts its marker.
func (s *Session) AttachFile(ctx context.Context, up registry.Upload) (core.Attachment, error) {
	return s.attach(ctx, core.MediaFile, up, FileQuotaThreshold)
}

func (s *Session) attach(ctx context.Context, kind core.MediaKind, up registry.Upload, threshold float64) (core.Attachment, error) {
	id, err := s.requireActive()
	if err != nil {
		return core.Attachment{}, err
	}

	current, err := s.repo.Get(id)
	if err != nil {
		return core.Attachment{}, err
	}
	if err := s.sync.Registry().Limits().Check(&current, kind, up.MimeType, up.SizeBytes); err != nil {
		s.notifier.Notify(ctx, err.Error(), core.SeverityWarning)
		return core.Attachment{}, err
	}
	if err := s.checkQuota(ctx, up.SizeBytes, threshold); err != nil {
		return core.Attachment{}, err
	}

	var att core.Attachment
	_, err = s.repo.Update(id, func(n *core.Note) error {
		var err error
		att, _, err = s.sync.Attach(n, kind, up)
		return err
	})
	if err != nil {
		s.notifier.Notify(ctx, err.Error(), core.SeverityWarning)
		return core.Attachment{}, err
	}

	s.repo.ScheduleSave(id)
	s.notifier.Notify(ctx, fmt.Sprintf("Attached %s", marker.Format(kind, att.TagName)), core.SeveritySuccess)
	return att, nil
}

func (s *Session) checkQuota(ctx context.Context, adding int64, threshold float64) error {
	if s.quota == nil {
		return nil
	}
	q, err := s.quota.Estimate(ctx)
	if err != nil {
		s.logger.Warn("quota estimation failed", "error", err)
		return nil
	}
	if q.Total == 0 {
		return nil
	}
	if adding > 0 {
		q.Used += uint64(adding)
	}
	if q.Ratio() < threshold {
		return nil
	}

	msg := fmt.Sprintf("Storage is %.0f%% full.", q.Ratio()*100)
	s.notifier.Notify(ctx, msg, core.SeverityWarning)
	if !s.confirmer.Confirm(ctx, msg+" Continue anyway?") {
		return core.ErrQuotaDeclined
	}
	return nil
}

// DeleteAttachment removes an attachment of the active note together with
// its markers.
func (s *Session) DeleteAttachment(ctx context.Context, kind core.MediaKind, index int) (core.Attachment, error) {
	var removed core.Attachment
	err := s.mutate(ctx, func(n *core.Note) error {
		var err error
		removed, err = s.sync.DeleteAttachment(n, kind, index)
		return err
	})
	if err != nil {
		return core.Attachment{}, err
	}
	s.notifier.Notify(ctx, "Attachment deleted", core.SeveritySuccess)
	return removed, nil
}

// RenameAttachment changes the tag of an attachment and rewrites its
// markers. A duplicate or invalid tag is rejected with a warning notice.
func (s *Session) RenameAttachment(ctx context.Context, kind core.MediaKind, index int, newTag string) error {
	err := s.mutate(ctx, func(n *core.Note) error {
		_, err := s.sync.RenameAttachment(n, kind, index, newTag)
		return err
	})
	if errors.Is(err, core.ErrDuplicateTag) || errors.Is(err, core.ErrInvalidTag) {
		s.notifier.Notify(ctx, err.Error(), core.SeverityWarning)
	}
	return err
}

// Normalize moves every marker of the active note to the end of the text.
func (s *Session) Normalize(ctx context.Context) (bool, error) {
	var changed bool
	err := s.mutate(ctx, func(n *core.Note) error {
		changed = s.sync.Normalize(n)
		return nil
	})
	if err == nil && changed {
		s.notifier.Notify(ctx, "Markers reorganized", core.SeveritySuccess)
	}
	return changed, err
}

// ClearMarkers removes every marker from the active note's text.
func (s *Session) ClearMarkers(ctx context.Context) (int, error) {
	var n int
	err := s.mutate(ctx, func(note *core.Note) error {
		n = s.sync.ClearMarkers(note)
		return nil
	})
	return n, err
}

// CleanBrokenMarkers removes markers that resolve to no attachment.
func (s *Session) CleanBrokenMarkers(ctx context.Context) (int, error) {
	var n int
	err := s.mutate(ctx, func(note *core.Note) error {
		n = s.sync.CleanBrokenMarkers(note)
		return nil
	})
	if err == nil && n > 0 {
		s.notifier.Notify(ctx, fmt.Sprintf("Removed %d broken markers", n), core.SeveritySuccess)
	}
	return n, err
}

// DeleteOrphanAttachments removes the attachments no marker references,
// after the confirmer approves.
func (s *Session) DeleteOrphanAttachments(ctx context.Context) (int, error) {
	id, err := s.requireActive()
	if err != nil {
		return 0, err
	}
	n, err := s.repo.Get(id)
	if err != nil {
		return 0, err
	}

	orphans := s.sync.Orphans(&n)
	if len(orphans) == 0 {
		s.notifier.Notify(ctx, "No unreferenced attachments", core.SeverityInfo)
		return 0, nil
	}
	if !s.confirmer.Confirm(ctx, fmt.Sprintf("Delete %d unreferenced attachments?", len(orphans))) {
		return 0, core.ErrConfirmationDeclined
	}

	var removed []core.Attachment
	err = s.mutate(ctx, func(n *core.Note) error {
		removed = s.sync.RemoveOrphans(n)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.notifier.Notify(ctx, fmt.Sprintf("Deleted %d attachments", len(removed)), core.SeveritySuccess)
	return len(removed), nil
}

// Report returns the consistency report of the active note.
func (s *Session) Report() (reconcile.Report, error) {
	n, err := s.activeNote()
	if err != nil {
		return reconcile.Report{}, err
	}
	return s.sync.Report(&n), nil
}

// Render splits the active note into text and resolved marker segments.
func (s *Session) Render() ([]marker.Segment, error) {
	n, err := s.activeNote()
	if err != nil {
		return nil, err
	}
	return s.sync.Render(&n), nil
}

// RenderHTML renders the active note as an editor DOM fragment.
func (s *Session) RenderHTML() (string, error) {
	segs, err := s.Render()
	if err != nil {
		return "", err
	}
	return marker.RenderHTML(segs), nil
}

// Lookup resolves a possibly stale attachment reference of the active note.
func (s *Session) Lookup(ref reconcile.Ref) (core.Attachment, reconcile.Ref, error) {
	n, err := s.activeNote()
	if err != nil {
		return core.Attachment{}, ref, err
	}
	return s.sync.Lookup(&n, ref)
}

// Close leaves the active note and flushes pending saves.
func (s *Session) Close(ctx context.Context) error {
	err := s.ClearSelection(ctx)
	s.recorder.Stop()
	return errors.Join(err, s.repo.FlushSaves(ctx))
}

// mutate applies fn to the active note, flushes the pending history burst
// and schedules a save.
func (s *Session) mutate(ctx context.Context, fn func(*core.Note) error) error {
	id, err := s.requireActive()
	if err != nil {
		return err
	}
	s.recorder.Flush()
	if _, err := s.repo.Update(id, fn); err != nil {
		return err
	}
	s.repo.ScheduleSave(id)
	return nil
}

func (s *Session) activeNote() (core.Note, error) {
	id, err := s.requireActive()
	if err != nil {
		return core.Note{}, err
	}
	return s.repo.Get(id)
}

func (s *Session) requireActive() (string, error) {
	id := s.ActiveID()
	if id == "" {
		return "", core.ErrNoActiveNote
	}
	return id, nil
}

func (s *Session) historyState(n *core.Note) core.HistoryState {
	return core.HistoryState{NoteID: n.ID, Title: n.Title, Content: n.Content, Timestamp: s.now()}
}
