// Package repository owns the live note collection and persists it through
// a core.Store.
//
// Every note has its own lock: mutations of one note are serialized, and
// saves of one note are serialized and always encode the note as it is at
// save time, so a late save can never overwrite a newer one.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/memovault/pkg/core"
	"github.com/aretw0/memovault/pkg/registry"
)

// DefaultSaveDelay is the autosave debounce window.
const DefaultSaveDelay = time.Second

type entry struct {
	mu      sync.Mutex // guards note and deleted
	saveMu  sync.Mutex // serializes writes of this note
	note    core.Note
	deleted bool
}

// Repository is the persistence facade of the vault.
type Repository struct {
	store    core.Store
	registry *registry.Registry
	notifier core.Notifier
	logger   *slog.Logger
	delay    time.Duration
	now      func() time.Time
	newID    func() string

	mu      sync.RWMutex
	entries map[string]*entry

	timersMu sync.Mutex
	timers   map[string]*time.Timer
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithNotifier sets the sink for persistence failure notices.
func WithNotifier(n core.Notifier) Option {
	return func(r *Repository) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithRegistry sets the registry used to migrate legacy notes on load.
func WithRegistry(reg *registry.Registry) Option {
	return func(r *Repository) {
		if reg != nil {
			r.registry = reg
		}
	}
}

// WithSaveDelay sets the autosave debounce window.
func WithSaveDelay(d time.Duration) Option {
	return func(r *Repository) {
		if d > 0 {
			r.delay = d
		}
	}
}

// WithClock sets the time source for new notes.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIDGenerator sets the note id source.
func WithIDGenerator(fn func() string) Option {
	return func(r *Repository) { r.newID = fn }
}

// New creates an empty Repository over store. Call Load to read the
// persisted collection.
func New(store core.Store, opts ...Option) *Repository {
	r := &Repository{
		store:    store,
		registry: registry.New(),
		notifier: core.NotifierFunc(func(context.Context, string, core.Severity) {}),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		delay:    DefaultSaveDelay,
		now:      time.Now,
		newID:    newNoteID,
		entries:  make(map[string]*entry),
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// newNoteID returns a time-ordered UUIDv7, so ids sort by creation.
func newNoteID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Load replaces the in-memory collection with the persisted one. Legacy
// notes are migrated and written back.
func (r *Repository) Load(ctx context.Context) error {
	records, err := r.store.List(ctx, core.CollectionMemos)
	if err != nil {
		return r.fail(ctx, "list notes", "", err)
	}

	entries := make(map[string]*entry, len(records))
	var migrated []string
	for _, rec := range records {
		note, err := decodeNote(rec.Key, rec.Value)
		if err != nil {
			r.logger.Warn("unreadable note skipped", "key", rec.Key, "error", err)
			continue
		}
		if r.registry.Migrate(&note) {
			migrated = append(migrated, note.ID)
		}
		entries[note.ID] = &entry{note: note}
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()

	for _, id := range migrated {
		r.logger.Info("note migrated", "id", id)
		if err := r.Save(ctx, id); err != nil {
			return err
		}
	}
	r.logger.Debug("notes loaded", "count", len(entries))
	return nil
}

// Reload re-reads one note from the store, dropping it from memory when it
// no longer exists there.
func (r *Repository) Reload(ctx context.Context, id string) error {
	data, err := r.store.Get(ctx, core.CollectionMemos, id)
	if errors.Is(err, core.ErrNotFound) {
		r.mu.Lock()
		delete(r.entries, id)
		r.mu.Unlock()
		return nil
	}
	if err != nil {
		return r.fail(ctx, "read note", id, err)
	}

	note, err := decodeNote(id, data)
	if err != nil {
		return err
	}
	r.registry.Migrate(&note)

	r.mu.Lock()
	if e, ok := r.entries[id]; ok {
		e.mu.Lock()
		e.note = note
		e.mu.Unlock()
	} else {
		r.entries[id] = &entry{note: note}
	}
	r.mu.Unlock()
	return nil
}

// Create adds a new empty note and returns it. It is persisted by the
// first Save.
func (r *Repository) Create() core.Note {
	note := core.NewNote(r.newID(), r.now())

	r.mu.Lock()
	r.entries[note.ID] = &entry{note: note}
	r.mu.Unlock()

	return note.Clone()
}

// Get returns a copy of one note.
func (r *Repository) Get(id string) (core.Note, error) {
	e, err := r.entry(id)
	if err != nil {
		return core.Note{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.note.Clone(), nil
}

// Exists reports whether id is in the collection.
func (r *Repository) Exists(id string) bool {
	_, err := r.entry(id)
	return err == nil
}

// List returns copies of every note, newest first.
func (r *Repository) List() []core.Note {
	r.mu.RLock()
	out := make([]core.Note, 0, len(r.entries))
	for _, e := range r.entries {
		e.mu.Lock()
		out = append(out, e.note.Clone())
		e.mu.Unlock()
	}
	r.mu.RUnlock()

	sortNewestFirst(out)
	return out
}

// Snapshot returns a deep copy of the settled collection, newest first.
func (r *Repository) Snapshot() []core.Note { return r.List() }

// Len returns the number of notes.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Update applies fn to a working copy of the note under the note's lock and
// commits it when fn returns nil. It returns the committed note.
func (r *Repository) Update(id string, fn func(*core.Note) error) (core.Note, error) {
	e, err := r.entry(id)
	if err != nil {
		return core.Note{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return core.Note{}, fmt.Errorf("%s: %w", id, core.ErrNoteNotFound)
	}

	working := e.note.Clone()
	if err := fn(&working); err != nil {
		return e.note.Clone(), err
	}
	working.ID = id
	e.note = working
	return working.Clone(), nil
}

// Save writes the current in-memory state of the note.
func (r *Repository) Save(ctx context.Context, id string) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}

	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	e.mu.Lock()
	if e.deleted {
		e.mu.Unlock()
		return nil
	}
	data, err := json.Marshal(e.note)
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode note %s: %w", id, err)
	}

	if err := r.store.Put(ctx, core.CollectionMemos, id, data); err != nil {
		return r.fail(ctx, "write note", id, err)
	}
	r.logger.Debug("note saved", "id", id, "bytes", len(data))
	return nil
}

// Delete removes the note and its attachments from memory and the store.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.cancelSave(id)

	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", id, core.ErrNoteNotFound)
	}

	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()

	err := r.store.Delete(ctx, core.CollectionMemos, id)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return r.fail(ctx, "delete note", id, err)
	}
	r.logger.Debug("note deleted", "id", id)
	return nil
}

// ReplaceAll swaps the whole collection for a deep copy of notes, in
// memory first and then in the store. A store failure is reported but the
// in-memory collection keeps the new notes.
func (r *Repository) ReplaceAll(ctx context.Context, notes []core.Note) error {
	r.cancelAllSaves()

	entries := make(map[string]*entry, len(notes))
	records := make([]core.Record, 0, len(notes))
	for _, n := range notes {
		n = n.Clone()
		if n.ID == "" {
			n.ID = r.newID()
		}
		r.registry.Migrate(&n)
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("encode note %s: %w", n.ID, err)
		}
		entries[n.ID] = &entry{note: n}
		records = append(records, core.Record{Key: n.ID, Value: data})
	}

	r.mu.Lock()
	old := r.entries
	r.entries = entries
	r.mu.Unlock()

	for _, e := range old {
		e.mu.Lock()
		e.deleted = true
		e.mu.Unlock()
	}

	if err := r.store.ReplaceAll(ctx, core.CollectionMemos, records); err != nil {
		return r.fail(ctx, "replace notes", "", err)
	}
	r.logger.Info("collection replaced", "count", len(records))
	return nil
}

// Search returns the notes whose title or content contains keyword,
// ignoring case. An empty keyword matches everything.
func (r *Repository) Search(keyword string) []core.Note {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	all := r.List()
	if keyword == "" {
		return all
	}
	out := all[:0]
	for _, n := range all {
		if strings.Contains(strings.ToLower(n.Title), keyword) || strings.Contains(strings.ToLower(n.Content), keyword) {
			out = append(out, n)
		}
	}
	return out
}

// WithTag returns the notes carrying tag.
func (r *Repository) WithTag(tag string) []core.Note {
	all := r.List()
	out := all[:0]
	for _, n := range all {
		if n.HasTag(tag) {
			out = append(out, n)
		}
	}
	return out
}

// AddTag sets a tag on a note and schedules a save.
func (r *Repository) AddTag(id, tag string) (core.Note, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return core.Note{}, fmt.Errorf("empty tag")
	}
	n, err := r.Update(id, func(n *core.Note) error {
		if !n.HasTag(tag) {
			n.Tags = append(n.Tags, tag)
			sort.Strings(n.Tags)
		}
		return nil
	})
	if err == nil {
		r.ScheduleSave(id)
	}
	return n, err
}

// RemoveTag clears a tag from a note and schedules a save.
func (r *Repository) RemoveTag(id, tag string) (core.Note, error) {
	n, err := r.Update(id, func(n *core.Note) error {
		out := n.Tags[:0]
		for _, t := range n.Tags {
			if t != tag {
				out = append(out, t)
			}
		}
		if len(out) == 0 {
			out = nil
		}
		n.Tags = out
		return nil
	})
	if err == nil {
		r.ScheduleSave(id)
	}
	return n, err
}

func (r *Repository) entry(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, core.ErrNoteNotFound)
	}
	return e, nil
}

// fail logs and notifies a store failure and wraps it.
func (r *Repository) fail(ctx context.Context, op, key string, err error) error {
	perr := &core.PersistenceError{Op: op, Key: key, Err: err}
	r.logger.Error("persistence failure", "op", op, "key", key, "error", err)
	r.notifier.Notify(ctx, "Saving failed: "+perr.Error(), core.SeverityError)
	return perr
}

func decodeNote(key string, data []byte) (core.Note, error) {
	var note core.Note
	if err := json.Unmarshal(data, &note); err != nil {
		return core.Note{}, fmt.Errorf("decode note %s: %w", key, err)
	}
	if note.ID == "" {
		note.ID = key
	}
	return note, nil
}

func sortNewestFirst(notes []core.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if !notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].CreatedAt.After(notes[j].CreatedAt)
		}
		return notes[i].ID > notes[j].ID
	})
}
