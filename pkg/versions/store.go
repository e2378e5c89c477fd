// Package versions keeps time-ordered, deduplicated, size-bounded snapshots
// of the whole note collection.
package versions

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/aretw0/memovault/pkg/core"
)

const (
	// DefaultKeep is how many snapshots survive pruning.
	DefaultKeep = 20

	// DefaultWindow is the minimum distance between automatic snapshots.
	DefaultWindow = 5 * time.Minute

	// AutoDescription marks a snapshot as automatic.
	AutoDescription = "auto backup"
)

// Descriptions of the snapshots taken by operations.
const (
	BeforeDelete  = "before delete"
	BeforeRestore = "before restore"
	BeforeImport  = "before import"
)

// Store is the version store. It persists snapshots in the
// core.CollectionVersions collection of a core.Store.
type Store struct {
	store  core.Store
	keep   int
	window time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu sync.Mutex // serializes Create and Prune
}

// Option configures a Store.
type Option func(*Store)

// WithKeep sets the retention count.
func WithKeep(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.keep = n
		}
	}
}

// WithWindow sets the dedup window of automatic snapshots.
func WithWindow(d time.Duration) Option {
	return func(s *Store) { s.window = d }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a version store over store.
func New(store core.Store, opts ...Option) *Store {
	s := &Store{
		store:  store,
		keep:   DefaultKeep,
		window: DefaultWindow,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsAutomatic reports whether description selects an automatic snapshot.
func IsAutomatic(description string) bool {
	return description == "" || description == AutoDescription
}

// Create snapshots notes. Automatic snapshots are skipped (created=false)
// when the newest snapshot is younger than the window or holds identical
// notes; explicit descriptions always proceed. An empty collection is never
// snapshotted. Retention pruning runs after every successful create.
func (s *Store) Create(ctx context.Context, description string, notes []core.Note) (core.Snapshot, bool, error) {
	if description == "" {
		description = AutoDescription
	}
	if len(notes) == 0 {
		return core.Snapshot{}, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := core.CloneNotes(notes)
	fp, err := Fingerprint(copied)
	if err != nil {
		return core.Snapshot{}, false, err
	}
	now := s.now()

	if IsAutomatic(description) {
		latest, ok, err := s.latest(ctx)
		if err != nil {
			return core.Snapshot{}, false, err
		}
		if ok {
			if now.Sub(latest.Timestamp) < s.window {
				s.logger.Debug("snapshot skipped", "reason", "window", "last", latest.ID)
				return core.Snapshot{}, false, nil
			}
			if latestFingerprint(latest) == fp {
				s.logger.Debug("snapshot skipped", "reason", "unchanged", "last", latest.ID)
				return core.Snapshot{}, false, nil
			}
		}
	}

	id, err := s.store.NextKey(ctx, core.CollectionVersions)
	if err != nil {
		return core.Snapshot{}, false, &core.PersistenceError{Op: "allocate snapshot id", Err: err}
	}

	images, files := core.CountAttachments(copied)
	snap := core.Snapshot{
		ID:          id,
		Timestamp:   now,
		Description: description,
		Notes:       copied,
		NoteCount:   len(copied),
		ImageCount:  images,
		FileCount:   files,
		Fingerprint: fp,
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.store.Put(ctx, core.CollectionVersions, id, data); err != nil {
		return core.Snapshot{}, false, &core.PersistenceError{Op: "write snapshot", Key: id, Err: err}
	}
	s.logger.Info("snapshot created", "id", id, "description", description, "notes", snap.NoteCount)

	if _, err := s.pruneLocked(ctx, s.keep); err != nil {
		s.logger.Warn("snapshot pruning failed", "error", err)
	}

	return snap, true, nil
}

// List returns snapshot summaries, newest first.
func (s *Store) List(ctx context.Context) ([]core.SnapshotInfo, error) {
	all, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.SnapshotInfo, len(all))
	for i, snap := range all {
		out[i] = snap.Info()
	}
	return out, nil
}

// Get returns one snapshot. The returned notes are a private copy.
func (s *Store) Get(ctx context.Context, id string) (core.Snapshot, error) {
	data, err := s.store.Get(ctx, core.CollectionVersions, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.Snapshot{}, fmt.Errorf("%s: %w", id, core.ErrSnapshotNotFound)
	}
	if err != nil {
		return core.Snapshot{}, &core.PersistenceError{Op: "read snapshot", Key: id, Err: err}
	}
	return decode(id, data)
}

// Delete removes one snapshot.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, core.CollectionVersions, id)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("%s: %w", id, core.ErrSnapshotNotFound)
	}
	if err != nil {
		return &core.PersistenceError{Op: "delete snapshot", Key: id, Err: err}
	}
	return nil
}

// Prune deletes all but the newest keep snapshots and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(ctx, keep)
}

// Keep returns the retention count.
func (s *Store) Keep() int { return s.keep }

func (s *Store) pruneLocked(ctx context.Context, keep int) (int, error) {
	all, err := s.all(ctx)
	if err != nil {
		return 0, err
	}
	if len(all) <= keep {
		return 0, nil
	}

	removed := 0
	for _, snap := range all[keep:] {
		if err := s.store.Delete(ctx, core.CollectionVersions, snap.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
			return removed, &core.PersistenceError{Op: "prune snapshot", Key: snap.ID, Err: err}
		}
		removed++
	}
	s.logger.Debug("snapshots pruned", "removed", removed, "kept", keep)
	return removed, nil
}

func (s *Store) latest(ctx context.Context) (core.Snapshot, bool, error) {
	all, err := s.all(ctx)
	if err != nil || len(all) == 0 {
		return core.Snapshot{}, false, err
	}
	return all[0], true, nil
}

// all loads every snapshot, newest first. Undecodable records are logged
// and skipped.
func (s *Store) all(ctx context.Context) ([]core.Snapshot, error) {
	records, err := s.store.List(ctx, core.CollectionVersions)
	if err != nil {
		return nil, &core.PersistenceError{Op: "list snapshots", Err: err}
	}

	out := make([]core.Snapshot, 0, len(records))
	for _, rec := range records {
		snap, err := decode(rec.Key, rec.Value)
		if err != nil {
			s.logger.Warn("unreadable snapshot skipped", "id", rec.Key, "error", err)
			continue
		}
		out = append(out, snap)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func decode(id string, data []byte) (core.Snapshot, error) {
	var snap core.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return core.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	if snap.ID == "" {
		snap.ID = id
	}
	if snap.Notes == nil {
		snap.Notes = []core.Note{}
	}
	return snap, nil
}

// Fingerprint hashes the canonical JSON form of notes with BLAKE2b-256.
// It identifies content for deduplication only.
func Fingerprint(notes []core.Note) (string, error) {
	data, err := json.Marshal(notes)
	if err != nil {
		return "", fmt.Errorf("encode notes: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func latestFingerprint(snap core.Snapshot) string {
	if snap.Fingerprint != "" {
		return snap.Fingerprint
	}
	fp, err := Fingerprint(snap.Notes)
	if err != nil {
		return ""
	}
	return fp
}
