package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/memovault/pkg/core"
)

type watchWorker struct {
	*worker.BaseWorker
	store     *Store
	pattern   string
	events    chan<- core.Event
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc
}

func newWatchWorker(store *Store, pattern string, events chan<- core.Event) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("fs-watcher"),
		store:      store,
		pattern:    pattern,
		events:     events,
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.store.addCollections(watcher); err != nil {
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.debouncer = newDebouncer(50 * time.Millisecond)
	w.store.setWatcherActive(true)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
		}
	})
}

// processFilesystemEvent maps a raw notification to a record and hands it
// to the debouncer. The change is classified when the window expires.
func (w *watchWorker) processFilesystemEvent(ctx context.Context, event fsnotify.Event) bool {
	logger := w.store.config.Logger
	logger.Debug("event received", "name", event.Name, "op", event.Op.String())

	// New collection directories (including one swapped in by ReplaceAll)
	// need their own watch. Records written before the watch was added
	// raise no event, so the directory is scanned.
	if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == filepath.Clean(w.store.Path) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && w.store.isCollectionDir(info.Name()) {
			if err := w.watcher.Add(event.Name); err != nil {
				w.handleWatcherError(fmt.Errorf("failed to watch %s: %w", event.Name, err))
				return false
			}
			return w.scanCollection(ctx, event.Name)
		}
	}

	return w.queueRecord(ctx, event.Name)
}

// scanCollection queues every record already present in dir.
func (w *watchWorker) scanCollection(ctx context.Context, dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.handleWatcherError(fmt.Errorf("failed to scan %s: %w", dir, err))
		return false
	}
	queued := false
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if w.queueRecord(ctx, filepath.Join(dir, e.Name())) {
			queued = true
		}
	}
	return queued
}

// queueRecord hands a record path matching the pattern to the debouncer.
func (w *watchWorker) queueRecord(ctx context.Context, path string) bool {
	collection, key, ok := w.store.resolve(path)
	if !ok {
		return false
	}
	if w.pattern != "" {
		matched, err := doublestar.Match(w.pattern, relKey(collection, key))
		if err != nil || !matched {
			return false
		}
	}

	w.debouncer.add(core.Event{Collection: collection, Key: key}, func(e core.Event) {
		classified, external := w.store.classify(e)
		if !external {
			return
		}
		classified.Timestamp = time.Now().Unix()
		w.sendEvent(ctx, classified)
	})
	return true
}

// sendEvent delivers an event, protecting against channel closure during
// shutdown.
func (w *watchWorker) sendEvent(ctx context.Context, event core.Event) {
	defer func() {
		_ = recover()
	}()
	select {
	case w.events <- event:
		w.store.recordEvent()
	case <-ctx.Done():
	}
}

func (w *watchWorker) handleWatcherError(err error) {
	w.store.config.Logger.Error("fsnotify error", "error", err)
	if w.store.config.ErrorHandler != nil {
		w.store.config.ErrorHandler(err)
	}
}

func (w *watchWorker) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			logger := w.store.config.Logger
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				logger.Error("watcher panic", "error", err)
			}
		}
	}()
	defer w.store.setWatcherActive(false)
	defer w.watcher.Close()

	err = w.mainEventLoop(ctx)

	// Wait for in-flight callbacks before the owner closes the channel.
	w.debouncer.stopAndWait(5 * time.Second)
	return err
}

func (w *watchWorker) mainEventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.processFilesystemEvent(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.handleWatcherError(wErr)
		}
	}
}

// addCollections watches the vault root and every collection directory.
func (s *Store) addCollections(watcher *fsnotify.Watcher) error {
	if err := watcher.Add(s.Path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.Path, err)
	}
	entries, err := os.ReadDir(s.Path)
	if err != nil {
		return fmt.Errorf("failed to scan vault: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() || !s.isCollectionDir(e.Name()) {
			continue
		}
		if err := watcher.Add(filepath.Join(s.Path, e.Name())); err != nil {
			return fmt.Errorf("failed to watch %s: %w", e.Name(), err)
		}
	}
	return nil
}

func (s *Store) isCollectionDir(name string) bool {
	return name != s.config.SystemDir && !isTemp(name) && !strings.HasPrefix(name, ".")
}

// resolve maps an absolute path to the record it stores.
func (s *Store) resolve(path string) (collection, key string, ok bool) {
	rel, err := filepath.Rel(s.Path, path)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 || !s.isCollectionDir(parts[0]) {
		return "", "", false
	}
	name := parts[1]
	if isTemp(name) || !strings.HasSuffix(name, recordExt) {
		return "", "", false
	}
	key = strings.TrimSuffix(name, recordExt)
	if validName(key) != nil {
		return "", "", false
	}
	return parts[0], key, true
}

// classify compares the record file against the index. Changes the index
// already knows about are the store's own writes and are not reported.
func (s *Store) classify(e core.Event) (core.Event, bool) {
	rel := relKey(e.Collection, e.Key)
	_, known := s.cache.Get(rel)

	info, err := os.Stat(filepath.Join(s.Path, e.Collection, e.Key+recordExt))
	if err != nil {
		if !known {
			return e, false
		}
		s.cache.Delete(rel)
		e.Type = core.EventDelete
		return e, true
	}

	if s.cache.Matches(rel, info) {
		return e, false
	}
	e.Type = core.EventCreate
	if known {
		e.Type = core.EventModify
	}
	s.cache.Set(rel, info)
	return e, true
}
