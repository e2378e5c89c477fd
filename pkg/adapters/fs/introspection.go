package fs

import (
	"time"

	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Path          string     `json:"path"`
	SystemDir     string     `json:"system_dir"`
	Records       int        `json:"records"`
	Bytes         uint64     `json:"bytes"`
	Quota         uint64     `json:"quota,omitempty"`
	WatcherActive bool       `json:"watcher_active"`
	Watchers      int        `json:"watchers"`
	LastEvent     *time.Time `json:"last_event,omitempty"`
	Closed        bool       `json:"closed"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return StoreState{
		Path:          s.Path,
		SystemDir:     s.config.SystemDir,
		Records:       s.cache.Len(),
		Bytes:         s.cache.Bytes(),
		Quota:         s.config.Quota,
		WatcherActive: s.watcherActive,
		Watchers:      len(s.workers),
		LastEvent:     s.lastEvent,
		Closed:        s.closed,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "fs-store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
