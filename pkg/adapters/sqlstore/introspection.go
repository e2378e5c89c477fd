package sqlstore

import "github.com/aretw0/introspection"

// StoreState exposes internal state for observability.
type StoreState struct {
	Driver string `json:"driver"`
	Table  string `json:"table"`
	Ready  bool   `json:"ready"`
	Quota  uint64 `json:"quota,omitempty"`
	Closed bool   `json:"closed"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StoreState{
		Driver: s.dialect.driver,
		Table:  s.table,
		Ready:  s.db != nil,
		Quota:  s.quota,
		Closed: s.closed,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return s.dialect.driver + "-store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
