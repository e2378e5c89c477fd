// Package memory provides an in-process core.Store. It is the default
// store of tests and of ephemeral vaults.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/memovault/pkg/core"
)

// Store keeps collections in maps guarded by a RWMutex. Values are copied on
// the way in and out.
type Store struct {
	mu       sync.RWMutex
	data     map[string]map[string][]byte
	seq      map[string]uint64
	capacity uint64
	closed   bool
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity sets the total bytes reported by Estimate.
func WithCapacity(total uint64) Option {
	return func(s *Store) { s.capacity = total }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]map[string][]byte),
		seq:  make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements core.Store.
func (s *Store) Get(ctx context.Context, collection, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(ctx); err != nil {
		return nil, err
	}
	v, ok := s.data[collection][key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, key, core.ErrNotFound)
	}
	return clone(v), nil
}

// Put implements core.Store.
func (s *Store) Put(ctx context.Context, collection, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("put %s: empty key", collection)
	}
	c, ok := s.data[collection]
	if !ok {
		c = make(map[string][]byte)
		s.data[collection] = c
	}
	c[key] = clone(value)
	return nil
}

// Delete implements core.Store.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}
	if _, ok := s.data[collection][key]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, key, core.ErrNotFound)
	}
	delete(s.data[collection], key)
	return nil
}

// List implements core.Store.
func (s *Store) List(ctx context.Context, collection string) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(ctx); err != nil {
		return nil, err
	}
	c := s.data[collection]
	out := make([]core.Record, 0, len(c))
	for k, v := range c {
		out = append(out, core.Record{Key: k, Value: clone(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// NextKey implements core.Store.
func (s *Store) NextKey(ctx context.Context, collection string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return "", err
	}
	s.seq[collection]++
	return FormatSequence(s.seq[collection]), nil
}

// ReplaceAll implements core.Store.
func (s *Store) ReplaceAll(ctx context.Context, collection string, records []core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}
	c := make(map[string][]byte, len(records))
	for _, r := range records {
		if r.Key == "" {
			return fmt.Errorf("replace %s: empty key", collection)
		}
		c[r.Key] = clone(r.Value)
	}
	s.data[collection] = c
	return nil
}

// Estimate implements core.QuotaEstimator. Usage is the sum of stored
// values; the total is the configured capacity (0 when unbounded).
func (s *Store) Estimate(ctx context.Context) (core.Quota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var used uint64
	for _, c := range s.data {
		for k, v := range c {
			used += uint64(len(k) + len(v))
		}
	}
	return core.Quota{Used: used, Total: s.capacity}, nil
}

// Close implements core.Store. A closed store rejects every call.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return fmt.Errorf("memory store is closed")
	}
	return nil
}

// FormatSequence renders a sequence number as a fixed-width key, so that
// lexical key order matches numeric order.
func FormatSequence(n uint64) string {
	return fmt.Sprintf("%012d", n)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

var (
	_ core.Store          = (*Store)(nil)
	_ core.QuotaEstimator = (*Store)(nil)
)
