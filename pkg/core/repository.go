package core

import "context"

// Collections used by the vault.
const (
	CollectionMemos    = "memos"
	CollectionVersions = "versions"
)

// Record is one key/value pair of a collection.
type Record struct {
	Key   string
	Value []byte
}

// Store defines the contract of the raw key-value persistence engine.
// Adhering to this interface keeps the domain independent of the
// underlying storage mechanism (filesystem, SQLite, Postgres, memory).
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, collection, key string) ([]byte, error)

	// Put creates or replaces the value stored under key.
	Put(ctx context.Context, collection, key string, value []byte) error

	// Delete removes key. Deleting a missing key returns ErrNotFound.
	Delete(ctx context.Context, collection, key string) error

	// List returns every record of the collection ordered by key.
	List(ctx context.Context, collection string) ([]Record, error)

	// NextKey returns a fresh, monotonically increasing key for the collection.
	NextKey(ctx context.Context, collection string) (string, error)

	// ReplaceAll atomically swaps the whole collection for records.
	ReplaceAll(ctx context.Context, collection string, records []Record) error

	// Close releases the underlying resources.
	Close() error
}

// Watchable defines an interface for stores that can notify about changes
// made behind the vault's back (e.g. another process editing files).
type Watchable interface {
	Watch(ctx context.Context, pattern string) (<-chan Event, error)
}
