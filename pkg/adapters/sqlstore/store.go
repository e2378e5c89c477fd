// Package sqlstore implements core.Store on a relational database. SQLite
// (modernc.org/sqlite) backs single-user vaults; Postgres (lib/pq) lets
// several machines share one.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/memovault/pkg/core"
)

const (
	defaultTable      = "memovault_kv"
	defaultTimeout    = 5 * time.Second
	driverSQLite      = "sqlite"
	driverPostgres    = "postgres"
	sqliteBusyTimeout = 10_000
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// dialect captures the few places where SQLite and Postgres disagree.
type dialect struct {
	driver    string
	valueType string
	// placeholder returns the n-th (1-based) bind parameter.
	placeholder func(n int) string
	// prepare runs once on a freshly opened handle.
	prepare func(db *sql.DB) error
}

var sqliteDialect = dialect{
	driver:      driverSQLite,
	valueType:   "BLOB",
	placeholder: func(int) string { return "?" },
	prepare:     applyPragmas,
}

var postgresDialect = dialect{
	driver:      driverPostgres,
	valueType:   "BYTEA",
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	prepare:     func(*sql.DB) error { return nil },
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTable sets the name of the records table. The sequence table is
// derived from it.
func WithTable(name string) Option {
	return func(s *Store) {
		if name = strings.TrimSpace(name); name != "" {
			s.table = name
		}
	}
}

// WithQuota sets the total reported by Estimate.
func WithQuota(total uint64) Option {
	return func(s *Store) { s.quota = total }
}

// WithTimeout bounds every statement.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Store is a database-backed core.Store.
type Store struct {
	dsn     string
	dialect dialect
	openDB  sqlOpenFunc
	table   string
	quota   uint64
	timeout time.Duration
	logger  *slog.Logger

	initOnce sync.Once
	initErr  error
	db       *sql.DB

	mu     sync.RWMutex
	closed bool
}

// NewSQLite creates a store on the SQLite database file at path.
func NewSQLite(path string, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	return newStore(path, sqliteDialect, opts), nil
}

// NewPostgres creates a store on the Postgres database named by dsn.
// The connection is opened on first use.
func NewPostgres(dsn string, opts ...Option) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	return newStore(dsn, postgresDialect, opts), nil
}

func newStore(dsn string, d dialect, opts []Option) *Store {
	s := &Store{
		dsn:     dsn,
		dialect: d,
		openDB:  sql.Open,
		table:   defaultTable,
		timeout: defaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize opens the database and creates the schema.
func (s *Store) Initialize(ctx context.Context) error {
	return s.ensureReady(ctx)
}

// Get implements core.Store.
func (s *Store) Get(ctx context.Context, collection, key string) ([]byte, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf("SELECT value FROM %s WHERE collection = %s AND key = %s",
		quoteIdentifier(s.table), s.dialect.placeholder(1), s.dialect.placeholder(2))
	var value []byte
	err := s.db.QueryRowContext(ctx, query, collection, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, key, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", collection, key, err)
	}
	return value, nil
}

// Put implements core.Store.
func (s *Store) Put(ctx context.Context, collection, key string, value []byte) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.upsertQuery(), collection, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, key, err)
	}
	return nil
}

// Delete implements core.Store.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf("DELETE FROM %s WHERE collection = %s AND key = %s",
		quoteIdentifier(s.table), s.dialect.placeholder(1), s.dialect.placeholder(2))
	res, err := s.db.ExecContext(ctx, query, collection, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, key, core.ErrNotFound)
	}
	return nil
}

// List implements core.Store.
func (s *Store) List(ctx context.Context, collection string) ([]core.Record, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf("SELECT key, value FROM %s WHERE collection = %s ORDER BY key",
		quoteIdentifier(s.table), s.dialect.placeholder(1))
	rows, err := s.db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	out := []core.Record{}
	for rows.Next() {
		var r core.Record
		if err := rows.Scan(&r.Key, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// NextKey implements core.Store. Keys are zero-padded so that they sort
// in issue order.
func (s *Store) NextKey(ctx context.Context, collection string) (string, error) {
	if err := s.ensureReady(ctx); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	seq := quoteIdentifier(s.table + "_seq")
	query := fmt.Sprintf(`
		INSERT INTO %s (collection, value) VALUES (%s, 1)
		ON CONFLICT (collection)
		DO UPDATE SET value = %s.value + 1
		RETURNING value`, seq, s.dialect.placeholder(1), seq)
	var next int64
	if err := s.db.QueryRowContext(ctx, query, collection).Scan(&next); err != nil {
		return "", fmt.Errorf("failed to advance sequence %s: %w", collection, err)
	}
	return fmt.Sprintf("%012d", next), nil
}

// ReplaceAll implements core.Store in a single transaction.
func (s *Store) ReplaceAll(ctx context.Context, collection string, records []core.Record) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin replace of %s: %w", collection, err)
	}
	defer tx.Rollback() // no-op after Commit

	del := fmt.Sprintf("DELETE FROM %s WHERE collection = %s", quoteIdentifier(s.table), s.dialect.placeholder(1))
	if _, err := tx.ExecContext(ctx, del, collection); err != nil {
		return fmt.Errorf("failed to clear %s: %w", collection, err)
	}

	now := time.Now().UnixMilli()
	upsert := s.upsertQuery()
	for _, r := range records {
		if _, err := tx.ExecContext(ctx, upsert, collection, r.Key, r.Value, now); err != nil {
			return fmt.Errorf("failed to write %s/%s: %w", collection, r.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit replace of %s: %w", collection, err)
	}
	s.logger.Debug("collection replaced", "collection", collection, "records", len(records))
	return nil
}

// Estimate implements core.QuotaEstimator. Used is the total size of the
// stored values; Total is only known when a quota is configured.
func (s *Store) Estimate(ctx context.Context) (core.Quota, error) {
	if err := s.ensureReady(ctx); err != nil {
		return core.Quota{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf("SELECT COALESCE(SUM(LENGTH(value)), 0) FROM %s", quoteIdentifier(s.table))
	var used int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&used); err != nil {
		return core.Quota{}, fmt.Errorf("failed to estimate usage: %w", err)
	}
	if used < 0 {
		used = 0
	}
	return core.Quota{Used: uint64(used), Total: s.quota}, nil
}

// Close implements core.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) upsertQuery() string {
	p := s.dialect.placeholder
	return fmt.Sprintf(`
		INSERT INTO %s (collection, key, value, updated_at)
		VALUES (%s, %s, %s, %s)
		ON CONFLICT (collection, key)
		DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		quoteIdentifier(s.table), p(1), p(2), p(3), p(4))
}

func (s *Store) ensureReady(ctx context.Context) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return fmt.Errorf("%s store is closed", s.dialect.driver)
	}

	s.initOnce.Do(func() {
		db, err := s.openDB(s.dialect.driver, s.dsn)
		if err != nil {
			s.initErr = fmt.Errorf("failed to open %s: %w", s.dialect.driver, err)
			return
		}
		if err := s.dialect.prepare(db); err != nil {
			_ = db.Close()
			s.initErr = err
			return
		}

		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			s.initErr = fmt.Errorf("failed to reach %s: %w", s.dialect.driver, err)
			return
		}
		for _, stmt := range s.schema() {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				_ = db.Close()
				s.initErr = fmt.Errorf("failed to create schema: %w", err)
				return
			}
		}
		s.mu.Lock()
		s.db = db
		s.mu.Unlock()
		s.logger.Debug("sql store ready", "driver", s.dialect.driver, "table", s.table)
	})
	return s.initErr
}

func (s *Store) schema() []string {
	return []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				collection TEXT NOT NULL,
				key TEXT NOT NULL,
				value %s NOT NULL,
				updated_at BIGINT NOT NULL,
				PRIMARY KEY (collection, key)
			)`, quoteIdentifier(s.table), s.dialect.valueType),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				collection TEXT PRIMARY KEY,
				value BIGINT NOT NULL
			)`, quoteIdentifier(s.table+"_seq")),
	}
}

// applyPragmas pins SQLite to one connection so the pragmas hold for
// every statement.
func applyPragmas(db *sql.DB) error {
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", sqliteBusyTimeout),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}
	return nil
}

func quoteIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return `""`
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

var (
	_ core.Store          = (*Store)(nil)
	_ core.QuotaEstimator = (*Store)(nil)
)
