package memovault

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/text/language"

	"github.com/aretw0/memovault/internal/platform"
	"github.com/aretw0/memovault/pkg/core"
	"github.com/aretw0/memovault/pkg/registry"
)

// --- Types ---

// Vault is an open vault: store, repository, snapshots, editing session
// and workspace, wired together.
type Vault = platform.Vault

// FileConfig mirrors the optional memovault.yaml file of a vault.
type FileConfig = platform.FileConfig

// --- Configuration ---

// Option defines a functional option for configuring a vault.
type Option = platform.Option

// Adapter names.
const (
	AdapterFS       = platform.AdapterFS
	AdapterMemory   = platform.AdapterMemory
	AdapterSQLite   = platform.AdapterSQLite
	AdapterPostgres = platform.AdapterPostgres
)

// ConfigFileName is the optional per-vault configuration file.
const ConfigFileName = platform.ConfigFileName

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithStore injects a custom storage adapter.
func WithStore(store core.Store) Option {
	return platform.WithStore(store)
}

// WithAdapter selects the storage adapter by name.
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return platform.WithDSN(dsn)
}

// WithSystemDir sets the hidden directory of the fs adapter.
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithKeepSnapshots sets how many snapshots are retained.
func WithKeepSnapshots(n int) Option {
	return platform.WithKeepSnapshots(n)
}

// WithLocale sets the collation used when normalizing attachments.
func WithLocale(tag language.Tag) Option {
	return platform.WithLocale(tag)
}

// WithQuota caps the storage estimate in bytes.
func WithQuota(total uint64) Option {
	return platform.WithQuota(total)
}

// WithSaveDelay sets the autosave debounce delay.
func WithSaveDelay(d time.Duration) Option {
	return platform.WithSaveDelay(d)
}

// WithLimits overrides the attachment upload limits.
func WithLimits(l registry.Limits) Option {
	return platform.WithLimits(l)
}

// WithNotifier sets the user notice sink.
func WithNotifier(n core.Notifier) Option {
	return platform.WithNotifier(n)
}

// WithConfirmer sets who approves destructive operations.
func WithConfirmer(c core.Confirmer) Option {
	return platform.WithConfirmer(c)
}

// WithMustExist requires the vault directory to exist already.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithDevSafety controls the sandbox used when running via `go run`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithWatcherErrorHandler registers a callback for runtime watcher failures.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// --- Factory ---

// Open opens (creating if needed) the vault at path.
func Open(ctx context.Context, path string, opts ...Option) (*Vault, error) {
	return platform.Open(ctx, path, opts...)
}

// --- Safety & Utils ---

// LoadConfig reads memovault.yaml from dir. A missing file yields (nil, nil).
func LoadConfig(dir string) (*FileConfig, error) {
	return platform.LoadConfig(dir)
}

// ResolveVaultPath determines the actual path for the vault based on safety rules.
func ResolveVaultPath(userPath string, forceTemp bool) string {
	return platform.ResolveVaultPath(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindVaultRoot recursively looks upwards for a vault root indicator.
func FindVaultRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
