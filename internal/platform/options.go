package platform

import (
	"log/slog"
	"time"

	"golang.org/x/text/language"

	"github.com/aretw0/memovault/pkg/core"
	"github.com/aretw0/memovault/pkg/reconcile"
	"github.com/aretw0/memovault/pkg/registry"
)

// Adapter names accepted by WithAdapter.
const (
	AdapterFS       = "fs"
	AdapterMemory   = "memory"
	AdapterSQLite   = "sqlite"
	AdapterPostgres = "postgres"
)

// options holds the internal configuration of a vault.
type options struct {
	store     core.Store
	logger    *slog.Logger
	notifier  core.Notifier
	confirmer core.Confirmer
	adapter   string
	dsn       string
	systemDir string
	locale    language.Tag
	keep      int
	quota     uint64
	saveDelay time.Duration
	limits    *registry.Limits

	mustExist    bool
	forceTemp    bool
	devSafety    bool
	errorHandler func(error)
}

// Option defines a functional option for configuring a vault.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		adapter:   AdapterFS,
		locale:    reconcile.DefaultLocale,
		devSafety: true,
	}
}

func buildOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStore injects a ready core.Store. The adapter options are ignored.
func WithStore(store core.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithAdapter selects the storage adapter by name: "fs" (default),
// "memory", "sqlite" or "postgres".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithDSN sets the connection string of the postgres adapter or the
// database file of the sqlite adapter. It defaults to the vault path.
func WithDSN(dsn string) Option {
	return func(o *options) {
		o.dsn = dsn
	}
}

// WithSystemDir sets the hidden bookkeeping directory of the fs adapter.
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.systemDir = name
	}
}

// WithKeepSnapshots sets how many snapshots are retained.
func WithKeepSnapshots(n int) Option {
	return func(o *options) {
		o.keep = n
	}
}

// WithLocale sets the collation used when normalizing attachment lists.
func WithLocale(tag language.Tag) Option {
	return func(o *options) {
		o.locale = tag
	}
}

// WithQuota caps the storage estimate in bytes.
func WithQuota(total uint64) Option {
	return func(o *options) {
		o.quota = total
	}
}

// WithSaveDelay sets the autosave debounce delay.
func WithSaveDelay(d time.Duration) Option {
	return func(o *options) {
		o.saveDelay = d
	}
}

// WithLimits overrides the attachment upload limits.
func WithLimits(l registry.Limits) Option {
	return func(o *options) {
		o.limits = &l
	}
}

// WithNotifier sets the user notice sink. Defaults to logging notices.
func WithNotifier(n core.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithConfirmer sets who approves destructive operations.
func WithConfirmer(c core.Confirmer) Option {
	return func(o *options) {
		o.confirmer = c
	}
}

// WithMustExist requires the vault directory to exist already.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.forceTemp = force
	}
}

// WithDevSafety controls the sandbox used when running via `go run`.
// By default a dev run operates on a temporary directory to prevent
// accidental damage to a real vault.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}

// WithWatcherErrorHandler registers a callback for runtime watcher
// failures (e.g. permission denied) which are otherwise only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}
