package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/memovault/pkg/adapters/fs"
	"github.com/aretw0/memovault/pkg/adapters/memory"
	"github.com/aretw0/memovault/pkg/adapters/sqlstore"
	"github.com/aretw0/memovault/pkg/core"
	"github.com/aretw0/memovault/pkg/editor"
	"github.com/aretw0/memovault/pkg/reconcile"
	"github.com/aretw0/memovault/pkg/registry"
	"github.com/aretw0/memovault/pkg/repository"
	"github.com/aretw0/memovault/pkg/versions"
	"github.com/aretw0/memovault/pkg/workspace"
)

// Vault is an open vault with every component wired.
type Vault struct {
	Path       string
	Store      core.Store
	Repository *repository.Repository
	Versions   *versions.Store
	Session    *editor.Session
	Workspace  *workspace.Workspace

	logger *slog.Logger
}

// Open opens (creating if needed) the vault at uri and loads its notes.
// The uri is adapter-specific: a directory for "fs" and "sqlite", ignored
// by "memory" and "postgres" (which use WithDSN).
//
//	v, err := platform.Open(ctx, "./notes", platform.WithAdapter("sqlite"))
func Open(ctx context.Context, uri string, opts ...Option) (*Vault, error) {
	o := buildOptions(opts)
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	path := resolvePath(uri, o)
	if o.store == nil {
		cfg, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		fileOpts, err := cfg.Options()
		if err != nil {
			return nil, err
		}
		if len(fileOpts) > 0 {
			logger := o.logger
			o = buildOptions(append(fileOpts, opts...))
			o.logger = logger
		}
	}

	store := o.store
	if store == nil {
		var err error
		store, err = openStore(ctx, path, o)
		if err != nil {
			return nil, err
		}
	}

	v := wire(path, store, o)
	if err := v.Repository.Load(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	o.logger.Debug("vault opened", "path", path, "adapter", o.adapter, "notes", v.Repository.Len())
	return v, nil
}

func resolvePath(uri string, o *options) string {
	useTemp := o.forceTemp || (o.devSafety && IsDevRun())
	path := ResolveVaultPath(uri, useTemp)
	if useTemp && path != filepath.Clean(uri) {
		o.logger.Warn("running in SAFE MODE (Dev/Test)", "original_path", uri, "resolved_path", path)
	}
	return path
}

func openStore(ctx context.Context, path string, o *options) (core.Store, error) {
	switch o.adapter {
	case AdapterFS, "":
		s := fs.New(fs.Config{
			Path:         path,
			MustExist:    o.mustExist,
			SystemDir:    o.systemDir,
			Logger:       o.logger,
			ErrorHandler: o.errorHandler,
			Quota:        o.quota,
		})
		if err := s.Initialize(ctx); err != nil {
			return nil, err
		}
		return s, nil

	case AdapterMemory:
		return memory.New(memory.WithCapacity(o.quota)), nil

	case AdapterSQLite:
		dsn := o.dsn
		if dsn == "" {
			if err := ensureDir(path, o.mustExist); err != nil {
				return nil, err
			}
			dsn = filepath.Join(path, "memovault.db")
		}
		s, err := sqlstore.NewSQLite(dsn, sqlstore.WithLogger(o.logger), sqlstore.WithQuota(o.quota))
		if err != nil {
			return nil, err
		}
		if err := s.Initialize(ctx); err != nil {
			return nil, err
		}
		return s, nil

	case AdapterPostgres:
		s, err := sqlstore.NewPostgres(o.dsn, sqlstore.WithLogger(o.logger), sqlstore.WithQuota(o.quota))
		if err != nil {
			return nil, err
		}
		if err := s.Initialize(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
}

func wire(path string, store core.Store, o *options) *Vault {
	notifier := o.notifier
	if notifier == nil {
		notifier = core.LogNotifier{Logger: o.logger}
	}
	quota, _ := store.(core.QuotaEstimator)

	regOpts := []registry.Option{}
	if o.limits != nil {
		regOpts = append(regOpts, registry.WithLimits(*o.limits))
	}
	reg := registry.New(regOpts...)

	repoOpts := []repository.Option{
		repository.WithLogger(o.logger),
		repository.WithNotifier(notifier),
		repository.WithRegistry(reg),
	}
	if o.saveDelay > 0 {
		repoOpts = append(repoOpts, repository.WithSaveDelay(o.saveDelay))
	}
	repo := repository.New(store, repoOpts...)

	versionOpts := []versions.Option{versions.WithLogger(o.logger)}
	if o.keep > 0 {
		versionOpts = append(versionOpts, versions.WithKeep(o.keep))
	}
	snapshots := versions.New(store, versionOpts...)

	syncer := reconcile.New(reg, reconcile.WithLogger(o.logger), reconcile.WithLocale(o.locale))
	session := editor.New(repo, syncer,
		editor.WithLogger(o.logger),
		editor.WithNotifier(notifier),
		editor.WithConfirmer(o.confirmer),
		editor.WithQuota(quota),
	)
	ws := workspace.New(repo, snapshots, session,
		workspace.WithLogger(o.logger),
		workspace.WithNotifier(notifier),
		workspace.WithConfirmer(o.confirmer),
		workspace.WithQuota(quota),
	)

	return &Vault{
		Path:       path,
		Store:      store,
		Repository: repo,
		Versions:   snapshots,
		Session:    session,
		Workspace:  ws,
		logger:     o.logger,
	}
}

// Close flushes pending work and releases the store.
func (v *Vault) Close(ctx context.Context) error {
	return errors.Join(v.Workspace.Close(ctx), v.Store.Close())
}

func ensureDir(path string, mustExist bool) error {
	if mustExist {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("vault path does not exist: %s", path)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", path)
		}
		return nil
	}
	return os.MkdirAll(path, 0755)
}
