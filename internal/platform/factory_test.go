package platform_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/memovault/internal/platform"
	"github.com/aretw0/memovault/pkg/adapters/fs"
	"github.com/aretw0/memovault/pkg/adapters/memory"
	"github.com/aretw0/memovault/pkg/adapters/sqlstore"
	"github.com/aretw0/memovault/pkg/core"
)

func TestOpen_Adapters(t *testing.T) {
	ctx := context.Background()

	for _, adapter := range []string{platform.AdapterFS, platform.AdapterSQLite, platform.AdapterMemory} {
		t.Run(adapter, func(t *testing.T) {
			dir := t.TempDir()
			v, err := platform.Open(ctx, dir, platform.WithAdapter(adapter), platform.WithSaveDelay(time.Hour))
			require.NoError(t, err)

			created, err := v.Session.NewNote(ctx)
			require.NoError(t, err)
			_, err = v.Session.Edit(ctx, "Title", "body")
			require.NoError(t, err)
			require.NoError(t, v.Close(ctx))

			if adapter == platform.AdapterMemory {
				return
			}

			reopened, err := platform.Open(ctx, dir, platform.WithAdapter(adapter))
			require.NoError(t, err)
			defer reopened.Close(ctx)

			got, err := reopened.Repository.Get(created.ID)
			require.NoError(t, err)
			assert.Equal(t, "Title", got.Title)
			assert.Equal(t, "body", got.Content)
		})
	}
}

func TestOpen_StoreTypes(t *testing.T) {
	ctx := context.Background()

	v, err := platform.Open(ctx, t.TempDir())
	require.NoError(t, err)
	defer v.Close(ctx)
	assert.IsType(t, &fs.Store{}, v.Store)

	s, err := platform.Open(ctx, t.TempDir(), platform.WithAdapter(platform.AdapterSQLite))
	require.NoError(t, err)
	defer s.Close(ctx)
	assert.IsType(t, &sqlstore.Store{}, s.Store)

	injected := memory.New()
	m, err := platform.Open(ctx, "", platform.WithStore(injected))
	require.NoError(t, err)
	defer m.Close(ctx)
	assert.Same(t, injected, m.Store)
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := platform.Open(ctx, t.TempDir(), platform.WithAdapter("s3"))
	assert.ErrorContains(t, err, "unknown adapter")

	_, err = platform.Open(ctx, filepath.Join(t.TempDir(), "missing"), platform.WithMustExist(true))
	assert.Error(t, err)

	_, err = platform.Open(ctx, t.TempDir(), platform.WithAdapter(platform.AdapterPostgres))
	assert.Error(t, err, "postgres requires a dsn")
}

func TestOpen_ConfigFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	config := "adapter: sqlite\nkeep_snapshots: 3\nquota: 1 MB\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, platform.ConfigFileName), []byte(config), 0644))

	v, err := platform.Open(ctx, dir)
	require.NoError(t, err)
	defer v.Close(ctx)
	assert.IsType(t, &sqlstore.Store{}, v.Store)

	info, err := v.Workspace.StorageInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), info.Total)

	// Explicit options win over the file.
	m, err := platform.Open(ctx, dir, platform.WithAdapter(platform.AdapterMemory))
	require.NoError(t, err)
	defer m.Close(ctx)
	assert.IsType(t, &memory.Store{}, m.Store)
}

func TestFileConfig_Options(t *testing.T) {
	cfg := &platform.FileConfig{
		Locale:    "sv",
		SaveDelay: "250ms",
		Limits:    &platform.LimitsConfig{MaxImageSize: "1 MiB", MaxFiles: 3},
	}
	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Len(t, opts, 3)

	for _, bad := range []*platform.FileConfig{
		{Locale: "not a locale!"},
		{Quota: "lots"},
		{SaveDelay: "soon"},
		{Limits: &platform.LimitsConfig{MaxFileSize: "big"}},
	} {
		_, err := bad.Options()
		assert.Error(t, err)
	}

	var none *platform.FileConfig
	opts, err = none.Options()
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := platform.LoadConfig(dir)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, platform.ConfigFileName), []byte("adapter: [oops"), 0644))
	_, err = platform.LoadConfig(dir)
	assert.Error(t, err)
}

func TestVault_Follow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	v, err := platform.Open(ctx, dir)
	require.NoError(t, err)
	defer v.Close(context.Background())

	// A second process writes a note behind the vault's back.
	other, err := platform.Open(ctx, dir)
	require.NoError(t, err)

	changed := make(chan core.Event, 1)
	done := make(chan error, 1)
	go func() {
		done <- v.Follow(ctx, func(e core.Event) { changed <- e })
	}()
	time.Sleep(100 * time.Millisecond)

	n := other.Repository.Create()
	_, err = other.Repository.Update(n.ID, func(note *core.Note) error {
		note.Title = "from elsewhere"
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, other.Repository.Save(ctx, n.ID))
	require.NoError(t, other.Close(ctx))

	select {
	case e := <-changed:
		assert.Equal(t, n.ID, e.Key)
	case <-time.After(3 * time.Second):
		t.Fatal("no change observed")
	}

	got, err := v.Repository.Get(n.ID)
	require.NoError(t, err)
	assert.Equal(t, "from elsewhere", got.Title)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}

func TestVault_FollowUnsupported(t *testing.T) {
	ctx := context.Background()
	v, err := platform.Open(ctx, "", platform.WithAdapter(platform.AdapterMemory))
	require.NoError(t, err)
	defer v.Close(ctx)
	assert.Error(t, v.Follow(ctx, nil))
}
