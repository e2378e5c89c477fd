package workspace_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/memovault/pkg/adapters/memory"
	"github.com/aretw0/memovault/pkg/core"
	"github.com/aretw0/memovault/pkg/editor"
	"github.com/aretw0/memovault/pkg/registry"
	"github.com/aretw0/memovault/pkg/repository"
	"github.com/aretw0/memovault/pkg/versions"
	"github.com/aretw0/memovault/pkg/workspace"
)

type sink struct {
	mu  sync.Mutex
	got []core.Severity
}

func (s *sink) Notify(_ context.Context, _ string, sev core.Severity) {
	s.mu.Lock()
	s.got = append(s.got, sev)
	s.mu.Unlock()
}

func (s *sink) has(sev core.Severity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.got {
		if g == sev {
			return true
		}
	}
	return false
}

type fixture struct {
	ws      *workspace.Workspace
	store   *memory.Store
	notices *sink
}

func newFixture(t *testing.T, opts ...workspace.Option) fixture {
	t.Helper()
	store := memory.New(memory.WithCapacity(100))
	repo := repository.New(store, repository.WithSaveDelay(time.Hour))
	vs := versions.New(store)
	session := editor.New(repo, nil)
	notices := &sink{}
	opts = append([]workspace.Option{workspace.WithNotifier(notices)}, opts...)
	return fixture{ws: workspace.New(repo, vs, session, opts...), store: store, notices: notices}
}

func (f fixture) note(t *testing.T, content string) core.Note {
	t.Helper()
	ctx := context.Background()
	s := f.ws.Session()
	n, err := s.NewNote(ctx)
	require.NoError(t, err)
	_, err = s.Edit(ctx, "title "+content, content)
	require.NoError(t, err)
	require.NoError(t, s.ClearSelection(ctx))
	return n
}

func descriptions(t *testing.T, ws *workspace.Workspace) []string {
	t.Helper()
	list, err := ws.Snapshots(context.Background())
	require.NoError(t, err)
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Description
	}
	return out
}

func TestDeleteNote_SnapshotsFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.note(t, "a")
	f.note(t, "b")

	require.NoError(t, f.ws.DeleteNote(ctx, a.ID))
	assert.False(t, f.ws.Repository().Exists(a.ID))
	assert.Equal(t, []string{versions.BeforeDelete}, descriptions(t, f.ws))

	list, _ := f.ws.Snapshots(ctx)
	snap, err := f.ws.Snapshot(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Len(t, snap.Notes, 2, "the snapshot holds the deleted note")

	assert.ErrorIs(t, f.ws.DeleteNote(ctx, a.ID), core.ErrNoteNotFound)
}

func TestDeleteNote_ActiveNoteIsDeselected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	n := f.note(t, "x")
	_, err := f.ws.Session().Select(ctx, n.ID)
	require.NoError(t, err)

	require.NoError(t, f.ws.DeleteNote(ctx, n.ID))
	assert.Empty(t, f.ws.Session().ActiveID())
}

func TestRestoreSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.note(t, "original")

	snap, created, err := f.ws.CreateSnapshot(ctx, "manual")
	require.NoError(t, err)
	require.True(t, created)

	_, err = f.ws.Session().Select(ctx, a.ID)
	require.NoError(t, err)
	_, err = f.ws.Session().Edit(ctx, "changed", "changed")
	require.NoError(t, err)
	f.note(t, "extra")

	require.NoError(t, f.ws.RestoreSnapshot(ctx, snap.ID))
	assert.Empty(t, f.ws.Session().ActiveID(), "selection is cleared")

	notes := f.ws.Repository().List()
	require.Len(t, notes, 1)
	assert.Equal(t, "original", notes[0].Content)

	assert.Equal(t, []string{versions.BeforeRestore, "manual"}, descriptions(t, f.ws))

	before, _ := f.ws.Snapshots(ctx)
	pre, err := f.ws.Snapshot(ctx, before[0].ID)
	require.NoError(t, err)
	assert.Len(t, pre.Notes, 2, "restore itself can be undone")

	assert.ErrorIs(t, f.ws.RestoreSnapshot(ctx, "missing"), core.ErrSnapshotNotFound)
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := newFixture(t)
	n := src.note(t, "hello")
	_, err := src.ws.Session().Select(ctx, n.ID)
	require.NoError(t, err)
	_, err = src.ws.Session().AttachImage(ctx, registry.Upload{OriginalName: "a.png", MimeType: "image/png", SizeBytes: 1, Payload: "data:image/png;base64,AA=="})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.ws.Export(ctx, &buf))
	assert.True(t, strings.HasPrefix(src.ws.ExportFilename(), "memos_export_"))

	dst := newFixture(t)
	dst.note(t, "to be replaced")
	count, err := dst.ws.Import(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	notes := dst.ws.Repository().List()
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Content, "[📷a.png]")
	require.Len(t, notes[0].Images, 1)
	assert.Equal(t, []string{versions.BeforeImport}, descriptions(t, dst.ws))
}

func TestImport_InvalidChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.note(t, "keep me")

	_, err := f.ws.Import(ctx, strings.NewReader(`{"memos": "nope"}`))
	assert.ErrorIs(t, err, core.ErrImportValidation)
	assert.True(t, f.notices.has(core.SeverityError))
	assert.Len(t, f.ws.Repository().List(), 1)
	assert.Empty(t, descriptions(t, f.ws))
}

func TestImport_Declined(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, workspace.WithConfirmer(core.NeverConfirm))
	f.note(t, "keep me")

	_, err := f.ws.Import(ctx, strings.NewReader(`{"memos": []}`))
	assert.ErrorIs(t, err, core.ErrConfirmationDeclined)
	assert.Len(t, f.ws.Repository().List(), 1)
}

func TestAutoSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)
	f.note(t, "a")

	f.ws.StartAutoSnapshots(ctx, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		list, _ := f.ws.Snapshots(context.Background())
		return len(list) == 1
	}, 2*time.Second, 5*time.Millisecond)

	st := f.ws.State().(workspace.State)
	assert.True(t, st.AutoSnapshotsOn)
	assert.Equal(t, 1, st.Notes)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, descriptions(t, f.ws), 1, "automatic snapshots are rate limited")
}

func TestStorageInfo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, workspace.WithQuota(quota{Used: 90, Total: 100}))
	info, err := f.ws.StorageInfo(ctx)
	require.NoError(t, err)
	assert.True(t, info.Known)
	assert.InDelta(t, 90.0, info.Percent, 0.001)
	assert.True(t, f.notices.has(core.SeverityWarning))

	none := newFixture(t)
	info, err = none.ws.StorageInfo(ctx)
	require.NoError(t, err)
	assert.False(t, info.Known)
}

type quota core.Quota

func (q quota) Estimate(context.Context) (core.Quota, error) { return core.Quota(q), nil }
