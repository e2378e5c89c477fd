package editor_test

import (
	"context"
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
)

type recorded struct {
	mu      sync.Mutex
	notices []core.Severity
}

func (r *recorded) Notify(_ context.Context, _ string, sev core.Severity) {
	r.mu.Lock()
	r.notices = append(r.notices, sev)
	r.mu.Unlock()
}

func (r *recorded) last() core.Severity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return ""
	}
	return r.notices[len(r.notices)-1]
}

type fixedQuota core.Quota

func (q fixedQuota) Estimate(context.Context) (core.Quota, error) { return core.Quota(q), nil }

func newSession(t *testing.T, opts ...editor.Option) (*editor.Session, *repository.Repository, core.Store) {
	t.Helper()
	store := memory.New()
	repo := repository.New(store, repository.WithSaveDelay(time.Hour))
	return editor.New(repo, nil, opts...), repo, store
}

func png(name string, size int64) registry.Upload {
	return registry.Upload{Payload: "data:image/png;base64,AA==", OriginalName: name, MimeType: "image/png", SizeBytes: size}
}

func TestSession_RequiresActiveNote(t *testing.T) {
	s, _, _ := newSession(t)
	_, err := s.Edit(context.Background(), "t", "c")
	assert.ErrorIs(t, err, core.ErrNoActiveNote)
	_, err = s.AttachImage(context.Background(), png("a.png", 1))
	assert.ErrorIs(t, err, core.ErrNoActiveNote)
}

func TestSession_ClearSelectionPrunesEmptyNotes(t *testing.T) {
	ctx := context.Background()
	s, repo, store := newSession(t)

	empty, err := s.NewNote(ctx)
	require.NoError(t, err)
	require.NoError(t, s.ClearSelection(ctx))
	assert.False(t, repo.Exists(empty.ID))

	n, _ := s.NewNote(ctx)
	_, err = s.Edit(ctx, "  ", "body")
	require.NoError(t, err)
	require.NoError(t, s.ClearSelection(ctx))

	got, err := repo.Get(n.ID)
	require.NoError(t, err)
	assert.Equal(t, core.UntitledNote, got.Title)
	_, err = store.Get(ctx, core.CollectionMemos, n.ID)
	assert.NoError(t, err, "leaving a note saves it")
}

func TestSession_UndoRedo(t *testing.T) {
	ctx := context.Background()
	sink := &recorded{}
	s, _, _ := newSession(t, editor.WithNotifier(sink), editor.WithHistory(0, time.Hour))
	_, err := s.NewNote(ctx)
	require.NoError(t, err)

	before, _ := s.Active()
	_, ok, err := s.Undo(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, core.SeverityInfo, sink.last())
	after, _ := s.Active()
	assert.Equal(t, before.Content, after.Content, "empty undo changes nothing")

	_, _ = s.Edit(ctx, "t", "h")
	_, _ = s.Edit(ctx, "t", "he")
	_, _ = s.Edit(ctx, "t", "hello")

	n, ok, err := s.Undo(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "", n.Content, "one burst is one entry")

	n, ok, err = s.Redo(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", n.Content)

	_, ok, _ = s.Redo(ctx)
	assert.False(t, ok)
}

func TestSession_NewEditAfterUndoClearsRedo(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newSession(t, editor.WithHistory(0, time.Hour))
	_, _ = s.NewNote(ctx)

	_, _ = s.Edit(ctx, "", "one")
	_, _, _ = s.Undo(ctx)
	_, _ = s.Edit(ctx, "", "two")
	_, _, _ = s.Undo(ctx)

	_, redo := s.History().Len()
	assert.Equal(t, 1, redo)
	n, ok, _ := s.Redo(ctx)
	require.True(t, ok)
	assert.Equal(t, "two", n.Content)
}

func TestSession_AttachDeleteRename(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newSession(t)
	_, _ = s.NewNote(ctx)
	_, err := s.Edit(ctx, "trip", "see")
	require.NoError(t, err)

	att, err := s.AttachImage(ctx, png("cat.png", 10))
	require.NoError(t, err)
	assert.Equal(t, "cat.png", att.TagName)

	n, _ := s.Active()
	assert.Equal(t, "see [📷cat.png] ", n.Content)
	require.Len(t, n.Images, 1)

	_, err = s.AttachImage(ctx, png("dog.png", 10))
	require.NoError(t, err)
	err = s.RenameAttachment(ctx, core.MediaImage, 1, "cat.png")
	assert.ErrorIs(t, err, core.ErrDuplicateTag)

	require.NoError(t, s.RenameAttachment(ctx, core.MediaImage, 0, "kitty.png"))
	n, _ = s.Active()
	assert.Contains(t, n.Content, "[📷kitty.png]")

	_, err = s.DeleteAttachment(ctx, core.MediaImage, 0)
	require.NoError(t, err)
	n, _ = s.Active()
	assert.NotContains(t, n.Content, "kitty")
	require.Len(t, n.Images, 1)
	assert.Equal(t, "dog.png", n.Images[0].TagName)
}

func TestSession_AttachLimits(t *testing.T) {
	ctx := context.Background()
	sink := &recorded{}
	s, _, _ := newSession(t, editor.WithNotifier(sink))
	_, _ = s.NewNote(ctx)

	_, err := s.AttachImage(ctx, registry.Upload{OriginalName: "a.txt", MimeType: "text/plain", SizeBytes: 1})
	assert.ErrorIs(t, err, core.ErrNotAnImage)
	assert.Equal(t, core.SeverityWarning, sink.last())

	_, err = s.AttachImage(ctx, png("big.png", 6<<20))
	assert.ErrorIs(t, err, core.ErrAttachmentTooLarge)
}

func TestSession_QuotaConfirmation(t *testing.T) {
	ctx := context.Background()
	quota := fixedQuota{Used: 95, Total: 100}

	declining, _, _ := newSession(t, editor.WithQuota(quota), editor.WithConfirmer(core.NeverConfirm))
	_, _ = declining.NewNote(ctx)
	_, err := declining.AttachImage(ctx, png("a.png", 1))
	assert.ErrorIs(t, err, core.ErrQuotaDeclined)
	n, _ := declining.Active()
	assert.Empty(t, n.Images)

	approving, _, _ := newSession(t, editor.WithQuota(quota), editor.WithConfirmer(core.AlwaysConfirm))
	_, _ = approving.NewNote(ctx)
	_, err = approving.AttachImage(ctx, png("a.png", 1))
	require.NoError(t, err)

	roomy, _, _ := newSession(t, editor.WithQuota(fixedQuota{Used: 10, Total: 100}))
	_, _ = roomy.NewNote(ctx)
	_, err = roomy.AttachFile(ctx, registry.Upload{OriginalName: "x.pdf", SizeBytes: 1})
	require.NoError(t, err, "below the threshold no confirmation is needed")
}

func TestSession_OrphansNeedConfirmation(t *testing.T) {
	ctx := context.Background()
	var prompts []string
	answer := false
	confirm := core.ConfirmFunc(func(_ context.Context, prompt string) bool {
		prompts = append(prompts, prompt)
		return answer
	})
	s, _, _ := newSession(t, editor.WithConfirmer(confirm))
	_, _ = s.NewNote(ctx)
	_, _ = s.AttachImage(ctx, png("a.png", 1))
	_, _ = s.AttachFile(ctx, registry.Upload{OriginalName: "b.pdf", SizeBytes: 1})
	_, err := s.ClearMarkers(ctx)
	require.NoError(t, err)

	rep, err := s.Report()
	require.NoError(t, err)
	assert.Len(t, rep.Orphans, 2)

	_, err = s.DeleteOrphanAttachments(ctx)
	assert.ErrorIs(t, err, core.ErrConfirmationDeclined)
	require.Len(t, prompts, 1)

	answer = true
	removed, err := s.DeleteOrphanAttachments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	n, _ := s.Active()
	assert.Empty(t, n.Images)
	assert.Empty(t, n.Files)
}

func TestSession_EditHTMLAndRender(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newSession(t)
	_, _ = s.NewNote(ctx)
	_, _ = s.AttachImage(ctx, png("a.png", 1))

	html, err := s.RenderHTML()
	require.NoError(t, err)
	assert.Contains(t, html, "attachment-marker")

	_, err = s.EditHTML(ctx, "t", "intro "+html)
	require.NoError(t, err)
	n, _ := s.Active()
	assert.Contains(t, n.Content, "intro [📷a.png]")

	_, _ = s.Edit(ctx, "t", n.Content+" [📷ghost]")
	removed, err := s.CleanBrokenMarkers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	segs, err := s.Render()
	require.NoError(t, err)
	assert.NotEmpty(t, segs)
}
