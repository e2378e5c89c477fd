package versions_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/memovault/pkg/adapters/memory"
	"github.com/aretw0/memovault/pkg/core"
	"github.com/aretw0/memovault/pkg/versions"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newStore(t *testing.T, opts ...versions.Option) (*versions.Store, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	opts = append([]versions.Option{versions.WithClock(c.now)}, opts...)
	return versions.New(memory.New(), opts...), c
}

func sampleNotes(content string) []core.Note {
	n := core.NewNote("1", time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC))
	n.Title = "Packing list"
	n.Content = content
	n.Images = []core.Attachment{{ID: "a", TagName: "map.png", OriginalName: "map.png", MediaKind: core.MediaImage, SizeBytes: 3}}
	return []core.Note{n}
}

func TestCreate_AutomaticDedup(t *testing.T) {
	ctx := context.Background()
	store, c := newStore(t)
	notes := sampleNotes("tent [📷map.png]")

	_, created, err := store.Create(ctx, "", notes)
	require.NoError(t, err)
	assert.True(t, created)

	c.advance(time.Minute)
	_, created, err = store.Create(ctx, versions.AutoDescription, notes)
	require.NoError(t, err)
	assert.False(t, created, "inside the window")

	c.advance(10 * time.Minute)
	_, created, err = store.Create(ctx, "", notes)
	require.NoError(t, err)
	assert.False(t, created, "unchanged collection")

	_, created, err = store.Create(ctx, "", sampleNotes("tent, stove [📷map.png]"))
	require.NoError(t, err)
	assert.True(t, created)

	infos, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestCreate_ExplicitAlwaysProceeds(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	notes := sampleNotes("same")

	_, created, err := store.Create(ctx, versions.BeforeDelete, notes)
	require.NoError(t, err)
	assert.True(t, created)
	_, created, err = store.Create(ctx, versions.BeforeDelete, notes)
	require.NoError(t, err)
	assert.True(t, created)

	infos, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, 1, infos[0].NoteCount)
	assert.Equal(t, 1, infos[0].ImageCount)
}

func TestCreate_EmptyCollection(t *testing.T) {
	store, _ := newStore(t)
	_, created, err := store.Create(context.Background(), "manual", nil)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestCreate_Retention(t *testing.T) {
	ctx := context.Background()
	store, c := newStore(t)

	var first string
	for i := range 21 {
		snap, created, err := store.Create(ctx, "checkpoint", sampleNotes("v"))
		require.NoError(t, err)
		require.True(t, created)
		if i == 0 {
			first = snap.ID
		}
		c.advance(time.Second)
	}

	infos, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, versions.DefaultKeep)
	for i := 1; i < len(infos); i++ {
		assert.True(t, infos[i-1].Timestamp.After(infos[i].Timestamp), "newest first")
	}

	_, err = store.Get(ctx, first)
	assert.ErrorIs(t, err, core.ErrSnapshotNotFound)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	store, c := newStore(t, versions.WithKeep(5))

	for range 4 {
		_, _, err := store.Create(ctx, "checkpoint", sampleNotes("v"))
		require.NoError(t, err)
		c.advance(time.Second)
	}

	removed, err := store.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	infos, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 2)
	assert.Equal(t, 5, store.Keep())
}

func TestGet_ReturnsPrivateCopy(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	snap, _, err := store.Create(ctx, "manual", sampleNotes("original"))
	require.NoError(t, err)

	got, err := store.Get(ctx, snap.ID)
	require.NoError(t, err)
	got.Notes[0].Content = "changed"
	got.Notes[0].Images[0].TagName = "other.png"

	again, err := store.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Notes[0].Content)
	assert.Equal(t, "map.png", again.Notes[0].Images[0].TagName)
	assert.Equal(t, snap.Fingerprint, again.Fingerprint)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	snap, _, err := store.Create(ctx, "manual", sampleNotes("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, snap.ID))
	assert.ErrorIs(t, store.Delete(ctx, snap.ID), core.ErrSnapshotNotFound)
}

func TestFingerprint(t *testing.T) {
	a, err := versions.Fingerprint(sampleNotes("one"))
	require.NoError(t, err)
	b, err := versions.Fingerprint(sampleNotes("one"))
	require.NoError(t, err)
	c, err := versions.Fingerprint(sampleNotes("two"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
	assert.True(t, versions.IsAutomatic(""))
	assert.False(t, versions.IsAutomatic(versions.BeforeRestore))
}
