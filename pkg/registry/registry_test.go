package registry_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/memovault/pkg/core"
	"github.com/aretw0/memovault/pkg/marker"
	"github.com/aretw0/memovault/pkg/registry"
)

func newRegistry() *registry.Registry {
	n := 0
	return registry.New(
		registry.WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
		registry.WithIDGenerator(func() string { n++; return fmt.Sprintf("att-%d", n) }),
	)
}

func TestAdd(t *testing.T) {
	r := newRegistry()
	note := core.NewNote("n1", time.Now())

	a, idx, err := r.Add(&note, core.MediaImage, registry.Upload{OriginalName: "cat.png", MimeType: "image/png", SizeBytes: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "cat.png", a.TagName)
	assert.Equal(t, "cat.png", a.OriginalName)
	assert.Equal(t, "att-1", a.ID)
	assert.Equal(t, core.MediaImage, a.MediaKind)

	t.Run("Duplicate original names are disambiguated", func(t *testing.T) {
		b, idx, err := r.Add(&note, core.MediaImage, registry.Upload{OriginalName: "cat.png", MimeType: "image/png"})
		require.NoError(t, err)
		assert.Equal(t, 1, idx)
		assert.Equal(t, "cat (2).png", b.TagName)
		assert.Equal(t, "cat.png", b.OriginalName)
	})

	t.Run("Kinds are independent", func(t *testing.T) {
		f, _, err := r.Add(&note, core.MediaFile, registry.Upload{OriginalName: "cat.png"})
		require.NoError(t, err)
		assert.Equal(t, "cat.png", f.TagName)
	})

	t.Run("Unnamed upload gets a positional name", func(t *testing.T) {
		f, _, err := r.Add(&note, core.MediaFile, registry.Upload{})
		require.NoError(t, err)
		assert.Equal(t, "file2", f.TagName)
	})
}

func TestAdd_Limits(t *testing.T) {
	r := newRegistry()
	note := core.NewNote("n1", time.Now())

	_, _, err := r.Add(&note, core.MediaImage, registry.Upload{OriginalName: "a.txt", MimeType: "text/plain"})
	assert.ErrorIs(t, err, core.ErrNotAnImage)

	_, _, err = r.Add(&note, core.MediaImage, registry.Upload{OriginalName: "big.png", MimeType: "image/png", SizeBytes: 6 << 20})
	assert.ErrorIs(t, err, core.ErrAttachmentTooLarge)

	_, _, err = r.Add(&note, core.MediaFile, registry.Upload{OriginalName: "big.bin", SizeBytes: 11 << 20})
	assert.ErrorIs(t, err, core.ErrAttachmentTooLarge)

	for i := 0; i < 10; i++ {
		_, _, err := r.Add(&note, core.MediaFile, registry.Upload{OriginalName: fmt.Sprintf("f%d", i)})
		require.NoError(t, err)
	}
	_, _, err = r.Add(&note, core.MediaFile, registry.Upload{OriginalName: "one-too-many"})
	assert.ErrorIs(t, err, core.ErrTooManyFiles)
	assert.Empty(t, note.Images)
}

func TestRemoveAt(t *testing.T) {
	r := newRegistry()
	note := core.NewNote("n1", time.Now())
	for _, name := range []string{"a", "b", "c"} {
		_, _, err := r.Add(&note, core.MediaFile, registry.Upload{OriginalName: name})
		require.NoError(t, err)
	}

	removed, err := r.RemoveAt(&note, core.MediaFile, 1)
	require.NoError(t, err)
	assert.Equal(t, "b", removed.TagName)
	require.Len(t, note.Files, 2)
	assert.Equal(t, "c", note.Files[1].TagName)

	_, err = r.RemoveAt(&note, core.MediaFile, 5)
	assert.ErrorIs(t, err, core.ErrIndexOutOfRange)
}

func TestRename(t *testing.T) {
	r := newRegistry()
	note := core.NewNote("n1", time.Now())
	for _, name := range []string{"a.png", "b.png"} {
		_, _, err := r.Add(&note, core.MediaImage, registry.Upload{OriginalName: name, MimeType: "image/png"})
		require.NoError(t, err)
	}

	old, err := r.Rename(&note, core.MediaImage, 0, "  first ")
	require.NoError(t, err)
	assert.Equal(t, "a.png", old)
	assert.Equal(t, "first", note.Images[0].TagName)
	assert.Equal(t, "a.png", note.Images[0].OriginalName)

	t.Run("Collision is rejected and state unchanged", func(t *testing.T) {
		before := note.Clone()
		_, err := r.Rename(&note, core.MediaImage, 0, "b.png")
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrDuplicateTag)

		var dup *core.DuplicateTagError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, 1, dup.Index)
		assert.Equal(t, before, note)
	})

	t.Run("Match is case sensitive", func(t *testing.T) {
		_, err := r.Rename(&note, core.MediaImage, 0, "B.png")
		assert.NoError(t, err)
	})

	t.Run("Renaming to own name is allowed", func(t *testing.T) {
		_, err := r.Rename(&note, core.MediaImage, 1, "b.png")
		assert.NoError(t, err)
	})

	t.Run("Invalid tags", func(t *testing.T) {
		_, err := r.Rename(&note, core.MediaImage, 0, "   ")
		assert.ErrorIs(t, err, core.ErrInvalidTag)
		_, err = r.Rename(&note, core.MediaImage, 0, "a]b")
		assert.ErrorIs(t, err, core.ErrInvalidTag)
		_, err = r.Rename(&note, core.MediaImage, 0, "x[📷y")
		assert.ErrorIs(t, err, core.ErrInvalidTag)
		_, err = r.Rename(&note, core.MediaImage, 0, "x[📎y")
		assert.ErrorIs(t, err, core.ErrInvalidTag)
	})
}

func TestAdd_NameThatOpensAMarker(t *testing.T) {
	r := newRegistry()
	note := core.NewNote("n1", time.Now())

	a, _, err := r.Add(&note, core.MediaImage, registry.Upload{OriginalName: "x[📷y].png", MimeType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "x_📷y_.png", a.TagName)
	assert.Equal(t, "x[📷y].png", a.OriginalName)

	toks := marker.Parse("see " + marker.Format(core.MediaImage, a.TagName))
	require.Len(t, toks, 1)
	assert.Equal(t, a.TagName, toks[0].Tag)
	idx, ok := registry.Find(&note, core.MediaImage, toks[0].Tag)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestFindAndEffectiveName(t *testing.T) {
	note := core.Note{Images: []core.Attachment{
		{TagName: "kitty", OriginalName: "cat.png"},
		{OriginalName: "dog.png"},
		{},
	}}

	idx, ok := registry.Find(&note, core.MediaImage, "kitty")
	assert.True(t, ok)
	assert.Equal(t, 0, idx)

	_, ok = registry.Find(&note, core.MediaImage, "cat.png")
	assert.False(t, ok, "a tagged attachment no longer answers to its original name")

	idx, ok = registry.Find(&note, core.MediaImage, "dog.png")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = registry.Find(&note, core.MediaImage, "image3")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok = registry.Find(&note, core.MediaFile, "kitty")
	assert.False(t, ok)
}

func TestMigrate(t *testing.T) {
	r := newRegistry()
	created := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	note := core.Note{
		ID:        "legacy",
		CreatedAt: created,
		Images:    []core.Attachment{{Payload: "data:image/png;base64,AA=="}, {Payload: "x", TagName: "named"}},
	}

	assert.True(t, r.Migrate(&note))
	assert.NotNil(t, note.Files)
	assert.Equal(t, "image1", note.Images[0].TagName)
	assert.Equal(t, "att-1", note.Images[0].ID)
	assert.Equal(t, core.MediaImage, note.Images[0].MediaKind)
	assert.Equal(t, created, note.Images[0].CreatedAt)
	assert.Equal(t, "named", note.Images[1].OriginalName)

	assert.False(t, r.Migrate(&note), "migration is idempotent")
}

func TestMigrate_DuplicateTags(t *testing.T) {
	r := newRegistry()
	note := core.Note{
		ID: "legacy",
		Images: []core.Attachment{
			{TagName: "a.png"},
			{TagName: "a.png"},
			{OriginalName: "a.png"},
		},
	}

	assert.True(t, r.Migrate(&note))
	assert.Equal(t, "a.png", note.Images[0].TagName)
	assert.Equal(t, "a (2).png", note.Images[1].TagName)
	assert.Equal(t, "a (3).png", note.Images[2].TagName)
	assert.Equal(t, "a.png", note.Images[1].OriginalName)

	idx, ok := registry.Find(&note, core.MediaImage, "a.png")
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.False(t, r.Migrate(&note))
}
