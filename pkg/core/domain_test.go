package core_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/memovault/pkg/core"
)

func TestAttachment_UnmarshalLegacy(t *testing.T) {
	t.Run("bare string payload", func(t *testing.T) {
		var note core.Note
		err := json.Unmarshal([]byte(`{"id":"1","images":["data:image/png;base64,AA=="],"files":[]}`), &note)
		require.NoError(t, err)
		require.Len(t, note.Images, 1)
		assert.Equal(t, "data:image/png;base64,AA==", note.Images[0].Payload)
		assert.Empty(t, note.Images[0].TagName)
	})

	t.Run("old field names", func(t *testing.T) {
		var a core.Attachment
		err := json.Unmarshal([]byte(`{"id":"f1","data":"x","fileName":"report.pdf","size":42,"type":"application/pdf"}`), &a)
		require.NoError(t, err)
		assert.Equal(t, "x", a.Payload)
		assert.Equal(t, "report.pdf", a.OriginalName)
		assert.Equal(t, int64(42), a.SizeBytes)
		assert.Equal(t, "application/pdf", a.MimeType)
	})

	t.Run("current form survives a round trip", func(t *testing.T) {
		anchor := 3
		in := core.Attachment{ID: "a", Payload: "p", OriginalName: "cat.png", TagName: "kitty", SizeBytes: 10, MediaKind: core.MediaImage, TextAnchor: &anchor}
		data, err := json.Marshal(in)
		require.NoError(t, err)

		var out core.Attachment
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, in, out)
	})
}

func TestNote_UnmarshalLegacy(t *testing.T) {
	var note core.Note
	err := json.Unmarshal([]byte(`{"id":1700000000000,"title":"old","created":1700000000000,
		"files":[{"id":1700000000001.5,"name":"a.txt","timestamp":1700000000000}]}`), &note)
	require.NoError(t, err)

	assert.Equal(t, "1700000000000", note.ID)
	assert.Equal(t, "old", note.Title)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), note.CreatedAt)
	require.Len(t, note.Files, 1)
	assert.Equal(t, "1700000000001.5", note.Files[0].ID)
	assert.Equal(t, "a.txt", note.Files[0].OriginalName)
	assert.False(t, note.Files[0].CreatedAt.IsZero())

	var current core.Note
	require.NoError(t, json.Unmarshal([]byte(`{"id":"n1","createdAt":"2026-01-02T03:04:05Z"}`), &current))
	assert.Equal(t, "n1", current.ID)
	assert.Equal(t, 2026, current.CreatedAt.Year())
}

func TestNote_CloneIsDeep(t *testing.T) {
	anchor := 1
	n := core.NewNote("1", time.Now())
	n.Images = append(n.Images, core.Attachment{TagName: "a", TextAnchor: &anchor})
	n.Tags = []string{"x"}

	c := n.Clone()
	c.Images[0].TagName = "b"
	*c.Images[0].TextAnchor = 9
	c.Tags[0] = "y"

	assert.Equal(t, "a", n.Images[0].TagName)
	assert.Equal(t, 1, *n.Images[0].TextAnchor)
	assert.Equal(t, "x", n.Tags[0])
}

func TestNote_IsEmpty(t *testing.T) {
	n := core.NewNote("1", time.Now())
	assert.True(t, n.IsEmpty())

	n.Files = append(n.Files, core.Attachment{})
	assert.True(t, n.IsEmpty(), "files alone do not keep a note")

	n.Images = append(n.Images, core.Attachment{})
	assert.False(t, n.IsEmpty())
}

func TestDuplicateTagError_Is(t *testing.T) {
	var err error = &core.DuplicateTagError{Kind: core.MediaImage, Tag: "cat", Index: 0}
	assert.True(t, errors.Is(err, core.ErrDuplicateTag))
	assert.Contains(t, err.Error(), "cat")
}

func TestDataURLEncoder(t *testing.T) {
	enc := core.DataURLEncoder{}
	payload, err := enc.Encode("image/png", []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AQID", payload)

	mime, data, err := enc.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, _, err = enc.Decode("not a url")
	assert.Error(t, err)
}

func TestQuota_Ratio(t *testing.T) {
	assert.Zero(t, core.Quota{Used: 10}.Ratio())
	assert.InDelta(t, 0.5, core.Quota{Used: 5, Total: 10}.Ratio(), 1e-9)
}
