package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/memovault/pkg/adapters/memory"
	"github.com/aretw0/memovault/pkg/core"
)

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := memory.New(memory.WithCapacity(1000))

	_, err := s.Get(ctx, core.CollectionMemos, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.Put(ctx, core.CollectionMemos, "b", []byte("2")))
	require.NoError(t, s.Put(ctx, core.CollectionMemos, "a", []byte("1")))

	got, err := s.Get(ctx, core.CollectionMemos, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	got[0] = 'x'
	again, _ := s.Get(ctx, core.CollectionMemos, "a")
	assert.Equal(t, []byte("1"), again, "values are copied out")

	list, err := s.List(ctx, core.CollectionMemos)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Key)

	require.NoError(t, s.Delete(ctx, core.CollectionMemos, "a"))
	assert.ErrorIs(t, s.Delete(ctx, core.CollectionMemos, "a"), core.ErrNotFound)

	q, err := s.Estimate(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), q.Used)
	assert.Equal(t, uint64(1000), q.Total)
}

func TestStore_NextKeyAndReplaceAll(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	k1, err := s.NextKey(ctx, core.CollectionVersions)
	require.NoError(t, err)
	k2, _ := s.NextKey(ctx, core.CollectionVersions)
	assert.Equal(t, "000000000001", k1)
	assert.Less(t, k1, k2)

	require.NoError(t, s.Put(ctx, core.CollectionMemos, "old", []byte("x")))
	require.NoError(t, s.ReplaceAll(ctx, core.CollectionMemos, []core.Record{{Key: "new", Value: []byte("y")}}))

	list, err := s.List(ctx, core.CollectionMemos)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].Key)
}

func TestStore_Closed(t *testing.T) {
	s := memory.New()
	require.NoError(t, s.Close())
	assert.Error(t, s.Put(context.Background(), core.CollectionMemos, "a", nil))
}
