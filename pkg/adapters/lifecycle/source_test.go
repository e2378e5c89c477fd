package lifecycle_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/memovault/pkg/adapters/lifecycle"
	"github.com/aretw0/memovault/pkg/core"
)

func TestSource_ForwardsFilteredEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	in := make(chan core.Event, 3)
	in <- core.Event{Type: core.EventModify, Collection: core.CollectionVersions, Key: "1"}
	in <- core.Event{Type: core.EventModify, Collection: core.CollectionMemos, Key: "n1"}
	close(in)

	src := lifecycle.NewSource(in, func(e core.Event) bool { return e.Collection == core.CollectionMemos })
	require.NoError(t, src.Start(ctx))

	var got []string
	for e := range src.Events() {
		got = append(got, fmt.Sprint(e))
	}
	assert.Equal(t, []string{"MODIFY memos/n1"}, got)
}
