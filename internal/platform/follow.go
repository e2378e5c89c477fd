package platform

import (
	"context"
	"fmt"

	"github.com/aretw0/memovault/pkg/adapters/lifecycle"
	"github.com/aretw0/memovault/pkg/core"
)

// Follow keeps the in-memory notes in step with changes other processes
// make to the store, calling onChange after each reload. It blocks until
// ctx is done.
func (v *Vault) Follow(ctx context.Context, onChange func(core.Event)) error {
	watchable, ok := v.Store.(core.Watchable)
	if !ok {
		return fmt.Errorf("store does not support watching")
	}

	events, err := watchable.Watch(ctx, core.CollectionMemos+"/*")
	if err != nil {
		return err
	}

	src := lifecycle.NewSource(events, func(e core.Event) bool {
		return e.Collection == core.CollectionMemos && v.Session.ActiveID() != e.Key
	})
	if err := src.Start(ctx); err != nil {
		return err
	}

	for le := range src.Events() {
		e, ok := le.(core.Event)
		if !ok {
			continue
		}
		if err := v.Repository.Reload(ctx, e.Key); err != nil {
			v.logger.Warn("reload failed", "key", e.Key, "error", err)
			continue
		}
		v.logger.Debug("note reloaded", "event", e.String())
		if onChange != nil {
			onChange(e)
		}
	}
	return nil
}
