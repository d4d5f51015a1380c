package engine

import (
	"context"

	"github.com/tmaeda/mailhub/internal/model"
)

// Trash moves messages into the trash folder. Restorable until the trash
// is emptied or the message is deleted individually.
func (e *Engine) Trash(ctx context.Context, ids []string) error {
	return e.store.MoveToTrash(ctx, ids)
}

// Restore moves trashed messages back to their default location.
func (e *Engine) Restore(ctx context.Context, ids []string) error {
	return e.store.RestoreFromTrash(ctx, ids)
}

// RestoreAll restores every trashed message of a provider key and
// returns how many moved.
func (e *Engine) RestoreAll(ctx context.Context, provider string) (int, error) {
	return e.store.RestoreTrashedByProvider(ctx, provider)
}

// Delete permanently removes a message: the local row is replaced by a
// tombstone in one transaction, and in remote mode the server copy is
// removed best-effort afterwards. A remote failure is logged, never
// rolled back; the tombstone already guarantees the message stays gone
// locally.
func (e *Engine) Delete(ctx context.Context, id string) error {
	mode := e.cfg.DeleteMode

	if err := e.store.PermanentlyDelete(ctx, id, mode); err != nil {
		return err
	}

	if mode == model.DeleteRemote && e.deleter != nil {
		go e.deleteRemote(id)
	}
	return nil
}

// EmptyTrash permanently deletes every trashed message of a provider key
// and returns how many were removed.
func (e *Engine) EmptyTrash(ctx context.Context, provider string) (int, error) {
	ids, err := e.store.ListTrashedIDs(ctx, provider)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		if err := e.Delete(ctx, id); err != nil {
			return removed, err
		}
		removed++
	}

	e.log.Info("emptied trash", "provider", provider, "removed", removed)
	return removed, nil
}

// deleteRemote is the fire-and-forget server-side half of a permanent
// delete.
func (e *Engine) deleteRemote(id string) {
	ctx := context.Background()
	if err := e.deleter.DeleteByMessageID(ctx, id); err != nil {
		e.log.Warn("remote delete failed", "message_id", id, "error", err)
		return
	}
	e.log.Info("deleted on server", "message_id", id)
}
