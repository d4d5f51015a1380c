// Package engine is the command surface tying the store, the classifier,
// and the remote endpoints together. Every user-visible operation goes
// through it; the UI layer holds no authoritative state.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tmaeda/mailhub/internal/model"
	"github.com/tmaeda/mailhub/internal/remote"
	"github.com/tmaeda/mailhub/internal/store"
)

// Fetcher downloads one window of remote mail.
type Fetcher interface {
	Fetch(ctx context.Context, cfg model.FetchConfig, progress func(current, total int)) ([]model.Message, error)
}

// Sender delivers outgoing mail.
type Sender interface {
	Send(out remote.Outgoing) error
}

// RemoteDeleter removes a message from the remote mailbox by id.
type RemoteDeleter interface {
	DeleteByMessageID(ctx context.Context, messageID string) error
}

// Classifier is the rule engine surface the command layer drives.
type Classifier interface {
	store.Classifier
	ReclassifyExisting(ctx context.Context) (int, error)
	Learn(ctx context.Context, senders []string, targetFolder *string) ([]string, error)
	Release(ctx context.Context, senders []string, deleteRules bool) ([]string, error)
}

// Engine executes user commands against the local store and the remote
// account. Configuration is passed in at construction; there is no
// process-wide state.
type Engine struct {
	store      store.Store
	classifier Classifier
	fetcher    Fetcher
	sender     Sender
	deleter    RemoteDeleter
	cfg        *model.AppConfig
	log        *slog.Logger

	mu       sync.Mutex
	fetching bool
}

// New wires an engine from its collaborators.
func New(
	st store.Store,
	classifier Classifier,
	fetcher Fetcher,
	sender Sender,
	deleter RemoteDeleter,
	cfg *model.AppConfig,
	log *slog.Logger,
) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:      st,
		classifier: classifier,
		fetcher:    fetcher,
		sender:     sender,
		deleter:    deleter,
		cfg:        cfg,
		log:        log,
	}
}

// Query serves one filtered, searched page of messages.
func (e *Engine) Query(ctx context.Context, filter store.MessageFilter, page store.Page) (*store.QueryResult, error) {
	return e.store.QueryMessages(ctx, filter, page)
}

// GetMessage returns a single message, or nil when absent.
func (e *Engine) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	return e.store.GetMessage(ctx, id)
}

// MarkRead flips the read flag on a batch of messages.
func (e *Engine) MarkRead(ctx context.Context, ids []string, read bool) error {
	return e.store.MarkRead(ctx, ids, read)
}

// MoveToFolder reassigns a batch of messages; a nil folder restores the
// default location.
func (e *Engine) MoveToFolder(ctx context.Context, ids []string, folder *string) error {
	return e.store.MoveToFolder(ctx, ids, folder)
}

// MoveToPromo routes messages into the promo bucket or one of its
// sub-folders. With learn set, one rule per distinct sender domain is
// derived so future mail from those domains classifies automatically;
// the returned slice holds the learned patterns.
func (e *Engine) MoveToPromo(
	ctx context.Context,
	ids []string,
	targetFolder *string,
	learn bool,
) ([]string, error) {
	if err := e.store.SetPromo(ctx, ids, true, targetFolder); err != nil {
		return nil, err
	}
	if !learn {
		return nil, nil
	}

	senders, err := e.sendersOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	patterns, err := e.classifier.Learn(ctx, senders, targetFolder)
	if err != nil {
		return nil, err
	}

	e.log.Info("learned promo rules", "count", len(patterns))
	return patterns, nil
}

// ReleaseFromPromo moves messages back to their provider inbox. With
// deleteRules set, the rules derived from those senders' domains are
// removed too; the returned slice reports the affected patterns either
// way, so callers can warn when surviving rules will re-route future
// mail.
func (e *Engine) ReleaseFromPromo(
	ctx context.Context,
	ids []string,
	deleteRules bool,
) ([]string, error) {
	if err := e.store.SetPromo(ctx, ids, false, nil); err != nil {
		return nil, err
	}

	senders, err := e.sendersOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	return e.classifier.Release(ctx, senders, deleteRules)
}

// Reclassify applies the current rules to all non-promo messages and
// returns how many moved.
func (e *Engine) Reclassify(ctx context.Context) (int, error) {
	moved, err := e.classifier.ReclassifyExisting(ctx)
	if err != nil {
		return moved, err
	}
	if moved > 0 {
		e.log.Info("reclassified existing messages", "moved", moved)
	}
	return moved, nil
}

// ListRules returns all promo rules in evaluation order.
func (e *Engine) ListRules(ctx context.Context) ([]model.PromoRule, error) {
	return e.store.ListPromoRules(ctx)
}

// AddRule registers a manual promo rule.
func (e *Engine) AddRule(ctx context.Context, pattern string, targetFolder *string) error {
	return e.store.UpsertPromoRule(ctx, pattern, targetFolder)
}

// DeleteRule removes a promo rule by its pattern.
func (e *Engine) DeleteRule(ctx context.Context, pattern string) error {
	return e.store.DeletePromoRule(ctx, pattern)
}

// CreateFolder adds a custom folder under a provider key.
func (e *Engine) CreateFolder(ctx context.Context, provider, name string) error {
	return e.store.CreateFolder(ctx, provider, name, model.FolderTypeCustom)
}

// ListFolders returns the folders of a provider key.
func (e *Engine) ListFolders(ctx context.Context, provider string) ([]model.Folder, error) {
	return e.store.ListFolders(ctx, provider)
}

// DeleteFolder removes a folder, moving its messages back to the default
// location.
func (e *Engine) DeleteFolder(ctx context.Context, provider, name string) error {
	return e.store.DeleteFolder(ctx, provider, name)
}

// RenameFolder renames a folder and relabels its messages.
func (e *Engine) RenameFolder(ctx context.Context, provider, oldName, newName string) error {
	return e.store.RenameFolder(ctx, provider, oldName, newName)
}

// ListProviders returns the distinct provider keys present in the store.
func (e *Engine) ListProviders(ctx context.Context) ([]string, error) {
	return e.store.ListProviders(ctx)
}

// ListTombstones returns all deletion tombstones.
func (e *Engine) ListTombstones(ctx context.Context) ([]model.Tombstone, error) {
	return e.store.ListTombstones(ctx)
}

// ClearTombstones drops all tombstones, allowing previously deleted mail
// to be re-imported on the next fetch.
func (e *Engine) ClearTombstones(ctx context.Context) (int, error) {
	return e.store.ClearTombstones(ctx)
}

// ResetStore drops and recreates all local data.
func (e *Engine) ResetStore(ctx context.Context) error {
	e.log.Warn("resetting local store")
	return e.store.Reset(ctx)
}

// sendersOf resolves the sender line of each id, skipping missing rows.
func (e *Engine) sendersOf(ctx context.Context, ids []string) ([]string, error) {
	senders := make([]string, 0, len(ids))
	for _, id := range ids {
		msg, err := e.store.GetMessage(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolving sender of %s: %w", id, err)
		}
		if msg == nil {
			continue
		}
		senders = append(senders, msg.Sender)
	}
	return senders, nil
}
