package store

import (
	"context"
	"time"

	"github.com/tmaeda/mailhub/internal/model"
)

// Classifier decides promo routing for an incoming message's sender.
// Implementations increment the matching rule's counter as a side effect.
type Classifier interface {
	Classify(ctx context.Context, sender string) (promo bool, targetFolder *string, err error)
}

// MessageFilter selects the message set served to the UI. Promo is always
// exact: a view shows either promo mail or normal mail, never both.
type MessageFilter struct {
	Promo    bool
	Provider *string
	Folder   *string
	Search   string
}

// Page requests one fixed-size page of a filtered view. Number is 1-based
// and clamped against the total by the query engine.
type Page struct {
	Number int
	Size   int
}

// QueryResult is one page of messages plus the unpaged total.
type QueryResult struct {
	Messages   []model.Message
	Total      int
	Page       int
	TotalPages int
}

// Store is the persistence interface owning messages, promo rules,
// folders, and deletion tombstones. All other components request reads
// and writes through it; none cache authoritative state.
type Store interface {
	// === Messages ===

	SaveMessages(ctx context.Context, msgs []model.Message, classifier Classifier) (int, error)
	ReplaceSentMessage(ctx context.Context, msg model.Message) error
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	QueryMessages(ctx context.Context, filter MessageFilter, page Page) (*QueryResult, error)

	MarkRead(ctx context.Context, ids []string, read bool) error
	MarkReplied(ctx context.Context, id string) error
	MoveToFolder(ctx context.Context, ids []string, folder *string) error
	SetPromo(ctx context.Context, ids []string, promo bool, folder *string) error

	// === Lifecycle ===

	MoveToTrash(ctx context.Context, ids []string) error
	RestoreFromTrash(ctx context.Context, ids []string) error
	RestoreTrashedByProvider(ctx context.Context, provider string) (int, error)
	ListTrashedIDs(ctx context.Context, provider string) ([]string, error)
	PermanentlyDelete(ctx context.Context, id string, mode model.DeleteMode) error

	// === Tombstones ===

	ListTombstones(ctx context.Context) ([]model.Tombstone, error)
	ClearTombstones(ctx context.Context) (int, error)
	KnownMessageIDs(ctx context.Context) (map[string]struct{}, error)

	// === Promo rules ===

	ListPromoRules(ctx context.Context) ([]model.PromoRule, error)
	UpsertPromoRule(ctx context.Context, pattern string, targetFolder *string) error
	DeletePromoRule(ctx context.Context, pattern string) error
	IncrementRuleMatch(ctx context.Context, pattern string) error
	ListNonPromoSenders(ctx context.Context) (map[string]string, error)

	// === Folders ===

	CreateFolder(ctx context.Context, provider, name, folderType string) error
	ListFolders(ctx context.Context, provider string) ([]model.Folder, error)
	DeleteFolder(ctx context.Context, provider, name string) error
	RenameFolder(ctx context.Context, provider, oldName, newName string) error

	// === Aggregates ===

	ListProviders(ctx context.Context) ([]string, error)
	MessageCount(ctx context.Context) (int, error)
	NewestTimestamp(ctx context.Context) (time.Time, error)
	OldestTimestamp(ctx context.Context) (time.Time, error)

	// === Administrative ===

	Reset(ctx context.Context) error
	Close() error
}
