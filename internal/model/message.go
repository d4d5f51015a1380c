package model

import (
	"fmt"
	"strings"
	"time"
)

// Reserved folder tokens. A nil folder means the default location for the
// message's provider; these tokens mark system locations.
const (
	FolderSent   = "__sent__"
	FolderDrafts = "__drafts__"
	FolderTrash  = "__trash__"
)

// ProviderPromo is the synthetic provider key owning the promo bucket and
// its sub-folders.
const ProviderPromo = "__promo__"

// Folder types.
const (
	FolderTypeCustom = "custom"
	FolderTypeSystem = "system"
)

// FetchRange selects the window strategy for a single remote sync pass.
type FetchRange string

const (
	FetchLatest  FetchRange = "latest"
	FetchWeek    FetchRange = "week"
	FetchMonth   FetchRange = "month"
	FetchQuarter FetchRange = "quarter"
	FetchYear    FetchRange = "year"
	FetchCustom  FetchRange = "custom"
	FetchAll     FetchRange = "all"
)

// Days returns the lookback in days for day-bounded ranges. The second
// return is false for latest/all, which are not day-bounded.
func (r FetchRange) Days(customDays int) (int, bool) {
	switch r {
	case FetchWeek:
		return 7, true
	case FetchMonth:
		return 30, true
	case FetchQuarter:
		return 90, true
	case FetchYear:
		return 365, true
	case FetchCustom:
		if customDays < 1 {
			customDays = 30
		}
		return customDays, true
	default:
		return 0, false
	}
}

// DeleteMode distinguishes local-only permanent deletion from deletion
// that also instructs the remote mailbox.
type DeleteMode string

const (
	DeleteLocalOnly DeleteMode = "local_only"
	DeleteRemote    DeleteMode = "remote"
)

// Attachment holds metadata about a message attachment. Only presence is
// recorded at ingest time, never the payload.
type Attachment struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// Message is the unit of mail held in the local store.
type Message struct {
	// MessageID is the stable external identifier and primary key.
	// Synthesized from timestamp and sender when the remote message
	// carries none.
	MessageID string

	// OriginalTo is the recipient line as fetched, possibly suffixed with
	// a direct-delivery marker.
	OriginalTo string

	Subject string
	Sender  string

	// DisplayDate is the fixed-timezone human-readable date string.
	DisplayDate string

	// Timestamp orders messages and bounds incremental fetch windows.
	Timestamp time.Time

	// RawContent is the full original RFC 822 representation.
	RawContent string

	// Provider is the domain derived from OriginalTo.
	Provider string

	Read    bool
	Promo   bool
	Replied bool
	Deleted bool

	// Folder is nil for the default location, or a reserved token or
	// custom folder name.
	Folder *string

	Attachments []Attachment
}

// Validate checks the fields every persisted message must carry.
func (m *Message) Validate() error {
	if strings.TrimSpace(m.MessageID) == "" {
		return fmt.Errorf("message id must not be empty")
	}
	if m.Timestamp.IsZero() {
		return fmt.Errorf("message %s: timestamp must be set", m.MessageID)
	}
	return nil
}

// HasAttachments reports whether attachment metadata was extracted.
func (m *Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// PromoRule is a learned routing rule over normalized sender addresses.
// The pattern uses SQL LIKE wildcards: % for any run, _ for any single
// character.
type PromoRule struct {
	ID            int64
	SenderPattern string

	// TargetFolder routes matches into a promo sub-folder; nil means the
	// generic promo bucket.
	TargetFolder *string

	// MatchCount increments each time the rule classifies a message,
	// never at rule creation.
	MatchCount int
	AddedAt    time.Time
}

// Folder is a named sub-location scoped to a provider key.
type Folder struct {
	ID        int64
	Provider  string
	Name      string
	Type      string
	CreatedAt time.Time
}

// Tombstone records a permanently removed message id so that remote sync
// never reintroduces it.
type Tombstone struct {
	MessageID string
	DeletedAt time.Time
	Mode      DeleteMode
}
