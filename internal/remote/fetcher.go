package remote

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/tmaeda/mailhub/internal/model"
)

// firstRunLimit caps the batch taken when the latest window has no local
// timestamp to anchor on, and when the incremental path fails.
const firstRunLimit = 100

// displayZone is the fixed timezone all display dates are rendered in.
var displayZone = time.FixedZone("JST", 9*60*60)

const (
	displayDateLayout = "2006/01/02 15:04:05"
	noDateDisplay     = "(No Date)"
)

// LocalIndex is the slice of the store the incremental window consults:
// the newest stored timestamp anchors the search, and the known-id set
// filters out messages already downloaded or tombstoned.
type LocalIndex interface {
	KnownMessageIDs(ctx context.Context) (map[string]struct{}, error)
	NewestTimestamp(ctx context.Context) (time.Time, error)
}

// Fetcher downloads one window of mail from the aggregating mailbox and
// normalizes each message into a store-ready record.
type Fetcher struct {
	client *Client
	index  LocalIndex

	// email is the aggregating address, used to mark direct delivery.
	email string
}

// NewFetcher creates a fetcher for the aggregating account.
func NewFetcher(account model.AccountConfig, index LocalIndex) *Fetcher {
	return &Fetcher{
		client: NewClient(account),
		index:  index,
		email:  account.Email,
	}
}

// Fetch resolves the configured window, downloads the selected messages,
// and returns them normalized. Progress is reported after each downloaded
// message. An empty result is legitimate and not an error.
func (f *Fetcher) Fetch(
	ctx context.Context,
	cfg model.FetchConfig,
	progress func(current, total int),
) ([]model.Message, error) {
	client, err := f.client.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	uids, err := f.resolveWindow(ctx, client, cfg)
	if err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return nil, nil
	}

	raws, err := fetchFull(client, uids, progress)
	if err != nil {
		return nil, err
	}

	messages := make([]model.Message, 0, len(raws))
	for _, raw := range raws {
		messages = append(messages, f.normalize(raw))
	}
	return messages, nil
}

// resolveWindow maps the configured range to a UID set. Day-bounded
// ranges search SINCE; all searches everything; latest is incremental.
func (f *Fetcher) resolveWindow(
	ctx context.Context,
	client *imapclient.Client,
	cfg model.FetchConfig,
) ([]imap.UID, error) {
	if days, ok := cfg.Range.Days(cfg.CustomDays); ok {
		return searchSince(client, time.Now().AddDate(0, 0, -days))
	}
	if cfg.Range == model.FetchAll {
		return searchAll(client)
	}
	return f.resolveLatest(ctx, client)
}

// resolveLatest selects only messages not yet stored locally. Any failure
// on the incremental path degrades to the most recent fixed-size batch
// instead of failing the fetch; the store's id dedup keeps the fallback
// harmless.
func (f *Fetcher) resolveLatest(
	ctx context.Context,
	client *imapclient.Client,
) ([]imap.UID, error) {
	uids, err := f.incrementalWindow(ctx, client)
	if err == nil {
		return uids, nil
	}

	all, err := searchAll(client)
	if err != nil {
		return nil, err
	}
	return tail(all, firstRunLimit), nil
}

// incrementalWindow lists candidates since the newest local timestamp,
// checks each candidate's id via a cheap batched envelope fetch, and
// keeps only ids not yet known locally. First run takes the most recent
// fixed-size batch instead.
func (f *Fetcher) incrementalWindow(
	ctx context.Context,
	client *imapclient.Client,
) ([]imap.UID, error) {
	newest, err := f.index.NewestTimestamp(ctx)
	if err != nil {
		return nil, err
	}

	if newest.IsZero() {
		all, err := searchAll(client)
		if err != nil {
			return nil, err
		}
		return tail(all, firstRunLimit), nil
	}

	candidates, err := searchSince(client, newest)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	envelopeIDs, err := fetchEnvelopeIDs(client, candidates)
	if err != nil {
		return nil, err
	}
	known, err := f.index.KnownMessageIDs(ctx)
	if err != nil {
		return nil, err
	}

	var fresh []imap.UID
	for _, uid := range candidates {
		id := canonicalID(envelopeIDs[uid])
		if id == "" {
			continue
		}
		if _, ok := known[id]; ok {
			continue
		}
		fresh = append(fresh, uid)
	}
	return fresh, nil
}

// normalize decodes one raw message into a store-ready record. Decode
// failures degrade field by field rather than dropping the message: an
// undated message gets the fetch time, an unidentified one a synthesized
// id.
func (f *Fetcher) normalize(raw rawMessage) model.Message {
	msg := model.Message{
		Timestamp:   time.Now().UTC(),
		DisplayDate: noDateDisplay,
		RawContent:  string(raw.body),
	}

	entity, err := message.Read(bytes.NewReader(raw.body))
	if entity == nil || (err != nil && !message.IsUnknownCharset(err)) {
		msg.MessageID = synthesizeID(msg.Timestamp, "")
		return msg
	}

	header := mail.Header{Header: entity.Header}

	msg.Subject, _ = header.Subject()
	msg.Sender, _ = header.Text("From")

	if date, err := header.Date(); err == nil && !date.IsZero() {
		local := date.In(displayZone)
		msg.Timestamp = local
		msg.DisplayDate = local.Format(displayDateLayout)
	}

	if id, err := header.MessageID(); err == nil && id != "" {
		msg.MessageID = canonicalID(id)
	} else {
		msg.MessageID = synthesizeID(msg.Timestamp, msg.Sender)
	}

	to, _ := header.Text("To")
	if f.email != "" && strings.Contains(to, f.email) {
		to = f.email + " (Direct)"
	}
	msg.OriginalTo = to

	msg.Attachments = extractAttachments(entity)
	return msg
}

// extractAttachments walks the MIME structure and records attachment
// metadata only. Payloads are read to measure size but never kept.
func extractAttachments(entity *message.Entity) []model.Attachment {
	mr := mail.NewReader(entity)
	defer mr.Close()

	var attachments []model.Attachment
	for {
		part, err := mr.NextPart()
		if err == io.EOF || err != nil {
			break
		}

		h, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}

		filename, _ := h.Filename()
		contentType, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		attachments = append(attachments, model.Attachment{
			Filename:    filename,
			Size:        int64(len(body)),
			ContentType: contentType,
		})
	}
	return attachments
}

// synthesizeID derives a stable identifier for messages without a
// Message-ID header. Two messages collide only when both sender and
// timestamp are identical; the nanosecond format keeps sub-second
// arrivals from the same sender distinct.
func synthesizeID(ts time.Time, sender string) string {
	return "NOID_" + ts.Format(time.RFC3339Nano) + "_" + sender
}

// canonicalID strips the angle brackets servers may or may not include
// around a Message-ID, so dedup compares like with like.
func canonicalID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<>")
}

// tail returns the last n elements, or all of them when fewer.
func tail(uids []imap.UID, n int) []imap.UID {
	if len(uids) <= n {
		return uids
	}
	return uids[len(uids)-n:]
}
