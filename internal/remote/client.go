// Package remote talks to the aggregating account's IMAP and SMTP
// endpoints: windowed fetching with incremental dedup, best-effort server
// deletion, and outbound send.
package remote

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/tmaeda/mailhub/internal/model"
)

// dialTimeout bounds the TCP connect and TLS handshake to the IMAP
// server.
const dialTimeout = 10 * time.Second

// Client wraps go-imap v2 for the aggregating account. Each operation
// opens its own session and tears it down on return.
type Client struct {
	account model.AccountConfig
}

// NewClient creates an IMAP client bound to the aggregating account.
func NewClient(account model.AccountConfig) *Client {
	return &Client{account: account}
}

func (c *Client) mailbox() string {
	if c.account.IMAPMailbox != "" {
		return c.account.IMAPMailbox
	}
	return "INBOX"
}

// connect dials, authenticates, and selects the configured mailbox. The
// caller owns the returned session and must Logout.
func (c *Client) connect(_ context.Context) (*imapclient.Client, error) {
	addr := c.account.IMAPHost + ":" + c.account.IMAPPort

	client, err := imapclient.DialTLS(addr, &imapclient.Options{
		Dialer: &net.Dialer{Timeout: dialTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.account.Email, c.account.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{Account: c.account.Email, Message: err.Error()}
	}

	if _, err := client.Select(c.mailbox(), nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting %s: %w", c.mailbox(), err)
	}

	return client, nil
}

// ValidateConnection verifies the IMAP credentials by logging in and
// selecting the configured mailbox.
func (c *Client) ValidateConnection(ctx context.Context) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	return client.Logout().Wait()
}

// searchSince returns the UIDs of messages received on or after the given
// day, in mailbox order.
func searchSince(client *imapclient.Client, since time.Time) ([]imap.UID, error) {
	criteria := &imap.SearchCriteria{Since: since}
	data, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages since %s: %w",
			since.Format("2006-01-02"), err)
	}
	return data.AllUIDs(), nil
}

// searchAll returns every UID in the mailbox, in mailbox order.
func searchAll(client *imapclient.Client) ([]imap.UID, error) {
	data, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching all messages: %w", err)
	}
	return data.AllUIDs(), nil
}

// fetchEnvelopeIDs batch-fetches only the envelopes of the given UIDs and
// returns each message's Message-ID keyed by UID. This is the cheap
// header pass the incremental window uses for dedup before any full
// download.
func fetchEnvelopeIDs(client *imapclient.Client, uids []imap.UID) (map[imap.UID]string, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope: true,
		UID:      true,
	})
	defer fetchCmd.Close()

	ids := make(map[imap.UID]string, len(uids))
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		if buf.Envelope != nil {
			ids[buf.UID] = buf.Envelope.MessageID
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return ids, fmt.Errorf("fetching envelopes: %w", err)
	}
	return ids, nil
}

// fetchFull downloads the complete raw body of each UID without setting
// the seen flag, reporting progress after each message.
func fetchFull(
	client *imapclient.Client,
	uids []imap.UID,
	progress func(current, total int),
) ([]rawMessage, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	total := len(uids)
	processed := 0
	var messages []rawMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		processed++

		if buf, err := msg.Collect(); err == nil {
			messages = appendBodySection(messages, buf, bodySection)
		}
		// Progress counts units of work, so a message whose body could
		// not be collected still advances the bar.
		if progress != nil {
			progress(processed, total)
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetching message bodies: %w", err)
	}
	return messages, nil
}

// appendBodySection keeps a fetched message only when the requested body
// section actually came back.
func appendBodySection(
	messages []rawMessage,
	buf *imapclient.FetchMessageBuffer,
	section *imap.FetchItemBodySection,
) []rawMessage {
	raw := buf.FindBodySection(section)
	if raw == nil {
		return messages
	}
	return append(messages, rawMessage{uid: uint32(buf.UID), body: raw})
}

// DeleteByMessageID finds every copy of a message on the server by its
// Message-ID header, flags it deleted, and expunges. Used as the remote
// side effect of a permanent delete; failures here never undo the local
// deletion.
func (c *Client) DeleteByMessageID(ctx context.Context, messageID string) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	criteria := &imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{
			{Key: "Message-ID", Value: messageID},
		},
	}
	data, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return fmt.Errorf("searching for message %s: %w", messageID, err)
	}

	uids := data.AllUIDs()
	if len(uids) == 0 {
		return nil
	}

	uidSet := imap.UIDSetNum(uids...)
	storeCmd := client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("flagging message %s deleted: %w", messageID, err)
	}

	if err := client.Expunge().Close(); err != nil {
		return fmt.Errorf("expunging message %s: %w", messageID, err)
	}
	return nil
}
