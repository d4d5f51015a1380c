package remote

import (
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

func TestAppendBodySectionSkipsMissingBody(t *testing.T) {
	section := &imap.FetchItemBodySection{Peek: true}

	with := &imapclient.FetchMessageBuffer{
		UID: 7,
		BodySection: []imapclient.FetchBodySectionBuffer{
			{Section: section, Bytes: []byte("raw")},
		},
	}
	without := &imapclient.FetchMessageBuffer{UID: 8}

	var messages []rawMessage
	messages = appendBodySection(messages, with, section)
	messages = appendBodySection(messages, without, section)

	if len(messages) != 1 {
		t.Fatalf("kept %d messages, want only the one with a body", len(messages))
	}
	if messages[0].uid != 7 || string(messages[0].body) != "raw" {
		t.Errorf("kept message = %+v", messages[0])
	}
}
