package remote

import (
	"strings"
	"testing"
)

func TestComposeMessage(t *testing.T) {
	body := composeMessage("hub@example.com", Outgoing{
		To:      "friend@home.example",
		Subject: "hello",
		Body:    "how are you",
	})

	header, content, found := strings.Cut(body, "\r\n\r\n")
	if !found {
		t.Fatal("no header/body separator")
	}
	for _, want := range []string{
		"From: hub@example.com",
		"To: friend@home.example",
		"Subject: hello",
		"Content-Type: text/plain; charset=UTF-8",
	} {
		if !strings.Contains(header, want) {
			t.Errorf("header missing %q", want)
		}
	}
	if content != "how are you" {
		t.Errorf("body = %q", content)
	}
}

func TestComposeMessageThreadsReply(t *testing.T) {
	body := composeMessage("hub@example.com", Outgoing{
		To:        "friend@home.example",
		Subject:   "Re: hello",
		Body:      "fine",
		InReplyTo: "<orig@home.example>",
	})

	if !strings.Contains(body, "In-Reply-To: <orig@home.example>\r\n") {
		t.Error("In-Reply-To header missing or double-bracketed")
	}
	if !strings.Contains(body, "References: <orig@home.example>\r\n") {
		t.Error("References header missing")
	}
}
