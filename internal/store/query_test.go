package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tmaeda/mailhub/internal/model"
	"github.com/tmaeda/mailhub/internal/store"
	"github.com/tmaeda/mailhub/tests/testutil"
)

func TestQuerySearchOrGrammar(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now()

	first := testMessage("s1", "a@one.example", "x@y.example", now)
	first.Subject = "AI 開発 progress report"
	second := testMessage("s2", "a@one.example", "x@y.example", now.Add(time.Minute))
	second.Subject = "weekly newsletter"
	third := testMessage("s3", "a@one.example", "x@y.example", now.Add(2*time.Minute))
	third.Subject = "lunch plans"

	mustSave(t, s, first, second, third)

	result, err := s.QueryMessages(ctx,
		store.MessageFilter{Search: "AI 開発 OR newsletter"},
		store.Page{Number: 1, Size: 10})
	if err != nil {
		t.Fatalf("QueryMessages: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("total = %d, want 2", result.Total)
	}
	for _, msg := range result.Messages {
		if msg.MessageID == "s3" {
			t.Error("message matching neither clause returned")
		}
	}
}

func TestQuerySearchTokensConjoin(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now()

	both := testMessage("c1", "a@one.example", "x@y.example", now)
	both.Subject = "AI 開発"
	onlyOne := testMessage("c2", "a@one.example", "x@y.example", now)
	onlyOne.Subject = "AI only"
	mustSave(t, s, both, onlyOne)

	result, err := s.QueryMessages(ctx,
		store.MessageFilter{Search: "AI 開発"},
		store.Page{Number: 1, Size: 10})
	if err != nil {
		t.Fatalf("QueryMessages: %v", err)
	}
	if result.Total != 1 || result.Messages[0].MessageID != "c1" {
		t.Fatalf("conjoined search returned %d rows", result.Total)
	}
}

func TestQueryAttachmentShortcut(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now()

	withAtt := testMessage("att-1", "a@one.example", "x@y.example", now)
	withAtt.Attachments = []model.Attachment{
		{Filename: "report.pdf", Size: 2048, ContentType: "application/pdf"},
	}
	without := testMessage("att-0", "a@one.example", "x@y.example", now)
	mustSave(t, s, withAtt, without)

	for _, term := range []string{"添付", "添付あり", "attachment"} {
		result, err := s.QueryMessages(ctx,
			store.MessageFilter{Search: term},
			store.Page{Number: 1, Size: 10})
		if err != nil {
			t.Fatalf("QueryMessages(%q): %v", term, err)
		}
		if result.Total != 1 || result.Messages[0].MessageID != "att-1" {
			t.Errorf("search %q returned %d rows", term, result.Total)
		}
	}
}

func TestQueryPageClamp(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		mustSave(t, s, testMessage(
			fmt.Sprintf("p%d", i), "a@one.example", "x@y.example",
			base.Add(time.Duration(i)*time.Minute)))
	}

	// Way past the end clamps to the last page.
	result, err := s.QueryMessages(ctx, store.MessageFilter{}, store.Page{Number: 99, Size: 2})
	if err != nil {
		t.Fatalf("QueryMessages: %v", err)
	}
	if result.Page != 3 || result.TotalPages != 3 {
		t.Fatalf("page = %d/%d, want 3/3", result.Page, result.TotalPages)
	}
	if len(result.Messages) != 1 {
		t.Fatalf("last page has %d rows, want 1", len(result.Messages))
	}

	// Below the start clamps to the first page.
	result, err = s.QueryMessages(ctx, store.MessageFilter{}, store.Page{Number: 0, Size: 2})
	if err != nil {
		t.Fatalf("QueryMessages: %v", err)
	}
	if result.Page != 1 || len(result.Messages) != 2 {
		t.Fatalf("page = %d with %d rows, want 1 with 2", result.Page, len(result.Messages))
	}
}

func TestQueryOrdersNewestFirst(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mustSave(t, s,
		testMessage("old", "a@one.example", "x@y.example", base),
		testMessage("new", "a@one.example", "x@y.example", base.Add(time.Hour)),
	)

	result, err := s.QueryMessages(ctx, store.MessageFilter{}, store.Page{Number: 1, Size: 10})
	if err != nil {
		t.Fatalf("QueryMessages: %v", err)
	}
	if result.Messages[0].MessageID != "new" {
		t.Fatalf("first row = %s, want new", result.Messages[0].MessageID)
	}
}

func TestQuerySeparatesPromoFromInbox(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now()

	mustSave(t, s,
		testMessage("inbox-1", "a@one.example", "friend@home.example", now),
		testMessage("promo-1", "a@one.example", "ads@shop.example", now),
	)
	if err := s.SetPromo(ctx, []string{"promo-1"}, true, nil); err != nil {
		t.Fatalf("SetPromo: %v", err)
	}

	inbox, err := s.QueryMessages(ctx, store.MessageFilter{Promo: false}, store.Page{Number: 1, Size: 10})
	if err != nil {
		t.Fatalf("QueryMessages(inbox): %v", err)
	}
	if inbox.Total != 1 || inbox.Messages[0].MessageID != "inbox-1" {
		t.Fatalf("inbox view = %d rows", inbox.Total)
	}

	promo, err := s.QueryMessages(ctx, store.MessageFilter{Promo: true}, store.Page{Number: 1, Size: 10})
	if err != nil {
		t.Fatalf("QueryMessages(promo): %v", err)
	}
	if promo.Total != 1 || promo.Messages[0].MessageID != "promo-1" {
		t.Fatalf("promo view = %d rows", promo.Total)
	}
}

func TestQueryFiltersByProviderAndFolder(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now()

	mustSave(t, s,
		testMessage("f1", "a@one.example", "x@y.example", now),
		testMessage("f2", "a@one.example", "x@y.example", now),
		testMessage("g1", "a@two.example", "x@y.example", now),
	)
	work := "work"
	if err := s.MoveToFolder(ctx, []string{"f1"}, &work); err != nil {
		t.Fatalf("MoveToFolder: %v", err)
	}

	provider := "one.example"
	result, err := s.QueryMessages(ctx,
		store.MessageFilter{Provider: &provider, Folder: &work},
		store.Page{Number: 1, Size: 10})
	if err != nil {
		t.Fatalf("QueryMessages: %v", err)
	}
	if result.Total != 1 || result.Messages[0].MessageID != "f1" {
		t.Fatalf("filtered view = %d rows", result.Total)
	}

	// No folder constraint shows the provider's whole view.
	result, err = s.QueryMessages(ctx,
		store.MessageFilter{Provider: &provider},
		store.Page{Number: 1, Size: 10})
	if err != nil {
		t.Fatalf("QueryMessages: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("provider view = %d rows, want 2", result.Total)
	}
}
