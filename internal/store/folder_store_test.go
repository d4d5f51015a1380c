package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tmaeda/mailhub/internal/model"
	"github.com/tmaeda/mailhub/tests/testutil"
)

func TestCreateAndListFolders(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.CreateFolder(ctx, "one.example", "work", ""); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if err := s.CreateFolder(ctx, "one.example", "archive", model.FolderTypeCustom); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}

	// Duplicate (provider, name) is rejected.
	if err := s.CreateFolder(ctx, "one.example", "work", ""); err == nil {
		t.Fatal("duplicate folder accepted")
	}
	// Same name under a different provider is fine.
	if err := s.CreateFolder(ctx, "two.example", "work", ""); err != nil {
		t.Fatalf("CreateFolder under second provider: %v", err)
	}
	// Empty names are rejected.
	if err := s.CreateFolder(ctx, "one.example", "  ", ""); err == nil {
		t.Fatal("blank folder name accepted")
	}

	folders, err := s.ListFolders(ctx, "one.example")
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("folders = %d, want 2", len(folders))
	}
	for _, f := range folders {
		if f.Type != model.FolderTypeCustom {
			t.Errorf("folder %s type = %q, want custom", f.Name, f.Type)
		}
	}
}

func TestDeleteFolderReassignsMessages(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := s.CreateFolder(ctx, "one.example", "work", ""); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}

	var ids []string
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("w%d", i)
		ids = append(ids, id)
		mustSave(t, s, testMessage(id, "a@one.example", "x@y.example", now))
	}
	work := "work"
	if err := s.MoveToFolder(ctx, ids, &work); err != nil {
		t.Fatalf("MoveToFolder: %v", err)
	}

	if err := s.DeleteFolder(ctx, "one.example", "work"); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}

	for _, id := range ids {
		msg, _ := s.GetMessage(ctx, id)
		if msg == nil {
			t.Fatalf("message %s deleted along with its folder", id)
		}
		if msg.Folder != nil {
			t.Errorf("message %s folder = %q after folder delete", id, *msg.Folder)
		}
	}

	folders, _ := s.ListFolders(ctx, "one.example")
	if len(folders) != 0 {
		t.Fatalf("folder row still present: %v", folders)
	}
}

func TestDeletePromoFolderClearsRuleTargets(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.CreateFolder(ctx, model.ProviderPromo, "news", ""); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	news := "news"
	if err := s.UpsertPromoRule(ctx, "%@shop.example%", &news); err != nil {
		t.Fatalf("UpsertPromoRule: %v", err)
	}

	mustSave(t, s, testMessage("pn1", "a@one.example", "ads@shop.example", time.Now()))
	if err := s.SetPromo(ctx, []string{"pn1"}, true, &news); err != nil {
		t.Fatalf("SetPromo: %v", err)
	}

	if err := s.DeleteFolder(ctx, model.ProviderPromo, "news"); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}

	msg, _ := s.GetMessage(ctx, "pn1")
	if msg.Folder != nil {
		t.Errorf("promo message folder = %q, want generic bucket", *msg.Folder)
	}
	if !msg.Promo {
		t.Error("promo state lost on folder delete")
	}

	rules, _ := s.ListPromoRules(ctx)
	if len(rules) != 1 {
		t.Fatalf("rules = %d, want 1", len(rules))
	}
	if rules[0].TargetFolder != nil {
		t.Errorf("rule target = %q, want cleared", *rules[0].TargetFolder)
	}
}

func TestRenameFolderRelabelsMessages(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.CreateFolder(ctx, "one.example", "work", ""); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	mustSave(t, s, testMessage("rn1", "a@one.example", "x@y.example", time.Now()))
	work := "work"
	if err := s.MoveToFolder(ctx, []string{"rn1"}, &work); err != nil {
		t.Fatalf("MoveToFolder: %v", err)
	}

	if err := s.RenameFolder(ctx, "one.example", "work", "projects"); err != nil {
		t.Fatalf("RenameFolder: %v", err)
	}

	msg, _ := s.GetMessage(ctx, "rn1")
	if msg.Folder == nil || *msg.Folder != "projects" {
		t.Fatalf("message folder = %v after rename", msg.Folder)
	}

	folders, _ := s.ListFolders(ctx, "one.example")
	if len(folders) != 1 || folders[0].Name != "projects" {
		t.Fatalf("folders after rename = %v", folders)
	}
}

func TestRenamePromoFolderRetargetsRules(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.CreateFolder(ctx, model.ProviderPromo, "news", ""); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	news := "news"
	if err := s.UpsertPromoRule(ctx, "%@shop.example%", &news); err != nil {
		t.Fatalf("UpsertPromoRule: %v", err)
	}

	if err := s.RenameFolder(ctx, model.ProviderPromo, "news", "letters"); err != nil {
		t.Fatalf("RenameFolder: %v", err)
	}

	rules, _ := s.ListPromoRules(ctx)
	if rules[0].TargetFolder == nil || *rules[0].TargetFolder != "letters" {
		t.Fatalf("rule target = %v after rename", rules[0].TargetFolder)
	}
}
