package store_test

import (
	"context"
	"testing"

	"github.com/tmaeda/mailhub/tests/testutil"
)

func TestPromoRuleLifecycle(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.UpsertPromoRule(ctx, "%@shop.example%", nil); err != nil {
		t.Fatalf("UpsertPromoRule: %v", err)
	}
	if err := s.UpsertPromoRule(ctx, "", nil); err == nil {
		t.Fatal("empty pattern accepted")
	}

	rules, err := s.ListPromoRules(ctx)
	if err != nil {
		t.Fatalf("ListPromoRules: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("rules = %d, want 1", len(rules))
	}
	if rules[0].MatchCount != 0 {
		t.Fatalf("new rule match count = %d, want 0", rules[0].MatchCount)
	}

	if err := s.DeletePromoRule(ctx, "%@shop.example%"); err != nil {
		t.Fatalf("DeletePromoRule: %v", err)
	}
	rules, _ = s.ListPromoRules(ctx)
	if len(rules) != 0 {
		t.Fatalf("rules after delete = %d", len(rules))
	}
}

func TestUpsertPreservesMatchHistory(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.UpsertPromoRule(ctx, "%@shop.example%", nil); err != nil {
		t.Fatalf("UpsertPromoRule: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.IncrementRuleMatch(ctx, "%@shop.example%"); err != nil {
			t.Fatalf("IncrementRuleMatch: %v", err)
		}
	}

	// Re-learning the same pattern retargets it without resetting history.
	news := "news"
	if err := s.UpsertPromoRule(ctx, "%@shop.example%", &news); err != nil {
		t.Fatalf("UpsertPromoRule retarget: %v", err)
	}

	rules, _ := s.ListPromoRules(ctx)
	if len(rules) != 1 {
		t.Fatalf("rules = %d, want 1", len(rules))
	}
	if rules[0].MatchCount != 3 {
		t.Errorf("match count = %d after retarget, want 3", rules[0].MatchCount)
	}
	if rules[0].TargetFolder == nil || *rules[0].TargetFolder != "news" {
		t.Errorf("target = %v, want news", rules[0].TargetFolder)
	}
}

func TestRulesListedInEvaluationOrder(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	patterns := []string{"%@c.example%", "%@a.example%", "%@b.example%"}
	for _, p := range patterns {
		if err := s.UpsertPromoRule(ctx, p, nil); err != nil {
			t.Fatalf("UpsertPromoRule(%s): %v", p, err)
		}
	}

	rules, _ := s.ListPromoRules(ctx)
	for i, r := range rules {
		if r.SenderPattern != patterns[i] {
			t.Fatalf("rule %d = %s, want insertion order %s", i, r.SenderPattern, patterns[i])
		}
	}
}
