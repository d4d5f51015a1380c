package classify

import (
	"context"
	"fmt"
	"sort"

	"github.com/tmaeda/mailhub/internal/addr"
	"github.com/tmaeda/mailhub/internal/model"
)

// Store is the slice of the persistent store the classifier needs.
type Store interface {
	ListPromoRules(ctx context.Context) ([]model.PromoRule, error)
	UpsertPromoRule(ctx context.Context, pattern string, targetFolder *string) error
	DeletePromoRule(ctx context.Context, pattern string) error
	IncrementRuleMatch(ctx context.Context, pattern string) error
	ListNonPromoSenders(ctx context.Context) (map[string]string, error)
	SetPromo(ctx context.Context, ids []string, promo bool, folder *string) error
}

// Engine evaluates promo rules and learns new ones from user moves.
type Engine struct {
	store Store
}

// New creates a classification engine backed by the given store.
func New(store Store) *Engine {
	return &Engine{store: store}
}

// Classify evaluates the rules in stable order against the normalized
// sender. The first match wins: its counter is incremented and its target
// folder returned. No match yields promo=false.
func (e *Engine) Classify(ctx context.Context, sender string) (bool, *string, error) {
	rules, err := e.store.ListPromoRules(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("classifying sender: %w", err)
	}

	clean := addr.Normalize(sender)
	for _, rule := range rules {
		if !MatchPattern(clean, rule.SenderPattern) {
			continue
		}
		if err := e.store.IncrementRuleMatch(ctx, rule.SenderPattern); err != nil {
			return false, nil, err
		}
		return true, rule.TargetFolder, nil
	}

	return false, nil, nil
}

// ReclassifyExisting re-evaluates every non-promo message against the
// current rules and migrates matches into promo state. Messages already in
// promo are never touched, so re-running with unchanged rules moves
// nothing. Returns the number of messages moved.
func (e *Engine) ReclassifyExisting(ctx context.Context) (int, error) {
	rules, err := e.store.ListPromoRules(ctx)
	if err != nil {
		return 0, fmt.Errorf("reclassifying: %w", err)
	}
	if len(rules) == 0 {
		return 0, nil
	}

	senders, err := e.store.ListNonPromoSenders(ctx)
	if err != nil {
		return 0, fmt.Errorf("reclassifying: %w", err)
	}

	moved := 0
	for id, sender := range senders {
		clean := addr.Normalize(sender)
		for _, rule := range rules {
			if !MatchPattern(clean, rule.SenderPattern) {
				continue
			}
			if err := e.store.SetPromo(ctx, []string{id}, true, rule.TargetFolder); err != nil {
				return moved, err
			}
			if err := e.store.IncrementRuleMatch(ctx, rule.SenderPattern); err != nil {
				return moved, err
			}
			moved++
			break
		}
	}

	return moved, nil
}

// Learn derives one %@domain% rule per distinct sender domain and inserts
// it with a zero match count, or retargets the existing rule's folder.
// Counters are untouched: they only move during classification. Returns
// the derived patterns in sorted order.
func (e *Engine) Learn(ctx context.Context, senders []string, targetFolder *string) ([]string, error) {
	patterns := derivePatterns(senders)

	for _, pattern := range patterns {
		if err := e.store.UpsertPromoRule(ctx, pattern, targetFolder); err != nil {
			return nil, fmt.Errorf("learning rule: %w", err)
		}
	}
	return patterns, nil
}

// Release optionally deletes the rules whose derived pattern matches the
// released senders' domains, and reports which patterns were removed.
// With deleteRules false it only reports the candidates, so callers can
// warn that matching mail will be re-routed on the next fetch.
func (e *Engine) Release(ctx context.Context, senders []string, deleteRules bool) ([]string, error) {
	rules, err := e.store.ListPromoRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("releasing from promo: %w", err)
	}
	existing := make(map[string]bool, len(rules))
	for _, r := range rules {
		existing[r.SenderPattern] = true
	}

	var matched []string
	for _, pattern := range derivePatterns(senders) {
		if existing[pattern] {
			matched = append(matched, pattern)
		}
	}

	if !deleteRules {
		return matched, nil
	}

	for _, pattern := range matched {
		if err := e.store.DeletePromoRule(ctx, pattern); err != nil {
			return nil, fmt.Errorf("releasing from promo: %w", err)
		}
	}
	return matched, nil
}

// derivePatterns maps senders to one pattern per distinct domain.
func derivePatterns(senders []string) []string {
	domains := make(map[string]bool)
	for _, sender := range senders {
		if domain, ok := addr.Domain(addr.Normalize(sender)); ok {
			domains[domain] = true
		}
	}

	patterns := make([]string, 0, len(domains))
	for domain := range domains {
		patterns = append(patterns, DomainPattern(domain))
	}
	sort.Strings(patterns)
	return patterns
}
