package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tmaeda/mailhub/internal/model"
)

// ListPromoRules returns all promo rules in stable rule-id order, which is
// the order classification evaluates them in.
func (s *SQLiteStore) ListPromoRules(ctx context.Context) ([]model.PromoRule, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT rule_id, sender_pattern, target_folder, match_count, added_at
		FROM promo_rules ORDER BY rule_id`)
	if err != nil {
		return nil, fmt.Errorf("querying promo rules: %w", err)
	}
	defer rows.Close()

	var rules []model.PromoRule
	for rows.Next() {
		var r model.PromoRule
		if err := rows.Scan(&r.ID, &r.SenderPattern, &r.TargetFolder, &r.MatchCount, &r.AddedAt); err != nil {
			return nil, fmt.Errorf("scanning promo rule row: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// UpsertPromoRule inserts a rule with a zero match count, or updates only
// the target folder when the pattern already exists. Match history is
// never reset by re-learning a pattern.
func (s *SQLiteStore) UpsertPromoRule(ctx context.Context, pattern string, targetFolder *string) error {
	if pattern == "" {
		return fmt.Errorf("promo rule pattern must not be empty")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO promo_rules (sender_pattern, added_at, match_count, target_folder)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(sender_pattern) DO UPDATE SET target_folder = excluded.target_folder`,
		pattern, time.Now().UTC(), targetFolder)
	if err != nil {
		return fmt.Errorf("upserting promo rule %q: %w", pattern, err)
	}
	return nil
}

// DeletePromoRule removes a rule by its pattern.
func (s *SQLiteStore) DeletePromoRule(ctx context.Context, pattern string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM promo_rules WHERE sender_pattern = ?", pattern); err != nil {
		return fmt.Errorf("deleting promo rule %q: %w", pattern, err)
	}
	return nil
}

// IncrementRuleMatch bumps the monotonic match counter of a rule.
func (s *SQLiteStore) IncrementRuleMatch(ctx context.Context, pattern string) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE promo_rules SET match_count = match_count + 1 WHERE sender_pattern = ?",
		pattern); err != nil {
		return fmt.Errorf("incrementing match count for %q: %w", pattern, err)
	}
	return nil
}
