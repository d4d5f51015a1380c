package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// DefaultPageSize is the fixed page size served to the UI when the caller
// does not override it.
const DefaultPageSize = 50

// attachmentSearchTerms are the literal searches that short-circuit to
// "has attachment metadata" instead of the token grammar.
var attachmentSearchTerms = map[string]bool{
	"添付":          true,
	"添付あり":        true,
	"attachment":  true,
	"attachments": true,
}

var orSplitter = regexp.MustCompile(`(?i)\s+OR\s+`)

// searchCondition is a parameterized SQL fragment produced by the search
// tokenizer.
type searchCondition struct {
	clause string
	args   []interface{}
}

// buildSearchCondition translates the search grammar into a parameterized
// condition. Clauses separated by the literal keyword OR are alternatives;
// whitespace-separated tokens within a clause are conjoined; each token
// matches as a substring of subject, sender, or raw content. Returns nil
// for an empty search. Pure function.
func buildSearchCondition(search string) *searchCondition {
	search = strings.TrimSpace(search)
	if search == "" {
		return nil
	}

	if attachmentSearchTerms[search] {
		return &searchCondition{
			clause: "(attachments IS NOT NULL AND attachments != '' AND attachments != '[]')",
		}
	}

	var orClauses []string
	var args []interface{}

	for _, part := range orSplitter.Split(search, -1) {
		tokens := strings.Fields(part)
		if len(tokens) == 0 {
			continue
		}

		andClauses := make([]string, 0, len(tokens))
		for _, token := range tokens {
			andClauses = append(andClauses,
				"(subject LIKE ? OR sender LIKE ? OR raw_data LIKE ?)")
			param := "%" + token + "%"
			args = append(args, param, param, param)
		}
		orClauses = append(orClauses, "("+strings.Join(andClauses, " AND ")+")")
	}

	if len(orClauses) == 0 {
		return nil
	}

	return &searchCondition{
		clause: "(" + strings.Join(orClauses, " OR ") + ")",
		args:   args,
	}
}

// buildMessageQuery constructs WHERE conditions and args for a filter.
func buildMessageQuery(filter MessageFilter) (string, []interface{}) {
	conditions := []string{"is_deleted = 0"}
	var args []interface{}

	if filter.Promo {
		conditions = append(conditions, "is_promo = 1")
	} else {
		conditions = append(conditions, "is_promo = 0")
	}

	if filter.Provider != nil {
		conditions = append(conditions, "provider = ?")
		args = append(args, *filter.Provider)
	}

	// A nil folder leaves the view unconstrained rather than pinning it to
	// the default location; folder nodes (including trash) are selected
	// explicitly.
	if filter.Folder != nil {
		conditions = append(conditions, "folder = ?")
		args = append(args, *filter.Folder)
	}

	if sc := buildSearchCondition(filter.Search); sc != nil {
		conditions = append(conditions, sc.clause)
		args = append(args, sc.args...)
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

// QueryMessages serves one filtered, searched, timestamp-descending page
// together with the unpaged total. The page number is clamped to the
// valid range for the current total.
func (s *SQLiteStore) QueryMessages(
	ctx context.Context,
	filter MessageFilter,
	page Page,
) (*QueryResult, error) {
	where, args := buildMessageQuery(filter)

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM messages"+where, args...); err != nil {
		return nil, fmt.Errorf("counting filtered messages: %w", err)
	}

	size := page.Size
	if size < 1 {
		size = DefaultPageSize
	}

	totalPages := (total + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}
	number := page.Number
	if number > totalPages {
		number = totalPages
	}
	if number < 1 {
		number = 1
	}
	offset := (number - 1) * size

	query := selectMessageColumns + " FROM messages" + where +
		fmt.Sprintf(" ORDER BY timestamp DESC LIMIT %d OFFSET %d", size, offset)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	result := &QueryResult{
		Total:      total,
		Page:       number,
		TotalPages: totalPages,
	}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		result.Messages = append(result.Messages, msg)
	}
	return result, rows.Err()
}
