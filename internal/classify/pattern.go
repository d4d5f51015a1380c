// Package classify evaluates learned promo routing rules against message
// senders and maintains the rule set as users move mail in and out of the
// promo bucket.
package classify

import (
	"fmt"
	"regexp"
	"strings"
)

// compilePattern translates the rule wildcard grammar into a regular
// expression: % matches any run of characters, _ matches exactly one.
// Everything else is literal. The result is case-insensitive and
// unanchored, so a pattern matches anywhere in the sender.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)")

	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compiling rule pattern %q: %w", pattern, err)
	}
	return re, nil
}

// MatchPattern reports whether a normalized sender matches a rule pattern.
// Invalid patterns never match.
func MatchPattern(sender, pattern string) bool {
	re, err := compilePattern(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(sender)
}

// DomainPattern derives the learned rule pattern for a sender domain.
func DomainPattern(domain string) string {
	return "%@" + domain + "%"
}
