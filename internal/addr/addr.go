// Package addr normalizes free-form email address headers into canonical
// lowercase addresses and derives the provider key (domain) used to group
// aggregated mailboxes.
package addr

import (
	"net/mail"
	"strings"
)

// ProviderUnknown is the sentinel provider key for addresses without a
// parseable domain.
const ProviderUnknown = "unknown"

// Normalize strips display-name wrapping, angle brackets, and surrounding
// whitespace from an address header value and lowercases the result.
// Unparseable or empty input yields the empty string.
func Normalize(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	result := s
	if parsed, err := mail.ParseAddress(s); err == nil && parsed.Address != "" {
		result = parsed.Address
	}

	// Partially decorated input ("taro@example.com>") survives ParseAddress
	// failure; strip any remaining brackets by hand.
	result = strings.NewReplacer("<", "", ">", "").Replace(result)

	return strings.ToLower(strings.TrimSpace(result))
}

// Provider returns the domain portion of the normalized address, or
// ProviderUnknown when no "@" is present. Idempotent: feeding a previously
// derived provider back in yields ProviderUnknown rather than garbage.
func Provider(s string) string {
	clean := Normalize(s)
	if clean == "" || !strings.Contains(clean, "@") {
		return ProviderUnknown
	}

	domain := clean[strings.LastIndex(clean, "@")+1:]
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return ProviderUnknown
	}
	return domain
}

// Domain returns the domain of an already-normalized address and whether
// one was present. Unlike Provider it does not fall back to the sentinel,
// which makes it suitable for rule derivation where "unknown" must not
// become a wildcard pattern.
func Domain(normalized string) (string, bool) {
	i := strings.LastIndex(normalized, "@")
	if i < 0 || i == len(normalized)-1 {
		return "", false
	}
	return normalized[i+1:], true
}
