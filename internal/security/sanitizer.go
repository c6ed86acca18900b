package security

import (
	"html"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const maxNameRunes = 100

var htmlPolicy = bluemonday.StrictPolicy()

// SanitizeString trims whitespace and strips null bytes.
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	return strings.ReplaceAll(input, "\x00", "")
}

// SanitizeDisplayName strips markup from a provider-supplied name and caps its
// length. The result is plain text; entities escaped by the policy are decoded.
func SanitizeDisplayName(name string) string {
	name = html.UnescapeString(htmlPolicy.Sanitize(SanitizeString(name)))
	name = strings.Join(strings.Fields(name), " ")
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = string([]rune(name)[:maxNameRunes])
	}
	return name
}

// NormalizeEmail trims the address and reports whether it parses.
func NormalizeEmail(email string) (string, bool) {
	email = SanitizeString(email)
	if email == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return email, false
	}
	return email, true
}
