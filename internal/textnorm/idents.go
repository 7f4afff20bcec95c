package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Username length bounds, in runes.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// MaxSubLength bounds a user id.
const MaxSubLength = 128

// NormalizeEmail trims and lowercases an email address. Emails are compared in this form
// everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername trims, lowercases and NFC-normalises a username so visually identical
// names share one index row.
func NormalizeUsername(username string) string {
	return norm.NFC.String(strings.ToLower(strings.TrimSpace(username)))
}

// IsUsername reports whether a normalised username is within length bounds and contains
// only letters, digits, '_', '.' or '-'.
func IsUsername(username string) bool {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return false
	}
	for _, r := range username {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-' {
			continue
		}
		return false
	}
	return true
}

// IsSub reports whether s has the shape of a user id: ASCII letters, digits, '-' or '_'.
// Thread ids join two subs with '#', so the separator can never appear in one.
func IsSub(s string) bool {
	if s == "" || len(s) > MaxSubLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

// NormalizeEmails normalises, drops empties and de-duplicates a list, keeping first-seen order.
func NormalizeEmails(emails []string) []string {
	seen := make(map[string]bool, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		e = NormalizeEmail(e)
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
