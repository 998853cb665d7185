package models

import (
	"strings"
	"unicode"
)

// CleanPhone strips whitespace, parentheses and hyphens, then a single
// leading '+'. The CRM stores phones in this form.
func CleanPhone(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '(' || r == ')' || r == '-' {
			return -1
		}
		return r
	}, raw)
	return strings.TrimPrefix(cleaned, "+")
}

// PhoneDigits keeps only the ASCII digits of raw.
func PhoneDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
