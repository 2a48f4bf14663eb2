package validation

import (
	"strings"
	"unicode"
)

// CleanText strips null bytes and control characters other than newline,
// carriage return and tab, then trims surrounding whitespace.
func CleanText(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r == '\x00' {
			continue
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
