package helpers

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CollapseWhitespace normalises extracted page text: runs of spaces and tabs
// collapse to a single space, lines are trimmed, and empty lines are
// dropped. Line boundaries themselves are preserved.
func CollapseWhitespace(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		fields := strings.FieldsFunc(line, unicode.IsSpace)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, "\n")
}

// Truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
