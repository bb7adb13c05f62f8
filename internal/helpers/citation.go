package helpers

import (
	"regexp"
	"strconv"
	"strings"

	"groundchat/models"
)

var (
	citationRe = regexp.MustCompile(`\[(\d{1,3})\]`)
	bulletRe   = regexp.MustCompile(`^\s*(?:[-*•–]|\d{1,2}[.)])\s+`)
)

// CitationIndices returns the distinct citation indices referenced in text,
// in order of first appearance. Indices outside 1..max are ignored.
func CitationIndices(text string, max int) []int {
	var out []int
	seen := make(map[int]struct{})
	for _, m := range citationRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > max {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// BulletLines returns the bullet-item lines of text, with the bullet prefix
// stripped.
func BulletLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if loc := bulletRe.FindStringIndex(line); loc != nil {
			out = append(out, strings.TrimSpace(line[loc[1]:]))
		}
	}
	return out
}

// LeadingDateToken returns the date token a bullet starts with: either an
// ISO date or the explicit no-date marker. Empty string means the bullet has
// no leading date token.
func LeadingDateToken(bullet string) string {
	b := strings.TrimSpace(bullet)
	if strings.HasPrefix(b, models.NoDateMarker) {
		return models.NoDateMarker
	}
	if len(b) >= 10 {
		candidate := b[:10]
		if d := FirstDate(candidate); d == candidate {
			return candidate
		}
	}
	return ""
}
