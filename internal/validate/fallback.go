package validate

import (
	"fmt"
	"regexp"
	"strings"

	"groundchat/internal/helpers"
	"groundchat/internal/retrieval"
	"groundchat/models"
)

var trailingCitationRe = regexp.MustCompile(`(\s*\[\d{1,3}\])+\s*$`)

// linkListFallback is the no-model answer for a recency check that cannot be
// satisfied: list the raw sources and let the user pick.
func linkListFallback(results []models.SearchResult) string {
	var b strings.Builder
	b.WriteString("我找到的來源如下，請直接查看最新內容：\n")
	for i, r := range results {
		if i >= 10 {
			break
		}
		fmt.Fprintf(&b, "[%d] %s\n%s\n", i+1, strings.TrimSpace(r.Title), strings.TrimSpace(r.URL))
	}
	return strings.TrimSpace(b.String())
}

// perSourceBulletFallback builds a deterministic news list from the evidence
// itself: one bullet per summarized source, its first bullet line, its date
// hint injected, its own citation forced.
func perSourceBulletFallback(ev retrieval.Evidence, maxItems int) string {
	var lines []string
	for _, s := range ev.Summaries {
		if maxItems > 0 && len(lines) >= maxItems {
			break
		}
		bullets := helpers.BulletLines(s.Text)
		text := s.Text
		if len(bullets) > 0 {
			text = bullets[0]
		}
		text = trailingCitationRe.ReplaceAllString(strings.TrimSpace(text), "")
		if tok := helpers.LeadingDateToken(text); tok != "" {
			text = strings.TrimSpace(strings.TrimPrefix(text, tok))
		}
		lines = append(lines, fmt.Sprintf("- %s %s [%d]", ev.DateHints.Hint(s.Index), text, s.Index))
	}
	if len(lines) == 0 {
		// No summaries survived; fall back to headline + snippet bullets.
		for i, r := range ev.Results {
			if maxItems > 0 && len(lines) >= maxItems {
				break
			}
			lines = append(lines, fmt.Sprintf("- %s %s [%d]", ev.DateHints.Hint(i+1), strings.TrimSpace(r.Title), i+1))
		}
	}
	return strings.Join(lines, "\n")
}
