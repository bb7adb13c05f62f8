package helpers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"groundchat/models"
)

var (
	numericDateRe   = regexp.MustCompile(`(20\d{2})\s*[-/.年]\s*(\d{1,2})\s*[-/.月]\s*(\d{1,2})日?`)
	monthFirstRe    = regexp.MustCompile(`(?i)\b(Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(20\d{2})`)
	dayFirstRe      = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?,?\s+(20\d{2})`)
	yearRe          = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	monthNumByLabel = map[string]int{
		"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
		"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
	}
)

func isoDate(year, month, day int) (string, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

func monthNum(label string) int {
	key := strings.ToLower(label)
	if len(key) > 3 {
		key = key[:3]
	}
	return monthNumByLabel[key]
}

// FindDates returns every publication date found in s, normalised to
// YYYY-MM-DD, in order of appearance. Numeric forms (2026-02-18, 2026/2/18,
// 2026年2月18日) and month-name forms (Feb 18, 2026 / 18 February 2026) are
// recognised.
func FindDates(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(date string) {
		if _, ok := seen[date]; ok {
			return
		}
		seen[date] = struct{}{}
		out = append(out, date)
	}
	for _, m := range numericDateRe.FindAllStringSubmatch(s, -1) {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if date, ok := isoDate(y, mo, d); ok {
			add(date)
		}
	}
	for _, m := range monthFirstRe.FindAllStringSubmatch(s, -1) {
		d, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		if date, ok := isoDate(y, monthNum(m[1]), d); ok {
			add(date)
		}
	}
	for _, m := range dayFirstRe.FindAllStringSubmatch(s, -1) {
		d, _ := strconv.Atoi(m[1])
		y, _ := strconv.Atoi(m[3])
		if date, ok := isoDate(y, monthNum(m[2]), d); ok {
			add(date)
		}
	}
	return out
}

// FirstDate returns the first date found in s, or "".
func FirstDate(s string) string {
	if dates := FindDates(s); len(dates) > 0 {
		return dates[0]
	}
	return ""
}

// YearsIn returns every standalone 4-digit year (19xx/20xx) found in s.
func YearsIn(s string) []int {
	var out []int
	for _, m := range yearRe.FindAllStringSubmatch(s, -1) {
		if y, err := strconv.Atoi(m[1]); err == nil {
			out = append(out, y)
		}
	}
	return out
}

// ExtractDateHints derives one best-guess publication date per source index
// directly from titles, descriptions and fetched text, independent of any
// model output. Pages are aligned with the leading results by index. The
// union of all extracted dates forms the allowed date set used for grounding
// checks.
func ExtractDateHints(results []models.SearchResult, pages []models.FetchedPage) models.DateHints {
	hints := models.DateHints{
		ByIndex: make(map[int]string, len(results)),
		Allowed: make(map[string]struct{}),
	}
	for i, r := range results {
		index := i + 1
		date := FirstDate(r.Title)
		if date == "" {
			date = FirstDate(r.Description)
		}
		if date == "" && i < len(pages) {
			date = FirstDate(pages[i].Text)
		}
		if date == "" {
			hints.ByIndex[index] = models.NoDateMarker
			continue
		}
		hints.ByIndex[index] = date
		hints.Allowed[date] = struct{}{}
	}
	return hints
}
