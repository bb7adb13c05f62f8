package helpers

import (
	"reflect"
	"testing"

	"groundchat/models"
)

func TestFindDates(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"iso", "published 2026-02-18 morning", []string{"2026-02-18"}},
		{"slash", "更新 2026/2/18", []string{"2026-02-18"}},
		{"cjk", "2026年2月18日 報導", []string{"2026-02-18"}},
		{"month first", "Feb 18, 2026 - Reuters", []string{"2026-02-18"}},
		{"month first long", "February 3rd, 2026", []string{"2026-02-03"}},
		{"day first", "18 February 2026", []string{"2026-02-18"}},
		{"multiple dedup", "2026-02-18 and 2026年2月18日 and 2026-02-17", []string{"2026-02-18", "2026-02-17"}},
		{"invalid month", "2026-13-01", nil},
		{"none", "no dates here", nil},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			if got := FindDates(c.in); !reflect.DeepEqual(got, c.want) {
				t.Errorf("FindDates(%q) = %v, want %v", c.in, got, c.want)
			}
		})
	}
}

func TestYearsIn(t *testing.T) {
	t.Parallel()
	got := YearsIn("back in 2023, and again 2026; ignore 12345 and 1850")
	want := []int{2023, 2026}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("YearsIn = %v, want %v", got, want)
	}
}

func TestExtractDateHints(t *testing.T) {
	t.Parallel()
	results := []models.SearchResult{
		{Title: "颱風動態 2026-02-18", Description: ""},
		{Title: "無日期標題", Description: "更新於 2026/2/17"},
		{Title: "純標題", Description: "純描述"},
		{Title: "也沒有", Description: ""},
	}
	pages := []models.FetchedPage{
		{Text: ""},
		{Text: ""},
		{Text: "本文發布於 2026年2月18日"},
	}

	hints := ExtractDateHints(results, pages)

	wantByIndex := map[int]string{
		1: "2026-02-18",
		2: "2026-02-17",
		3: "2026-02-18",
		4: models.NoDateMarker,
	}
	if !reflect.DeepEqual(hints.ByIndex, wantByIndex) {
		t.Errorf("ByIndex = %v, want %v", hints.ByIndex, wantByIndex)
	}

	wantAllowed := []string{"2026-02-17", "2026-02-18"}
	if got := hints.AllowedList(); !reflect.DeepEqual(got, wantAllowed) {
		t.Errorf("AllowedList = %v, want %v", got, wantAllowed)
	}

	if !hints.IsAllowed(models.NoDateMarker) {
		t.Error("no-date marker must always be allowed")
	}
	if hints.IsAllowed("2024-01-01") {
		t.Error("date absent from sources must not be allowed")
	}
	if got := hints.Hint(99); got != models.NoDateMarker {
		t.Errorf("Hint(99) = %q, want no-date marker", got)
	}
}
