package helpers

import (
	"reflect"
	"testing"

	"groundchat/models"
)

func TestCitationIndices(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		text string
		max  int
		want []int
	}{
		{"ordered distinct", "a [2] b [1] c [2]", 5, []int{2, 1}},
		{"out of range ignored", "x [1] y [7] z [0]", 5, []int{1}},
		{"none", "no citations", 5, nil},
		{"max zero", "[1] [2]", 0, nil},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			if got := CitationIndices(c.text, c.max); !reflect.DeepEqual(got, c.want) {
				t.Errorf("CitationIndices(%q, %d) = %v, want %v", c.text, c.max, got, c.want)
			}
		})
	}
}

func TestBulletLines(t *testing.T) {
	t.Parallel()
	text := "intro line\n- first item\n* second item\n1. third item\n2) fourth item\nplain tail"
	want := []string{"first item", "second item", "third item", "fourth item"}
	if got := BulletLines(text); !reflect.DeepEqual(got, want) {
		t.Errorf("BulletLines = %v, want %v", got, want)
	}
}

func TestLeadingDateToken(t *testing.T) {
	t.Parallel()
	cases := []struct {
		bullet string
		want   string
	}{
		{"2026-02-18 颱風最新動態 [1]", "2026-02-18"},
		{models.NoDateMarker + " 無日期新聞 [2]", models.NoDateMarker},
		{"颱風最新動態 [1]", ""},
		{"2026-2-18 寬鬆格式不算開頭日期", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := LeadingDateToken(c.bullet); got != c.want {
			t.Errorf("LeadingDateToken(%q) = %q, want %q", c.bullet, got, c.want)
		}
	}
}
