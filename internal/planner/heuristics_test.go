package planner

import "testing"

func TestFollowUpRequest(t *testing.T) {
	t.Parallel()
	cases := []struct {
		text      string
		wantCount int
		wantOK    bool
	}{
		{"繼續", 0, true},
		{"更多", 0, true},
		{"繼續 更多", 0, true},
		{"繼續 更多5", 5, true},
		{"more 3", 3, true},
		{"next", 0, true},
		{"今天天氣如何", 0, false},
		{"繼續關注這件事的後續發展", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		count, ok := FollowUpRequest(c.text)
		if count != c.wantCount || ok != c.wantOK {
			t.Errorf("FollowUpRequest(%q) = (%d, %t), want (%d, %t)", c.text, count, ok, c.wantCount, c.wantOK)
		}
	}
}

func TestWeatherAndNewsDetection(t *testing.T) {
	t.Parallel()
	if !IsWeatherQuestion("台北今天天氣如何") {
		t.Error("expected weather question")
	}
	if IsWeatherQuestion("介紹一下相對論") {
		t.Error("unexpected weather question")
	}
	if !IsNewsQuestion("今天有什麼國際新聞") {
		t.Error("expected news question")
	}
	if !ShouldForceWebSearch("現在股價多少") {
		t.Error("recency keyword should force search")
	}
	if ShouldForceWebSearch("解釋快速排序") {
		t.Error("no keyword should not force search")
	}
}

func TestIsRecencySensitive(t *testing.T) {
	t.Parallel()
	cases := []struct {
		text string
		want bool
	}{
		{"台北天氣", true},
		{"最新財經新聞", true},
		{"今天股市行情", true},
		{"上個世紀的新聞史", false},
		{"解釋快速排序", false},
	}
	for _, c := range cases {
		if got := IsRecencySensitive(c.text); got != c.want {
			t.Errorf("IsRecencySensitive(%q) = %t, want %t", c.text, got, c.want)
		}
	}
}

func TestLocationExtraction(t *testing.T) {
	t.Parallel()
	if got := ExtractKnownLocation("請問高雄明天會下雨嗎"); got != "高雄" {
		t.Errorf("ExtractKnownLocation = %q, want 高雄", got)
	}
	if got := ExtractKnownLocation("天氣如何"); got != "" {
		t.Errorf("ExtractKnownLocation = %q, want empty", got)
	}
	if got := ExtractLocationNounPattern("東京天氣如何"); got != "東京" {
		t.Errorf("ExtractLocationNounPattern = %q, want 東京", got)
	}
	if got := NormalizeLocation("台北市"); got != "台北" {
		t.Errorf("NormalizeLocation = %q, want 台北", got)
	}
	if got := NormalizeLocation("新竹縣"); got != "新竹" {
		t.Errorf("NormalizeLocation = %q, want 新竹", got)
	}
}

func TestInferPreferences(t *testing.T) {
	t.Parallel()
	if got := InferPreferredLanguage("請用繁體中文回答"); got != "zh-Hant" {
		t.Errorf("InferPreferredLanguage = %q, want zh-Hant", got)
	}
	if got := InferPreferredLanguage("请用简体"); got != "zh-Hans" {
		t.Errorf("InferPreferredLanguage = %q, want zh-Hans", got)
	}
	if got := InferPreferredLanguage("reply in english please"); got != "en" {
		t.Errorf("InferPreferredLanguage = %q, want en", got)
	}
	if got := InferPreferredLanguage("今天天氣如何"); got != "" {
		t.Errorf("InferPreferredLanguage = %q, want empty", got)
	}

	if p := InferLinkPreference("請附上連結"); p == nil || !*p {
		t.Error("expected explicit links-on preference")
	}
	if p := InferLinkPreference("不要連結"); p == nil || *p {
		t.Error("expected explicit links-off preference")
	}
	if p := InferLinkPreference("今天天氣如何"); p != nil {
		t.Error("expected no link preference")
	}
}
