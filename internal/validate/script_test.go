package validate

import "testing"

func TestMatchesScriptVariant(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		text string
		lang string
		want bool
	}{
		{"traditional text for zh-Hant", "今天天氣很好，氣溫偏高。", "zh-Hant", true},
		{"simplified leak in zh-Hant", "今天天气很好。", "zh-Hant", false},
		{"simplified text for zh-Hans", "今天天气很好，气温偏高。", "zh-Hans", true},
		{"traditional leak in zh-Hans", "今天氣溫偏高。", "zh-Hans", false},
		{"shared characters only", "今天很好。", "zh-Hant", true},
		{"english is neutral", "the weather is fine", "zh-Hant", true},
		{"other languages always match", "天气", "en", true},
		{"no preference always matches", "天气", "", true},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			if got := MatchesScriptVariant(c.text, c.lang); got != c.want {
				t.Errorf("MatchesScriptVariant(%q, %q) = %t, want %t", c.text, c.lang, got, c.want)
			}
		})
	}
}
