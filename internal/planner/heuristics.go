package planner

import (
	"regexp"
	"strconv"
	"strings"
)

// Heuristic tables are data, not control flow, so they can be extended and
// tested independently.

// WeatherKeywords marks a message as a weather question.
var WeatherKeywords = []string{
	"天氣", "天气", "氣象", "氣温", "气温", "溫度", "温度",
	"降雨", "下雨", "雷雨", "颱風", "台风", "降雨機率", "降雨概率",
}

// ForceSearchKeywords force tool=web_search regardless of the model's plan.
var ForceSearchKeywords = []string{
	"天氣", "天气", "氣象", "温度", "溫度", "下雨", "降雨", "雷雨",
	"颱風", "台风", "即時", "实时", "今天", "現在", "目前", "最新",
}

// NewsKeywords mark a news question.
var NewsKeywords = []string{
	"新聞", "新闻", "news", "headline", "頭條", "头条",
	"兩岸", "两岸", "國際", "国际", "財經", "财经", "金融", "finance",
}

// MarketKeywords extend the stale-year recency check to market questions.
var MarketKeywords = []string{
	"股市", "股價", "股价", "市場", "市场", "匯率", "汇率", "stock", "market",
}

// RecencyKeywords mark a question as time-sensitive.
var RecencyKeywords = []string{
	"今天", "現在", "目前", "最新", "即時", "实时", "最近",
	"today", "now", "latest", "recent", "breaking",
}

// LinkKeywords mark an explicit request for links/sources.
var LinkKeywords = []string{
	"連結", "链接", "網址", "网址", "url", "link", "來源", "来源", "source",
}

// KnownLocations is the closed set of locations resolvable from explicit
// mention in a weather question.
var KnownLocations = []string{
	"台北", "臺北", "新北", "基隆", "桃園", "新竹", "苗栗",
	"台中", "臺中", "彰化", "南投", "雲林", "嘉義", "台南", "臺南",
	"高雄", "屏東", "宜蘭", "花蓮", "台東", "臺東", "澎湖", "金門", "馬祖",
}

// FollowUpPhrases is the closed set of "continue/more" phrases that may
// reuse the cached follow-up context.
var FollowUpPhrases = []string{
	"繼續", "继续", "更多", "再來", "再来", "下一批", "接下來", "接下来",
	"more", "continue", "next",
}

var (
	followUpCountRe = regexp.MustCompile(`(?i)(?:繼續|继续|更多|再來|再来|下一批|more|continue|next)[\s，,]*([0-9]{1,2})\s*$`)
	locationNounRe  = regexp.MustCompile(`([\p{Han}]{2,6}|[A-Za-z][A-Za-z ]{2,20})(?:的)?\s*(?:今天|明天|本週|本周)?\s*(?:天氣|天气|氣象|weather)`)
)

func containsAny(text string, keywords []string) bool {
	t := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}

// IsWeatherQuestion reports whether text asks about weather.
func IsWeatherQuestion(text string) bool { return containsAny(text, WeatherKeywords) }

// IsNewsQuestion reports whether text asks for news.
func IsNewsQuestion(text string) bool { return containsAny(text, NewsKeywords) }

// WantsLinks reports whether the user explicitly asked for links/sources.
func WantsLinks(text string) bool { return containsAny(text, LinkKeywords) }

// ShouldForceWebSearch reports whether text must use web search regardless
// of the model's plan.
func ShouldForceWebSearch(text string) bool { return containsAny(text, ForceSearchKeywords) }

// IsRecencySensitive reports whether the answer must not lean on stale
// claims: weather questions, and news/market questions with a recency cue.
func IsRecencySensitive(text string) bool {
	if IsWeatherQuestion(text) {
		return true
	}
	if !IsNewsQuestion(text) && !containsAny(text, MarketKeywords) {
		return false
	}
	return containsAny(text, RecencyKeywords)
}

// FollowUpRequest matches "continue/more" phrasing, optionally with a
// trailing item count. ok is false when text is not a follow-up request.
func FollowUpRequest(text string) (count int, ok bool) {
	t := strings.TrimSpace(strings.ToLower(text))
	if t == "" {
		return 0, false
	}
	if m := followUpCountRe.FindStringSubmatch(t); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return 0, true
		}
		return n, true
	}
	for _, phrase := range FollowUpPhrases {
		if t == phrase {
			return 0, true
		}
	}
	// Compound phrasing such as "繼續 更多" without a number.
	fields := strings.Fields(t)
	if len(fields) > 0 && len(fields) <= 3 {
		all := true
		for _, f := range fields {
			matched := false
			for _, phrase := range FollowUpPhrases {
				if f == phrase {
					matched = true
					break
				}
			}
			if !matched {
				all = false
				break
			}
		}
		if all {
			return 0, true
		}
	}
	return 0, false
}

// ExtractKnownLocation returns the first known location mentioned in text,
// or "".
func ExtractKnownLocation(text string) string {
	for _, loc := range KnownLocations {
		if strings.Contains(text, loc) {
			return loc
		}
	}
	return ""
}

// ExtractLocationNounPattern matches generic "location + weather-noun" text
// ("東京天氣", "Berlin weather") and returns the captured location, or "".
func ExtractLocationNounPattern(text string) string {
	m := locationNounRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	loc := strings.TrimSpace(m[1])
	// The capture greedily eats leading words; keep the tail token.
	for _, k := range append(append([]string{}, WeatherKeywords...), "今天", "明天", "請問", "请问") {
		loc = strings.TrimSuffix(loc, k)
	}
	return strings.TrimSpace(loc)
}

// NormalizeLocation strips administrative suffixes before the location is
// used in a search query.
func NormalizeLocation(loc string) string {
	t := strings.TrimSpace(loc)
	for _, suffix := range []string{"市", "縣", "县"} {
		if strings.HasSuffix(t, suffix) {
			return strings.TrimSuffix(t, suffix)
		}
	}
	return t
}

// InferPreferredLanguage detects an explicit request to answer in a script
// variant or language. Empty string means no request.
func InferPreferredLanguage(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "繁體") || strings.Contains(t, "繁体") || strings.Contains(t, "正體中文"):
		return "zh-Hant"
	case strings.Contains(t, "簡體") || strings.Contains(t, "简体"):
		return "zh-Hans"
	case strings.Contains(t, "用英文") || strings.Contains(t, "英文回覆") || strings.Contains(t, "英文回答") ||
		strings.Contains(t, "in english") || strings.Contains(t, "reply in english"):
		return "en"
	}
	return ""
}

// InferLinkPreference detects an explicit request to include or omit links.
// nil means no request.
func InferLinkPreference(text string) *bool {
	t := strings.ToLower(text)
	no := []string{"不要連結", "不要链接", "別附連結", "不用連結", "no links", "without links"}
	for _, k := range no {
		if strings.Contains(t, k) {
			v := false
			return &v
		}
	}
	yes := []string{"附上連結", "附連結", "附上链接", "給我連結", "给我链接", "include links", "with links"}
	for _, k := range yes {
		if strings.Contains(t, k) {
			v := true
			return &v
		}
	}
	return nil
}
