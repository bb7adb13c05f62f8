package validate

// Script-variant detection works off small tables of characters that exist in
// only one of the two Chinese scripts. Shared characters are neutral and
// never count against either variant.

var simplifiedOnly = runeSet("国东车红马门问闻读说话语这进远运气么头实时现点线组织经济区医发电业乐动务长风云亿级记汇货币价谈预报温湾据势联网络环节双" +
	"击览兴选举议员单证书响应设计划历")

var traditionalOnly = runeSet("國東車紅馬門問聞讀說話語這進遠運氣麼頭實時現點線組織經濟區醫發電業樂動務長風雲億級記匯貨幣價談預報溫灣據勢聯網絡環節雙" +
	"擊覽興選舉議員單證書響應設計劃歷")

func runeSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{})
	for _, r := range s {
		set[r] = struct{}{}
	}
	return set
}

// MatchesScriptVariant reports whether text is consistent with the preferred
// language's script. Languages other than the two Chinese variants always
// match; detection is only as strong as the character tables.
func MatchesScriptVariant(text, lang string) bool {
	var forbidden map[rune]struct{}
	switch lang {
	case "zh-Hant":
		forbidden = simplifiedOnly
	case "zh-Hans":
		forbidden = traditionalOnly
	default:
		return true
	}
	for _, r := range text {
		if _, ok := forbidden[r]; ok {
			return false
		}
	}
	return true
}
