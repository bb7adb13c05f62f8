package prompt

import (
	"fmt"
	"strings"

	"groundchat/internal/helpers"
	"groundchat/internal/retrieval"
	"groundchat/models"
	provmodels "groundchat/provider/models"
)

// Input is everything the assembler needs for one turn.
type Input struct {
	UserText  string
	Profile   models.Profile
	History   []models.Turn
	Evidence  retrieval.Evidence
	SearchRan bool
	IsNews    bool
	IsWeather bool
	// Recency narrows history to recent user turns so prior assistant
	// claims cannot contaminate a time-sensitive answer.
	Recency bool
	// ItemCount caps news items; 0 means derive from the result count.
	ItemCount int
}

// recentUserTurns is how many user turns survive history narrowing on
// recency-sensitive questions.
const recentUserTurns = 3

const persona = "You are a helpful chat assistant."

// Build assembles the ordered directive stack fed to generation. Each
// directive is added only if its condition holds, in fixed order: persona,
// profile preferences, search results, news rules, weather rules, evidence,
// conversation history.
func Build(in Input) []provmodels.Message {
	messages := []provmodels.Message{{Role: "system", Content: persona}}

	if d := languageDirective(in.Profile.PreferredLanguage); d != "" {
		messages = append(messages, provmodels.Message{Role: "system", Content: d})
	}
	if in.Profile.PreferLinks != nil {
		content := "The user prefers source links to be included when available."
		if !*in.Profile.PreferLinks {
			content = "The user prefers answers without raw URLs unless explicitly asked for links."
		}
		messages = append(messages, provmodels.Message{Role: "system", Content: content})
	}

	if in.SearchRan {
		if len(in.Evidence.Results) > 0 {
			messages = append(messages, provmodels.Message{Role: "system", Content: searchDirective(in.Evidence.Results)})
			if in.IsNews {
				messages = append(messages, provmodels.Message{Role: "system", Content: newsDirective(in)})
			}
			if in.IsWeather {
				messages = append(messages, provmodels.Message{Role: "system", Content: weatherDirective})
			}
			if d := evidenceDirective(in.Evidence); d != "" {
				messages = append(messages, provmodels.Message{Role: "system", Content: d})
			}
		} else {
			messages = append(messages, provmodels.Message{
				Role:    "system",
				Content: "Web search was requested, but results are empty. Say you couldn't find sources, then answer from general knowledge.",
			})
		}
	}

	if s := strings.TrimSpace(in.Profile.ConversationSummary); s != "" {
		messages = append(messages, provmodels.Message{
			Role:    "system",
			Content: "Summary of the earlier conversation:\n" + s,
		})
	}

	for _, turn := range narrowHistory(in.History, in.Recency) {
		messages = append(messages, provmodels.Message{Role: string(turn.Role), Content: turn.Content})
	}
	return messages
}

func languageDirective(lang string) string {
	switch lang {
	case "zh-Hant":
		return "Always answer in Traditional Chinese (繁體中文). Never use Simplified Chinese characters."
	case "zh-Hans":
		return "Always answer in Simplified Chinese (简体中文). Never use Traditional Chinese characters."
	case "":
		return ""
	default:
		return fmt.Sprintf("Always answer in %s.", lang)
	}
}

func searchDirective(results []models.SearchResult) string {
	var b strings.Builder
	b.WriteString("Web search results are provided. Use them first.\n")
	b.WriteString("Do NOT paste URLs in the final answer. Use [n] citations only.\n")
	b.WriteString("Only include URLs if the user explicitly asks for links/sources.\n")
	b.WriteString("Web search results:\n")
	b.WriteString(FormatSearchResults(results))
	return b.String()
}

func newsDirective(in Input) string {
	n := in.ItemCount
	if n <= 0 {
		n = len(in.Evidence.Results)
		if n > 10 {
			n = 10
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "The user is asking for news. You MUST list at least %d distinct news items if sources are available. ", n)
	b.WriteString("Return a bullet list. Each bullet must start with the publication date as YYYY-MM-DD (or ")
	b.WriteString(models.NoDateMarker)
	b.WriteString(" when unknown), followed by a short headline, a 1-2 sentence summary, and a citation like [n]. ")
	b.WriteString("Each bullet MUST cite a different source index when possible. ")
	b.WriteString("Do NOT write generic summaries. Do NOT merge multiple news into one bullet.")
	if allowed := in.Evidence.DateHints.AllowedList(); len(allowed) > 0 {
		fmt.Fprintf(&b, " Use ONLY these dates, which come from the sources themselves: %s. ", strings.Join(allowed, ", "))
		b.WriteString("A bullet whose source has no extractable date starts with " + models.NoDateMarker + ".")
	}
	return b.String()
}

const weatherDirective = "This is a weather / real-time info question. You MUST use the provided web content to answer. " +
	"Do NOT say you cannot provide real-time info. " +
	"If the provided sources do not include specific numbers, clearly say the sources do not contain the detailed " +
	"forecast numbers and ask the user for a more specific time window or district. " +
	"Do NOT invent numbers that are not present in the sources. " +
	"Answer in a compact structure: 概況 / 溫度範圍 / 降雨機率 / 注意事項. " +
	"Cite sources with [n]. Do NOT include URLs."

// evidenceDirective attaches exactly one evidence block, preferring
// per-source summaries over raw fetched text; bare search snippets are
// already present in the search directive.
func evidenceDirective(ev retrieval.Evidence) string {
	if len(ev.Summaries) > 0 {
		return "Per-source summaries are provided. Prefer using these summaries to answer. " +
			"Cite sources with [n]. Do NOT include URLs.\nSource summaries:\n" + FormatSourceSummaries(ev.Summaries)
	}
	if ev.HasPageText() {
		return "Fetched page contents are provided. Prefer using these contents to answer. " +
			"Cite sources with [n]. Do NOT include URLs.\nFetched contents:\n" + FormatFetchedPages(ev.Pages)
	}
	return ""
}

// narrowHistory drops prior assistant turns on recency-sensitive questions,
// keeping only the last few user turns.
func narrowHistory(history []models.Turn, recency bool) []models.Turn {
	if !recency {
		return history
	}
	var users []models.Turn
	for _, t := range history {
		if t.Role == models.RoleUser {
			users = append(users, t)
		}
	}
	if len(users) > recentUserTurns {
		users = users[len(users)-recentUserTurns:]
	}
	return users
}

// FormatSearchResults renders results as numbered citation blocks.
func FormatSearchResults(results []models.SearchResult) string {
	var blocks []string
	for i, r := range results {
		blocks = append(blocks, fmt.Sprintf("[%d] %s\nDomain: %s\nSnippet: %s",
			i+1, strings.TrimSpace(r.Title), helpers.Domain(r.URL), strings.TrimSpace(r.Description)))
	}
	return strings.Join(blocks, "\n\n")
}

// FormatFetchedPages renders non-empty fetched pages as citation blocks.
func FormatFetchedPages(pages []models.FetchedPage) string {
	var blocks []string
	for i, p := range pages {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("[%d] %s\nDomain: %s\nContent:\n%s",
			i+1, strings.TrimSpace(p.Title), helpers.Domain(p.URL), text))
	}
	return strings.Join(blocks, "\n\n")
}

// FormatSourceSummaries renders per-source summaries as citation blocks.
func FormatSourceSummaries(summaries []models.SourceSummary) string {
	var blocks []string
	for _, s := range summaries {
		blocks = append(blocks, fmt.Sprintf("[%d] %s (%s)\n%s", s.Index, s.Title, s.Domain, s.Text))
	}
	return strings.Join(blocks, "\n\n")
}
