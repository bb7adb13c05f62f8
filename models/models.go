package models

import (
	"sort"
	"time"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message in a chat's history. Turns are immutable
// once written and ordered by arrival within a chat.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Profile is the durable per-chat preference/summary document, distinct from
// the turn history.
type Profile struct {
	PreferredLanguage      string `json:"preferred_language,omitempty"`
	DefaultWeatherLocation string `json:"default_weather_location,omitempty"`
	PreferLinks            *bool  `json:"prefer_links,omitempty"`
	ConversationSummary    string `json:"conversation_summary,omitempty"`
}

// Merge returns the profile with updates applied additively: a field is
// overwritten only when the incoming value is non-empty, never cleared
// implicitly.
func (p Profile) Merge(updates Profile) Profile {
	if updates.PreferredLanguage != "" {
		p.PreferredLanguage = updates.PreferredLanguage
	}
	if updates.DefaultWeatherLocation != "" {
		p.DefaultWeatherLocation = updates.DefaultWeatherLocation
	}
	if updates.PreferLinks != nil {
		p.PreferLinks = updates.PreferLinks
	}
	if updates.ConversationSummary != "" {
		p.ConversationSummary = updates.ConversationSummary
	}
	return p
}

// SearchResult is one ranked search hit. Its 1-based rank defines its
// citation index for the lifetime of the turn.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// FetchedPage holds the extracted text of one result URL. Empty Text means
// the fetch or parse failed, or the URL was rejected as non-public.
type FetchedPage struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

// SourceSummary is a per-source model summary, produced only for pages with
// non-empty text.
type SourceSummary struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Domain string `json:"domain"`
	Text   string `json:"text"`
}

// Tool names the retrieval tool chosen by the planner.
type Tool string

const (
	ToolWebSearch Tool = "web_search"
	ToolNone      Tool = "none"
)

// PlanDecision is the planner's verdict for one inbound message.
type PlanDecision struct {
	Tool  Tool   `json:"tool"`
	Query string `json:"query"`

	// Reuse marks a follow-up continuation served from the cached
	// FollowUpContext instead of a fresh search.
	Reuse bool `json:"reuse,omitempty"`
	// ItemCount is the requested number of items on a follow-up turn.
	ItemCount int `json:"item_count,omitempty"`
	// Clarify short-circuits the pipeline with a clarification question
	// (weather question with no resolvable location).
	Clarify bool `json:"clarify,omitempty"`
	// Location is the resolved weather location, when any.
	Location string `json:"location,omitempty"`
}

// NoDateMarker is the explicit "no date" token used in date hints and in
// news bullets whose source carries no extractable publication date.
const NoDateMarker = "[no date]"

// DateHints maps citation indices to best-guess publication dates (ISO form)
// or NoDateMarker, plus the union set of allowed dates used for grounding.
type DateHints struct {
	ByIndex map[int]string      `json:"by_index"`
	Allowed map[string]struct{} `json:"allowed"`
}

// Hint returns the date hint for a 1-based source index, defaulting to
// NoDateMarker.
func (d DateHints) Hint(index int) string {
	if h, ok := d.ByIndex[index]; ok && h != "" {
		return h
	}
	return NoDateMarker
}

// AllowedList returns the allowed dates in sorted order.
func (d DateHints) AllowedList() []string {
	out := make([]string, 0, len(d.Allowed))
	for date := range d.Allowed {
		out = append(out, date)
	}
	sort.Strings(out)
	return out
}

// IsAllowed reports whether a bullet date token is grounded: either a member
// of the allowed set or the explicit no-date marker.
func (d DateHints) IsAllowed(token string) bool {
	if token == NoDateMarker {
		return true
	}
	_, ok := d.Allowed[token]
	return ok
}

// FollowUpContext caches the most recent web-search-backed turn of a chat,
// reusable by an immediately following "continue" request. One slot per
// chat, overwritten by every web_search turn.
type FollowUpContext struct {
	Tool      Tool           `json:"tool"`
	IsNews    bool           `json:"is_news"`
	Query     string         `json:"query"`
	Results   []SearchResult `json:"results"`
	Pages     []FetchedPage  `json:"pages"`
	DateHints DateHints      `json:"date_hints"`
	Timestamp time.Time      `json:"timestamp"`
}
