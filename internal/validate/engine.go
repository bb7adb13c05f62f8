package validate

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"groundchat/internal/helpers"
	"groundchat/internal/retrieval"
	"groundchat/internal/telemetry"
	"groundchat/models"
	"groundchat/provider"
	provmodels "groundchat/provider/models"
)

// Input carries everything the engine needs to judge and repair one
// generated answer.
type Input struct {
	UserText string
	Profile  models.Profile
	Evidence retrieval.Evidence
	// Messages is the directive stack the answer was generated from; retries
	// append one corrective directive to it.
	Messages   []provmodels.Message
	IsNews     bool
	IsWeather  bool
	Recency    bool
	WantsLinks bool
	ItemCount  int
}

// Options tunes the corrective regeneration calls.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Engine runs the ordered grounding checklist over freshly generated text.
// Each check inspects the current text only; a later check's corrective
// retry is not re-validated against earlier checks. That ordering limitation
// is deliberate and documented, not an oversight to fix here.
type Engine struct {
	llmProvider provider.Provider
	opts        Options
	logger      *log.Logger
	now         func() time.Time
}

func New(llmProvider provider.Provider, opts Options) *Engine {
	return &Engine{
		llmProvider: llmProvider,
		opts:        opts,
		logger:      log.New(log.Writer(), "[VALIDATE] ", log.LstdFlags),
		now:         time.Now,
	}
}

var refusalPhrases = []string{
	"無法提供即時", "无法提供实时", "沒有辦法提供即時", "無法取得即時",
	"無法查詢即時", "无法查询实时", "cannot provide real-time",
	"can't provide real-time", "cannot access real-time", "i cannot browse",
	"i can't browse", "unable to access current",
}

func containsRefusal(text string) bool {
	t := strings.ToLower(text)
	for _, p := range refusalPhrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}

// Finalize runs the checklist and the link-appendix pass, returning the text
// to deliver. It never returns an error; every failure mode degrades to some
// deliverable text.
func (e *Engine) Finalize(ctx context.Context, text string, in Input) string {
	hasSources := len(in.Evidence.Results) > 0

	// 1. Weather answers must not refuse to use the provided sources.
	if in.IsWeather && hasSources && containsRefusal(text) {
		text = e.retry(ctx, in, "weather_refusal",
			"Your previous answer refused to give real-time information even though sources were provided. "+
				"Answer again strictly from the provided sources. Do NOT say you cannot provide real-time data.",
			text)
	}

	// 2. First script-variant pass.
	text = e.enforceScript(ctx, text, in)

	// 3. Recency-sensitive answers must not lean on stale years.
	if in.Recency && hasSources {
		if stale := staleYears(text, e.now().Year()); len(stale) > 0 {
			retried := e.retry(ctx, in, "stale_year", fmt.Sprintf(
				"Your previous answer mentioned outdated years (%s) for a question about current events. "+
					"Answer again using only what the provided sources say, without referring to those years.",
				joinYears(stale)), text)
			if len(staleYears(retried, e.now().Year())) > 0 {
				telemetry.ValidatorFallbacks.WithLabelValues("stale_year").Inc()
				e.logger.Printf("stale_year retry failed, using link-list fallback")
				text = linkListFallback(in.Evidence.Results)
				return e.appendLinks(text, in)
			}
			text = retried
		}
	}

	if in.IsNews && hasSources {
		// 4. News bullets must lead with a date token.
		if missingLeadingDates(text) {
			text = e.retry(ctx, in, "date_first",
				"Your previous answer had news bullets that did not start with a date. "+
					"Rewrite the list so that EVERY bullet starts with YYYY-MM-DD or "+models.NoDateMarker+".",
				text)
		}

		// 5. Bullet dates must come from the sources themselves.
		if allowed := in.Evidence.DateHints.AllowedList(); len(allowed) > 0 {
			if bad := ungroundedDates(text, in.Evidence.DateHints); len(bad) > 0 {
				text = e.retry(ctx, in, "allowed_dates", fmt.Sprintf(
					"Your previous answer used dates not present in the sources (%s). "+
						"Use ONLY these dates: %s. When a source has no date, start the bullet with %s.",
					strings.Join(bad, ", "), strings.Join(allowed, ", "), models.NoDateMarker), text)
			}
		}

		// 6. A multi-bullet news list must cite more than one source.
		if lacksCitationDiversity(text, len(in.Evidence.Results)) {
			retried := e.retry(ctx, in, "citation_diversity",
				"Your previous answer cited only one source across multiple news bullets. "+
					"Rewrite the list so that bullets cite DIFFERENT source indices like [1], [2], [3].",
				text)
			if lacksCitationDiversity(retried, len(in.Evidence.Results)) {
				telemetry.ValidatorFallbacks.WithLabelValues("citation_diversity").Inc()
				e.logger.Printf("citation_diversity retry failed, using per-source fallback")
				retried = perSourceBulletFallback(in.Evidence, in.ItemCount)
			}
			text = retried
		}
	}

	// Corrective retries can reintroduce the wrong script, so the variant
	// pass runs once more at the end.
	text = e.enforceScript(ctx, text, in)

	return e.appendLinks(text, in)
}

// retry issues the single corrective regeneration for a failed check. When
// the call itself fails, the original text stands.
func (e *Engine) retry(ctx context.Context, in Input, check, directive, original string) string {
	telemetry.ValidatorFailures.WithLabelValues(check).Inc()
	e.logger.Printf("check %s flagged the answer, retrying once", check)

	messages := make([]provmodels.Message, 0, len(in.Messages)+1)
	messages = append(messages, in.Messages...)
	messages = append(messages, provmodels.Message{Role: "system", Content: directive})

	out, err := e.llmProvider.Generate(ctx, messages, provmodels.Options{
		Model:       e.opts.Model,
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	})
	if err != nil || strings.TrimSpace(out) == "" {
		telemetry.ProviderCalls.WithLabelValues("retry", "error").Inc()
		e.logger.Printf("retry for %s failed, keeping previous text: %v", check, err)
		return original
	}
	telemetry.ProviderCalls.WithLabelValues("retry", "ok").Inc()
	return strings.TrimSpace(out)
}

// enforceScript rewrites text into the profile's script variant when it
// drifted. Rewrite only: same meaning, citations and URLs untouched.
func (e *Engine) enforceScript(ctx context.Context, text string, in Input) string {
	lang := in.Profile.PreferredLanguage
	if lang != "zh-Hant" && lang != "zh-Hans" {
		return text
	}
	if MatchesScriptVariant(text, lang) {
		return text
	}
	telemetry.ValidatorFailures.WithLabelValues("script_variant").Inc()

	target := "Traditional Chinese (繁體中文)"
	if lang == "zh-Hans" {
		target = "Simplified Chinese (简体中文)"
	}
	out, err := e.llmProvider.Generate(ctx, []provmodels.Message{
		{Role: "system", Content: "Rewrite the following text into " + target + ". " +
			"Keep the meaning verbatim. Keep all [n] citation markers and all URLs exactly as they are. " +
			"Return only the rewritten text."},
		{Role: "user", Content: text},
	}, provmodels.Options{
		Model:       e.opts.Model,
		Temperature: 0.0,
		MaxTokens:   e.opts.MaxTokens,
	})
	if err != nil || strings.TrimSpace(out) == "" {
		telemetry.ProviderCalls.WithLabelValues("retry", "error").Inc()
		e.logger.Printf("script rewrite failed, keeping previous text: %v", err)
		return text
	}
	telemetry.ProviderCalls.WithLabelValues("retry", "ok").Inc()
	return strings.TrimSpace(out)
}

// appendLinks adds the final source-link block: for news turns an index->URL
// appendix of the cited sources, otherwise a short raw-URL list when the user
// explicitly asked for links.
func (e *Engine) appendLinks(text string, in Input) string {
	results := in.Evidence.Results
	if len(results) == 0 {
		return text
	}

	if in.IsNews {
		indices := helpers.CitationIndices(text, len(results))
		if len(indices) == 0 {
			for i := 1; i <= len(results) && i <= 10; i++ {
				indices = append(indices, i)
			}
		}
		var b strings.Builder
		b.WriteString(text)
		b.WriteString("\n\n來源連結：\n")
		for _, idx := range indices {
			fmt.Fprintf(&b, "[%d] %s\n", idx, strings.TrimSpace(results[idx-1].URL))
		}
		return strings.TrimSpace(b.String())
	}

	if in.WantsLinks {
		var b strings.Builder
		b.WriteString(text)
		b.WriteString("\n\n相關連結：\n")
		for i, r := range results {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(r.URL))
		}
		return strings.TrimSpace(b.String())
	}
	return text
}

// staleYears returns the years in text strictly older than last year.
func staleYears(text string, currentYear int) []int {
	var out []int
	for _, y := range helpers.YearsIn(text) {
		if y < currentYear-1 {
			out = append(out, y)
		}
	}
	return out
}

func joinYears(years []int) string {
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = fmt.Sprintf("%d", y)
	}
	return strings.Join(parts, ", ")
}

// missingLeadingDates reports whether any bullet in a news answer lacks a
// leading date token. Answers without bullets are left alone.
func missingLeadingDates(text string) bool {
	bullets := helpers.BulletLines(text)
	if len(bullets) == 0 {
		return false
	}
	for _, b := range bullets {
		if helpers.LeadingDateToken(b) == "" {
			return true
		}
	}
	return false
}

// ungroundedDates returns the distinct leading bullet dates that are not in
// the allowed set.
func ungroundedDates(text string, hints models.DateHints) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, b := range helpers.BulletLines(text) {
		tok := helpers.LeadingDateToken(b)
		if tok == "" || hints.IsAllowed(tok) {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// lacksCitationDiversity reports whether a list of three or more bullets
// cites fewer than two distinct sources.
func lacksCitationDiversity(text string, max int) bool {
	bullets := helpers.BulletLines(text)
	if len(bullets) < 3 || max < 2 {
		return false
	}
	return len(helpers.CitationIndices(text, max)) < 2
}
