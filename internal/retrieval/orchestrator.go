package retrieval

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"groundchat/internal/helpers"
	"groundchat/internal/telemetry"
	"groundchat/models"
	"groundchat/provider"
	provmodels "groundchat/provider/models"
	"groundchat/tools/web_fetch"
	"groundchat/tools/web_search"
)

// Evidence is everything retrieval produced for one turn. Any of it may be
// empty; the pipeline degrades instead of failing.
type Evidence struct {
	Results   []models.SearchResult
	Pages     []models.FetchedPage
	Summaries []models.SourceSummary
	DateHints models.DateHints
}

// HasPageText reports whether at least one fetched page carries text.
func (e Evidence) HasPageText() bool {
	for _, p := range e.Pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}

// Config tunes one orchestrator instance.
type Config struct {
	Country      string
	Lang         string
	Count        int
	FetchTopN    int
	SummaryModel string
}

// Orchestrator runs search, fetches pages, and summarizes each source
// concurrently. Failures degrade to missing evidence, never to an error the
// caller must handle.
type Orchestrator struct {
	searcher    web_search.WebSearcher
	fetcher     web_fetch.WebFetcher
	llmProvider provider.Provider
	cfg         Config
	logger      *log.Logger
}

func New(searcher web_search.WebSearcher, fetcher web_fetch.WebFetcher, llmProvider provider.Provider, cfg Config) *Orchestrator {
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	if cfg.FetchTopN <= 0 {
		cfg.FetchTopN = 10
	}
	return &Orchestrator{
		searcher:    searcher,
		fetcher:     fetcher,
		llmProvider: llmProvider,
		cfg:         cfg,
		logger:      log.New(log.Writer(), "[RETRIEVAL] ", log.LstdFlags),
	}
}

// Retrieve performs the full retrieval pass for a resolved query.
func (o *Orchestrator) Retrieve(ctx context.Context, userText, query string, isNews bool) Evidence {
	q := query
	if q == "" {
		q = userText
	}

	results, err := o.searcher.Search(ctx, q, o.cfg.Country, o.cfg.Lang, o.cfg.Count)
	if err != nil {
		o.logger.Printf("search failed, continuing without results: %v", err)
		telemetry.SearchCalls.WithLabelValues("error").Inc()
		results = nil
	} else {
		telemetry.SearchCalls.WithLabelValues("ok").Inc()
	}

	ev := Evidence{Results: results}
	if len(results) == 0 {
		ev.DateHints = helpers.ExtractDateHints(nil, nil)
		return ev
	}

	ev.Pages = o.fetchPages(ctx, results)
	ev.Summaries = o.summarizeSources(ctx, userText, ev.Pages, isNews)
	ev.DateHints = helpers.ExtractDateHints(results, ev.Pages)
	return ev
}

// FromCache rebuilds evidence from a follow-up context without touching the
// network. Summaries are not regenerated; the fetched text stands in.
func (o *Orchestrator) FromCache(fu *models.FollowUpContext) Evidence {
	if fu == nil {
		return Evidence{}
	}
	return Evidence{
		Results:   fu.Results,
		Pages:     fu.Pages,
		DateHints: fu.DateHints,
	}
}

// fetchPages fetches the top-N result URLs concurrently. The returned slice
// is aligned with the leading results; a rejected or failed URL keeps an
// empty Text.
func (o *Orchestrator) fetchPages(ctx context.Context, results []models.SearchResult) []models.FetchedPage {
	n := o.cfg.FetchTopN
	if n > len(results) {
		n = len(results)
	}

	pages := make([]models.FetchedPage, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := results[i]
			pages[i] = models.FetchedPage{Title: r.Title, URL: r.URL}
			if strings.TrimSpace(r.URL) == "" {
				telemetry.PagesFetched.WithLabelValues("rejected").Inc()
				return
			}
			page, err := o.fetcher.Fetch(ctx, r.URL)
			if err != nil {
				telemetry.PagesFetched.WithLabelValues("error").Inc()
				return
			}
			pages[i].Text = page.Text
			if strings.TrimSpace(page.Text) == "" {
				telemetry.PagesFetched.WithLabelValues("empty").Inc()
			} else {
				telemetry.PagesFetched.WithLabelValues("ok").Inc()
			}
		}(i)
	}
	wg.Wait()
	return pages
}

// summarizeSources runs one source-scoped model call per non-empty page,
// concurrently. A failing call yields an omitted summary.
func (o *Orchestrator) summarizeSources(ctx context.Context, userText string, pages []models.FetchedPage, isNews bool) []models.SourceSummary {
	summaries := make([]*models.SourceSummary, len(pages))
	var wg sync.WaitGroup
	for i, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		wg.Add(1)
		go func(i int, p models.FetchedPage) {
			defer wg.Done()
			index := i + 1
			domain := helpers.Domain(p.URL)
			text, err := o.summarizeSource(ctx, userText, index, p.Title, domain, p.Text, isNews)
			if err != nil {
				o.logger.Printf("summary for source [%d] skipped: %v", index, err)
				telemetry.ProviderCalls.WithLabelValues("summarize", "error").Inc()
				return
			}
			telemetry.ProviderCalls.WithLabelValues("summarize", "ok").Inc()
			if strings.TrimSpace(text) == "" {
				return
			}
			summaries[i] = &models.SourceSummary{
				Index:  index,
				Title:  strings.TrimSpace(p.Title),
				Domain: domain,
				Text:   strings.TrimSpace(text),
			}
		}(i, p)
	}
	wg.Wait()

	var out []models.SourceSummary
	for _, s := range summaries {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func (o *Orchestrator) summarizeSource(ctx context.Context, userText string, index int, title, domain, content string, isNews bool) (string, error) {
	system := "You are summarizing a single web source for a chat assistant. " +
		"Return concise Traditional Chinese bullet points that are directly relevant to the user's question. " +
		"Do NOT include URLs. Do NOT mention you cannot browse. " +
		"If the source does not contain relevant information, say so briefly. " +
		"End each bullet with the citation marker like [n] where n is the source index."
	if isNews {
		system += " This is a news question: prefix each bullet with the publication date as YYYY-MM-DD " +
			"when the source states one, otherwise prefix it with " + models.NoDateMarker + "."
	}

	return o.llmProvider.Generate(ctx, []provmodels.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: fmt.Sprintf(
			"User question: %s\n\nSource [%d]\nTitle: %s\nDomain: %s\nContent:\n%s",
			userText, index, title, domain, content,
		)},
	}, provmodels.Options{
		Model:       o.cfg.SummaryModel,
		Temperature: 0.2,
		MaxTokens:   450,
	})
}
