package validate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"groundchat/internal/helpers"
	"groundchat/internal/retrieval"
	"groundchat/models"
	provmodels "groundchat/provider/models"
)

type scriptedProvider struct {
	responses []string
	calls     int
	prompts   [][]provmodels.Message
}

func (s *scriptedProvider) Generate(ctx context.Context, messages []provmodels.Message, opts provmodels.Options) (string, error) {
	s.calls++
	s.prompts = append(s.prompts, messages)
	if len(s.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	out := s.responses[0]
	s.responses = s.responses[1:]
	return out, nil
}

func newsEvidence() retrieval.Evidence {
	return retrieval.Evidence{
		Results: []models.SearchResult{
			{Title: "颱風北轉", URL: "https://a.example.com/1", Description: ""},
			{Title: "雨量警報", URL: "https://b.example.com/2", Description: ""},
			{Title: "停班停課", URL: "https://c.example.com/3", Description: ""},
		},
		Summaries: []models.SourceSummary{
			{Index: 1, Title: "颱風北轉", Domain: "a.example.com", Text: "- 颱風路徑北轉 [1]"},
			{Index: 2, Title: "雨量警報", Domain: "b.example.com", Text: "- 山區雨量破表 [2]"},
			{Index: 3, Title: "停班停課", Domain: "c.example.com", Text: "- 多縣市停班停課 [3]"},
		},
		DateHints: models.DateHints{
			ByIndex: map[int]string{1: "2026-02-18", 2: "2026-02-17", 3: models.NoDateMarker},
			Allowed: map[string]struct{}{"2026-02-18": {}, "2026-02-17": {}},
		},
	}
}

func newTestEngine(p *scriptedProvider) *Engine {
	e := New(p, Options{Model: "chat-model", Temperature: 0.3, MaxTokens: 900})
	e.now = func() time.Time { return time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestWeatherRefusalRetried(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{responses: []string{"概況：多雲短暫雨 [1]"}}
	e := newTestEngine(p)

	out := e.Finalize(context.Background(), "抱歉，我無法提供即時天氣資訊。", Input{
		IsWeather: true,
		Evidence:  retrieval.Evidence{Results: []models.SearchResult{{Title: "t", URL: "https://a.example.com"}}},
	})
	if out != "概況：多雲短暫雨 [1]" {
		t.Errorf("out = %q, want retried weather answer", out)
	}
	if p.calls != 1 {
		t.Errorf("provider calls = %d, want 1", p.calls)
	}
}

func TestStaleYearFallsBackToLinkList(t *testing.T) {
	t.Parallel()
	// Both the original and the retried text lean on 2023: deterministic
	// link-list fallback, no further model calls.
	p := &scriptedProvider{responses: []string{"根據2023年的資料，市場上漲。"}}
	e := newTestEngine(p)

	ev := newsEvidence()
	out := e.Finalize(context.Background(), "2023年時股市曾大漲。", Input{
		Recency:  true,
		Evidence: ev,
	})

	if p.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", p.calls)
	}
	for i, r := range ev.Results {
		if !strings.Contains(out, r.URL) {
			t.Errorf("fallback missing URL of source %d: %q", i+1, out)
		}
	}
	if len(staleYears(out, 2026)) > 0 {
		t.Errorf("fallback still contains stale years: %q", out)
	}
}

func TestStaleYearRetrySucceeds(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{responses: []string{"最新消息：指數今天上漲 [1]。"}}
	e := newTestEngine(p)

	out := e.Finalize(context.Background(), "根據2023年的資料。", Input{
		Recency:  true,
		Evidence: retrieval.Evidence{Results: []models.SearchResult{{Title: "t", URL: "https://a.example.com"}}},
	})
	if !strings.Contains(out, "指數今天上漲") {
		t.Errorf("out = %q, want retried text", out)
	}
}

func TestNewsBulletDatesRetried(t *testing.T) {
	t.Parallel()
	corrected := "- 2026-02-18 颱風北轉 [1]\n- 2026-02-17 雨量警報 [2]\n- " + models.NoDateMarker + " 停班停課 [3]"
	p := &scriptedProvider{responses: []string{corrected}}
	e := newTestEngine(p)

	out := e.Finalize(context.Background(), "- 颱風北轉 [1]\n- 雨量警報 [2]\n- 停班停課 [3]", Input{
		IsNews:   true,
		Evidence: newsEvidence(),
	})

	for _, b := range helpers.BulletLines(out) {
		if helpers.LeadingDateToken(b) == "" {
			t.Errorf("bullet without leading date survived: %q", b)
		}
	}
}

func TestUngroundedDatesRetried(t *testing.T) {
	t.Parallel()
	ev := newsEvidence()
	corrected := "- 2026-02-18 颱風北轉 [1]\n- 2026-02-17 雨量警報 [2]\n- " + models.NoDateMarker + " 停班停課 [3]"
	p := &scriptedProvider{responses: []string{corrected}}
	e := newTestEngine(p)

	out := e.Finalize(context.Background(), "- 2024-01-01 颱風北轉 [1]\n- 2026-02-17 雨量警報 [2]\n- "+models.NoDateMarker+" 停班停課 [3]", Input{
		IsNews:   true,
		Evidence: ev,
	})

	for _, b := range helpers.BulletLines(out) {
		tok := helpers.LeadingDateToken(b)
		if tok != "" && !ev.DateHints.IsAllowed(tok) {
			t.Errorf("ungrounded bullet date survived: %q", tok)
		}
	}
	if p.calls != 1 {
		t.Errorf("provider calls = %d, want 1 corrective retry", p.calls)
	}
	// The corrective directive names the offending date.
	last := p.prompts[0][len(p.prompts[0])-1]
	if !strings.Contains(last.Content, "2024-01-01") {
		t.Errorf("directive does not name the bad date: %q", last.Content)
	}
}

func TestCitationDiversityFallback(t *testing.T) {
	t.Parallel()
	sameSource := "- 2026-02-18 第一則 [1]\n- 2026-02-18 第二則 [1]\n- 2026-02-17 第三則 [1]\n- " + models.NoDateMarker + " 第四則 [1]"
	// The retry repeats the mistake, forcing the deterministic fallback.
	p := &scriptedProvider{responses: []string{sameSource}}
	e := newTestEngine(p)

	ev := newsEvidence()
	out := e.Finalize(context.Background(), sameSource, Input{
		IsNews:   true,
		Evidence: ev,
	})

	body := strings.Split(out, "來源連結：")[0]
	cited := helpers.CitationIndices(body, len(ev.Results))
	if len(cited) < 2 {
		t.Fatalf("final text cites %d distinct sources, want >= 2: %q", len(cited), out)
	}
	// Fallback bullets carry the extracted date hints.
	if !strings.Contains(body, "2026-02-17") || !strings.Contains(body, models.NoDateMarker) {
		t.Errorf("fallback bullets missing date hints: %q", body)
	}
}

func TestScriptVariantRewrite(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{responses: []string{"今天天氣很好，氣溫偏高。"}}
	e := newTestEngine(p)

	out := e.Finalize(context.Background(), "今天天气很好，气温偏高。", Input{
		Profile: models.Profile{PreferredLanguage: "zh-Hant"},
	})
	if !MatchesScriptVariant(out, "zh-Hant") {
		t.Errorf("out = %q, still in the wrong script", out)
	}
	if p.calls != 1 {
		t.Errorf("provider calls = %d, want 1 rewrite", p.calls)
	}
}

func TestNewsLinkAppendix(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{}
	e := newTestEngine(p)

	ev := newsEvidence()
	text := "- 2026-02-18 颱風北轉 [1]\n- 2026-02-17 雨量警報 [2]\n- " + models.NoDateMarker + " 停班停課 [3]"
	out := e.Finalize(context.Background(), text, Input{IsNews: true, Evidence: ev})

	if !strings.Contains(out, "來源連結：") {
		t.Fatalf("missing link appendix: %q", out)
	}
	for _, r := range ev.Results {
		if !strings.Contains(out, r.URL) {
			t.Errorf("appendix missing %s", r.URL)
		}
	}
	if p.calls != 0 {
		t.Errorf("provider calls = %d, want 0 for a clean answer", p.calls)
	}
}

func TestExplicitLinksAppendix(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{}
	e := newTestEngine(p)

	ev := newsEvidence()
	out := e.Finalize(context.Background(), "摘要內容 [1]", Input{WantsLinks: true, Evidence: ev})
	if !strings.Contains(out, "相關連結：") {
		t.Fatalf("missing raw-link appendix: %q", out)
	}
	if !strings.Contains(out, ev.Results[0].URL) {
		t.Errorf("appendix missing first URL")
	}
}
