package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"

	"groundchat/internal/helpers"
	"groundchat/models"
)

const userAgent = "groundchat/1.0"

// maxBodyBytes bounds how much HTML is read before extraction.
const maxBodyBytes = 4 << 20

// Fetcher is a plain HTTP GET fetcher with redirect following and a fixed
// timeout. Readable text is extracted with readability; when that fails the
// raw HTML is stripped with a strict sanitiser instead.
type Fetcher struct {
	maxChars int
	client   *http.Client
	strip    *bluemonday.Policy
}

func New(timeout time.Duration, maxChars int) *Fetcher {
	return &Fetcher{
		maxChars: maxChars,
		client:   &http.Client{Timeout: timeout},
		strip:    bluemonday.StrictPolicy(),
	}
}

func (f *Fetcher) Fetch(ctx context.Context, raw string) (models.FetchedPage, error) {
	if !helpers.IsPublicHTTPURL(raw) {
		return models.FetchedPage{URL: raw}, fmt.Errorf("rejected non-public url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return models.FetchedPage{URL: raw}, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return models.FetchedPage{URL: raw}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return models.FetchedPage{URL: raw}, fmt.Errorf("fetch returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.FetchedPage{URL: raw}, err
	}

	title, text := f.extract(string(body), raw)
	return models.FetchedPage{
		Title: title,
		URL:   raw,
		Text:  helpers.Truncate(text, f.maxChars),
	}, nil
}

// extract pulls readable text out of HTML: readability first, strict HTML
// stripping as the fallback. Script/style/noscript content never survives
// either path, and whitespace is collapsed.
func (f *Fetcher) extract(html, raw string) (title, text string) {
	pageURL, _ := url.Parse(raw)
	if pageURL == nil {
		pageURL = &url.URL{}
	}
	if article, err := readability.FromReader(strings.NewReader(html), pageURL); err == nil {
		title = strings.TrimSpace(article.Title)
		text = helpers.CollapseWhitespace(article.TextContent)
	}
	if text == "" {
		text = helpers.CollapseWhitespace(f.strip.Sanitize(html))
	}
	return title, text
}
