package chromedp

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"

	"groundchat/internal/helpers"
	"groundchat/models"
)

// Fetch renders a page in headless Chrome before extracting readable text.
// Useful for script-heavy sources the plain HTTP fetcher gets nothing from.
type Fetch struct {
	Timeout  time.Duration
	MaxChars int
}

func (f Fetch) Fetch(ctx context.Context, raw string) (models.FetchedPage, error) {
	if strings.TrimSpace(raw) == "" {
		return models.FetchedPage{}, errors.New("invalid url")
	}
	if !helpers.IsPublicHTTPURL(raw) {
		return models.FetchedPage{URL: raw}, errors.New("rejected non-public url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	html, err := fetchHTML(ctx, raw)
	if err != nil {
		return models.FetchedPage{URL: raw}, err
	}

	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(raw))
	if err != nil {
		return models.FetchedPage{URL: raw}, err
	}

	text := helpers.CollapseWhitespace(article.TextContent)
	return models.FetchedPage{
		Title: strings.TrimSpace(article.Title),
		URL:   raw,
		Text:  helpers.Truncate(text, f.MaxChars),
	}, nil
}

func fetchHTML(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("groundchat/1.0"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
