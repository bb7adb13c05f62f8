package web_fetch

import (
	"context"
	"errors"
	"time"

	"groundchat/models"
	"groundchat/tools/web_fetch/chromedp"
	"groundchat/tools/web_fetch/httpfetch"
)

const (
	DefaultTimeout  = 12 * time.Second
	MaxCharsDefault = 8000
)

// WebFetcher retrieves the readable text of an already-validated public URL.
type WebFetcher interface {
	Fetch(ctx context.Context, url string) (models.FetchedPage, error)
}

// FetcherType selects a fetch backend.
type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

// NewWebFetcher creates a page fetcher of the given type.
func NewWebFetcher(fetcherType FetcherType, timeout time.Duration, maxChars int) (WebFetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}

	switch fetcherType {
	case HTTPFetcherType:
		return httpfetch.New(timeout, maxChars), nil
	case ChromedpFetcherType:
		return &chromedp.Fetch{Timeout: timeout, MaxChars: maxChars}, nil
	default:
		return nil, errors.New("unsupported fetcher type")
	}
}
