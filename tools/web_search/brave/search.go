package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"groundchat/models"
)

const endpoint = "https://api.search.brave.com/res/v1/web/search"

// Search queries the Brave Search API.
// https://api.search.brave.com/app/documentation/web-search
type Search struct {
	ApiKey  string
	Timeout time.Duration
}

func (s Search) Search(ctx context.Context, q string, country, lang string, count int) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("country", country)
	params.Set("search_lang", lang)
	params.Set("count", fmt.Sprintf("%d", count))
	params.Set("safesearch", "moderate")
	params.Set("text_decorations", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.ApiKey)

	client := &http.Client{Timeout: s.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave search returned status: %d", resp.StatusCode)
	}

	var raw struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var out []models.SearchResult
	for i, r := range raw.Web.Results {
		if i >= count {
			break
		}
		out = append(out, models.SearchResult{Title: r.Title, URL: r.URL, Description: r.Description})
	}
	return out, nil
}
