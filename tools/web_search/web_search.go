package web_search

import (
	"context"
	"errors"
	"time"

	"groundchat/models"
	"groundchat/tools/web_search/brave"
	"groundchat/tools/web_search/mcp"
)

// WebSearcher is the pluggable search contract. Callers must not know which
// backend served a request.
type WebSearcher interface {
	Search(ctx context.Context, q string, country, lang string, count int) ([]models.SearchResult, error)
}

// Provider selects a search backend.
type Provider string

const (
	BraveProvider Provider = "brave"
	// MCPProvider runs a subprocess speaking newline-delimited JSON-RPC
	// (initialize -> tools/call) and exposes the same result shape.
	MCPProvider Provider = "mcp"
)

// Config carries backend construction settings.
type Config struct {
	APIKey  string
	Timeout time.Duration

	// Subprocess bridge settings, used by the MCP provider only.
	Command string
	Args    []string
	Env     []string
}

// NewWebSearcher creates a search client for the given provider.
func NewWebSearcher(provider Provider, cfg Config) (WebSearcher, error) {
	switch provider {
	case BraveProvider:
		return brave.Search{ApiKey: cfg.APIKey, Timeout: cfg.Timeout}, nil
	case MCPProvider:
		return mcp.NewClient(cfg.Command, cfg.Args, cfg.Env, cfg.APIKey, cfg.Timeout), nil
	default:
		return nil, errors.New("unsupported search provider")
	}
}
