package provider

import (
	"context"
	"errors"
	"time"

	"groundchat/provider/models"
	openai_provider "groundchat/provider/openai"
)

// Provider is the interface all LLM implementations must satisfy.
type Provider interface {
	Generate(ctx context.Context, messages []models.Message, opts models.Options) (string, error)
}

// Client represents different LLM providers.
type Client string

const (
	// OpenAI speaks the OpenAI chat-completions wire format. LM Studio and
	// other compatible local servers work through the same client via the
	// base URL.
	OpenAI Client = "openai"
)

// NewProvider creates an LLM client for the given provider type.
func NewProvider(client Client, baseURL, apiKey, model string, timeout time.Duration) (Provider, error) {
	switch client {
	case OpenAI:
		return openai_provider.NewClient(baseURL, apiKey, model, timeout), nil
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
