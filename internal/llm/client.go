// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"fmt"
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a role-tagged chat message, ordered oldest-first.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content     string
	Model       string
	TotalTokens int
	LatencyMs   int64
	ID          string
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderGroq      Provider = "groq"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Config holds provider credentials and endpoints.
type Config struct {
	GroqAPIKey      string
	GroqBaseURL     string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	DefaultModel    string
}

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, cfg Config) (Client, error) {
	switch provider {
	case ProviderGroq:
		return NewGroqClient(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.DefaultModel)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.DefaultModel)
	case ProviderAnthropic:
		return NewAnthropicClient(cfg.AnthropicAPIKey, cfg.DefaultModel)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", provider)
	}
}
