package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Provider is the interface for completion endpoints. Complete returns the
// raw text of the reply unprocessed. An empty reply is returned as "" with a
// nil error so that the decoder, not the transport, decides what to do.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is one call to a completion endpoint.
type CompletionRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
	JSONMode    bool // request the provider's strict-JSON output mode when it has one
}

// ProviderConfig configures NewProvider. An empty APIKey falls back to the
// provider's conventional environment variable.
type ProviderConfig struct {
	Name    string // "openai", "anthropic" or "google"
	Model   string
	APIKey  string
	BaseURL string
}

// Default models per provider, used when ProviderConfig.Model is empty.
const (
	DefaultOpenAIModel    = "gpt-4.1-mini"
	DefaultAnthropicModel = "claude-sonnet-4-5"
	DefaultGoogleModel    = "gemini-2.5-flash"
)

// NewProvider constructs the named provider. The returned value carries its
// own client and configuration; nothing is shared at package level.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch strings.ToLower(cfg.Name) {
	case "openai", "":
		key, err := apiKey(cfg.APIKey, "OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		return newOpenAIProvider(key, orDefault(cfg.Model, DefaultOpenAIModel), cfg.BaseURL), nil
	case "anthropic":
		key, err := apiKey(cfg.APIKey, "ANTHROPIC_API_KEY")
		if err != nil {
			return nil, err
		}
		return newAnthropicProvider(key, orDefault(cfg.Model, DefaultAnthropicModel), cfg.BaseURL), nil
	case "google":
		key, err := apiKey(cfg.APIKey, "GOOGLE_API_KEY")
		if err != nil {
			return nil, err
		}
		return newGoogleProvider(key, orDefault(cfg.Model, DefaultGoogleModel), cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Name)
	}
}

func apiKey(explicit, envVar string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("llm: no API key configured and %s is not set", envVar)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
