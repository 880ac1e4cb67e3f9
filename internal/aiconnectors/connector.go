// Package aiconnectors builds the langchaingo model behind the assistant from configuration.
package aiconnectors

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/cohere"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/bluewise/internal/config"
)

// Provider represents an AI provider type
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogleAI  Provider = "googleai"
	ProviderCohere    Provider = "cohere"
	ProviderOllama    Provider = "ollama"
)

const defaultOllamaURL = "http://localhost:11434"

// NewModel creates the chat model described by cfg
func NewModel(ctx context.Context, cfg config.LLMConfig) (llms.Model, error) {
	provider := Provider(strings.ToLower(cfg.Provider))

	log.Debug().
		Str("provider", string(provider)).
		Str("model", cfg.Model).
		Bool("custom_base_url", cfg.BaseURL != "").
		Msg("Creating model")

	var (
		model llms.Model
		err   error
	)
	switch provider {
	case ProviderOpenAI, "":
		model, err = createOpenAIModel(cfg)
	case ProviderAnthropic:
		model, err = createAnthropicModel(cfg)
	case ProviderGoogleAI:
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
		)
	case ProviderCohere:
		model, err = createCohereModel(cfg)
	case ProviderOllama:
		model, err = createOllamaModel(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create model for provider %s: %w", cfg.Provider, err)
	}
	return model, nil
}

func createOpenAIModel(cfg config.LLMConfig) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

func createAnthropicModel(cfg config.LLMConfig) (llms.Model, error) {
	opts := []anthropic.Option{
		anthropic.WithToken(cfg.APIKey),
		anthropic.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	return anthropic.New(opts...)
}

func createCohereModel(cfg config.LLMConfig) (llms.Model, error) {
	opts := []cohere.Option{
		cohere.WithToken(cfg.APIKey),
		cohere.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, cohere.WithBaseURL(cfg.BaseURL))
	}
	return cohere.New(opts...)
}

func createOllamaModel(cfg config.LLMConfig) (llms.Model, error) {
	return ollama.New(
		ollama.WithServerURL(OllamaURL(cfg.BaseURL)),
		ollama.WithModel(cfg.Model),
	)
}

// OllamaURL returns the server root for an Ollama base URL, defaulting to localhost
func OllamaURL(baseURL string) string {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return defaultOllamaURL
	}
	return strings.TrimSuffix(baseURL, "/api")
}

// Probe sends a tiny prompt to check that the model answers with the configured credentials
func Probe(ctx context.Context, model llms.Model) error {
	_, err := llms.GenerateFromSinglePrompt(ctx, model, "ping", llms.WithMaxTokens(5))
	if err != nil {
		errStr := strings.ToLower(err.Error())
		if strings.Contains(errStr, "429") || strings.Contains(errStr, "quota") {
			return fmt.Errorf("quota exceeded, the API key is likely valid but rate limited: %w", err)
		}
		return fmt.Errorf("model probe failed: %w", err)
	}
	return nil
}
