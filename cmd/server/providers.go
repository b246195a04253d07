package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dimaystinov/bot-hnushka/internal/config"
	"github.com/dimaystinov/bot-hnushka/internal/llm"
	"github.com/dimaystinov/bot-hnushka/internal/platform/gemini"
	"github.com/dimaystinov/bot-hnushka/internal/platform/ollama"
	"github.com/dimaystinov/bot-hnushka/internal/platform/openai"
)

// Provider names accepted in llm.providers.
const (
	providerOpenRouter = "openrouter"
	providerFreeWen    = "freewen"
	providerLocal      = "local"
	providerGemini     = "gemini"
)

// openRouterHeaders identify the application to OpenRouter.
var openRouterHeaders = map[string]string{
	"HTTP-Referer": "https://github.com/dimaystinov/bot-hnushka",
	"X-Title":      "Voice Bot",
}

// buildProviders creates the configured providers in fallback order.
func buildProviders(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) ([]llm.Provider, error) {
	providers := make([]llm.Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		p, err := buildProvider(ctx, name, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s provider: %w", name, err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func buildProvider(ctx context.Context, name string, cfg config.LLMConfig, logger *slog.Logger) (llm.Provider, error) {
	switch name {
	case providerOpenRouter:
		return openai.NewProvider(openai.Config{
			Name:        providerOpenRouter,
			BaseURL:     cfg.OpenRouter.BaseURL,
			APIKey:      cfg.OpenRouter.APIKey,
			Model:       cfg.OpenRouter.Model,
			RequireKey:  true,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Headers:     openRouterHeaders,
		})
	case providerFreeWen:
		return openai.NewProvider(openai.Config{
			Name:        providerFreeWen,
			BaseURL:     cfg.FreeWen.BaseURL,
			APIKey:      cfg.FreeWen.APIKey,
			Model:       cfg.FreeWen.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	case providerLocal:
		return buildLocalProvider(cfg)
	case providerGemini:
		return gemini.NewProvider(ctx, logger, gemini.Config{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			Temperature: cfg.Temperature,
			JSONMode:    true,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", llm.ErrInvalidConfig, name)
	}
}

// buildLocalProvider speaks Ollama's native API, or the OpenAI-compatible
// API that LM Studio and text-generation-webui expose under /v1.
func buildLocalProvider(cfg config.LLMConfig) (llm.Provider, error) {
	if cfg.Local.APIType == "ollama" {
		return ollama.NewProvider(ollama.Config{
			Name:  providerLocal,
			URL:   cfg.Local.URL,
			Model: cfg.Local.Model,
		})
	}

	return openai.NewProvider(openai.Config{
		Name:        providerLocal,
		BaseURL:     localOpenAIBaseURL(cfg.Local.URL),
		Model:       cfg.Local.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
}

func localOpenAIBaseURL(url string) string {
	url = strings.TrimRight(url, "/")
	if strings.HasSuffix(url, "/v1") {
		return url
	}
	return url + "/v1"
}
