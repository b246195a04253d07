package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/dimaystinov/bot-hnushka/internal/llm"
)

// Config configures one OpenAI-compatible provider.
type Config struct {
	// Name identifies the provider, e.g. "openrouter" or "local".
	Name string
	// BaseURL is the API root that "/chat/completions" is appended to.
	BaseURL string
	APIKey  string
	Model   string
	// RequireKey disables the provider when APIKey is empty.
	RequireKey  bool
	Temperature float32
	MaxTokens   int
	// Headers are added to every request, e.g. OpenRouter's HTTP-Referer and X-Title.
	Headers map[string]string
	// HTTPClient overrides the transport; nil uses http.DefaultTransport.
	HTTPClient *http.Client
}

// Provider is an llm.Provider backed by go-openai.
type Provider struct {
	name        string
	model       string
	temperature float32
	maxTokens   int
	disabled    bool
	client      *goopenai.Client
}

// NewProvider creates a Provider. A provider that requires a key and has none
// is created disabled and reports llm.ErrProviderDisabled on every call.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: provider name cannot be empty", llm.ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: %s base URL cannot be empty", llm.ErrInvalidConfig, cfg.Name)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: %s model cannot be empty", llm.ErrInvalidConfig, cfg.Name)
	}

	clientConfig := goopenai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if len(cfg.Headers) > 0 {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		withHeaders := *httpClient
		withHeaders.Transport = &headerTransport{base: base, headers: cfg.Headers}
		httpClient = &withHeaders
	}
	clientConfig.HTTPClient = httpClient

	return &Provider{
		name:        cfg.Name,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		disabled:    cfg.RequireKey && cfg.APIKey == "",
		client:      goopenai.NewClientWithConfig(clientConfig),
	}, nil
}

// Name implements llm.Provider.
func (p *Provider) Name() string {
	return p.name
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	if p.disabled {
		return "", fmt.Errorf("%w: %s has no API key", llm.ErrProviderDisabled, p.name)
	}

	req := goopenai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    make([]goopenai.ChatCompletionMessage, 0, len(messages)),
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", llm.ErrProviderUnavailable, p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %s returned no choices", llm.ErrEmptyResponse, p.name)
	}

	return resp.Choices[0].Message.Content, nil
}

// headerTransport adds fixed headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
