// Package ollama implements llm.Provider for a local Ollama server using its
// native /api/chat endpoint with streaming disabled.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dimaystinov/bot-hnushka/internal/llm"
)

// maxErrorBody caps how much of a failed response body is echoed into errors.
const maxErrorBody = 512

// Config configures the Ollama provider.
type Config struct {
	// Name defaults to "local".
	Name string
	// URL is the server root, e.g. http://localhost:11434.
	URL   string
	Model string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error,omitempty"`
}

// Provider is an llm.Provider for Ollama.
type Provider struct {
	name     string
	endpoint string
	model    string
	client   *http.Client
}

// NewProvider creates a Provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: ollama URL cannot be empty", llm.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: ollama model cannot be empty", llm.ErrInvalidConfig)
	}
	name := cfg.Name
	if name == "" {
		name = "local"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Provider{
		name:     name,
		endpoint: strings.TrimRight(cfg.URL, "/") + "/api/chat",
		model:    cfg.Model,
		client:   client,
	}, nil
}

// Name implements llm.Provider.
func (p *Provider) Name() string {
	return p.name
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	body, err := json.Marshal(chatRequest{Model: p.model, Messages: messages, Stream: false})
	if err != nil {
		return "", fmt.Errorf("failed to encode ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", llm.ErrProviderUnavailable, p.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("%w: %s: status %d: %s",
			llm.ErrProviderUnavailable, p.name, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %s: malformed response: %v", llm.ErrProviderUnavailable, p.name, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: %s: %s", llm.ErrProviderUnavailable, p.name, out.Error)
	}

	return out.Message.Content, nil
}
