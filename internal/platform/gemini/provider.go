package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/dimaystinov/bot-hnushka/internal/llm"
)

// contentGenerator is the subset of *genai.Models used by the provider.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Config configures the Gemini provider.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	// JSONMode asks the model for an application/json response.
	JSONMode bool
	// MaxRetries is the number of retries after the first transient failure.
	MaxRetries int
	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration
}

// Provider implements llm.Provider using the Gemini API.
type Provider struct {
	logger    *slog.Logger
	config    Config
	generator contentGenerator
}

// Name implements llm.Provider.
func (p *Provider) Name() string {
	return "gemini"
}

// NewProvider creates a Gemini provider. Without an API key the provider is
// created disabled and every call returns llm.ErrProviderDisabled.
func NewProvider(ctx context.Context, logger *slog.Logger, cfg Config) (*Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", llm.ErrInvalidConfig)
	}

	if cfg.APIKey == "" {
		logger.WarnContext(ctx, "gemini API key not set, provider disabled")
		return newProvider(nil, logger, cfg), nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", llm.ErrInvalidConfig, err)
	}

	return newProvider(client.Models, logger, cfg), nil
}

func newProvider(gen contentGenerator, logger *slog.Logger, cfg Config) *Provider {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Provider{
		logger:    logger.With(slog.String("component", "gemini_provider")),
		config:    cfg,
		generator: gen,
	}
}

// Complete implements llm.Provider. Transient API errors are retried with
// exponential backoff and jitter; blocked or empty responses are not.
func (p *Provider) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	if p.generator == nil {
		return "", fmt.Errorf("%w: gemini has no API key", llm.ErrProviderDisabled)
	}

	contents, genConfig := p.buildRequest(messages)
	if len(contents) == 0 {
		return "", fmt.Errorf("%w: no user content to send", llm.ErrInvalidConfig)
	}

	for attempt := 0; ; attempt++ {
		text, err := p.generate(ctx, contents, genConfig)
		if err == nil {
			return text, nil
		}

		if errors.Is(err, llm.ErrContentBlocked) || errors.Is(err, llm.ErrEmptyResponse) {
			return "", err
		}

		if attempt >= p.config.MaxRetries {
			return "", fmt.Errorf("%w: gemini failed after %d attempts: %w",
				llm.ErrProviderUnavailable, attempt+1, err)
		}

		// delay = base * 2^attempt * (0.5 + rand(0, 0.5))
		backoff := float64(p.config.RetryDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rand.Float64()*0.5))

		p.logger.InfoContext(ctx, "retrying gemini call after delay",
			"attempt", attempt+1,
			"delay_ms", delay.Milliseconds(),
			"error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %w", llm.ErrProviderUnavailable, ctx.Err())
		}
	}
}

// buildRequest maps chat messages onto Gemini contents. System messages are
// joined into the system instruction and assistant turns use the "model" role.
func (p *Provider) buildRequest(messages []llm.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleAssistant:
			contents = append(contents, textContent("model", m.Content))
		default:
			contents = append(contents, textContent("user", m.Content))
		}
	}

	temperature := p.config.Temperature
	genConfig := &genai.GenerateContentConfig{Temperature: &temperature}
	if len(system) > 0 {
		genConfig.SystemInstruction = textContent("user", strings.Join(system, "\n\n"))
	}
	if p.config.JSONMode {
		genConfig.ResponseMIMEType = "application/json"
	}

	return contents, genConfig
}

func (p *Provider) generate(
	ctx context.Context,
	contents []*genai.Content,
	genConfig *genai.GenerateContentConfig,
) (string, error) {
	resp, err := p.generator.GenerateContent(ctx, p.config.Model, contents, genConfig)
	switch {
	case err != nil:
		return "", err
	case resp == nil || len(resp.Candidates) == 0:
		return "", fmt.Errorf("%w: no candidates", llm.ErrEmptyResponse)
	case resp.Candidates[0].FinishReason == genai.FinishReasonSafety:
		return "", llm.ErrContentBlocked
	case resp.Candidates[0].Content == nil:
		return "", fmt.Errorf("%w: empty content in response", llm.ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("%w: candidate has no text", llm.ErrEmptyResponse)
	}
	return sb.String(), nil
}

func textContent(role, text string) *genai.Content {
	return &genai.Content{Role: role, Parts: []*genai.Part{{Text: text}}}
}
