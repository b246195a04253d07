package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/dimaystinov/bot-hnushka/internal/platform/logger"
	"github.com/dimaystinov/bot-hnushka/internal/redact"
)

// DefaultCallTimeout bounds each provider attempt.
const DefaultCallTimeout = 60 * time.Second

// ClientConfig configures a Client.
type ClientConfig struct {
	// Providers in fallback order. The slice is copied on construction.
	Providers []Provider

	// CallTimeout bounds each attempt. Zero means DefaultCallTimeout.
	CallTimeout time.Duration

	// OnAttempt, when set, observes every attempt result.
	OnAttempt func(CallResult)
}

// Client calls language-model providers in order until one answers.
// It is safe for concurrent use; the provider list never changes after construction.
type Client struct {
	providers []Provider
	timeout   time.Duration
	onAttempt func(CallResult)
	logger    *slog.Logger
}

// NewClient creates a Client. Duplicate provider names are rejected so that
// forced-provider lookups are unambiguous.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfig)
	}

	seen := make(map[string]struct{}, len(cfg.Providers))
	for _, p := range cfg.Providers {
		if p == nil {
			return nil, fmt.Errorf("%w: nil provider", ErrInvalidConfig)
		}
		if _, dup := seen[p.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate provider %q", ErrInvalidConfig, p.Name())
		}
		seen[p.Name()] = struct{}{}
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	return &Client{
		providers: append([]Provider(nil), cfg.Providers...),
		timeout:   timeout,
		onAttempt: cfg.OnAttempt,
		logger:    logger.With(slog.String("component", "llm_client")),
	}, nil
}

// ProviderNames returns the configured provider names in fallback order.
func (c *Client) ProviderNames() []string {
	return lo.Map(c.providers, func(p Provider, _ int) string { return p.Name() })
}

// Chat sends messages to the providers in order and returns the first
// non-empty reply. When forced is non-empty only the provider with that name
// is tried; an unknown name yields no candidates. The boolean is false only
// when every candidate failed.
func (c *Client) Chat(ctx context.Context, messages []Message, forced string) (string, bool) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	candidates := c.providers
	if forced != "" {
		candidates = lo.Filter(c.providers, func(p Provider, _ int) bool { return p.Name() == forced })
		if len(candidates) == 0 {
			log.WarnContext(ctx, "forced provider is not configured", "provider", forced)
		}
	}

	for _, p := range candidates {
		if ctx.Err() != nil {
			log.WarnContext(ctx, "context done, abandoning provider fallback", "error", ctx.Err())
			break
		}

		log.DebugContext(ctx, "calling language model", "provider", p.Name())
		result := c.attempt(ctx, p, messages)
		if c.onAttempt != nil {
			c.onAttempt(result)
		}

		if result.OK() {
			log.InfoContext(ctx, "language model replied",
				"provider", result.Provider,
				"elapsed_ms", result.Elapsed.Milliseconds(),
				"reply_length", len(result.Text))
			return result.Text, true
		}

		log.WarnContext(ctx, "language model provider failed",
			"provider", result.Provider,
			"elapsed_ms", result.Elapsed.Milliseconds(),
			"error", redact.Error(result.Err))
	}

	log.ErrorContext(ctx, "all language model providers failed", "tried", len(candidates))
	return "", false
}

// attempt runs one provider call under its own timeout.
func (c *Client) attempt(ctx context.Context, p Provider, messages []Message) (result CallResult) {
	result.Provider = p.Name()
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	defer func() {
		result.Elapsed = time.Since(start)
		if r := recover(); r != nil {
			result.Text = ""
			result.Err = fmt.Errorf("%w: provider panic: %v", ErrProviderUnavailable, r)
		}
	}()

	text, err := p.Complete(callCtx, messages)
	switch {
	case err != nil:
		if !errors.Is(err, ErrProviderUnavailable) && !errors.Is(err, ErrProviderDisabled) {
			err = fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		}
		result.Err = err
	case strings.TrimSpace(text) == "":
		result.Err = fmt.Errorf("%w: %w", ErrProviderUnavailable, ErrEmptyResponse)
	default:
		result.Text = text
	}
	return result
}

// ExtractObject asks the providers for a reply and parses it as a JSON object,
// returning the object text with any code fence removed.
func (c *Client) ExtractObject(ctx context.Context, messages []Message) ([]byte, *ExtractionFailure) {
	reply, ok := c.Chat(ctx, messages, "")
	if !ok {
		return nil, &ExtractionFailure{Reason: ReasonNoProvider, Err: ErrNoProviderAvailable}
	}

	obj, err := ParseObject(reply)
	if err != nil {
		logger.FromContextOrDefault(ctx, c.logger).WarnContext(ctx, "language model reply is not a JSON object",
			"error", err,
			"reply", redact.Truncate(redact.String(reply), 512))
		return nil, &ExtractionFailure{Reason: ReasonParseError, Raw: reply, Err: err}
	}
	return obj, nil
}

// ExtractJSON asks the providers for a reply and decodes it into a generic
// JSON object. It never panics.
func (c *Client) ExtractJSON(ctx context.Context, messages []Message) (map[string]any, *ExtractionFailure) {
	obj, failure := c.ExtractObject(ctx, messages)
	if failure != nil {
		return nil, failure
	}

	m, err := decodeObject(obj)
	if err != nil {
		return nil, &ExtractionFailure{Reason: ReasonParseError, Raw: string(obj), Err: err}
	}
	return m, nil
}

// ExtractInto is ExtractJSON decoding into v, which must be a pointer.
func (c *Client) ExtractInto(ctx context.Context, messages []Message, v any) *ExtractionFailure {
	obj, failure := c.ExtractObject(ctx, messages)
	if failure != nil {
		return failure
	}
	if err := DecodeObject(obj, v); err != nil {
		return &ExtractionFailure{Reason: ReasonParseError, Raw: string(obj), Err: err}
	}
	return nil
}
