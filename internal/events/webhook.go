package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dimaystinov/bot-hnushka/internal/platform/logger"
	"github.com/dimaystinov/bot-hnushka/internal/redact"
)

// SignatureHeader carries the hex HMAC-SHA256 of the body when a secret is
// configured.
const SignatureHeader = "X-Signature-256"

// ErrWebhookDelivery is returned when a terminal event could not be delivered.
var ErrWebhookDelivery = errors.New("webhook delivery failed")

// WebhookConfig configures a WebhookHandler.
type WebhookConfig struct {
	URL    string
	Secret string
	// Timeout bounds each delivery attempt; defaults to 10s.
	Timeout time.Duration
	// MaxRetries bounds retries after the first attempt; defaults to 2.
	MaxRetries uint64
	// InitialInterval is the first retry delay; defaults to 500ms.
	InitialInterval time.Duration
	Client          *http.Client
}

// WebhookHandler POSTs terminal item events as JSON. Non-terminal events
// are ignored. 5xx responses and transport errors are retried.
type WebhookHandler struct {
	cfg    WebhookConfig
	logger *slog.Logger
}

var _ EventHandler = (*WebhookHandler)(nil)

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(cfg WebhookConfig, logger *slog.Logger) *WebhookHandler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &WebhookHandler{
		cfg:    cfg,
		logger: logger.With("component", "webhook"),
	}
}

// HandleEvent implements EventHandler.
func (h *WebhookHandler) HandleEvent(ctx context.Context, event *ItemEvent) error {
	if !event.Terminal() {
		return nil
	}
	log := logger.FromContextOrDefault(ctx, h.logger)

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: encode event: %v", ErrWebhookDelivery, err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = h.cfg.InitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, h.cfg.MaxRetries), ctx)

	err = backoff.Retry(func() error { return h.post(ctx, body) }, policy)
	if err != nil {
		log.WarnContext(ctx, "webhook delivery failed",
			"item_id", event.ItemID,
			"error", redact.Error(err))
		return err
	}

	log.DebugContext(ctx, "webhook delivered", "item_id", event.ItemID, "status", event.To)
	return nil
}

func (h *WebhookHandler) post(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("%w: %v", ErrWebhookDelivery, err))
	}
	req.Header.Set("Content-Type", "application/json")
	if h.cfg.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(h.cfg.Secret, body))
	}

	resp, err := h.cfg.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookDelivery, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrWebhookDelivery, resp.StatusCode)
	case resp.StatusCode >= 300:
		return backoff.Permanent(fmt.Errorf("%w: status %d", ErrWebhookDelivery, resp.StatusCode))
	}
	return nil
}

// Sign returns "sha256=" followed by the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
