package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dimaystinov/bot-hnushka/internal/platform/logger"
	"github.com/dimaystinov/bot-hnushka/internal/redact"
)

// HTTPConfig configures an HTTPFetcher.
type HTTPConfig struct {
	Client *http.Client
	// MaxBytes defaults to domain.MaxMediaBytes.
	MaxBytes int64
	// MaxRetries bounds retries of transient failures; defaults to 3.
	MaxRetries uint64
	// InitialInterval is the first backoff delay; defaults to 500ms.
	InitialInterval time.Duration
}

// HTTPFetcher downloads recordings over HTTP(S). Network errors, 5xx and
// 429 responses are retried with exponential backoff; other 4xx responses
// and oversized bodies fail immediately.
type HTTPFetcher struct {
	cfg    HTTPConfig
	logger *slog.Logger
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(cfg HTTPConfig, logger *slog.Logger) *HTTPFetcher {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 60 * time.Second}
	}
	cfg.MaxBytes = limitOrDefault(cfg.MaxBytes)
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	return &HTTPFetcher{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "source"), slog.String("fetcher", "http")),
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	log := logger.FromContextOrDefault(ctx, f.logger)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.cfg.InitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, f.cfg.MaxRetries), ctx)

	var data []byte
	op := func() error {
		var err error
		data, err = f.fetchOnce(ctx, locator)
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.WarnContext(ctx, "recording download failed, retrying",
			"locator", redact.String(locator),
			"error", redact.Error(err),
			"wait", wait)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return data, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, locator string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: %v", ErrUnsupportedLocator, err))
	}

	resp, err := f.cfg.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(fmt.Errorf("%w: %v", ErrFetch, ctx.Err()))
		}
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, redact.String(locator)))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, backoff.Permanent(fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode))
	}

	if resp.ContentLength > f.cfg.MaxBytes {
		return nil, backoff.Permanent(fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength))
	}

	data, err := readLimited(resp.Body, f.cfg.MaxBytes)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	return data, nil
}
