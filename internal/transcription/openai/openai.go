// Package openai transcribes audio with a hosted Whisper API through
// go-openai. Any server speaking the OpenAI audio API can be used by setting
// the base URL.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/dimaystinov/bot-hnushka/internal/platform/logger"
	"github.com/dimaystinov/bot-hnushka/internal/redact"
	"github.com/dimaystinov/bot-hnushka/internal/transcription"
)

// uploadName is the file name sent with the audio; the API sniffs the format
// from the content.
const uploadName = "audio.ogg"

// Config configures the Whisper API client.
type Config struct {
	APIKey string
	// BaseURL overrides the API root, e.g. "https://api.openai.com/v1".
	BaseURL string
	// Model defaults to whisper-1.
	Model      string
	HTTPClient *http.Client
}

// Transcriber implements transcription.Transcriber over the Whisper API.
type Transcriber struct {
	client *goopenai.Client
	model  string
	logger *slog.Logger
}

var _ transcription.Transcriber = (*Transcriber)(nil)

// New creates a Transcriber. An empty API key is an initialisation error.
func New(cfg Config, logger *slog.Logger) (*Transcriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key is required", transcription.ErrTranscription)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", transcription.ErrTranscription)
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	model := cfg.Model
	if model == "" {
		model = goopenai.Whisper1
	}

	return &Transcriber{
		client: goopenai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger.With(slog.String("component", "transcription"), slog.String("backend", "openai")),
	}, nil
}

// Transcribe uploads audio and joins the returned segments. Progress is
// reported as the segments are collected.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, opts transcription.Options) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio", transcription.ErrTranscription)
	}
	log := logger.FromContextOrDefault(ctx, t.logger)

	start := time.Now()
	resp, err := t.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    t.model,
		FilePath: uploadName,
		Reader:   bytes.NewReader(audio),
		Language: transcription.Language(opts),
		Format:   goopenai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		log.WarnContext(ctx, "whisper api call failed", "error", redact.Error(err))
		return "", fmt.Errorf("%w: %v", transcription.ErrTranscription, err)
	}

	progress := transcription.NewProgress(len(resp.Segments), opts.OnProgress, log)
	segments := make([]transcription.Segment, 0, len(resp.Segments))
	for i, s := range resp.Segments {
		segments = append(segments, transcription.Segment{Start: s.Start, End: s.End, Text: s.Text})
		progress.Step(i + 1)
	}
	progress.Finish()

	text := resp.Text
	if len(segments) > 0 {
		text = transcription.JoinSegments(segments)
	}

	log.InfoContext(ctx, "audio transcribed",
		"language", resp.Language,
		"segments", len(segments),
		"duration_ms", time.Since(start).Milliseconds())
	return text, nil
}
