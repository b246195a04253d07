package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dimaystinov/bot-hnushka/internal/domain"
	"github.com/dimaystinov/bot-hnushka/internal/llm"
	"github.com/dimaystinov/bot-hnushka/internal/platform/logger"
)

// ModelClient is the part of llm.Client the protocol needs.
type ModelClient interface {
	ExtractObject(ctx context.Context, messages []llm.Message) ([]byte, *llm.ExtractionFailure)
}

// Classification is the outcome of Classify. Confidence is advisory only.
type Classification struct {
	Category   domain.Category `json:"category"`
	Confidence float64         `json:"confidence"`
	Reason     string          `json:"reason"`
}

// Service classifies transcripts and extracts category records.
// It is stateless and safe for concurrent use.
type Service struct {
	client   ModelClient
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService creates a Service.
func NewService(client ModelClient, logger *slog.Logger) *Service {
	return &Service{
		client:   client,
		validate: validator.New(),
		logger:   logger.With(slog.String("component", "extraction")),
	}
}

type classifyReply struct {
	Type       string `json:"type"`
	Confidence any    `json:"confidence"`
	Reason     string `json:"reason"`
}

// Classify sorts transcript into a category. It never fails: any model or
// parse failure, and any label outside the known set, yields unknown with
// confidence 0. An explicit unknown label keeps the reported confidence.
func (s *Service) Classify(ctx context.Context, transcript string) Classification {
	log := logger.FromContextOrDefault(ctx, s.logger)

	prompt, err := render(classifyTemplate, promptData{Transcript: transcript})
	if err != nil {
		log.ErrorContext(ctx, "failed to build classification prompt", "error", err)
		return unknown(err.Error())
	}

	obj, failure := s.client.ExtractObject(ctx, []llm.Message{
		llm.System(classifySystemPrompt),
		llm.User(prompt),
	})
	if failure != nil {
		log.WarnContext(ctx, "classification failed, using unknown", "reason", failure.Reason)
		return unknown(failure.Reason)
	}

	var reply classifyReply
	if err := llm.DecodeObject(obj, &reply); err != nil {
		log.WarnContext(ctx, "classification reply has wrong shape, using unknown", "error", err)
		return unknown(llm.ReasonParseError)
	}

	category, err := domain.ParseCategory(reply.Type)
	if err != nil {
		log.InfoContext(ctx, "classification label not recognised, using unknown", "label", reply.Type)
		return unknown(reply.Reason)
	}

	c := Classification{
		Category:   category,
		Confidence: clamp01(toFloat(reply.Confidence)),
		Reason:     reply.Reason,
	}
	log.InfoContext(ctx, "transcript classified",
		"category", c.Category,
		"confidence", c.Confidence)
	return c
}

// Extract asks the model for the record of category c. Unknown returns
// {"transcript": ...} without a model call. The returned record is the
// model's JSON object as returned, after it passed the category's checks.
func (s *Service) Extract(
	ctx context.Context,
	c domain.Category,
	transcript string,
) (json.RawMessage, *llm.ExtractionFailure) {
	if c == domain.CategoryUnknown {
		payload, err := json.Marshal(map[string]string{"transcript": transcript})
		if err != nil {
			return nil, &llm.ExtractionFailure{Reason: llm.ReasonParseError, Err: err}
		}
		return payload, nil
	}

	cp, ok := promptFor(c)
	rec := newRecord(c)
	if !ok || rec == nil {
		return nil, &llm.ExtractionFailure{
			Reason: llm.ReasonParseError,
			Err:    fmt.Errorf("%w: %q", domain.ErrInvalidCategory, c),
		}
	}

	prompt, err := render(extractTemplate, promptData{Transcript: transcript, Intro: cp.intro, Format: cp.format})
	if err != nil {
		return nil, &llm.ExtractionFailure{Reason: llm.ReasonParseError, Err: err}
	}

	obj, failure := s.client.ExtractObject(ctx, []llm.Message{
		llm.System(cp.system + jsonOnly),
		llm.User(prompt),
	})
	if failure != nil {
		return nil, failure
	}

	if err := s.check(obj, rec); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).WarnContext(ctx, "extracted record rejected",
			"category", c,
			"error", err)
		return nil, &llm.ExtractionFailure{Reason: llm.ReasonParseError, Raw: string(obj), Err: err}
	}

	return json.RawMessage(obj), nil
}

// check decodes obj into rec to verify field kinds, then validates required
// fields and enumerations.
func (s *Service) check(obj []byte, rec any) error {
	if err := llm.DecodeObject(obj, rec); err != nil {
		return err
	}
	if err := s.validate.Struct(rec); err != nil {
		return fmt.Errorf("%w: %v", llm.ErrMalformedOutput, err)
	}
	return nil
}

func unknown(reason string) Classification {
	return Classification{Category: domain.CategoryUnknown, Confidence: 0, Reason: reason}
}

// toFloat accepts a JSON number or a numeric string; anything else is 0.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
