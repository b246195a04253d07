package task

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dimaystinov/bot-hnushka/internal/domain"
	"github.com/dimaystinov/bot-hnushka/internal/platform/logger"
	"github.com/dimaystinov/bot-hnushka/internal/redact"
	"github.com/dimaystinov/bot-hnushka/internal/transcription"
)

// stageResult is the outcome of one pipeline stage.
type stageResult struct {
	next   domain.Status
	record json.RawMessage
	// failure, when set, fails the item with this reason.
	failure string
}

func advance(next domain.Status) stageResult {
	return stageResult{next: next}
}

func done(record json.RawMessage) stageResult {
	return stageResult{next: domain.StatusDone, record: record}
}

func failed(reason string) stageResult {
	return stageResult{next: domain.StatusFailed, failure: reason}
}

// apply moves item according to the result.
func (s stageResult) apply(item *domain.WorkItem) error {
	switch s.next {
	case domain.StatusFailed:
		return item.Fail(s.failure)
	case domain.StatusDone:
		return item.Complete(s.record)
	default:
		return item.Advance(s.next)
	}
}

// runStage executes the stage for the item's current status. A panic in a
// stage becomes a failed result.
func (r *Runner) runStage(ctx context.Context, item *domain.WorkItem) (res stageResult) {
	defer func() {
		if p := recover(); p != nil {
			logger.FromContextOrDefault(ctx, r.logger).Error("stage panicked",
				"stage", item.Status,
				"panic", p)
			res = failed(fmt.Sprintf("panic in %s: %v", item.Status, p))
		}
	}()

	switch item.Status {
	case domain.StatusTranscribing:
		return r.transcribe(ctx, item)
	case domain.StatusClassifying:
		return r.classify(ctx, item)
	case domain.StatusExtracting:
		return r.extract(ctx, item)
	default:
		return failed(fmt.Sprintf("no stage for status %q", item.Status))
	}
}

func (r *Runner) transcribe(ctx context.Context, item *domain.WorkItem) stageResult {
	audio, err := r.deps.Fetcher.Fetch(ctx, item.SourceLocator)
	if err != nil {
		return failed(redact.Error(err))
	}

	opts := transcription.Options{Language: item.LanguageHint}
	if r.deps.OnProgress != nil {
		id := item.ID
		opts.OnProgress = func(percent int) { r.deps.OnProgress(id, percent) }
	}

	text, err := r.deps.Transcriber.Transcribe(ctx, audio, opts)
	if err != nil {
		return failed(redact.Error(err))
	}

	item.SetTranscript(text)
	if strings.TrimSpace(text) == "" {
		return failed(domain.FailureEmptyTranscription)
	}
	return advance(domain.StatusClassifying)
}

func (r *Runner) classify(ctx context.Context, item *domain.WorkItem) stageResult {
	c := r.deps.Extractor.Classify(ctx, *item.Transcript)
	item.SetClassification(c.Category, c.Confidence)
	return advance(domain.StatusExtracting)
}

func (r *Runner) extract(ctx context.Context, item *domain.WorkItem) stageResult {
	record, failure := r.deps.Extractor.Extract(ctx, *item.Category, *item.Transcript)
	if failure != nil {
		logger.FromContextOrDefault(ctx, r.logger).Warn("extraction failed",
			"category", *item.Category,
			"reason", failure.Reason)
		if failure.Raw != "" {
			raw := failure.Raw
			item.RawModelOutput = &raw
		}
		return failed(domain.FailureExtractionFailed)
	}
	return done(record)
}
