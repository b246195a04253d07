package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a work item.
type Status string

// Possible work item status values, in pipeline order.
const (
	StatusQueued       Status = "queued"
	StatusTranscribing Status = "transcribing"
	StatusClassifying  Status = "classifying"
	StatusExtracting   Status = "extracting"
	StatusDone         Status = "done"
	StatusFailed       Status = "failed"
)

// Failure reasons recorded by the pipeline for expected outcomes.
// Unexpected errors are recorded with their error string instead.
const (
	FailureEmptyTranscription = "empty_transcription"
	FailureExtractionFailed   = "extraction_failed"
	FailureInterrupted        = "interrupted"
)

// Common validation errors for WorkItem
var (
	ErrEmptyItemID        = errors.New("work item ID cannot be empty")
	ErrEmptyOwnerRef      = errors.New("work item owner reference cannot be empty")
	ErrEmptySourceLocator = errors.New("work item source locator cannot be empty")
	ErrRecordWithoutDone  = errors.New("extracted record must be set exactly when status is done")
	ErrReasonWithoutFail  = errors.New("failure reason must be set exactly when status is failed")
)

// rank orders statuses so that transitions can only move forward.
// Both terminal states share the highest rank.
func (s Status) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusTranscribing:
		return 1
	case StatusClassifying:
		return 2
	case StatusExtracting:
		return 3
	case StatusDone, StatusFailed:
		return 4
	default:
		return -1
	}
}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	return s.rank() >= 0
}

// IsTerminal reports whether s is done or failed.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// InFlight reports whether an item in this status has been admitted
// and is currently owned by a pipeline goroutine.
func (s Status) InFlight() bool {
	return s == StatusTranscribing || s == StatusClassifying || s == StatusExtracting
}

// CanAdvanceTo reports whether moving from s to next is a legal transition.
// Terminal states are final, and any non-terminal state may fail.
func (s Status) CanAdvanceTo(next Status) bool {
	if !s.IsValid() || !next.IsValid() || s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return next.rank() > s.rank()
}

// WorkItem is one submitted recording travelling through the
// transcribe, classify and extract pipeline. It is created queued by
// a submit, mutated only by the task runner and never deleted.
type WorkItem struct {
	ID              uuid.UUID       `json:"id"`
	OwnerRef        string          `json:"owner_ref"`
	SourceLocator   string          `json:"source_locator"`
	MediaKind       MediaKind       `json:"media_kind"`
	LanguageHint    string          `json:"language_hint,omitempty"`
	Status          Status          `json:"status"`
	QueuedAt        time.Time       `json:"queued_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	Transcript      *string         `json:"transcript,omitempty"`
	Category        *Category       `json:"category,omitempty"`
	Confidence      float64         `json:"confidence"`
	ExtractedRecord json.RawMessage `json:"extracted_record,omitempty"`
	FailureReason   *string         `json:"failure_reason,omitempty"`
	RawModelOutput  *string         `json:"raw_model_output,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewWorkItem creates a queued WorkItem for the given owner and source.
// An empty media kind defaults to voice. Returns an error if validation fails.
func NewWorkItem(ownerRef, sourceLocator string, kind MediaKind, languageHint string) (*WorkItem, error) {
	if kind == "" {
		kind = MediaKindVoice
	}
	now := time.Now().UTC()
	item := &WorkItem{
		ID:            uuid.New(),
		OwnerRef:      strings.TrimSpace(ownerRef),
		SourceLocator: strings.TrimSpace(sourceLocator),
		MediaKind:     kind,
		LanguageHint:  strings.TrimSpace(languageHint),
		Status:        StatusQueued,
		QueuedAt:      now,
		UpdatedAt:     now,
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	return item, nil
}

// Validate checks the WorkItem fields and the status-dependent invariants:
// an extracted record is present exactly when done, and a failure reason is
// present exactly when failed.
func (w *WorkItem) Validate() error {
	if w.ID == uuid.Nil {
		return ErrEmptyItemID
	}

	if w.OwnerRef == "" {
		return ErrEmptyOwnerRef
	}

	if w.SourceLocator == "" {
		return ErrEmptySourceLocator
	}

	if !w.MediaKind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidMediaKind, w.MediaKind)
	}

	if !w.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, w.Status)
	}

	if (w.Status == StatusDone) != (len(w.ExtractedRecord) > 0) {
		return ErrRecordWithoutDone
	}

	if (w.Status == StatusFailed) != (w.FailureReason != nil) {
		return ErrReasonWithoutFail
	}

	return nil
}

// Advance moves the item to next, stamping UpdatedAt and, where relevant,
// StartedAt and CompletedAt. Regressions and transitions out of a terminal
// state return ErrInvalidTransition and leave the item unchanged.
func (w *WorkItem) Advance(next Status) error {
	if !w.Status.CanAdvanceTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.Status, next)
	}

	now := time.Now().UTC()
	if w.StartedAt == nil && next != StatusQueued {
		w.StartedAt = &now
	}
	if next.IsTerminal() {
		w.CompletedAt = &now
	}
	w.Status = next
	w.UpdatedAt = now
	return nil
}

// Complete attaches the extracted record and moves the item to done.
func (w *WorkItem) Complete(record json.RawMessage) error {
	if len(record) == 0 {
		return fmt.Errorf("%w: empty extracted record", ErrValidation)
	}
	if err := w.Advance(StatusDone); err != nil {
		return err
	}
	w.ExtractedRecord = record
	return nil
}

// Fail records reason and moves the item to failed.
func (w *WorkItem) Fail(reason string) error {
	if reason == "" {
		reason = "unknown error"
	}
	if err := w.Advance(StatusFailed); err != nil {
		return err
	}
	w.FailureReason = &reason
	return nil
}

// SetTranscript stores the transcript text on the item.
func (w *WorkItem) SetTranscript(text string) {
	w.Transcript = &text
	w.UpdatedAt = time.Now().UTC()
}

// SetClassification stores the category and its advisory confidence.
func (w *WorkItem) SetClassification(category Category, confidence float64) {
	w.Category = &category
	w.Confidence = confidence
	w.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy of the item.
func (w *WorkItem) Clone() *WorkItem {
	c := *w
	c.StartedAt = clonePtr(w.StartedAt)
	c.CompletedAt = clonePtr(w.CompletedAt)
	c.Transcript = clonePtr(w.Transcript)
	c.Category = clonePtr(w.Category)
	c.FailureReason = clonePtr(w.FailureReason)
	c.RawModelOutput = clonePtr(w.RawModelOutput)
	if w.ExtractedRecord != nil {
		c.ExtractedRecord = append(json.RawMessage(nil), w.ExtractedRecord...)
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
