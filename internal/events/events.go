package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dimaystinov/bot-hnushka/internal/domain"
)

// ItemEvent describes one status change of a work item.
type ItemEvent struct {
	// ID is a unique identifier for this event
	ID       uuid.UUID     `json:"id"`
	ItemID   uuid.UUID     `json:"item_id"`
	OwnerRef string        `json:"owner_ref"`
	From     domain.Status `json:"from"`
	To       domain.Status `json:"to"`
	// Elapsed is the time spent in From.
	Elapsed    time.Duration `json:"elapsed_ns"`
	OccurredAt time.Time     `json:"occurred_at"`

	// Outcome fields, set on terminal events.
	Category      domain.Category `json:"category,omitempty"`
	Confidence    float64         `json:"confidence,omitempty"`
	Record        json.RawMessage `json:"record,omitempty"`
	Transcript    string          `json:"transcript,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
}

// NewItemEvent snapshots item after it moved from the given status.
func NewItemEvent(item *domain.WorkItem, from domain.Status, elapsed time.Duration) *ItemEvent {
	e := &ItemEvent{
		ID:         uuid.New(),
		ItemID:     item.ID,
		OwnerRef:   item.OwnerRef,
		From:       from,
		To:         item.Status,
		Elapsed:    elapsed,
		OccurredAt: item.UpdatedAt,
	}
	if !item.Status.IsTerminal() {
		return e
	}

	if item.Category != nil {
		e.Category = *item.Category
		e.Confidence = item.Confidence
	}
	if item.Transcript != nil {
		e.Transcript = *item.Transcript
	}
	if item.FailureReason != nil {
		e.FailureReason = *item.FailureReason
	}
	e.Record = item.ExtractedRecord
	return e
}

// Terminal reports whether the event moved the item to done or failed.
func (e *ItemEvent) Terminal() bool {
	return e.To.IsTerminal()
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *ItemEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *ItemEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *ItemEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows the runner to publish transitions without knowing the handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *ItemEvent) error
}
