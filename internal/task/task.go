package task

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/dimaystinov/bot-hnushka/internal/domain"
	"github.com/dimaystinov/bot-hnushka/internal/extraction"
	"github.com/dimaystinov/bot-hnushka/internal/llm"
)

// Errors returned by the Runner.
var (
	// ErrOwnerQueueFull is returned by Submit when the owner already has
	// the maximum number of unfinished items.
	ErrOwnerQueueFull = errors.New("owner has too many unfinished items")

	// ErrRunnerStopped is returned by Submit after Stop.
	ErrRunnerStopped = errors.New("task runner is stopped")

	// ErrAdmissionTimeout is reserved for bounded admission waits.
	// Admission currently blocks until a slot frees up.
	ErrAdmissionTimeout = errors.New("timed out waiting for a processing slot")
)

// ItemStore persists work items. It is the queue the Runner drains.
type ItemStore interface {
	// Create stores a new queued item.
	Create(ctx context.Context, item *domain.WorkItem) error

	// Claim atomically moves the oldest queued item (by QueuedAt) to
	// transcribing and returns it, or returns store.ErrNothingQueued.
	// Two concurrent claims never return the same item.
	Claim(ctx context.Context) (*domain.WorkItem, error)

	// Update persists the item's current state.
	Update(ctx context.Context, item *domain.WorkItem) error

	// Get returns one item or store.ErrItemNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.WorkItem, error)

	// ListByOwner returns the owner's items, newest first. limit <= 0 means all.
	ListByOwner(ctx context.Context, owner string, limit int) ([]*domain.WorkItem, error)

	// CountActiveByOwner counts the owner's items that are not terminal.
	CountActiveByOwner(ctx context.Context, owner string) (int, error)

	// FailInFlight fails every item left in an in-flight status with
	// reason and reports how many there were.
	FailInFlight(ctx context.Context, reason string) (int, error)
}

// Extractor classifies transcripts and extracts category records.
type Extractor interface {
	Classify(ctx context.Context, transcript string) extraction.Classification
	Extract(ctx context.Context, c domain.Category, transcript string) (json.RawMessage, *llm.ExtractionFailure)
}

var _ Extractor = (*extraction.Service)(nil)

// SubmitRequest describes a recording to process.
type SubmitRequest struct {
	OwnerRef      string
	SourceLocator string
	MediaKind     domain.MediaKind
	LanguageHint  string
}
