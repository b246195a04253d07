package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dimaystinov/bot-hnushka/internal/domain"
)

// MemoryStore keeps work items in process memory. Items are copied on the
// way in and out, so callers never share state with the store.
type MemoryStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.WorkItem
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[uuid.UUID]*domain.WorkItem)}
}

// Create stores a new item.
func (s *MemoryStore) Create(ctx context.Context, item *domain.WorkItem) error {
	if err := item.Validate(); err != nil {
		return NewStoreError("work item", "create", fmt.Errorf("%w: %w", ErrInvalidEntity, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; exists {
		return NewStoreError("work item", "create", ErrDuplicate)
	}
	s.items[item.ID] = item.Clone()
	return nil
}

// Claim moves the oldest queued item to transcribing and returns it.
// It returns ErrNothingQueued when no item is waiting.
func (s *MemoryStore) Claim(ctx context.Context) (*domain.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *domain.WorkItem
	for _, item := range s.items {
		if item.Status != domain.StatusQueued {
			continue
		}
		if next == nil || item.QueuedAt.Before(next.QueuedAt) {
			next = item
		}
	}
	if next == nil {
		return nil, ErrNothingQueued
	}

	if err := next.Advance(domain.StatusTranscribing); err != nil {
		return nil, NewStoreError("work item", "claim", err)
	}
	return next.Clone(), nil
}

// Update replaces a stored item.
func (s *MemoryStore) Update(ctx context.Context, item *domain.WorkItem) error {
	if err := item.Validate(); err != nil {
		return NewStoreError("work item", "update", fmt.Errorf("%w: %w", ErrInvalidEntity, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; !exists {
		return ErrItemNotFound
	}
	s.items[item.ID] = item.Clone()
	return nil
}

// Get returns the item with the given ID.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*domain.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	return item.Clone(), nil
}

// ListByOwner returns up to limit of the owner's items, newest first.
// A limit of zero or less returns all of them.
func (s *MemoryStore) ListByOwner(ctx context.Context, owner string, limit int) ([]*domain.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.WorkItem
	for _, item := range s.items {
		if item.OwnerRef == owner {
			out = append(out, item.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QueuedAt.After(out[j].QueuedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountActiveByOwner counts the owner's items that are not yet terminal.
func (s *MemoryStore) CountActiveByOwner(ctx context.Context, owner string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, item := range s.items {
		if item.OwnerRef == owner && !item.Status.IsTerminal() {
			n++
		}
	}
	return n, nil
}

// FailInFlight marks every transcribing, classifying or extracting item as
// failed with reason and returns how many were changed.
func (s *MemoryStore) FailInFlight(ctx context.Context, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, item := range s.items {
		if !item.Status.InFlight() {
			continue
		}
		if err := item.Fail(reason); err != nil {
			return n, NewStoreError("work item", "recover", err)
		}
		n++
	}
	return n, nil
}
