package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/dimaystinov/bot-hnushka/internal/domain"
	"github.com/dimaystinov/bot-hnushka/internal/events"
	"github.com/dimaystinov/bot-hnushka/internal/platform/logger"
	"github.com/dimaystinov/bot-hnushka/internal/source"
	"github.com/dimaystinov/bot-hnushka/internal/store"
	"github.com/dimaystinov/bot-hnushka/internal/transcription"
)

// RunnerConfig holds configuration for the task runner
type RunnerConfig struct {
	// MaxConcurrent is the number of items processed at the same time.
	MaxConcurrent int

	// MaxPerOwner caps unfinished items per owner; zero disables the cap.
	MaxPerOwner int

	// PollInterval is how long the scheduler sleeps when nothing is queued
	// and no submit wakes it.
	PollInterval time.Duration

	// RecoverOnStart fails items left in flight by a previous process.
	RecoverOnStart bool

	// PersistRetries bounds retries of a failed terminal write.
	PersistRetries uint64

	// PersistInterval is the first backoff delay between terminal writes.
	PersistInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		MaxConcurrent:   3,
		MaxPerOwner:     5,
		PollInterval:    2 * time.Second,
		RecoverOnStart:  true,
		PersistRetries:  5,
		PersistInterval: 200 * time.Millisecond,
	}
}

// ProgressFunc observes transcription progress of an item.
type ProgressFunc func(itemID uuid.UUID, percent int)

// Deps are the collaborators the Runner calls.
type Deps struct {
	Store       ItemStore
	Fetcher     source.Fetcher
	Transcriber transcription.Transcriber
	Extractor   Extractor
	// Emitter receives an event per transition. Optional.
	Emitter events.EventEmitter
	// OnProgress receives transcription progress. Optional.
	OnProgress ProgressFunc
}

// Runner schedules queued work items onto a bounded set of pipeline
// goroutines. The store is the queue: the scheduler claims the oldest
// queued item whenever a slot is free.
type Runner struct {
	deps   Deps
	config RunnerConfig
	logger *slog.Logger

	// slots is the admission semaphore; a send acquires a slot.
	slots chan struct{}
	wake  chan struct{}

	ctx        context.Context
	cancelFunc context.CancelFunc
	loopWG     sync.WaitGroup
	itemsWG    sync.WaitGroup

	submitMu sync.Mutex
	mu       sync.Mutex
	started  bool
	stopped  bool
	stopOnce sync.Once
}

// NewRunner creates a Runner. Call Start to begin processing.
func NewRunner(deps Deps, config RunnerConfig, logger *slog.Logger) (*Runner, error) {
	switch {
	case logger == nil:
		return nil, errors.New("logger cannot be nil")
	case deps.Store == nil:
		return nil, errors.New("store cannot be nil")
	case deps.Fetcher == nil:
		return nil, errors.New("fetcher cannot be nil")
	case deps.Transcriber == nil:
		return nil, errors.New("transcriber cannot be nil")
	case deps.Extractor == nil:
		return nil, errors.New("extractor cannot be nil")
	}

	defaults := DefaultRunnerConfig()
	if config.MaxConcurrent <= 0 {
		logger.Warn("invalid concurrency specified, using default",
			"specified", config.MaxConcurrent,
			"default", defaults.MaxConcurrent)
		config.MaxConcurrent = defaults.MaxConcurrent
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.PersistRetries == 0 {
		config.PersistRetries = defaults.PersistRetries
	}
	if config.PersistInterval <= 0 {
		config.PersistInterval = defaults.PersistInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		deps:       deps,
		config:     config,
		logger:     logger.With(slog.String("component", "task_runner")),
		slots:      make(chan struct{}, config.MaxConcurrent),
		wake:       make(chan struct{}, 1),
		ctx:        ctx,
		cancelFunc: cancel,
	}, nil
}

// Submit validates and persists a queued item, then returns immediately.
func (r *Runner) Submit(ctx context.Context, req SubmitRequest) (*domain.WorkItem, error) {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return nil, ErrRunnerStopped
	}

	item, err := domain.NewWorkItem(req.OwnerRef, req.SourceLocator, req.MediaKind, req.LanguageHint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	// Serialise the count and the insert so concurrent submits cannot both
	// slip under the per-owner cap.
	r.submitMu.Lock()
	defer r.submitMu.Unlock()

	if r.config.MaxPerOwner > 0 {
		active, err := r.deps.Store.CountActiveByOwner(ctx, item.OwnerRef)
		if err != nil {
			return nil, fmt.Errorf("failed to count owner items: %w", err)
		}
		if active >= r.config.MaxPerOwner {
			return nil, fmt.Errorf("%w: %d of %d", ErrOwnerQueueFull, active, r.config.MaxPerOwner)
		}
	}

	if err := r.deps.Store.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to save work item: %w", err)
	}

	logger.FromContextOrDefault(ctx, r.logger).InfoContext(ctx, "work item queued",
		"item_id", item.ID,
		"owner_ref", item.OwnerRef,
		"media_kind", item.MediaKind)

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return item, nil
}

// Start recovers interrupted items if configured and starts the scheduler.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrRunnerStopped
	}
	if r.started {
		return nil
	}

	if r.config.RecoverOnStart {
		if err := r.Recover(r.ctx); err != nil {
			return fmt.Errorf("failed to recover items: %w", err)
		}
	}

	r.started = true
	r.loopWG.Add(1)
	go r.schedule()
	return nil
}

// Stop stops admitting items and waits for in-flight items to finish.
// Items still queued stay queued for the next start.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopped = true
		r.mu.Unlock()

		r.cancelFunc()
		r.loopWG.Wait()
		r.itemsWG.Wait()
		r.logger.Info("task runner stopped")
	})
}

// Recover marks items left transcribing, classifying or extracting by a
// crashed process as failed("interrupted"). They are not retried; queued
// items are picked up normally.
func (r *Runner) Recover(ctx context.Context) error {
	n, err := r.deps.Store.FailInFlight(ctx, domain.FailureInterrupted)
	if err != nil {
		return err
	}
	if n > 0 {
		r.logger.Warn("failed interrupted work items", "count", n)
	}
	return nil
}

// schedule acquires a slot, claims the next queued item and hands it to a
// pipeline goroutine, sleeping when the queue is empty.
func (r *Runner) schedule() {
	defer r.loopWG.Done()

	r.logger.Debug("scheduler started", "max_concurrent", cap(r.slots))
	timer := time.NewTimer(r.config.PollInterval)
	defer timer.Stop()

	for {
		select {
		case r.slots <- struct{}{}:
		case <-r.ctx.Done():
			return
		}

		item, err := r.deps.Store.Claim(r.ctx)
		if err == nil {
			r.itemsWG.Add(1)
			go r.process(item)
			continue
		}

		<-r.slots
		if r.ctx.Err() != nil {
			return
		}
		if !errors.Is(err, store.ErrNothingQueued) {
			r.logger.Error("failed to claim work item", "error", err)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(r.config.PollInterval)

		select {
		case <-r.wake:
		case <-timer.C:
		case <-r.ctx.Done():
			return
		}
	}
}

// process drives one claimed item to a terminal status. It runs on its own
// goroutine and always releases its slot.
func (r *Runner) process(item *domain.WorkItem) {
	defer r.itemsWG.Done()
	release := sync.OnceFunc(func() { <-r.slots })
	defer release()

	log := r.logger.With("item_id", item.ID, "owner_ref", item.OwnerRef)
	// In-flight items finish even after Stop.
	ctx := logger.WithLogger(context.Background(), log)

	log.Info("processing work item")
	r.emit(ctx, item, domain.StatusQueued, time.Since(item.QueuedAt))

	for !item.Status.IsTerminal() {
		from := item.Status
		started := time.Now()

		res := r.runStage(ctx, item)
		if err := res.apply(item); err != nil {
			log.Error("invalid stage result", "stage", from, "error", err)
			if failErr := item.Fail(err.Error()); failErr != nil {
				log.Error("cannot fail work item", "error", failErr)
				return
			}
		}

		if err := r.save(ctx, item); err != nil {
			log.Error("failed to persist work item", "status", item.Status, "error", err)
			if item.Status.IsTerminal() {
				return
			}
			if failErr := item.Fail(fmt.Sprintf("persist %s: %v", item.Status, err)); failErr != nil {
				return
			}
			if err := r.save(ctx, item); err != nil {
				log.Error("failed to persist failure", "error", err)
				return
			}
		}

		// The slot frees once the terminal status is stored; event handlers
		// such as the webhook must not hold up admission.
		if item.Status.IsTerminal() {
			release()
		}
		r.emit(ctx, item, from, time.Since(started))
	}

	if item.Status == domain.StatusFailed {
		log.Warn("work item failed", "reason", *item.FailureReason)
	} else {
		log.Info("work item done", "category", *item.Category)
	}
}

// save writes item. Terminal writes are retried with backoff so a transient
// store error cannot leave a finished item active in the store.
func (r *Runner) save(ctx context.Context, item *domain.WorkItem) error {
	if !item.Status.IsTerminal() {
		return r.deps.Store.Update(ctx, item)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.config.PersistInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, r.config.PersistRetries), ctx)

	return backoff.RetryNotify(func() error {
		err := r.deps.Store.Update(ctx, item)
		if errors.Is(err, store.ErrItemNotFound) || errors.Is(err, store.ErrInvalidEntity) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		logger.FromContextOrDefault(ctx, r.logger).Warn("retrying terminal write",
			"status", item.Status,
			"wait", wait,
			"error", err)
	})
}

func (r *Runner) emit(ctx context.Context, item *domain.WorkItem, from domain.Status, elapsed time.Duration) {
	if r.deps.Emitter == nil {
		return
	}
	if err := r.deps.Emitter.EmitEvent(ctx, events.NewItemEvent(item, from, elapsed)); err != nil {
		logger.FromContextOrDefault(ctx, r.logger).Warn("event handler failed",
			"to", item.Status,
			"error", err)
	}
}
