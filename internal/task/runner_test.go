package task_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimaystinov/bot-hnushka/internal/domain"
	"github.com/dimaystinov/bot-hnushka/internal/events"
	"github.com/dimaystinov/bot-hnushka/internal/extraction"
	"github.com/dimaystinov/bot-hnushka/internal/llm"
	"github.com/dimaystinov/bot-hnushka/internal/source"
	"github.com/dimaystinov/bot-hnushka/internal/store"
	"github.com/dimaystinov/bot-hnushka/internal/task"
	"github.com/dimaystinov/bot-hnushka/internal/transcription"
)

var _ task.ItemStore = (*store.MemoryStore)(nil)

const homeRecord = `{"tasks":[{"category":"покупки","title":"buy milk and eggs"}]}`

type fakeFetcher struct{}

func (fakeFetcher) Fetch(_ context.Context, locator string) ([]byte, error) {
	if locator == "missing" {
		return nil, source.ErrNotFound
	}
	return []byte(locator), nil
}

// fakeTranscriber returns the text mapped to the audio bytes (which the
// fake fetcher sets to the locator) and tracks concurrency.
type fakeTranscriber struct {
	texts   map[string]string
	delay   time.Duration
	release chan struct{}

	mu     sync.Mutex
	order  []string
	active atomic.Int32
	peak   atomic.Int32
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, opts transcription.Options) (string, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	locator := string(audio)
	f.mu.Lock()
	f.order = append(f.order, locator)
	f.mu.Unlock()

	if f.release != nil {
		<-f.release
	}
	time.Sleep(f.delay)

	if opts.OnProgress != nil {
		opts.OnProgress(50)
		opts.OnProgress(100)
	}

	switch locator {
	case "panic":
		panic("decoder exploded")
	case "broken":
		return "", transcription.ErrTranscription
	}
	if text, ok := f.texts[locator]; ok {
		return text, nil
	}
	return "buy milk and eggs", nil
}

func (f *fakeTranscriber) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

type fakeExtractor struct {
	category domain.Category
	record   string
	failure  *llm.ExtractionFailure
}

func (f *fakeExtractor) Classify(context.Context, string) extraction.Classification {
	return extraction.Classification{Category: f.category, Confidence: 0.9, Reason: "shopping"}
}

func (f *fakeExtractor) Extract(context.Context, domain.Category, string) (json.RawMessage, *llm.ExtractionFailure) {
	if f.failure != nil {
		return nil, f.failure
	}
	return json.RawMessage(f.record), nil
}

type recorder struct {
	mu       sync.Mutex
	events   map[uuid.UUID][]*events.ItemEvent
	progress map[uuid.UUID][]int
}

func newRecorder() *recorder {
	return &recorder{
		events:   make(map[uuid.UUID][]*events.ItemEvent),
		progress: make(map[uuid.UUID][]int),
	}
}

func (r *recorder) EmitEvent(_ context.Context, e *events.ItemEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[e.ItemID] = append(r.events[e.ItemID], e)
	return nil
}

func (r *recorder) onProgress(id uuid.UUID, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress[id] = append(r.progress[id], percent)
}

func (r *recorder) statuses(id uuid.UUID) []domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Status
	for _, e := range r.events[id] {
		out = append(out, e.To)
	}
	return out
}

type harness struct {
	runner      *task.Runner
	store       *store.MemoryStore
	transcriber *fakeTranscriber
	extractor   *fakeExtractor
	rec         *recorder
}

func newHarness(t *testing.T, cfg task.RunnerConfig, opts ...func(*task.Deps)) *harness {
	t.Helper()
	h := &harness{
		store:       store.NewMemoryStore(),
		transcriber: &fakeTranscriber{texts: map[string]string{}},
		extractor:   &fakeExtractor{category: domain.CategoryHome, record: homeRecord},
		rec:         newRecorder(),
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	deps := task.Deps{
		Store:       h.store,
		Fetcher:     fakeFetcher{},
		Transcriber: h.transcriber,
		Extractor:   h.extractor,
		Emitter:     h.rec,
		OnProgress:  h.rec.onProgress,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	runner, err := task.NewRunner(deps, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	h.runner = runner
	t.Cleanup(runner.Stop)
	return h
}

func (h *harness) submit(t *testing.T, owner, locator string) *domain.WorkItem {
	t.Helper()
	item, err := h.runner.Submit(context.Background(), task.SubmitRequest{
		OwnerRef:      owner,
		SourceLocator: locator,
		MediaKind:     domain.MediaKindVoice,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusQueued, item.Status)
	return item
}

func (h *harness) waitTerminal(t *testing.T, id uuid.UUID) *domain.WorkItem {
	t.Helper()
	var item *domain.WorkItem
	require.Eventually(t, func() bool {
		got, err := h.store.Get(context.Background(), id)
		if err != nil {
			return false
		}
		item = got
		return got.Status.IsTerminal()
	}, 5*time.Second, 5*time.Millisecond)
	return item
}

func TestRunner_HomeItemEndToEnd(t *testing.T) {
	t.Parallel()

	h := newHarness(t, task.RunnerConfig{MaxConcurrent: 3})
	require.NoError(t, h.runner.Start())

	item := h.submit(t, "alice", "voice-1.ogg")
	got := h.waitTerminal(t, item.ID)

	require.Equal(t, domain.StatusDone, got.Status)
	require.NotNil(t, got.Category)
	assert.Equal(t, domain.CategoryHome, *got.Category)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.JSONEq(t, homeRecord, string(got.ExtractedRecord))
	require.NotNil(t, got.Transcript)
	assert.Equal(t, "buy milk and eggs", *got.Transcript)
	assert.Nil(t, got.FailureReason)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	assert.NoError(t, got.Validate())

	require.Eventually(t, func() bool { return len(h.rec.statuses(item.ID)) == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []domain.Status{
		domain.StatusTranscribing,
		domain.StatusClassifying,
		domain.StatusExtracting,
		domain.StatusDone,
	}, h.rec.statuses(item.ID))

	h.rec.mu.Lock()
	assert.Equal(t, []int{50, 100}, h.rec.progress[item.ID])
	last := h.rec.events[item.ID][3]
	h.rec.mu.Unlock()
	assert.Equal(t, "buy milk and eggs", last.Transcript)
	assert.JSONEq(t, homeRecord, string(last.Record))
}

func TestRunner_EmptyTranscription(t *testing.T) {
	t.Parallel()

	h := newHarness(t, task.RunnerConfig{MaxConcurrent: 1})
	h.transcriber.texts["silence.ogg"] = "  \n "
	require.NoError(t, h.runner.Start())

	item := h.submit(t, "alice", "silence.ogg")
	got := h.waitTerminal(t, item.ID)

	require.Equal(t, domain.StatusFailed, got.Status)
	require.NotNil(t, got.FailureReason)
	assert.Equal(t, domain.FailureEmptyTranscription, *got.FailureReason)
	assert.Nil(t, got.Category, "classification never ran")
	assert.Empty(t, got.ExtractedRecord)

	require.Eventually(t, func() bool { return len(h.rec.statuses(item.ID)) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []domain.Status{domain.StatusTranscribing, domain.StatusFailed}, h.rec.statuses(item.ID))
}

func TestRunner_ExtractionFailureKeepsRawOutput(t *testing.T) {
	t.Parallel()

	h := newHarness(t, task.RunnerConfig{MaxConcurrent: 1})
	h.extractor.failure = &llm.ExtractionFailure{
		Reason: llm.ReasonParseError,
		Raw:    "Sure! Here are your tasks",
		Err:    llm.ErrMalformedOutput,
	}
	require.NoError(t, h.runner.Start())

	got := h.waitTerminal(t, h.submit(t, "alice", "voice.ogg").ID)

	require.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, domain.FailureExtractionFailed, *got.FailureReason)
	require.NotNil(t, got.RawModelOutput)
	assert.Equal(t, "Sure! Here are your tasks", *got.RawModelOutput)
	assert.Equal(t, domain.CategoryHome, *got.Category)
}

func TestRunner_UnexpectedErrorsFailTheItem(t *testing.T) {
	t.Parallel()

	h := newHarness(t, task.RunnerConfig{MaxConcurrent: 2})
	require.NoError(t, h.runner.Start())

	missing := h.submit(t, "alice", "missing")
	broken := h.submit(t, "alice", "broken")
	panicking := h.submit(t, "alice", "panic")
	after := h.submit(t, "alice", "fine.ogg")

	got := h.waitTerminal(t, missing.ID)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Contains(t, *got.FailureReason, source.ErrNotFound.Error())

	got = h.waitTerminal(t, broken.ID)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Contains(t, *got.FailureReason, transcription.ErrTranscription.Error())

	got = h.waitTerminal(t, panicking.ID)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Contains(t, *got.FailureReason, "decoder exploded")
	assert.NotNil(t, got.CompletedAt)

	// the runner keeps going after failures and panics
	got = h.waitTerminal(t, after.ID)
	assert.Equal(t, domain.StatusDone, got.Status)
}

func TestRunner_RespectsConcurrencyCeiling(t *testing.T) {
	t.Parallel()

	h := newHarness(t, task.RunnerConfig{MaxConcurrent: 2})
	h.transcriber.delay = 20 * time.Millisecond

	var ids []uuid.UUID
	for i := 0; i < 6; i++ {
		ids = append(ids, h.submit(t, uuid.NewString(), "voice.ogg").ID)
	}
	require.NoError(t, h.runner.Start())

	for _, id := range ids {
		assert.Equal(t, domain.StatusDone, h.waitTerminal(t, id).Status)
	}
	assert.LessOrEqual(t, h.transcriber.peak.Load(), int32(2))
	assert.Equal(t, int32(2), h.transcriber.peak.Load())
}

func TestRunner_AdmitsInArrivalOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t, task.RunnerConfig{MaxConcurrent: 1})
	var ids []uuid.UUID
	for _, locator := range []string{"first", "second", "third"} {
		ids = append(ids, h.submit(t, "alice", locator).ID)
		time.Sleep(2 * time.Millisecond)
	}
	require.NoError(t, h.runner.Start())

	for _, id := range ids {
		h.waitTerminal(t, id)
	}
	assert.Equal(t, []string{"first", "second", "third"}, h.transcriber.calls())
}

func TestRunner_TransitionsAreMonotonic(t *testing.T) {
	t.Parallel()

	h := newHarness(t, task.RunnerConfig{MaxConcurrent: 3})
	h.transcriber.texts["empty"] = ""
	require.NoError(t, h.runner.Start())

	var ids []uuid.UUID
	for _, locator := range []string{"a", "empty", "missing", "panic", "b"} {
		ids = append(ids, h.submit(t, uuid.NewString(), locator).ID)
	}

	rank := map[domain.Status]int{
		domain.StatusQueued:       0,
		domain.StatusTranscribing: 1,
		domain.StatusClassifying:  2,
		domain.StatusExtracting:   3,
		domain.StatusDone:         4,
		domain.StatusFailed:       4,
	}
	for _, id := range ids {
		h.waitTerminal(t, id)
		require.Eventually(t, func() bool {
			s := h.rec.statuses(id)
			return len(s) > 0 && s[len(s)-1].IsTerminal()
		}, time.Second, 5*time.Millisecond)

		h.rec.mu.Lock()
		evs := h.rec.events[id]
		h.rec.mu.Unlock()

		assert.Equal(t, domain.StatusQueued, evs[0].From)
		for i, e := range evs {
			assert.Greater(t, rank[e.To], rank[e.From], "event %d of %s", i, id)
			if i > 0 {
				assert.Equal(t, evs[i-1].To, e.From)
			}
			assert.Equal(t, i == len(evs)-1, e.Terminal())
		}
	}
}

func TestRunner_PerOwnerCap(t *testing.T) {
	t.Parallel()

	h := newHarness(t, task.RunnerConfig{MaxConcurrent: 1, MaxPerOwner: 2})

	h.submit(t, "alice", "a")
	h.submit(t, "alice", "b")
	_, err := h.runner.Submit(context.Background(), task.SubmitRequest{OwnerRef: "alice", SourceLocator: "c"})
	assert.ErrorIs(t, err, task.ErrOwnerQueueFull)

	h.submit(t, "bob", "a")
}

func TestRunner_SubmitValidation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, task.RunnerConfig{MaxConcurrent: 1})

	_, err := h.runner.Submit(context.Background(), task.SubmitRequest{OwnerRef: " ", SourceLocator: "a"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, err, domain.ErrEmptyOwnerRef)

	_, err = h.runner.Submit(context.Background(), task.SubmitRequest{OwnerRef: "alice"})
	assert.ErrorIs(t, err, domain.ErrEmptySourceLocator)

	_, err = h.runner.Submit(context.Background(), task.SubmitRequest{
		OwnerRef:      "alice",
		SourceLocator: "a",
		MediaKind:     domain.MediaKind("gif"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidMediaKind)
}

func TestRunner_RecoverFailsInterruptedItems(t *testing.T) {
	t.Parallel()

	h := newHarness(t, task.RunnerConfig{MaxConcurrent: 1, RecoverOnStart: true})
	ctx := context.Background()

	interrupted, err := domain.NewWorkItem("alice", "old.ogg", domain.MediaKindVoice, "")
	require.NoError(t, err)
	interrupted.QueuedAt = time.Now().Add(-time.Hour)
	require.NoError(t, h.store.Create(ctx, interrupted))
	_, err = h.store.Claim(ctx)
	require.NoError(t, err)

	waiting := h.submit(t, "alice", "new.ogg")
	require.NoError(t, h.runner.Start())

	got := h.waitTerminal(t, interrupted.ID)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, domain.FailureInterrupted, *got.FailureReason)

	assert.Equal(t, domain.StatusDone, h.waitTerminal(t, waiting.ID).Status)
	assert.Equal(t, []string{"new.ogg"}, h.transcriber.calls(), "interrupted items are not retried")
}

func TestRunner_SubmitWakesScheduler(t *testing.T) {
	t.Parallel()

	h := newHarness(t, task.RunnerConfig{MaxConcurrent: 1, PollInterval: time.Hour})
	require.NoError(t, h.runner.Start())
	// let the scheduler find the queue empty and go to sleep
	time.Sleep(20 * time.Millisecond)

	item := h.submit(t, "alice", "voice.ogg")
	assert.Equal(t, domain.StatusDone, h.waitTerminal(t, item.ID).Status)
}

func TestRunner_StopWaitsForInFlightItems(t *testing.T) {
	t.Parallel()

	h := newHarness(t, task.RunnerConfig{MaxConcurrent: 2})
	h.transcriber.release = make(chan struct{})
	require.NoError(t, h.runner.Start())

	item := h.submit(t, "alice", "voice.ogg")
	require.Eventually(t, func() bool { return len(h.transcriber.calls()) == 1 }, time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		h.runner.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while an item was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	_, err := h.runner.Submit(context.Background(), task.SubmitRequest{OwnerRef: "alice", SourceLocator: "x"})
	assert.ErrorIs(t, err, task.ErrRunnerStopped)

	close(h.transcriber.release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	got, err := h.store.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, got.Status)
}

// blockingEmitter holds terminal events of one owner until unblocked.
type blockingEmitter struct {
	*recorder
	owner   string
	unblock chan struct{}
}

func (b *blockingEmitter) EmitEvent(ctx context.Context, e *events.ItemEvent) error {
	if e.Terminal() && e.OwnerRef == b.owner {
		<-b.unblock
	}
	return b.recorder.EmitEvent(ctx, e)
}

func TestRunner_SlowTerminalHandlerDoesNotBlockAdmission(t *testing.T) {
	t.Parallel()

	emitter := &blockingEmitter{owner: "alice", unblock: make(chan struct{})}
	h := newHarness(t, task.RunnerConfig{MaxConcurrent: 1}, func(d *task.Deps) {
		emitter.recorder = d.Emitter.(*recorder)
		d.Emitter = emitter
	})
	defer close(emitter.unblock)

	first := h.submit(t, "alice", "voice.ogg")
	time.Sleep(2 * time.Millisecond)
	second := h.submit(t, "bob", "voice.ogg")
	require.NoError(t, h.runner.Start())

	assert.Equal(t, domain.StatusDone, h.waitTerminal(t, first.ID).Status)
	assert.Equal(t, domain.StatusDone, h.waitTerminal(t, second.ID).Status,
		"next item is admitted while the first item's terminal handler runs")
}

// flakyStore fails the first n terminal writes.
type flakyStore struct {
	*store.MemoryStore
	failures atomic.Int32
}

func (f *flakyStore) Update(ctx context.Context, item *domain.WorkItem) error {
	if item.Status.IsTerminal() && f.failures.Add(-1) >= 0 {
		return errors.New("connection reset by peer")
	}
	return f.MemoryStore.Update(ctx, item)
}

func TestRunner_RetriesTerminalWrite(t *testing.T) {
	t.Parallel()

	flaky := &flakyStore{}
	flaky.failures.Store(2)
	h := newHarness(t, task.RunnerConfig{MaxConcurrent: 1, PersistInterval: time.Millisecond}, func(d *task.Deps) {
		flaky.MemoryStore = d.Store.(*store.MemoryStore)
		d.Store = flaky
	})
	require.NoError(t, h.runner.Start())

	item := h.submit(t, "alice", "voice.ogg")
	got := h.waitTerminal(t, item.ID)

	require.Equal(t, domain.StatusDone, got.Status)
	assert.JSONEq(t, homeRecord, string(got.ExtractedRecord))
	assert.Less(t, flaky.failures.Load(), int32(0))

	active, err := h.store.CountActiveByOwner(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, active)

	require.Eventually(t, func() bool { return len(h.rec.statuses(item.ID)) == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.StatusDone, h.rec.statuses(item.ID)[3])
}

func TestNewRunner_Validation(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	full := task.Deps{
		Store:       store.NewMemoryStore(),
		Fetcher:     fakeFetcher{},
		Transcriber: &fakeTranscriber{},
		Extractor:   &fakeExtractor{},
	}

	_, err := task.NewRunner(full, task.DefaultRunnerConfig(), nil)
	assert.Error(t, err)

	missing := full
	missing.Store = nil
	_, err = task.NewRunner(missing, task.DefaultRunnerConfig(), log)
	assert.Error(t, err)

	missing = full
	missing.Extractor = nil
	_, err = task.NewRunner(missing, task.DefaultRunnerConfig(), log)
	assert.Error(t, err)

	r, err := task.NewRunner(full, task.RunnerConfig{}, log)
	require.NoError(t, err)
	r.Stop()
	assert.ErrorIs(t, r.Start(), task.ErrRunnerStopped)
}
