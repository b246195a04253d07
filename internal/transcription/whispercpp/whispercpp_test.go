package whispercpp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimaystinov/bot-hnushka/internal/transcription"
)

const sampleOutput = `{
  "result": {"language": "ru"},
  "transcription": [
    {"offsets": {"from": 1500, "to": 3000}, "text": " and eggs"},
    {"offsets": {"from": 0, "to": 1500}, "text": " buy milk "}
  ]
}`

// fakeRunner pretends to be ffmpeg and whisper.cpp. whisper writes output
// to the -of path like the real binary.
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	dirs    []string
	output  string
	ffmpeg  error
	whisper error
	delay   time.Duration
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(f.delay)

	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	if name == "ffmpeg" {
		if f.ffmpeg != nil {
			return []byte("bad input"), f.ffmpeg
		}
		return nil, nil
	}
	if f.whisper != nil {
		return []byte("model not found"), f.whisper
	}
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-of" {
			f.mu.Lock()
			f.dirs = append(f.dirs, filepath.Dir(args[i+1]))
			f.mu.Unlock()
			return nil, os.WriteFile(args[i+1]+".json", []byte(f.output), 0o600)
		}
	}
	return nil, errors.New("no -of argument")
}

func newTestTranscriber(t *testing.T, f *fakeRunner, cfg Config) *Transcriber {
	t.Helper()
	if cfg.Binary == "" {
		cfg.Binary = "whisper-cli"
	}
	if cfg.Model == "" {
		cfg.Model = "models/ggml-base.bin"
	}
	tr, err := newTranscriber(cfg, f.run, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestTranscribe_Success(t *testing.T) {
	t.Parallel()

	f := &fakeRunner{output: sampleOutput}
	tr := newTestTranscriber(t, f, Config{Threads: 4})

	var progress []int
	text, err := tr.Transcribe(context.Background(), []byte("OggS"), transcription.Options{
		Language:   "ru",
		OnProgress: func(p int) { progress = append(progress, p) },
	})

	require.NoError(t, err)
	assert.Equal(t, "buy milk and eggs", text)
	assert.Equal(t, []int{50, 100}, progress)

	require.Len(t, f.calls, 2)
	assert.Equal(t, "ffmpeg", f.calls[0][0])
	whisper := f.calls[1]
	assert.Equal(t, "whisper-cli", whisper[0])
	assert.Subset(t, whisper, []string{"-m", "models/ggml-base.bin", "-l", "ru", "-oj", "-t", "4"})

	require.Len(t, f.dirs, 1)
	_, statErr := os.Stat(f.dirs[0])
	assert.True(t, os.IsNotExist(statErr), "temp dir should be removed")
}

func TestTranscribe_AutoLanguage(t *testing.T) {
	t.Parallel()

	f := &fakeRunner{output: `{"transcription": []}`}
	tr := newTestTranscriber(t, f, Config{})

	text, err := tr.Transcribe(context.Background(), []byte("a"), transcription.Options{Language: "xx"})

	require.NoError(t, err)
	assert.Equal(t, "", text)
	assert.Subset(t, f.calls[1], []string{"-l", "auto"})
	assert.NotContains(t, f.calls[1], "-t")
}

func TestTranscribe_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		f    *fakeRunner
	}{
		{"ffmpeg fails", &fakeRunner{ffmpeg: errors.New("exit status 1")}},
		{"whisper fails", &fakeRunner{whisper: errors.New("exit status 2")}},
		{"output not json", &fakeRunner{output: "not json"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tr := newTestTranscriber(t, tc.f, Config{})
			_, err := tr.Transcribe(context.Background(), []byte("a"), transcription.Options{})
			assert.ErrorIs(t, err, transcription.ErrTranscription)
		})
	}

	tr := newTestTranscriber(t, &fakeRunner{}, Config{})
	_, err := tr.Transcribe(context.Background(), nil, transcription.Options{})
	assert.ErrorIs(t, err, transcription.ErrTranscription)
}

func TestTranscribe_OneJobAtATime(t *testing.T) {
	t.Parallel()

	f := &fakeRunner{output: sampleOutput, delay: 10 * time.Millisecond}
	tr := newTestTranscriber(t, f, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.Transcribe(context.Background(), []byte("a"), transcription.Options{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.maxSeen.Load())
	assert.Len(t, f.calls, 8)
}

func TestTranscribe_ContextAndClose(t *testing.T) {
	t.Parallel()

	f := &fakeRunner{output: sampleOutput, delay: 200 * time.Millisecond}
	tr := newTestTranscriber(t, f, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := tr.Transcribe(ctx, []byte("a"), transcription.Options{})
	assert.ErrorIs(t, err, transcription.ErrTranscription)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	_, err = tr.Transcribe(context.Background(), []byte("a"), transcription.Options{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := New(Config{Model: "m"}, log)
	assert.ErrorIs(t, err, transcription.ErrTranscription)
	_, err = New(Config{Binary: "whisper-cli"}, log)
	assert.ErrorIs(t, err, transcription.ErrTranscription)
	_, err = New(Config{Binary: "whisper-cli", Model: "m"}, nil)
	assert.ErrorIs(t, err, transcription.ErrTranscription)
}
