// Package whispercpp transcribes audio with a local whisper.cpp binary.
//
// Each recording is converted to 16 kHz mono WAV with ffmpeg and passed to
// the whisper.cpp CLI with JSON output. Jobs run one at a time on a
// dedicated worker goroutine, so a long transcription holds neither the
// caller's scheduler nor more than one model instance in memory.
package whispercpp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/dimaystinov/bot-hnushka/internal/platform/logger"
	"github.com/dimaystinov/bot-hnushka/internal/transcription"
)

// ErrClosed is returned by Transcribe after Close.
var ErrClosed = errors.New("whisper.cpp transcriber closed")

// Config configures the whisper.cpp backend.
type Config struct {
	// Binary is the whisper.cpp CLI, e.g. "whisper-cli".
	Binary string
	// Model is the path of a ggml model file.
	Model string
	// Threads passed with -t; 0 leaves the binary default.
	Threads int
	// FFmpeg is the ffmpeg binary used for conversion.
	FFmpeg string
}

// commandRunner runs an external command and returns its stderr.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

type job struct {
	ctx    context.Context
	audio  []byte
	opts   transcription.Options
	result chan result
}

type result struct {
	text string
	err  error
}

// Transcriber implements transcription.Transcriber with whisper.cpp.
type Transcriber struct {
	cfg    Config
	run    commandRunner
	logger *slog.Logger

	jobs      chan job
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ transcription.Transcriber = (*Transcriber)(nil)

// New validates cfg and starts the worker goroutine. Call Close to stop it.
func New(cfg Config, logger *slog.Logger) (*Transcriber, error) {
	return newTranscriber(cfg, execRunner, logger)
}

func newTranscriber(cfg Config, run commandRunner, logger *slog.Logger) (*Transcriber, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", transcription.ErrTranscription)
	}
	if cfg.Binary == "" {
		return nil, fmt.Errorf("%w: whisper.cpp binary is required", transcription.ErrTranscription)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: whisper.cpp model is required", transcription.ErrTranscription)
	}
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}

	t := &Transcriber{
		cfg:    cfg,
		run:    run,
		logger: logger.With(slog.String("component", "transcription"), slog.String("backend", "whispercpp")),
		jobs:   make(chan job),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go t.worker()
	return t, nil
}

// Close stops the worker after the current job. It is safe to call more
// than once.
func (t *Transcriber) Close() error {
	t.closeOnce.Do(func() {
		close(t.quit)
	})
	<-t.done
	return nil
}

// Transcribe queues audio for the worker and waits for the result or for
// ctx to be cancelled.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, opts transcription.Options) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio", transcription.ErrTranscription)
	}

	j := job{ctx: ctx, audio: audio, opts: opts, result: make(chan result, 1)}
	select {
	case t.jobs <- j:
	case <-t.quit:
		return "", fmt.Errorf("%w: %w", transcription.ErrTranscription, ErrClosed)
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", transcription.ErrTranscription, ctx.Err())
	}

	select {
	case r := <-j.result:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", transcription.ErrTranscription, ctx.Err())
	}
}

func (t *Transcriber) worker() {
	defer close(t.done)
	for {
		select {
		case j := <-t.jobs:
			text, err := t.process(j.ctx, j.audio, j.opts)
			j.result <- result{text: text, err: err}
		case <-t.quit:
			return
		}
	}
}

// output is the subset of whisper.cpp's -oj file we read.
type output struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func (t *Transcriber) process(ctx context.Context, audio []byte, opts transcription.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", transcription.ErrTranscription, err)
	}
	log := logger.FromContextOrDefault(ctx, t.logger)
	start := time.Now()

	dir, err := os.MkdirTemp("", "whispercpp-*")
	if err != nil {
		return "", fmt.Errorf("%w: create temp dir: %v", transcription.ErrTranscription, err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input")
	if err := os.WriteFile(input, audio, 0o600); err != nil {
		return "", fmt.Errorf("%w: write input: %v", transcription.ErrTranscription, err)
	}

	wav := filepath.Join(dir, "input.wav")
	if stderr, err := t.run(ctx, t.cfg.FFmpeg,
		"-y", "-loglevel", "error",
		"-i", input,
		"-ar", "16000", "-ac", "1", "-c:a", "pcm_s16le",
		wav,
	); err != nil {
		return "", fmt.Errorf("%w: ffmpeg: %v: %s", transcription.ErrTranscription, err, bytes.TrimSpace(stderr))
	}

	outBase := filepath.Join(dir, "out")
	if stderr, err := t.run(ctx, t.cfg.Binary, t.args(wav, outBase, opts)...); err != nil {
		return "", fmt.Errorf("%w: whisper.cpp: %v: %s", transcription.ErrTranscription, err, bytes.TrimSpace(stderr))
	}

	raw, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return "", fmt.Errorf("%w: read output: %v", transcription.ErrTranscription, err)
	}
	var out output
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode output: %v", transcription.ErrTranscription, err)
	}

	progress := transcription.NewProgress(len(out.Transcription), opts.OnProgress, log)
	segments := make([]transcription.Segment, 0, len(out.Transcription))
	for i, s := range out.Transcription {
		segments = append(segments, transcription.Segment{
			Start: float64(s.Offsets.From) / 1000,
			End:   float64(s.Offsets.To) / 1000,
			Text:  s.Text,
		})
		progress.Step(i + 1)
	}
	progress.Finish()

	log.InfoContext(ctx, "audio transcribed",
		"language", out.Result.Language,
		"segments", len(segments),
		"duration_ms", time.Since(start).Milliseconds())
	return transcription.JoinSegments(segments), nil
}

func (t *Transcriber) args(wav, outBase string, opts transcription.Options) []string {
	lang := transcription.Language(opts)
	if lang == "" {
		lang = "auto"
	}

	args := []string{
		"-m", t.cfg.Model,
		"-f", wav,
		"-l", lang,
		"-oj",
		"-of", outBase,
		"-np",
	}
	if t.cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(t.cfg.Threads))
	}
	return args
}
