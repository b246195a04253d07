package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/dimaystinov/bot-hnushka/internal/domain"
	"github.com/dimaystinov/bot-hnushka/internal/events"
	"github.com/dimaystinov/bot-hnushka/internal/task"
)

var (
	processOwner     string
	processMediaKind string
	processLanguage  string
	processNoBar     bool
)

var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Run one recording through the pipeline and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := initializeApp(os.Stderr)
		if err != nil {
			return err
		}

		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path %q: %w", args[0], err)
		}

		var bar *transcriptionBar
		if !processNoBar {
			bar = newTranscriptionBar(os.Stderr, filepath.Base(path))
		}

		opts := appOptions{MemoryStore: true}
		if bar != nil {
			opts.OnProgress = bar.update
		}
		app, err := newApplication(cmd.Context(), cfg, log, opts)
		if err != nil {
			if bar != nil {
				bar.finish(nil)
			}
			return err
		}
		defer app.cleanup()

		item, err := app.processFile(cmd.Context(), task.SubmitRequest{
			OwnerRef:      processOwner,
			SourceLocator: path,
			MediaKind:     domain.MediaKind(processMediaKind),
			LanguageHint:  processLanguage,
		})
		if bar != nil {
			bar.finish(item)
		}
		if err != nil {
			return err
		}

		return writeItemJSON(cmd.OutOrStdout(), item)
	},
}

func init() {
	processCmd.Flags().StringVar(&processOwner, "owner", "cli", "owner reference recorded on the item")
	processCmd.Flags().StringVar(&processMediaKind, "media-kind", string(domain.MediaKindVoice), "voice, audio or video_note")
	processCmd.Flags().StringVarP(&processLanguage, "language", "l", "", "language hint, e.g. ru or auto")
	processCmd.Flags().BoolVar(&processNoBar, "no-progress", false, "disable the progress bar")
}

// processFile submits one item, runs the queue until the item is terminal
// and returns its final state.
func (app *application) processFile(ctx context.Context, req task.SubmitRequest) (*domain.WorkItem, error) {
	terminal := make(chan uuid.UUID, 1)
	app.emitter.RegisterHandler(events.HandlerFunc(func(_ context.Context, e *events.ItemEvent) error {
		if e.Terminal() {
			select {
			case terminal <- e.ItemID:
			default:
			}
		}
		return nil
	}))

	if err := app.runner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	item, err := app.runner.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	select {
	case <-terminal:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return app.items.Get(ctx, item.ID)
}

func writeItemJSON(w io.Writer, item *domain.WorkItem) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(item)
}

// transcriptionBar renders transcription progress for a single item.
type transcriptionBar struct {
	container *mpb.Progress
	bar       *mpb.Bar
}

func newTranscriptionBar(w io.Writer, name string) *transcriptionBar {
	container := mpb.New(
		mpb.WithOutput(w),
		mpb.WithRefreshRate(120*time.Millisecond),
	)
	bar := container.AddBar(100,
		mpb.PrependDecorators(
			decor.Name(name+" ", decor.WC{W: len(name) + 1, C: decor.DindentRight}),
		),
		mpb.AppendDecorators(
			decor.NewPercentage("%d", decor.WCSyncSpace),
			decor.OnComplete(
				decor.Elapsed(decor.ET_STYLE_GO, decor.WCSyncWidth), " ✓ ",
			),
		),
	)
	return &transcriptionBar{container: container, bar: bar}
}

func (b *transcriptionBar) update(_ uuid.UUID, percent int) {
	b.bar.SetCurrent(int64(percent))
}

// finish completes the bar when transcription produced text and aborts it
// otherwise, then waits for the final render.
func (b *transcriptionBar) finish(item *domain.WorkItem) {
	if item != nil && item.Transcript != nil {
		b.bar.SetCurrent(100)
	} else {
		b.bar.Abort(false)
	}
	b.container.Wait()
}
