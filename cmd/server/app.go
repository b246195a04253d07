package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dimaystinov/bot-hnushka/internal/config"
	"github.com/dimaystinov/bot-hnushka/internal/events"
	"github.com/dimaystinov/bot-hnushka/internal/extraction"
	"github.com/dimaystinov/bot-hnushka/internal/llm"
	"github.com/dimaystinov/bot-hnushka/internal/metrics"
	"github.com/dimaystinov/bot-hnushka/internal/platform/sqlstore"
	"github.com/dimaystinov/bot-hnushka/internal/source"
	"github.com/dimaystinov/bot-hnushka/internal/store"
	"github.com/dimaystinov/bot-hnushka/internal/task"
	"github.com/dimaystinov/bot-hnushka/internal/transcription"
	transcriptionopenai "github.com/dimaystinov/bot-hnushka/internal/transcription/openai"
	"github.com/dimaystinov/bot-hnushka/internal/transcription/whispercpp"
)

// appOptions adjust how the application is assembled.
type appOptions struct {
	// MemoryStore ignores the database configuration.
	MemoryStore bool
	// OnProgress observes transcription progress.
	OnProgress task.ProgressFunc
}

// application holds every wired component of a running process.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	items       task.ItemStore
	fetcher     *source.Router
	transcriber transcription.Transcriber
	llmClient   *llm.Client
	extractor   *extraction.Service
	metrics     *metrics.Metrics
	emitter     *events.InMemoryEventEmitter
	runner      *task.Runner

	closers []func() error
}

// newApplication builds the component graph. The runner is created but not
// started. On error everything opened so far is closed.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (app *application, err error) {
	app = &application{config: cfg, logger: logger}
	defer func() {
		if err != nil {
			app.cleanup()
			app = nil
		}
	}()

	if opts.MemoryStore || cfg.Database.Driver == "memory" {
		app.items = store.NewMemoryStore()
	} else {
		if err = app.openDatabase(ctx); err != nil {
			return app, err
		}
	}

	if app.fetcher, err = buildFetcher(cfg.Source, logger); err != nil {
		return app, err
	}

	if app.transcriber, err = app.buildTranscriber(); err != nil {
		return app, err
	}

	if app.metrics, err = metrics.New(); err != nil {
		return app, fmt.Errorf("failed to create metrics: %w", err)
	}

	providers, err := buildProviders(ctx, cfg.LLM, logger)
	if err != nil {
		return app, err
	}
	app.llmClient, err = llm.NewClient(llm.ClientConfig{
		Providers:   providers,
		CallTimeout: cfg.LLM.Timeout,
		OnAttempt:   app.metrics.ObserveAttempt,
	}, logger)
	if err != nil {
		return app, fmt.Errorf("failed to create LLM client: %w", err)
	}
	app.extractor = extraction.NewService(app.llmClient, logger)

	app.emitter = events.NewInMemoryEventEmitter(logger)
	app.emitter.RegisterHandler(app.metrics)
	if cfg.Webhook.URL != "" {
		app.emitter.RegisterHandler(events.NewWebhookHandler(events.WebhookConfig{
			URL:     cfg.Webhook.URL,
			Secret:  cfg.Webhook.Secret,
			Timeout: cfg.Webhook.Timeout,
		}, logger))
	}

	app.runner, err = task.NewRunner(task.Deps{
		Store:       app.items,
		Fetcher:     app.fetcher,
		Transcriber: app.transcriber,
		Extractor:   app.extractor,
		Emitter:     app.emitter,
		OnProgress:  opts.OnProgress,
	}, task.RunnerConfig{
		MaxConcurrent:  cfg.Task.MaxConcurrent,
		MaxPerOwner:    cfg.Task.MaxPerOwner,
		PollInterval:   cfg.Task.PollInterval,
		RecoverOnStart: cfg.Task.RecoverOnStart,
	}, logger)
	if err != nil {
		return app, fmt.Errorf("failed to create task runner: %w", err)
	}

	logger.Info("application initialized",
		"llm_providers", app.llmClient.ProviderNames(),
		"max_concurrent", cfg.Task.MaxConcurrent)

	return app, nil
}

// openDatabase connects, applies pending migrations and creates the SQL store.
func (app *application) openDatabase(ctx context.Context) error {
	dialect, err := sqlstore.DialectFor(app.config.Database.Driver)
	if err != nil {
		return err
	}

	app.logger.Info("connecting to database",
		"driver", dialect.Name,
		"url", maskDatabaseURL(app.config.Database.URL))

	db, err := sqlstore.Open(ctx, dialect, app.config.Database.URL)
	if err != nil {
		return err
	}
	app.db = db

	if err := sqlstore.Migrate(ctx, db, dialect, "up", app.logger); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	app.items = sqlstore.NewItemStore(db, dialect, app.logger)
	return nil
}

func (app *application) buildTranscriber() (transcription.Transcriber, error) {
	cfg := app.config.Transcription
	switch cfg.Backend {
	case "openai":
		t, err := transcriptionopenai.New(transcriptionopenai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
		}, app.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI transcriber: %w", err)
		}
		return t, nil
	case "whispercpp":
		t, err := whispercpp.New(whispercpp.Config{
			Binary:  cfg.WhisperBinary,
			Model:   cfg.WhisperModel,
			Threads: cfg.Threads,
			FFmpeg:  cfg.FFmpegBinary,
		}, app.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create whisper.cpp transcriber: %w", err)
		}
		app.closers = append(app.closers, t.Close)
		return t, nil
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", cfg.Backend)
	}
}

// buildFetcher registers a fetcher per supported locator scheme. s3:// is
// only available when an endpoint is configured.
func buildFetcher(cfg config.SourceConfig, logger *slog.Logger) (*source.Router, error) {
	router := source.NewRouter()
	router.Register(source.FileFetcher{MaxBytes: cfg.MaxBytes}, "file")
	router.Register(source.NewHTTPFetcher(source.HTTPConfig{
		Client:   &http.Client{Timeout: cfg.HTTPTimeout},
		MaxBytes: cfg.MaxBytes,
	}, logger), "http", "https")

	if cfg.S3.Endpoint != "" {
		s3, err := source.NewS3Fetcher(source.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
			Region:    cfg.S3.Region,
			MaxBytes:  cfg.MaxBytes,
		}, logger)
		if err != nil {
			return nil, err
		}
		router.Register(s3, "s3")
	}

	return router, nil
}

// cleanup stops the runner and releases external resources.
func (app *application) cleanup() {
	if app.runner != nil {
		app.runner.Stop()
	}

	for _, closeFn := range app.closers {
		if err := closeFn(); err != nil {
			app.logger.Error("error closing component", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
