package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dimaystinov/bot-hnushka/internal/api"
	apiMiddleware "github.com/dimaystinov/bot-hnushka/internal/api/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the processing queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := initializeApp(os.Stdout)
		if err != nil {
			return err
		}

		app, err := newApplication(cmd.Context(), cfg, log, appOptions{})
		if err != nil {
			log.Error("failed to initialize application", "error", err)
			return err
		}

		return app.serve(cmd.Context())
	},
}

// newRouter builds the HTTP handler for the application.
func (app *application) newRouter() (http.Handler, error) {
	if err := os.MkdirAll(app.config.Server.SpoolDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}

	items := api.NewItemHandler(app.runner, app.items, api.ItemHandlerConfig{
		SpoolDir:       app.config.Server.SpoolDir,
		MaxUploadBytes: app.config.Source.MaxBytes,
	}, app.logger)

	if app.config.Auth.JWTSecret == "" {
		app.logger.Warn("JWT secret not set, owners are taken from the request header",
			"header", apiMiddleware.OwnerHeader)
	}

	return api.NewRouter(api.RouterConfig{
		Items:   items,
		Auth:    apiMiddleware.NewAuthMiddleware(app.config.Auth.JWTSecret, app.logger),
		Metrics: app.metrics.Handler(),
		Logger:  app.logger,
	}), nil
}

// serve starts the runner and the HTTP server and blocks until a signal,
// ctx cancellation or a server failure, then shuts both down.
func (app *application) serve(ctx context.Context) error {
	defer app.cleanup()

	router, err := app.newRouter()
	if err != nil {
		return err
	}

	if err := app.runner.Start(); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverCtx, cancelServer := context.WithCancel(ctx)
	defer cancelServer()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	serveErr := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("server failed", "error", err)
			serveErr <- err
			cancelServer()
		}
	}()

	select {
	case <-shutdownCh:
		app.logger.Info("shutting down server...")
	case <-serverCtx.Done():
		app.logger.Info("server context canceled, shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server shutdown failed", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	default:
	}

	app.logger.Info("server shutdown completed")
	return nil
}
