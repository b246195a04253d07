package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apiMiddleware "github.com/dimaystinov/bot-hnushka/internal/api/middleware"
)

// RouterConfig holds the router's collaborators.
type RouterConfig struct {
	Items *ItemHandler
	Auth  *apiMiddleware.AuthMiddleware
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter builds the HTTP routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(cfg.Logger))

	r.Route("/api", func(r chi.Router) {
		r.Use(cfg.Auth.Authenticate)
		r.Post("/items", cfg.Items.SubmitItem)
		r.Get("/items", cfg.Items.ListItems)
		r.Get("/items/{id}", cfg.Items.GetItem)
	})

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			cfg.Logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
