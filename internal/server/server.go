// Package server assembles all HTTP handlers and starts the server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/matthewbaird/listingform/internal/activity"
	"github.com/matthewbaird/listingform/internal/attachment"
	"github.com/matthewbaird/listingform/internal/catalog"
	"github.com/matthewbaird/listingform/internal/event"
	"github.com/matthewbaird/listingform/internal/handler"
	"github.com/matthewbaird/listingform/internal/session"
	"github.com/matthewbaird/listingform/internal/wizard"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// Config holds server configuration.
type Config struct {
	Port           int
	Logger         *slog.Logger
	AllowedOrigins []string
	MaxUploadSize  int64

	Catalog   *catalog.Catalog
	Sessions  *session.Manager
	Previews  *attachment.Previews
	Submitter wizard.Submitter
	Loader    handler.Loader
	Media     handler.MediaSource // optional
	Recorder  event.Recorder
	Activity  activity.Store
}

// NewRouter registers every route behind the middleware stack.
func NewRouter(cfg Config) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(handler.Recovery, handler.Logging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	handler.NewCatalogHandler(cfg.Catalog).Register(r)
	handler.NewWizardHandler(handler.WizardDeps{
		Catalog:        cfg.Catalog,
		Sessions:       cfg.Sessions,
		Previews:       cfg.Previews,
		Submitter:      cfg.Submitter,
		Loader:         cfg.Loader,
		Recorder:       cfg.Recorder,
		Logger:         logger,
		MaxUploadSize:  cfg.MaxUploadSize,
		OriginPatterns: originPatterns(cfg.AllowedOrigins),
	}).Register(r)
	handler.NewMediaHandler(cfg.Previews, cfg.Media).Register(r)
	handler.NewActivityHandler(cfg.Activity).Register(r)
	return r
}

// Run starts the HTTP server and shuts it down gracefully when ctx is done.
func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// originPatterns turns CORS origins into host patterns for the WebSocket
// origin check.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		} else {
			out = append(out, o)
		}
	}
	return out
}
