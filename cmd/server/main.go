package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/matthewbaird/listingform/internal/activity"
	"github.com/matthewbaird/listingform/internal/attachment"
	"github.com/matthewbaird/listingform/internal/backend"
	"github.com/matthewbaird/listingform/internal/catalog"
	"github.com/matthewbaird/listingform/internal/config"
	"github.com/matthewbaird/listingform/internal/event"
	"github.com/matthewbaird/listingform/internal/eventbus"
	"github.com/matthewbaird/listingform/internal/logging"
	"github.com/matthewbaird/listingform/internal/server"
	"github.com/matthewbaird/listingform/internal/session"
	"github.com/matthewbaird/listingform/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"), os.Getenv("ENV_FILE"))
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("configuring logger: %v", err)
	}
	logger := logging.New(os.Stderr, level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "err", err)
		stop()
		os.Exit(1)
	}
}

// run owns everything that needs closing; its defers finish before main
// exits.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	cat, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	activityLog := activity.NewMemoryStore(cfg.Events.ActivityCapacity)
	bus := eventbus.New(cfg.Events.BufferSize, logger)
	bus.Subscribe("log", eventbus.NewLogConsumer(logger))
	bus.Start(ctx)
	defer bus.Stop()

	recorder := event.NewActivityRecorder(activityLog)
	recorder.SetPublisher(bus)

	srvCfg := server.Config{
		Port:           cfg.Port,
		Logger:         logger,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MaxUploadSize:  cfg.MaxUploadBytes(),
		Catalog:        cat,
		Previews:       attachment.NewPreviews(),
		Recorder:       recorder,
		Activity:       activityLog,
	}

	switch cfg.SubmitMode {
	case config.SubmitBackend:
		client := backend.New(cfg.Backend.URL,
			backend.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}),
			backend.WithLogger(logger),
		)
		srvCfg.Submitter, srvCfg.Loader = client, client
		logger.Info("submitting to backend", "url", cfg.Backend.URL)
	default:
		st, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()
		srvCfg.Submitter, srvCfg.Loader, srvCfg.Media = st, st, st
		logger.Info("submitting to sqlite", "dsn", cfg.DatabaseURL)
	}

	sessions := session.NewManager(cfg.Session.MaxAge, cfg.Session.IdleTimeout)
	defer sessions.CloseAll()
	go sessions.Run(ctx, cfg.Session.CleanupInterval)
	srvCfg.Sessions = sessions

	return server.Run(ctx, srvCfg)
}
