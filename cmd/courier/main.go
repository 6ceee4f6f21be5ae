package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/courier/internal/api"
	"github.com/MikeSquared-Agency/courier/internal/config"
	"github.com/MikeSquared-Agency/courier/internal/gemini"
	"github.com/MikeSquared-Agency/courier/internal/hermes"
	"github.com/MikeSquared-Agency/courier/internal/ingest"
	"github.com/MikeSquared-Agency/courier/internal/processor"
	"github.com/MikeSquared-Agency/courier/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("courier starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Gemini client: file store and model
	if cfg.GeminiAPIKey == "" {
		slog.Error("GEMINI_API_KEY or GOOGLE_API_KEY is required")
		os.Exit(1)
	}
	gm, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, slog.Default())
	if err != nil {
		slog.Error("failed to create gemini client", "error", err)
		os.Exit(1)
	}
	defer gm.Close()
	slog.Info("gemini client ready", "model", cfg.GeminiModel)

	// Upload ledger (optional)
	var (
		ledger  processor.Ledger
		uploads api.UploadLister
	)
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare schema", "error", err)
			os.Exit(1)
		}
		ledger, uploads = db, db
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set, uploads will not be recorded")
	}

	// NATS/Hermes (optional)
	var (
		hermesClient *hermes.Client
		publisher    processor.Publisher
	)
	if cfg.NatsURL != "" {
		hermesClient, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer hermesClient.Close()
		publisher = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	orch := ingest.New(gm, ingest.Config{
		Uploader: ingest.UploaderConfig{
			FetchTimeout: cfg.FetchTimeout,
			MaxBytes:     cfg.MaxFileBytes,
			SniffMIME:    cfg.SniffMIME,
		},
		Waiter: ingest.WaiterConfig{
			Interval:    cfg.PollInterval,
			MaxAttempts: cfg.PollAttempts,
		},
		BlockConcurrency: cfg.BlockConcurrency,
	}, slog.Default())

	proc := processor.New(orch, gm, ledger, publisher, cfg.RequestTimeout, slog.Default())

	if hermesClient != nil {
		if err := hermesClient.QueueSubscribe(hermes.SubjectTurnRequested, cfg.QueueGroup, cfg.TurnWorkers, proc.HandleTurnRequested); err != nil {
			slog.Error("failed to subscribe to turn requests", "error", err)
			os.Exit(1)
		}
		if err := hermesClient.Publish(hermes.SubjectRegistered, map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
			"model":     cfg.GeminiModel,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, cfg.GeminiModel, proc, uploads, gm)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("courier ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown error", "error", err)
	}
	cancel()
	slog.Info("courier stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
