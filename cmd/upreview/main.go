package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Pougar/upreview/internal/api"
	"github.com/Pougar/upreview/internal/config"
	"github.com/Pougar/upreview/internal/corpus"
	"github.com/Pougar/upreview/internal/dashboard"
	"github.com/Pougar/upreview/internal/events"
	"github.com/Pougar/upreview/internal/excerpt"
	"github.com/Pougar/upreview/internal/llm"
	"github.com/Pougar/upreview/internal/phrase"
	"github.com/Pougar/upreview/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("upreview starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// Model client
	if cfg.AnthropicAPIKey == "" {
		slog.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}
	model := llm.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	slog.Info("model client ready", "model", cfg.AnthropicModel)

	// Pipeline stages
	assembler := corpus.NewAssembler(db, cfg.CorpusMaxReviews, cfg.CorpusMaxChars)
	extractor := phrase.New(model, db, assembler, cfg.MaxPhraseCounts, slog.Default())
	generator := excerpt.New(model, db, assembler, cfg.MaxPhrasesPerGen, slog.Default())
	overview := dashboard.New(db, slog.Default())

	// NATS is optional; the pipeline runs fine HTTP-only.
	var bus *events.Client
	if cfg.NatsURL != "" {
		bus, err = events.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer bus.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)

		if err := bus.Subscribe(events.SubjectReviewStored, extractor.HandleReviewStored); err != nil {
			slog.Error("failed to subscribe to review events", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("NATS not configured, running without event triggers")
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, extractor, generator, overview, db, bus, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("upreview ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("upreview stopped")
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
