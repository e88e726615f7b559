package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pauljones0/meli-offers-bot/internal/ai"
	"github.com/pauljones0/meli-offers-bot/internal/config"
	"github.com/pauljones0/meli-offers-bot/internal/notifier"
	"github.com/pauljones0/meli-offers-bot/internal/processor"
	"github.com/pauljones0/meli-offers-bot/internal/scraper"
	"github.com/pauljones0/meli-offers-bot/internal/storage"
)

func main() {
	slog.Info("Starting Mercado Livre offers bot server...")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var store processor.OfferStore
	if cfg.ProjectID != "" {
		fs, err := storage.New(ctx, cfg.ProjectID)
		if err != nil {
			slog.Error("Critical error initializing Firestore client", "error", err)
			os.Exit(1)
		}
		defer fs.Close()
		store = fs
	} else {
		store = storage.NewMemory()
	}

	var enricher processor.Enricher
	aiClient, err := ai.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		slog.Warn("Failed to initialize Gemini client, AI features disabled", "error", err)
	} else if aiClient != nil {
		enricher = aiClient
	}

	n := notifier.New(cfg.WhapiBaseURL, cfg.WhapiToken)
	s := scraper.New(cfg, scraper.NewFetcher(cfg), scraper.LoadConfig())
	p := processor.New(store, n, enricher, s, cfg)

	srv := &Server{processor: p, scrapeTimeout: cfg.ScrapeTimeout}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Routes(cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ScrapeTimeout + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		slog.Info("Received signal, shutting down gracefully...", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	slog.Info("Listening on port", "port", cfg.Port, "fetch_mode", cfg.FetchMode)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}
