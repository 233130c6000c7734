package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"chatfunnel/internal/bus"
	"chatfunnel/internal/channel"
	"chatfunnel/internal/config"
	"chatfunnel/internal/domain"
	"chatfunnel/internal/metrics"
	"chatfunnel/internal/pipeline"
	"chatfunnel/internal/provider"
	"chatfunnel/internal/replier"
	"chatfunnel/internal/store"
	"chatfunnel/internal/webhook"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook gateway",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// Secrets come from .env in development; ignore absence in production.
	godotenv.Load()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}

	logger = newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The store client is created once per process and shared by all
	// concurrent pipeline tasks.
	convStore, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
	if err != nil {
		return err
	}
	defer convStore.Close()

	messageBus := bus.New(cfg.Pipeline.QueueSize, logger)
	defer messageBus.Close()

	chain, err := buildProviderChain(ctx, cfg)
	if err != nil {
		return err
	}

	rep := replier.New(chain, cfg.Business, logger)
	dispatcher := channel.NewDispatcher(cfg.Channels, logger)

	pipe := pipeline.New(pipeline.Config{
		Store:        convStore,
		Replier:      rep,
		Sender:       dispatcher,
		Bus:          messageBus,
		Logger:       logger,
		Concurrency:  cfg.Pipeline.Workers,
		HistoryLimit: cfg.Pipeline.HistoryLimit,
	})
	go pipe.Run(ctx)

	handler := webhook.NewHandler(cfg.Webhook, cfg.Channels, messageBus, logger)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes(cfg.Webhook.Path))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","uptime_seconds":%d}`, int64(metrics.Collector.Uptime().Seconds()))
	})
	r.Get("/metrics", metrics.Collector.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("webhook gateway starting",
		"addr", server.Addr,
		"path", cfg.Webhook.Path,
		"provider", chain.Name(),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook gateway: %w", err)
	}
}

// buildProviderChain assembles Gemini plus the optional OpenAI-compatible
// failover. The replier still adds the static-text fallback behind it.
func buildProviderChain(ctx context.Context, cfg *config.Config) (domain.Provider, error) {
	gemini, err := provider.NewGemini(ctx, provider.GeminiConfig{
		APIKey: cfg.Providers.Gemini.APIKey,
		Model:  cfg.Providers.Gemini.Model,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	providers := []domain.Provider{gemini}
	if cfg.Providers.OpenAI.Enabled {
		providers = append(providers, provider.NewOpenAI(provider.OpenAIConfig{
			APIKey:  cfg.Providers.OpenAI.APIKey,
			APIBase: cfg.Providers.OpenAI.APIBase,
			Model:   cfg.Providers.OpenAI.Model,
			Logger:  logger,
		}))
	}

	if len(providers) == 1 {
		return providers[0], nil
	}
	return provider.NewFailover(providers, logger), nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	out := os.Stderr
	if cfg.General.LogFile != "" {
		if f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			out = f
		}
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: logLevel(cfg.General.LogLevel)}))
}
