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

	"github.com/storequery/storequery/internal/api"
	"github.com/storequery/storequery/internal/auth"
	"github.com/storequery/storequery/internal/chat"
	"github.com/storequery/storequery/internal/config"
	"github.com/storequery/storequery/internal/llm"
	"github.com/storequery/storequery/internal/observability"
	"github.com/storequery/storequery/internal/tenant"
)

func main() {
	cfg, err := config.LoadFromEnv("storequery-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	masterDB, err := tenant.Open(context.Background(), cfg.Store)
	if err != nil {
		logger.Error("failed to open master store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = masterDB.Close() }()

	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize completion client", slog.Any("error", err))
		os.Exit(1)
	}

	provider := &tenant.Provider{
		Master:   masterDB,
		Driver:   cfg.Store.Driver,
		ScopeDir: cfg.Store.ScopeDir,
		Logger:   logger,
	}
	chatService := chat.NewService(provider, client, cfg.Chat, cfg.AI, logger)
	defer func() { _ = chatService.Close() }()

	deps := api.Dependencies{
		Logger: logger,
		Chat:   chatService,
		Readiness: api.CombineReadinessChecks(
			api.CheckStoreDSN(cfg),
			api.CheckAIConfig(cfg),
			func(ctx context.Context) error { return masterDB.PingContext(ctx) },
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
