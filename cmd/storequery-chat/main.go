package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/storequery/storequery/internal/chat"
	"github.com/storequery/storequery/internal/cli/chatrunner"
	"github.com/storequery/storequery/internal/config"
	"github.com/storequery/storequery/internal/llm"
	"github.com/storequery/storequery/internal/observability"
	"github.com/storequery/storequery/internal/tenant"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadFromEnv("storequery-chat")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		return 1
	}

	// Console sessions log to stderr so answers stay readable on stdout.
	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	masterDB, err := tenant.Open(ctx, cfg.Store)
	if err != nil {
		logger.Error("failed to open master store", slog.Any("error", err))
		return 1
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
		return 1
	}

	provider := &tenant.Provider{
		Master:   masterDB,
		Driver:   cfg.Store.Driver,
		ScopeDir: cfg.Store.ScopeDir,
		Logger:   logger,
	}
	service := chat.NewService(provider, client, cfg.Chat, cfg.AI, logger)
	defer func() { _ = service.Close() }()

	return chatrunner.Run(ctx, os.Args[1:], chatrunner.Options{
		Service: service,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	})
}
