package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/storequery/storequery/internal/config"
	"github.com/storequery/storequery/internal/ingest"
	"github.com/storequery/storequery/internal/observability"
	s3store "github.com/storequery/storequery/internal/storage/s3"
	"github.com/storequery/storequery/internal/tenant"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadFromEnv("storequery-ingest")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		return 1
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	masterDB, err := tenant.Open(ctx, cfg.Store)
	if err != nil {
		logger.Error("failed to open master store", slog.Any("error", err))
		return 1
	}
	defer func() { _ = masterDB.Close() }()

	pipeline := &ingest.Pipeline{
		DB:     masterDB,
		Driver: cfg.Store.Driver,
		Logger: logger,
	}
	if cfg.Ingest.UseObjectStore {
		store, err := s3store.New(cfg.ObjectStore)
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			return 1
		}
		pipeline.Source = ingest.ObjectSource{Store: store}
		if cfg.Ingest.WriteCleaned {
			pipeline.Sink = ingest.ObjectSink{Store: store}
		}
	} else {
		pipeline.Source = ingest.DirSource{Dir: cfg.Ingest.InputDir}
		if cfg.Ingest.WriteCleaned {
			pipeline.Sink = ingest.DirSink{Dir: filepath.Join(filepath.Dir(cfg.Ingest.InputDir), "Processed")}
		}
	}

	result, err := pipeline.Run(ctx)
	if err != nil {
		logger.Error("ingest failed", slog.Any("error", err))
		return 1
	}
	logger.Info("ingest completed",
		slog.Int("files", result.Files),
		slog.Int("orders", result.Rows[ingest.TableOrders]),
		slog.Int("customers", result.Rows[ingest.TableCustomers]),
		slog.Int("stores", result.Rows[ingest.TableStores]),
	)
	return 0
}
