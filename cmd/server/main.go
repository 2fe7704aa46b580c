package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/colsplit/internal/config"
	"github.com/JonMunkholm/colsplit/internal/core"
	"github.com/JonMunkholm/colsplit/internal/logging"
	"github.com/JonMunkholm/colsplit/internal/storage"
	"github.com/JonMunkholm/colsplit/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"task_store", cfg.TaskStore.Backend,
		"archive_backend", cfg.Archive.Backend,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	tasks, closeTasks, err := openTaskStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open task store", "backend", cfg.TaskStore.Backend, "error", err)
		os.Exit(1)
	}
	defer closeTasks()

	archives, err := openArchiveStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open archive store", "backend", cfg.Archive.Backend, "error", err)
		os.Exit(1)
	}

	service := core.NewService(tasks, archives, core.ServiceConfig{
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWaitTime,
		JobTimeout:    cfg.Upload.Timeout,
		ScratchRoot:   cfg.Split.ScratchDir,
	})

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Let running splits record their outcome before the stores close.
		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for split jobs to complete", "active", status.Active)
			if err := service.WaitForJobs(shutdownCtx); err != nil {
				slog.Warn("split jobs did not complete in time", "error", err)
			} else {
				slog.Info("all split jobs completed")
			}
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		closeTasks()
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}

// openTaskStore builds the configured task store and its cleanup func.
func openTaskStore(ctx context.Context, cfg *config.Config) (core.TaskStore, func(), error) {
	switch strings.ToLower(cfg.TaskStore.Backend) {
	case config.TaskStoreRedis:
		store, err := storage.NewRedisTaskStore(ctx, cfg.Redis.URL, cfg.Redis.KeyPrefix, cfg.TaskStore.Retention)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("connected to redis", "key_prefix", cfg.Redis.KeyPrefix)
		return store, func() { store.Close() }, nil

	case config.TaskStorePostgres:
		pool, err := storage.OpenPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewPostgresTaskStore(pool, cfg.TaskStore.Retention)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		slog.Info("connected to database", "name", storage.DatabaseName(cfg.Database.URL))
		return store, pool.Close, nil

	case config.TaskStoreMemory:
		return storage.NewMemoryTaskStore(cfg.TaskStore.Retention), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown task store %q", cfg.TaskStore.Backend)
}

func openArchiveStore(ctx context.Context, cfg *config.Config) (core.ArchiveStore, error) {
	switch strings.ToLower(cfg.Archive.Backend) {
	case config.ArchiveS3:
		store, err := storage.NewS3ArchiveStore(ctx, cfg.Archive)
		if err != nil {
			return nil, err
		}
		slog.Info("publishing archives to s3", "bucket", cfg.Archive.Bucket, "prefix", cfg.Archive.Prefix)
		return store, nil

	case config.ArchiveLocal:
		store, err := storage.NewLocalArchiveStore(cfg.Archive.ResultsDir)
		if err != nil {
			return nil, err
		}
		slog.Info("publishing archives locally", "dir", store.Dir())
		return store, nil
	}
	return nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
}
