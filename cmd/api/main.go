//	@title			Photoslot API
//	@version		1.0
//	@description	Single-slot image upload and retrieval service.
//
//	@host		localhost:8080
//	@BasePath	/

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/photoslot/service/internal/config"
	"github.com/photoslot/service/internal/db"
	"github.com/photoslot/service/internal/logging"
	"github.com/photoslot/service/internal/photo"
	"github.com/photoslot/service/internal/server"
	"github.com/photoslot/service/internal/storage"
)

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage init failed", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Wire dependencies: store → service → handler
	photoSvc := photo.NewService(store, cfg, logger)
	photoHandler := photo.NewHandler(photoSvc, cfg, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.NewRouter(logger, photoHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("starting", "env", cfg.AppEnv, "storage", cfg.StorageDriver)
	if !cfg.IsProduction() && cfg.UploadKey == "your-upload-key" {
		logger.Warn("UPLOAD_KEY is unset, using the default key")
	}

	if err := server.Run(ctx, srv, logger); err != nil {
		logger.Error("server error", "error", err)
		closeStore()
		os.Exit(1)
	}
}

// openStore builds the backing store selected by STORAGE_DRIVER. The returned
// func releases whatever the driver opened and is safe to call more than once.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, func(), error) {
	noop := func() {}

	switch cfg.StorageDriver {
	case "memory":
		return storage.NewMemoryStorage(), noop, nil

	case "badger":
		s, err := storage.NewBadgerStorage(cfg.BadgerPath)
		if err != nil {
			return nil, noop, err
		}
		return s, sync.OnceFunc(func() { _ = s.Close() }), nil

	case "redis":
		s, err := storage.NewRedisStorage(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		if err != nil {
			return nil, noop, err
		}
		return s, sync.OnceFunc(func() { _ = s.Close() }), nil

	case "minio":
		s, err := storage.NewMinioStorage(ctx, logger,
			cfg.StorageEndpoint,
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			cfg.StorageBucket,
			cfg.StorageUseSSL,
		)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case "postgres":
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return nil, noop, fmt.Errorf("database migration failed: %w", err)
		}
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("database connection failed: %w", err)
		}
		logger.Info("connected to database")
		return storage.NewPostgresStorage(pool), sync.OnceFunc(pool.Close), nil

	case "sqlite":
		if err := db.MigrateSQLite(cfg.SQLitePath); err != nil {
			return nil, noop, fmt.Errorf("sqlite migration failed: %w", err)
		}
		conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return storage.NewSQLiteStorage(conn), sync.OnceFunc(func() { _ = conn.Close() }), nil
	}

	return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}
