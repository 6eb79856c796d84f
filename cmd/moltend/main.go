package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"molten/internal/app"
	"molten/internal/config"
	"molten/internal/migrate"
	"molten/internal/ratelimit"
	"molten/internal/server"
	"molten/internal/util"
	"molten/pkg/cache"
	"molten/pkg/queue"
	"molten/pkg/storage"
	"molten/pkg/store"
)

func main() {
	configPath := flag.String("config", config.ConfigPath, "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	st, err := store.Open(store.Config{
		Backend:     cfg.StoreBackend,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	var deepLinks *cache.DeepLinkCache
	if cfg.RedisAddr != "" {
		ttl, err := cfg.DeepLinkCacheTTL()
		if err != nil {
			log.Fatalf("failed to parse deep link ttl: %v", err)
		}
		deepLinks = cache.New(cfg.RedisAddr, cfg.RedisPassword, ttl)
	}

	var images storage.ImageStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init image store: %v", err)
		}
		images = minioStore
	}

	var scanLimiter *ratelimit.FixedWindowLimiter
	if cfg.ScanRateLimit > 0 {
		scanLimiter, err = ratelimit.New(cfg.RedisAddr, cfg.RedisPassword, cfg.ScanRateLimit, time.Minute)
		if err != nil {
			log.Fatalf("failed to init scan rate limiter: %v", err)
		}
	}

	catalogSvc := app.NewCatalogService(st, deepLinks)
	loaderSvc := app.NewLoaderService(catalogSvc)

	ctx := util.ContextWithLogger(context.Background(), logger)

	if cfg.RunMigrations {
		report, err := migrate.NewRunner(st).Run(ctx)
		if err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		if len(report.Ran) > 0 || report.Failed() > 0 {
			slog.Info("legacy migration finished", "ran", report.Ran, "skipped", report.Skipped, "failed", report.Failed())
		}
	}

	if cfg.LoadOnStart {
		report, err := loaderSvc.LoadPath(ctx, cfg.CatalogPath, app.ImportOptions{})
		if err != nil {
			log.Fatalf("failed to load catalog: %v", err)
		}
		slog.Info("catalog loaded", "path", report.Path, "format", report.Format,
			"decoded", report.Decoded, "skipped", len(report.Skipped),
			"new", report.Stats.New, "updated", report.Stats.Updated,
			"reactivated", report.Stats.Reactivated, "discontinued", report.Stats.Discontinued)
	}

	var imports *queue.ImportQueue
	if cfg.ImportWorkers > 0 {
		imports, err = queue.New(queue.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Fatalf("failed to init import queue: %v", err)
		}
		imports.Start(ctx, cfg.ImportWorkers, func(ctx context.Context, job queue.JobStatus) (string, error) {
			report, err := loaderSvc.LoadPath(ctx, job.Request.Path, app.ImportOptions{
				Manufacturers: job.Request.Manufacturers,
				MaxItems:      job.Request.MaxItems,
			})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d new, %d updated, %d reactivated, %d discontinued, %d skipped",
				report.Stats.New, report.Stats.Updated, report.Stats.Reactivated,
				report.Stats.Discontinued, len(report.Skipped)), nil
		})
	}

	presignExpiry, err := cfg.PresignExpiry()
	if err != nil {
		log.Fatalf("failed to parse image url expiry: %v", err)
	}

	httpServer := server.New(server.Config{
		Catalog:        catalogSvc,
		Inventory:      app.NewInventoryService(st),
		Shopping:       app.NewShoppingService(st),
		Purchases:      app.NewPurchaseService(st),
		Projects:       app.NewProjectService(st, images),
		Loader:         loaderSvc,
		Imports:        imports,
		ScanLimiter:    scanLimiter,
		MaxUploadBytes: cfg.MaxUploadBytes,
		PresignExpiry:  presignExpiry,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("molten server listening", "addr", addr, "backend", cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
