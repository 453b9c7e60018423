package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/iconidentify/albumproxy/internal/albumcache"
	"github.com/iconidentify/albumproxy/internal/api"
	"github.com/iconidentify/albumproxy/internal/api/handler"
	"github.com/iconidentify/albumproxy/internal/augment"
	"github.com/iconidentify/albumproxy/internal/config"
	"github.com/iconidentify/albumproxy/internal/domain"
	"github.com/iconidentify/albumproxy/internal/downloader"
	"github.com/iconidentify/albumproxy/internal/imagecache"
	"github.com/iconidentify/albumproxy/internal/mapping"
	"github.com/iconidentify/albumproxy/internal/provider"
	"github.com/iconidentify/albumproxy/internal/service"
	"github.com/iconidentify/albumproxy/internal/store"
	"github.com/iconidentify/albumproxy/internal/tracker"
	"github.com/iconidentify/albumproxy/pkg/ffmpeg"
	"github.com/iconidentify/albumproxy/pkg/grok"
	"github.com/iconidentify/albumproxy/pkg/imaging"
	"github.com/iconidentify/albumproxy/pkg/token"
	"github.com/iconidentify/albumproxy/pkg/whisper"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("albumproxy %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting albumproxy",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Ensure storage directories exist
	if err := os.MkdirAll(cfg.Storage.BasePath, 0755); err != nil {
		logger.Error("failed to create storage directory", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Storage.TempPath, 0755); err != nil {
		logger.Error("failed to create temp directory", "error", err)
		os.Exit(1)
	}

	// Disk-backed caches and mappings
	albumCache, err := albumcache.New(filepath.Join(cfg.Storage.BasePath, "albums"), cfg.Cache.AlbumTTL)
	if err != nil {
		logger.Error("failed to open album cache", "error", err)
		os.Exit(1)
	}
	refMapping, err := mapping.New(filepath.Join(cfg.Storage.BasePath, "mappings"), cfg.Cache.MappingTTL)
	if err != nil {
		logger.Error("failed to open reference mapping", "error", err)
		os.Exit(1)
	}
	augmentRecords, err := store.New[domain.AugmentationRecord](filepath.Join(cfg.Storage.BasePath, "augmentations"))
	if err != nil {
		logger.Error("failed to open augmentation store", "error", err)
		os.Exit(1)
	}

	// Collaborator clients
	dl := downloader.New(downloader.Config{UserAgent: cfg.Storage.UserAgent}, logger)
	providerClient := provider.NewClient(cfg.Provider)
	whisperClient := whisper.NewClient(cfg.Whisper)
	grokClient := grok.NewClient(cfg.Grok)

	ffmpegProc, err := ffmpeg.NewProcessor()
	if err != nil {
		logger.Error("ffmpeg not available", "error", err)
		os.Exit(1)
	}

	imageCache, err := imagecache.New(
		filepath.Join(cfg.Storage.BasePath, "derivatives"),
		cfg.Cache.DerivativeTTL,
		refMapping,
		dl,
		imaging.Options{
			MaxWidth:  cfg.Image.MaxWidth,
			MaxHeight: cfg.Image.MaxHeight,
			Quality:   cfg.Image.Quality,
		},
		logger,
	)
	if err != nil {
		logger.Error("failed to open derivative cache", "error", err)
		os.Exit(1)
	}

	// Augmentation pipeline
	augmentSvc := augment.NewService(
		cfg.Augment,
		augmentRecords,
		dl,
		ffmpegProc,
		whisperClient,
		grokClient,
		cfg.Storage.TempPath,
		logger,
	)
	queue := augment.NewQueue(cfg.Augment.Concurrency, augmentSvc, logger)

	// Album orchestration
	hotTokens := tracker.New(cfg.Tracker.MaxTokens, cfg.Tracker.TokenTTL)
	albumSvc := service.NewAlbumService(
		token.NewResolver(cfg.Token.Secret),
		albumCache,
		refMapping,
		hotTokens,
		providerClient,
		queue,
		augmentSvc,
		logger,
	)

	refresher := tracker.NewRefresher(
		tracker.Config{
			Interval:   cfg.Tracker.RefreshInterval,
			BatchSize:  cfg.Tracker.BatchSize,
			BatchDelay: cfg.Tracker.BatchDelay,
		},
		hotTokens,
		albumSvc,
		logger,
	)
	refresher.Start()

	// Periodic mapping sweep; swept mappings take their derivative blobs
	// with them.
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(cfg.Cache.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				removed, err := refMapping.Sweep()
				if err != nil {
					logger.Warn("mapping sweep failed", "error", err)
					continue
				}
				for _, id := range removed {
					if err := imageCache.Remove(id); err != nil {
						logger.Warn("derivative removal failed", "secure_id", id, "error", err)
					}
				}
				if len(removed) > 0 {
					logger.Info("mapping sweep completed", "removed", len(removed))
				}
			}
		}
	}()

	// Initialize handlers
	albumHandler := handler.NewAlbumHandler(albumSvc, logger)
	imageHandler := handler.NewImageHandler(imageCache, logger)
	augmentHandler := handler.NewAugmentHandler(albumSvc, logger)
	healthHandler := handler.NewHealthHandler(cfg.Storage.BasePath)

	// Setup router
	router := api.NewRouter(albumHandler, imageHandler, augmentHandler, healthHandler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Cancel background tasks
	cancelSweep()
	refresher.Stop()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting new requests
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Stop the augmentation queue (cancels in-flight jobs)
	queue.Stop()

	logger.Info("shutdown complete")
}
