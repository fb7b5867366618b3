package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veostudio/studio-agent/internal/api"
	"github.com/veostudio/studio-agent/internal/archive"
	"github.com/veostudio/studio-agent/internal/config"
	"github.com/veostudio/studio-agent/internal/db"
	"github.com/veostudio/studio-agent/internal/jobs"
	"github.com/veostudio/studio-agent/internal/logging"
	"github.com/veostudio/studio-agent/internal/media"
	"github.com/veostudio/studio-agent/internal/playback"
	"github.com/veostudio/studio-agent/internal/remote"
	"github.com/veostudio/studio-agent/internal/storage"
	"github.com/veostudio/studio-agent/internal/studio"
	"github.com/veostudio/studio-agent/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting studio agent", "version", config.Version, "commit", config.GitCommit, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := jobs.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                  VEO STUDIO AGENT v%-22s ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Storage:    %-45s ║\n", cfg.Storage())
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize archive storage: %w", err)
	}

	registry := media.NewRegistry(cfg.PublicURL(), logging.WithComponent(logger, "media"))
	fetcher := remote.NewHTTPFetcher(cfg.GenAIKey(), cfg.FetchTimeout(), logger)
	builder := archive.NewBuilder(fetcher, cfg.ExportConcurrency(), logger)
	hub := api.NewHub(logger)

	svc := studio.New(studio.Options{
		Registry: registry,
		Builder:  builder,
		Fetcher:  fetcher,
		Store:    store,
		Repo:     repo,
		Sink:     hub,
		Logger:   logger,
	})
	if err := svc.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize studio: %w", err)
	}
	defer svc.Close()

	svc.OnPreviewChange(func(playback.State) {
		hub.PreviewChanged(svc.PreviewState())
	})

	runner := jobs.NewRunner(repo, svc, logger)
	runner.SetNotifier(hub)
	svc.SetRunner(runner)
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:      cfg.Port(),
		Studio:    svc,
		Playback:  playback.NewServer(registry, logger),
		Hub:       hub,
		Tokens:    repo,
		Logger:    logger,
		StartTime: startTime,
		Version:   config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Studio: svc,
			Runner: runner,
			Logger: logger,
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func newStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.Storage() == config.StorageS3 {
		logger.Info("storing archives in S3", "bucket", cfg.S3Bucket(), "prefix", cfg.S3Prefix())
		return storage.NewS3Store(ctx, storage.S3Config{
			Region:          cfg.AWSRegion(),
			AccessKeyID:     cfg.AWSAccessKeyID(),
			SecretAccessKey: cfg.AWSSecretAccessKey(),
			Bucket:          cfg.S3Bucket(),
			Prefix:          cfg.S3Prefix(),
			PresignExpiry:   cfg.PresignExpiry(),
		}, logger)
	}
	return storage.NewLocalStore(cfg.ExportsDir(), logger)
}

func ensureAuthToken(repo jobs.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}
