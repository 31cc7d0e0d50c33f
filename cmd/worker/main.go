package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/execution-hub/fnhub/internal/api/http"
	"github.com/execution-hub/fnhub/internal/application/agent"
	"github.com/execution-hub/fnhub/internal/application/catalog"
	"github.com/execution-hub/fnhub/internal/application/sandbox"
	"github.com/execution-hub/fnhub/internal/config"
	"github.com/execution-hub/fnhub/internal/infrastructure/blob"
	"github.com/execution-hub/fnhub/internal/infrastructure/controlplane"
)

func main() {
	if err := config.LoadDotEnv(os.Getenv("ENV_FILE")); err != nil {
		log.Fatalf("config error: %v", err)
	}
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		lvl = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manifest, err := catalog.LoadManifest(cfg.ManifestPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("manifest error")
	}
	cat := catalog.New(logger)
	if err := cat.Seed(manifest); err != nil {
		logger.Fatal().Err(err).Msg("catalog error")
	}

	source, err := moduleSource(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("module source error")
	}
	executor, err := sandbox.New(ctx, sandbox.Options{
		Timeout:          cfg.ExecutionTimeout,
		MemoryLimitPages: cfg.MemoryLimitPages,
		CacheDir:         cfg.CompileCacheDir,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("sandbox error")
	}
	defer executor.Close(context.Background())
	if err := executor.LoadAll(ctx, cat.ListFunctions(), source); err != nil {
		logger.Fatal().Err(err).Msg("load functions")
	}

	cp := controlplane.New(cfg.ControlPlaneURL, 5*time.Second)
	ag := agent.New(cp, agent.NewFileIdentity(cfg.IdentityFile), cfg.AdvertiseAddr, cfg.HeartbeatInterval, logger)

	workerServer := httpapi.NewWorkerServer(executor, ag.Self, logger)
	httpServer := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     workerServer.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", cfg.ServerAddr).
			Str("advertise", cfg.AdvertiseAddr).
			Int("functions", len(executor.Functions())).
			Msg("worker started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return ag.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("worker stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("worker stopped")
}

func moduleSource(cfg *config.Worker) (sandbox.Source, error) {
	if cfg.ModuleSource == "minio" {
		src, err := blob.NewMinioSource(blob.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Secure:    cfg.MinioSecure,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return blob.NewFileSource(cfg.ModuleDir), nil
}
