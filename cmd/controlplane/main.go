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

	httpapi "github.com/execution-hub/fnhub/internal/api/http"
	"github.com/execution-hub/fnhub/internal/application/catalog"
	"github.com/execution-hub/fnhub/internal/application/dispatch"
	"github.com/execution-hub/fnhub/internal/application/registry"
	"github.com/execution-hub/fnhub/internal/config"
	"github.com/execution-hub/fnhub/internal/consensus"
	"github.com/execution-hub/fnhub/internal/domain/execution"
	"github.com/execution-hub/fnhub/internal/domain/worker"
	"github.com/execution-hub/fnhub/internal/infrastructure/memory"
	"github.com/execution-hub/fnhub/internal/infrastructure/postgres"
	"github.com/execution-hub/fnhub/internal/infrastructure/redisstore"
	"github.com/execution-hub/fnhub/internal/infrastructure/workerclient"
)

func main() {
	if err := config.LoadDotEnv(os.Getenv("ENV_FILE")); err != nil {
		log.Fatalf("config error: %v", err)
	}
	cfg, err := config.LoadControlPlane()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := newLogger(cfg.LogLevel)

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

	repo, closeRepo, err := openExecutionStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.ExecutionStore).Msg("execution store error")
	}
	defer closeRepo()

	// registry: local table, or replicated through raft
	var (
		reg     worker.Registry
		node    *consensus.Node
		cluster httpapi.Cluster
		active  = func() bool { return true }
	)
	if cfg.RaftNodeID != "" {
		node, err = consensus.NewNode(consensus.Config{
			NodeID:    cfg.RaftNodeID,
			RaftAddr:  cfg.RaftAddr,
			DataDir:   cfg.RaftDataDir,
			Bootstrap: cfg.RaftBootstrap,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create raft node")
		}
		defer func() {
			_ = node.Shutdown()
		}()
		if !cfg.RaftBootstrap && cfg.RaftJoin != "" {
			if err := joinCluster(ctx, cfg.RaftJoin, cfg.RaftNodeID, node.RaftAddr()); err != nil {
				logger.Error().Err(err).Msg("join cluster failed")
			} else {
				logger.Info().Str("via", cfg.RaftJoin).Msg("joined cluster")
			}
		}
		waitCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
		_, _ = node.WaitForLeader(waitCtx, 150*time.Millisecond)
		cancel()

		reg = consensus.NewRegistry(node, logger)
		cluster = node
		active = node.IsLeader
	} else {
		reg = registry.New(logger)
	}

	policy, err := dispatch.NewPolicy(cfg.DispatchPolicy)
	if err != nil {
		logger.Fatal().Err(err).Msg("dispatch policy error")
	}
	mode, err := dispatch.ParseMode(cfg.DispatchMode)
	if err != nil {
		logger.Fatal().Err(err).Msg("dispatch mode error")
	}
	opts := dispatch.Options{Mode: mode, Timeout: cfg.DispatchTimeout}
	if cfg.DispatchWorkerFilter != "" {
		filter, err := dispatch.NewExpressionFilter(cfg.DispatchWorkerFilter)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker filter error")
		}
		opts.Filter = filter
	}
	dispatcher := dispatch.New(cat, reg, repo, workerclient.New(cfg.WorkerClientTimeout), policy, opts, logger)

	sweeper := registry.NewSweeper(reg, cfg.SweepInterval, cfg.HeartbeatTimeout, logger).OnlyWhen(active)
	go sweeper.Run(ctx)

	apiServer := httpapi.NewServer(reg, cat, dispatcher, cluster, cfg.DispatchTimeout+5*time.Second, logger)
	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.DispatchTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.ServerAddr).
			Str("policy", policy.Name()).
			Str("mode", string(mode)).
			Str("store", cfg.ExecutionStore).
			Bool("raft", node != nil).
			Msg("control plane started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info().Msg("control plane stopped")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

func openExecutionStore(ctx context.Context, cfg *config.ControlPlane) (execution.Repository, func(), error) {
	switch cfg.ExecutionStore {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.RunMigrations(ctx, pool, postgres.MigrationSource(cfg.MigrationsDir)); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewExecutionRepository(pool), pool.Close, nil
	case "redis":
		client, err := redisstore.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewExecutionRepository(client, cfg.ExecutionTTL), func() { _ = client.Close() }, nil
	default:
		return memory.NewExecutionRepository(), func() {}, nil
	}
}
