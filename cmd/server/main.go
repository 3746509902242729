package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpapi "github.com/revision-hub/revision-hub/internal/api/http"
	"github.com/revision-hub/revision-hub/internal/application/branching"
	"github.com/revision-hub/revision-hub/internal/application/diffing"
	"github.com/revision-hub/revision-hub/internal/application/store"
	"github.com/revision-hub/revision-hub/internal/application/versioning"
	"github.com/revision-hub/revision-hub/internal/config"
	"github.com/revision-hub/revision-hub/internal/domain/diff"
	"github.com/revision-hub/revision-hub/internal/infrastructure/postgres"
	"github.com/revision-hub/revision-hub/internal/infrastructure/sse"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	// repositories
	versionRepo := postgres.NewVersionRepository(pool)
	branchRepo := postgres.NewBranchRepository(pool)
	diffRepo := postgres.NewDiffRepository(pool)
	metricsRepo := postgres.NewMetricsRepository(pool)

	// infrastructure
	hub := sse.NewHub()

	impactPolicy, err := diff.NewPolicy(cfg.ImpactRules)
	if err != nil {
		log.Fatalf("impact policy error: %v", err)
	}

	// services
	storeSvc := store.NewService(versionRepo, branchRepo, metricsRepo, logger)
	diffingSvc, err := diffing.NewService(versionRepo, diffRepo, impactPolicy, cfg.DiffMemoSize, logger)
	if err != nil {
		log.Fatalf("diff service error: %v", err)
	}
	branchingSvc := branching.NewService(storeSvc, logger)
	versioningSvc := versioning.NewService(storeSvc, diffingSvc, branchingSvc, hub, logger)

	// API server
	apiServer := httpapi.NewServer(storeSvc, diffingSvc, versioningSvc, hub)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// start server
	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
