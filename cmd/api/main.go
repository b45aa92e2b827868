package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"product-catalog/internal/config"
	"product-catalog/internal/database"
	"product-catalog/internal/logger"
	"product-catalog/internal/metrics"
	"product-catalog/internal/server"
	"product-catalog/internal/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()

	log := logger.Must(cfg.Server.Env)
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	log.Info("Starting product catalog API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("asset_store", cfg.Assets.Store),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
	log.Info("Graceful shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	db, err := database.Open(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}

	if err := database.RunMigrations(db, log); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("Database migrations completed successfully")

	var redisClient *redis.Client
	if cfg.RedisEnabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// Cache and rate limiting fail open, so a missing redis only degrades them.
			log.Warn("Redis unreachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
	}

	store, err := storage.New(ctx, cfg.Assets, cfg.Server.BaseURL)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create asset store: %w", err)
	}

	catalogMetrics := metrics.New()

	srv := server.NewServer(cfg, log, server.Dependencies{
		DB:      db,
		Redis:   redisClient,
		Store:   store,
		Metrics: catalogMetrics,
	})
	metricsSrv := metrics.NewServer(cfg.Server.MetricsPort, catalogMetrics)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("Metrics listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", zap.Error(err))
		}
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("Metrics server forced to shutdown", zap.Error(err))
		}
		return srv.Close()
	})

	return g.Wait()
}
