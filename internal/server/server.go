package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"product-catalog/internal/cache"
	"product-catalog/internal/config"
	"product-catalog/internal/metrics"
	custommiddleware "product-catalog/internal/middleware"
	"product-catalog/internal/repository"
	"product-catalog/internal/service"
	"product-catalog/internal/storage"
	"product-catalog/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies are the long-lived resources the API server is built on.
// Redis and Metrics may be nil.
type Dependencies struct {
	DB      *sql.DB
	Redis   *redis.Client
	Store   storage.Store
	Metrics *metrics.Catalog
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	deps   Dependencies
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(deps.Metrics.Middleware)
	router.Use(custommiddleware.SecurityHeadersMiddleware(cfg.IsDevelopment()))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))
	router.Use(rateLimiter(cfg, logger, deps.Redis))

	router.NotFound(custommiddleware.NotFoundHandler)
	router.MethodNotAllowed(custommiddleware.MethodNotAllowedHandler)

	router.Get("/health", healthHandler(deps.DB))

	// Local uploads are served by the API itself; other stores hand out their own URLs.
	if local, ok := deps.Store.(*storage.LocalStore); ok {
		router.Handle(storage.UploadsPath+"*", local.Handler())
	}

	productRepo := repository.NewProductRepository(deps.DB)
	listCache := cache.NewListCache(deps.Redis, cfg.Cache.TTL, logger)
	productService := service.NewProductService(productRepo, deps.Store, listCache, deps.Metrics, logger)
	productHandler := transport.NewProductHandler(productService, logger)

	productHandler.RegisterRoutes(router)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		deps:   deps,
	}
}

func rateLimiter(cfg *config.Config, logger *zap.Logger, redisClient *redis.Client) func(http.Handler) http.Handler {
	limit := custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         "catalog:ratelimit",
	}
	if redisClient != nil {
		return custommiddleware.RateLimitMiddleware(redisClient, limit, logger)
	}
	return custommiddleware.LocalRateLimitMiddleware(limit, logger)
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := db.PingContext(ctx); err != nil {
				custommiddleware.RespondWithError(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		custommiddleware.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	if s.deps.DB != nil {
		if err := s.deps.DB.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
