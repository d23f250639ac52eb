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

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openkpis/catalog-engine/pkg/auth"
	"github.com/openkpis/catalog-engine/pkg/cache"
	"github.com/openkpis/catalog-engine/pkg/config"
	"github.com/openkpis/catalog-engine/pkg/database"
	"github.com/openkpis/catalog-engine/pkg/handlers"
	"github.com/openkpis/catalog-engine/pkg/logging"
	"github.com/openkpis/catalog-engine/pkg/middleware"
	"github.com/openkpis/catalog-engine/pkg/repositories"
	"github.com/openkpis/catalog-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.Bool("redis", cfg.Redis.Enabled()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := db.MigratePool(logger); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.String("error", logging.SanitizeError(err)))
	}
	var displayCache cache.DisplayCache
	if redisClient != nil {
		defer redisClient.Close()
		displayCache = cache.NewDisplayCache(redisClient, logger)
	}

	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
		Leeway:             30 * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to initialize JWKS client", zap.Error(err))
	}
	defer jwksClient.Close()

	authService := auth.NewAuthService(jwksClient, cfg.Auth.CookieName, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)

	catalogRepo := repositories.NewCatalogEntityRepository()
	catalogService := services.NewCatalogService(catalogRepo, displayCache, services.CatalogServiceConfig{
		DisplayTTL: cfg.Catalog.DisplayCacheTTL,
		ListLimit:  cfg.Catalog.ListLimit,
	}, logger)

	mux := http.NewServeMux()

	// Register handlers
	checks := map[string]handlers.Pinger{"database": db}
	if redisClient != nil {
		checks["redis"] = redisPinger{redisClient}
	}
	handlers.NewHealthHandler(cfg, checks, logger).RegisterRoutes(mux)
	handlers.NewOptionsHandler(logger).RegisterRoutes(mux)
	handlers.NewCatalogHandler(catalogService, logger).
		RegisterRoutes(mux, authMiddleware, database.WithUserScope(db, logger))

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting catalog-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if cfg.TLSCertPath != "" {
			errCh <- server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			errCh <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", zap.Error(err))
		}
	}
}

// loadConfig prefers config.yaml and falls back to the environment when
// no file is present.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat("config.yaml"); errors.Is(err, os.ErrNotExist) {
		return config.LoadFromEnv(Version)
	}
	return config.Load(Version)
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
