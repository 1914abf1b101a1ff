// Package app wires together all dependencies of the query server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/angelmartinezt1/cs-products-sub000/internal/config"
	"github.com/angelmartinezt1/cs-products-sub000/internal/engine/typesense"
	handler "github.com/angelmartinezt1/cs-products-sub000/internal/handler/http"
	"github.com/angelmartinezt1/cs-products-sub000/internal/repository/postgres"
	"github.com/angelmartinezt1/cs-products-sub000/internal/repository/postgres/migrations"
	"github.com/angelmartinezt1/cs-products-sub000/internal/service"
	"github.com/angelmartinezt1/cs-products-sub000/pkg/database"
	"github.com/angelmartinezt1/cs-products-sub000/pkg/health"
)

// App holds the query server's dependencies and lifecycle.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	cache      *redis.Client
	httpServer *http.Server
}

// NewApp creates the application, connecting to every backing service the
// configuration enables.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	eng := typesense.NewClient(typesense.Config{
		URL:        cfg.EngineURL,
		APIKey:     cfg.EngineAPIKey,
		Collection: cfg.EngineCollection,
		QueryBy:    strings.Split(cfg.EngineQueryBy, ","),
	}, logger)
	logger.Info("search engine client initialized",
		slog.String("url", cfg.EngineURL),
		slog.String("collection", cfg.EngineCollection),
	)

	healthHandler := health.NewHandler()
	healthHandler.Register("search-engine", eng.Health)

	var pool *pgxpool.Pool
	browse := service.NewBrowseService(nil, logger)
	if cfg.MirrorEnabled {
		pgCfg := database.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			DBName:   cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		}
		var err error
		pool, err = database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.String("database", cfg.PostgresDB),
		)

		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}

		mirror := postgres.NewProductRepository(pool, logger)
		browse = service.NewBrowseService(mirror, logger)
		healthHandler.Register("postgres", pool.Ping)
	}

	var cache *redis.Client
	if cfg.CacheEnabled {
		redisCfg := database.DefaultRedisConfig()
		redisCfg.Host = cfg.RedisHost
		redisCfg.Port = cfg.RedisPort
		redisCfg.Password = cfg.RedisPassword
		redisCfg.DB = cfg.RedisDB
		var err error
		cache, err = database.NewRedisClient(ctx, redisCfg)
		if err != nil {
			// The cache is an optimization; the server runs without it.
			logger.Warn("redis unavailable, search cache disabled",
				slog.String("addr", redisCfg.Addr()),
				slog.String("error", err.Error()),
			)
			cache = nil
		} else {
			logger.Info("connected to Redis", slog.String("addr", redisCfg.Addr()))
			healthHandler.Register("redis", func(ctx context.Context) error {
				return cache.Ping(ctx).Err()
			})
		}
	}

	search := service.NewSearchService(eng, cache, time.Duration(cfg.CacheTTLSeconds)*time.Second, logger)

	router := handler.NewRouter(handler.RouterConfig{
		ServiceName: "catalog-search",
		Algolia:     handler.NewAlgoliaHandler(search, logger),
		Browse:      handler.NewBrowseHandler(browse, logger),
		Health:      healthHandler,
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		cache:      cache,
		httpServer: httpServer,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
