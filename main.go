// Package main provides the main entry point for the treebio link-in-bio service
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/treebio/treebio/app/handlers"
	"github.com/treebio/treebio/app/logging"
	"github.com/treebio/treebio/app/middleware"
	"github.com/treebio/treebio/app/router"
	"github.com/treebio/treebio/app/scheduler"
	"github.com/treebio/treebio/app/services"
	businessflow "github.com/treebio/treebio/business_flow"
	"github.com/treebio/treebio/config"
	"github.com/treebio/treebio/models"
	"github.com/treebio/treebio/repository"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	logger    zerolog.Logger
	metrics   *http.Server
	closers   []io.Closer
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger, logCloser, err := logging.New(cfg.Logging, cfg.Deployment)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logging")
	}
	logger.Info().
		Str("version", cfg.Deployment.Version).
		Str("environment", cfg.Deployment.Environment).
		Msg("starting treebio")

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}
	app.closers = append(app.closers, logCloser)

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		serverErr <- app.router.Start(address)
	}()

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("server stopped unexpectedly")
		}
	}

	app.shutdown()
}

func (a *Application) shutdown() {
	if err := a.router.Shutdown(a.config.Server.ShutdownTimeout); err != nil {
		a.logger.Error().Err(err).Msg("error during server shutdown")
	}

	// Stop background workers after in-flight requests drained
	for i := len(a.stopFuncs) - 1; i >= 0; i-- {
		a.stopFuncs[i]()
	}

	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.Error().Err(err).Msg("error during metrics server shutdown")
		}
		cancel()
	}

	a.logger.Info().Msg("server stopped")
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger zerolog.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	slow := time.Duration(0)
	if cfg.SlowQueryLog {
		slow = cfg.SlowQueryTime
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logging.NewGormLogger(logger, slow),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(models.AllModels()...); err != nil {
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	logger.Info().
		Int("max_open_conns", cfg.MaxOpenConns).
		Int("max_idle_conns", cfg.MaxIdleConns).
		Bool("auto_migrate", cfg.AutoMigrate).
		Msg("database connection established")

	return db, nil
}

// initializeCache picks the summary cache backend. The returned client is non-nil only for redis.
func initializeCache(cfg config.CacheConfig, logger zerolog.Logger) (services.CacheService, *redis.Client, error) {
	if !cfg.Enabled {
		return services.NewNoopCache(), nil, nil
	}

	switch cfg.Provider {
	case "redis":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}

		rc := redis.NewClient(opt)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rc.Ping(ctx).Err(); err != nil {
			_ = rc.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		logger.Info().Str("addr", opt.Addr).Int("db", opt.DB).Msg("redis connection established")
		return services.NewRedisCache(rc, cfg.RedisPrefix), rc, nil
	default:
		logger.Info().Int("max_memory_mb", cfg.MaxMemory).Msg("using in-process summary cache")
		return services.NewMemoryCache(cfg.MaxMemory), nil, nil
	}
}

// startCacheHealthMonitor starts a background goroutine that periodically pings the cache
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, cache services.CacheService, interval time.Duration, logger zerolog.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := cache.Ping(ctx); err != nil {
					logger.Warn().Err(err).Msg("cache healthcheck failed")
				}
				c()
			}
		}
	}()
	return cancel
}

// startMetricsServer exposes Prometheus metrics on a dedicated listener
func startMetricsServer(cfg config.MetricsConfig, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("path", cfg.Path).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return srv
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, logger zerolog.Logger) (*Application, error) {
	app := &Application{config: cfg, logger: logger}

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		app.closers = append(app.closers, sqlDB)
	}

	cache, rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		app.closers = append(app.closers, rc)
		app.stopFuncs = append(app.stopFuncs, startCacheHealthMonitor(context.Background(), cache, cfg.Cache.CleanupInterval, logger))
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	linkRepo := repository.NewLinkRepository(db)
	socialLinkRepo := repository.NewSocialLinkRepository(db)
	visitRepo := repository.NewProfileVisitRepository(db)
	clickRepo := repository.NewLinkClickRepository(db)
	transactor := repository.NewTransactor(db)

	// Services
	verifier, err := services.NewIdentityVerifier(
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize identity verifier: %w", err)
	}

	// Business flows
	analyticsFlow := businessflow.NewAnalyticsFlow(
		visitRepo, clickRepo, linkRepo, logger,
		businessflow.WithSummaryCache(cache, cfg.Analytics.SummaryCacheTTL),
	)
	visitFlow := businessflow.NewVisitFlow(visitRepo, cfg.Analytics.DedupWindow, logger)
	clickFlow := businessflow.NewClickFlow(
		linkRepo, clickRepo, transactor, logger,
		businessflow.WithClickSummaryInvalidator(analyticsFlow),
	)
	profileFlow := businessflow.NewProfileFlow(userRepo, linkRepo, socialLinkRepo, logger)
	linkFlow := businessflow.NewLinkFlow(linkRepo, analyticsFlow, logger)
	socialLinkFlow := businessflow.NewSocialLinkFlow(socialLinkRepo)
	exportFlow := businessflow.NewAnalyticsExportFlow(analyticsFlow, nil)

	// Handlers
	traffic := handlers.TrafficOptions{
		ExcludeLocal:    cfg.Analytics.ExcludeLocalTraffic,
		VisitLogTimeout: cfg.Analytics.VisitLogTimeout,
		RequestTimeout:  cfg.Server.RequestTimeout,
	}
	h := router.Handlers{
		Auth:       handlers.NewAuthHandler(profileFlow, cfg.Server.RequestTimeout, logger),
		Profile:    handlers.NewProfileHandler(profileFlow, visitFlow, traffic, logger),
		Link:       handlers.NewLinkHandler(linkFlow, cfg.Server.RequestTimeout, logger),
		SocialLink: handlers.NewSocialLinkHandler(socialLinkFlow, cfg.Server.RequestTimeout, logger),
		LinkClick:  handlers.NewLinkClickHandler(clickFlow, traffic, logger),
		Analytics: handlers.NewAnalyticsHandler(analyticsFlow, exportFlow, handlers.AnalyticsLimits{
			RecentVisitors: cfg.Analytics.RecentVisitorsLimit,
			TopLinks:       cfg.Analytics.TopLinksLimit,
			MaxDays:        cfg.Analytics.MaxDays,
			RequestTimeout: cfg.Server.RequestTimeout,
		}, logger),
	}

	authMiddleware := middleware.NewAuthMiddleware(verifier, userRepo)
	app.router = router.NewFiberRouter(cfg, h, authMiddleware, logger)

	if cfg.Metrics.Enabled {
		app.metrics = startMetricsServer(cfg.Metrics, logger)
	}

	if cfg.Analytics.ReconcileEnabled {
		reconcileFlow := businessflow.NewReconcileFlow(
			linkRepo, clickRepo, logger,
			businessflow.WithReconcileRepair(cfg.Analytics.ReconcileRepair),
			businessflow.WithReconcileBatchSize(cfg.Analytics.ReconcileBatchSize),
		)
		sched := scheduler.NewReconcileScheduler(reconcileFlow, cfg.Analytics.ReconcileInterval, logger)
		app.stopFuncs = append(app.stopFuncs, sched.Start(context.Background()))
	}

	return app, nil
}
