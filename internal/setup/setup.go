package setup

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robalyx/starboard/internal/database"
	"github.com/robalyx/starboard/internal/database/dbretry"
	"github.com/robalyx/starboard/internal/database/migrations"
	"github.com/robalyx/starboard/internal/engine"
	"github.com/robalyx/starboard/internal/metrics"
	"github.com/robalyx/starboard/internal/redis"
	"github.com/robalyx/starboard/internal/setup/config"
	"github.com/robalyx/starboard/internal/setup/telemetry"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// ErrMigrationsPending is returned when the operator declines pending migrations.
var ErrMigrationsPending = errors.New("database migrations are pending")

// Version is reported to tracing and set at build time.
var Version = "dev" //nolint:gochecknoglobals // -ldflags target

// App bundles all core dependencies and services needed by the application.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	DBLogger     *zap.Logger
	DB           database.Client
	RedisManager *redis.Manager
	Premium      *redis.PremiumSource
	Notifier     *redis.ConfigNotifier
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
	Engine       *engine.Engine
	LogManager   *telemetry.Manager

	shutdownTracing func(context.Context) error
	debugServer     *debugServer
}

// InitializeApp bootstraps all application dependencies in the correct order.
func InitializeApp(ctx context.Context, serviceType telemetry.ServiceType, logDir string) (*App, error) {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging comes next so setup issues are captured
	logManager := telemetry.NewManager(serviceType, logDir, &cfg.Common.Debug)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	shutdownTracing := telemetry.SetupTracing(
		&cfg.Common.Telemetry, serviceType, logManager.InstanceID(), Version, logger,
	)

	dbretry.DefaultOptions = RetryOptions(&cfg.Common.Retry)

	db, err := checkAndRunMigrations(ctx, &cfg.Common.PostgreSQL, dbLogger)
	if err != nil {
		return nil, err
	}

	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	premiumClient, err := redisManager.Client(ctx, redis.PremiumDBIndex)
	if err != nil {
		db.Close()
		return nil, err
	}
	premium := redis.NewPremiumSource(premiumClient, db.Store(), logger)
	notifier := redis.NewConfigNotifier(premiumClient, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	engineConfig, err := EngineConfig(&cfg.Bot.Core)
	if err != nil {
		db.Close()
		redisManager.Close()
		return nil, err
	}
	eng := engine.New(db.Store(), premium, engineConfig, m, nil, logger)

	var debugSrv *debugServer
	if cfg.Common.Debug.EnablePprof {
		srv, err := startDebugServer(cfg.Common.Debug.PprofPort, registry, logger)
		if err != nil {
			logger.Error("Failed to start debug server", zap.Error(err))
		} else {
			debugSrv = srv
			logger.Warn("pprof debugging endpoint enabled - this should not be used in production!")
		}
	}

	return &App{
		Config:          cfg,
		Logger:          logger,
		DBLogger:        dbLogger.Named("database"),
		DB:              db,
		RedisManager:    redisManager,
		Premium:         premium,
		Notifier:        notifier,
		Registry:        registry,
		Metrics:         m,
		Engine:          eng,
		LogManager:      logManager,
		shutdownTracing: shutdownTracing,
		debugServer:     debugSrv,
	}, nil
}

// Cleanup shuts down all components in reverse initialization order.
// Failures are logged so every component gets its chance to clean up.
func (s *App) Cleanup(ctx context.Context) {
	if s.debugServer != nil {
		if err := s.debugServer.srv.Shutdown(ctx); err != nil {
			s.Logger.Error("Failed to shutdown debug server", zap.Error(err))
		}
		s.debugServer.listener.Close()
	}

	if err := s.shutdownTracing(ctx); err != nil {
		log.Printf("Failed to flush traces: %v", err)
	}

	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Redis goes last as the components above may still use it while closing
	s.RedisManager.Close()
}

// checkAndRunMigrations connects to the database and offers to apply pending migrations.
func checkAndRunMigrations(ctx context.Context, cfg *config.PostgreSQL, dbLogger *zap.Logger) (database.Client, error) {
	tempDB, err := database.NewConnection(ctx, cfg, dbLogger, false)
	if err != nil {
		return nil, err
	}

	migrator := migrate.NewMigrator(tempDB.DB(), migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		tempDB.Close()
		return nil, fmt.Errorf("failed to initialize migration tables: %w", err)
	}

	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		tempDB.Close()
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}

	if len(ms.Unapplied()) == 0 {
		return tempDB, nil
	}

	log.Println("Database migrations are pending. Would you like to run them now? (y/N)")

	var response string
	_, _ = fmt.Scanln(&response)

	if response != "y" && response != "Y" {
		tempDB.Close()
		return nil, ErrMigrationsPending
	}

	tempDB.Close()
	return database.NewConnection(ctx, cfg, dbLogger, true)
}
