package setup

import (
	"context"

	"go.uber.org/zap"

	"github.com/skysanctuary/warden/internal/database"
	"github.com/skysanctuary/warden/internal/redis"
	"github.com/skysanctuary/warden/internal/roster"
	"github.com/skysanctuary/warden/internal/setup/config"
	"github.com/skysanctuary/warden/internal/setup/logging"
)

// App bundles the core dependencies shared by every entrypoint.
type App struct {
	Config       *config.Config        // Application configuration
	Logger       *zap.Logger           // Main application logger
	DBLogger     *zap.Logger           // Database-specific logger
	DB           *database.Client      // Database connection pool
	RedisManager *redis.Manager        // Redis connection manager
	Hypixel      *roster.HypixelClient // Guild roster API client
	Mojang       *roster.MojangClient  // Identity resolution client
}

// InitializeApp bootstraps the application dependencies in order: config,
// logging, Redis, database with migrations, then the external API clients.
func InitializeApp(ctx context.Context, logDir string) (*App, error) {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger, dbLogger, err := logging.SetupLogging(logDir, cfg.Debug.LogLevel, cfg.Debug.MaxLogsToKeep)
	if err != nil {
		return nil, err
	}

	redisManager := redis.NewManager(&cfg.Redis, logger)

	db, err := database.NewConnection(&cfg.PostgreSQL, dbLogger, true)
	if err != nil {
		return nil, err
	}

	identityClient, err := redisManager.GetClient(redis.IdentityCacheDBIndex)
	if err != nil {
		return nil, err
	}

	hypixel := roster.NewHypixelClient(&cfg.Hypixel, logger)
	mojang := roster.NewMojangClient(&cfg.Roster, roster.NewRedisIdentityCache(identityClient), logger)

	return &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger,
		DB:           db,
		RedisManager: redisManager,
		Hypixel:      hypixel,
		Mojang:       mojang,
	}, nil
}

// CleanupApp flushes loggers and closes connections on shutdown.
func (a *App) CleanupApp() {
	if err := a.Logger.Sync(); err != nil {
		a.Logger.Error("Failed to sync logger", zap.Error(err))
	}
	if err := a.DBLogger.Sync(); err != nil {
		a.DBLogger.Error("Failed to sync DB logger", zap.Error(err))
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}
	a.RedisManager.Close()
}
