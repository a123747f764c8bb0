package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/skysanctuary/warden/internal/database/migrations"
	"github.com/skysanctuary/warden/internal/database/models"
	"github.com/skysanctuary/warden/internal/setup/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// Client represents the database connection and operations.
// It manages access to the repositories that handle specific data types.
type Client struct {
	db       *bun.DB
	logger   *zap.Logger
	progress *models.ProgressModel
}

// NewConnection establishes a new database connection and returns a Client
// instance. Migrations run unless the caller manages them itself.
func NewConnection(config *config.PostgreSQL, logger *zap.Logger, runMigrations bool) (*Client, error) {
	// Initialize database connection with config values
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithAddr(fmt.Sprintf("%s:%d", config.Host, config.Port)),
		pgdriver.WithUser(config.User),
		pgdriver.WithPassword(config.Password),
		pgdriver.WithDatabase(config.DBName),
		pgdriver.WithInsecure(true),
		pgdriver.WithApplicationName("warden"),
	))

	// Set connection pool settings
	sqldb.SetMaxOpenConns(config.MaxOpenConns)
	sqldb.SetMaxIdleConns(config.MaxIdleConns)
	sqldb.SetConnMaxLifetime(time.Duration(config.MaxLifetime) * time.Minute)
	sqldb.SetConnMaxIdleTime(time.Duration(config.MaxIdleTime) * time.Minute)

	// Create Bun db instance
	db := bun.NewDB(sqldb, pgdialect.New())

	if runMigrations {
		migrator := migrate.NewMigrator(db, migrations.Migrations)
		if err := migrator.Init(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to initialize migrator: %w", err)
		}

		if err := migrator.Lock(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to lock migrator: %w", err)
		}
		defer migrator.Unlock(context.Background()) //nolint:errcheck

		group, err := migrator.Migrate(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if !group.IsZero() {
			logger.Info("Successfully ran database migrations",
				zap.Int64("group", group.ID),
				zap.Int("migrations", len(group.Migrations)))
		}
	}

	client := &Client{
		db:       db,
		logger:   logger,
		progress: models.NewProgress(db, logger),
	}

	logger.Info("Database connection established")
	return client, nil
}

// DB exposes the underlying bun handle for tooling such as the migrator CLI.
func (c *Client) DB() *bun.DB {
	return c.db
}

// Close gracefully shuts down the database connection.
func (c *Client) Close() error {
	err := c.db.Close()
	if err != nil {
		c.logger.Error("Failed to close database connection", zap.Error(err))
		return err
	}
	c.logger.Info("Database connection closed")
	return nil
}

// Progress returns the repository for member progression operations.
func (c *Client) Progress() *models.ProgressModel {
	return c.progress
}
