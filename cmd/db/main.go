package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/robalyx/starboard/cmd/db/commands"
	"github.com/robalyx/starboard/internal/database"
	"github.com/robalyx/starboard/internal/database/migrations"
	"github.com/robalyx/starboard/internal/redis"
	"github.com/robalyx/starboard/internal/setup/config"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	deps, cleanup, err := setupDependencies(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}
	defer cleanup()

	var cmds []*cli.Command
	cmds = append(cmds, commands.MigrationCommands(deps)...)
	cmds = append(cmds, commands.PremiumCommands(deps)...)
	cmds = append(cmds, commands.TargetCommands(deps)...)

	app := &cli.Command{
		Name:     "db",
		Usage:    "Database management tool",
		Commands: cmds,
	}

	return app.Run(ctx, os.Args)
}

// setupDependencies connects to PostgreSQL and Redis.
func setupDependencies(ctx context.Context) (*commands.CLIDependencies, func(), error) {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.NewConnection(ctx, &cfg.Common.PostgreSQL, logger, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisManager := redis.NewManager(&cfg.Common.Redis, logger)
	client, err := redisManager.Client(ctx, redis.PremiumDBIndex)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		redisManager.Close()
		db.Close()
		_ = logger.Sync()
	}

	return &commands.CLIDependencies{
		DB:       db,
		Migrator: migrate.NewMigrator(db.DB(), migrations.Migrations),
		Premium:  redis.NewPremiumSource(client, db.Store(), logger),
		Notifier: redis.NewConfigNotifier(client, logger),
		Logger:   logger,
	}, cleanup, nil
}
