package main

import (
	"context"
	"fmt"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/config"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/database"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/logger"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/repository"

	"go.uber.org/zap"
)

// openStore opens the configured backend and brings its schema up to date.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Store, error) {
	log = logger.WithComponent(log, "store")
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		store, err := repository.OpenSQLite(cfg.Database.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		log.Info("sqlite store ready", zap.String("path", cfg.Database.SQLitePath))
		return store, nil
	default:
		pool, err := database.NewPool(ctx, cfg.Database.URL, log)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := database.RunMigrations(ctx, pool, log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("postgres store ready")
		return repository.NewPostgresStore(pool), nil
	}
}
