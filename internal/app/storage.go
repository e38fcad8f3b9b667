package app

import (
	"context"
	"fmt"

	"airbnb-scraper/internal/config"
	"airbnb-scraper/internal/observability"
	"airbnb-scraper/internal/storage"
	"airbnb-scraper/internal/storage/mongo"
	"airbnb-scraper/internal/storage/mssql"
	"airbnb-scraper/internal/storage/postgres"
)

// OpenRepository хранилище по storage.driver
func OpenRepository(ctx context.Context, cfg config.StorageConfig, logger *observability.Logger) (storage.Repository, error) {
	logger.Info("Opening storage", "driver", cfg.Driver)

	var (
		repo storage.Repository
		err  error
	)
	switch cfg.Driver {
	case "mongo":
		repo, err = openMongo(cfg, logger)
	case "mssql":
		repo, err = openMSSQL(cfg, logger)
	case "postgres":
		repo, err = openPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Driver, err)
	}
	return repo, nil
}

// Обёртки не дают nil-указателю превратиться в не-nil интерфейс

func openMongo(cfg config.StorageConfig, logger *observability.Logger) (storage.Repository, error) {
	repo, err := mongo.NewRepository(cfg.DSN, cfg.Database, cfg.Collection, cfg.GetCommandTimeout(), logger)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func openMSSQL(cfg config.StorageConfig, logger *observability.Logger) (storage.Repository, error) {
	repo, err := mssql.NewRepository(cfg.DSN, cfg.GetCommandTimeout(), logger)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func openPostgres(ctx context.Context, cfg config.StorageConfig, logger *observability.Logger) (storage.Repository, error) {
	repo, err := postgres.NewRepository(ctx, cfg.DSN, cfg.GetCommandTimeout(), logger)
	if err != nil {
		return nil, err
	}
	return repo, nil
}
