package repository

import (
	"context"

	"github.com/flexprice/dunning/internal/config"
	"github.com/flexprice/dunning/internal/domain/snapshot"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/logger"
	fileRepo "github.com/flexprice/dunning/internal/repository/file"
	postgresRepo "github.com/flexprice/dunning/internal/repository/postgres"
	redisRepo "github.com/flexprice/dunning/internal/repository/redis"
	"github.com/flexprice/dunning/internal/types"
	"go.uber.org/fx"
)

// NewSnapshotRepository opens the snapshot backend selected by store.type
func NewSnapshotRepository(ctx context.Context, cfg *config.Configuration, logger *logger.Logger) (snapshot.Repository, error) {
	switch cfg.Store.Type {
	case types.StoreTypeFile:
		return fileRepo.NewStore(cfg.Store.File.BasePath, logger)
	case types.StoreTypeRedis:
		return redisRepo.NewStore(redisRepo.NewClient(cfg.Store.Redis), cfg.Store.Redis.KeyPrefix, logger), nil
	case types.StoreTypePostgres:
		pool, err := postgresRepo.NewPool(ctx, cfg.Store.Postgres)
		if err != nil {
			return nil, err
		}
		return postgresRepo.NewStore(pool, logger), nil
	default:
		return nil, ierr.NewErrorf("unsupported store type %q", cfg.Store.Type).
			WithHint("store.type must be one of file, redis or postgres").
			Mark(ierr.ErrValidation)
	}
}

// ProvideSnapshotRepository wires the repository into the fx lifecycle
func ProvideSnapshotRepository(lc fx.Lifecycle, cfg *config.Configuration, logger *logger.Logger) (snapshot.Repository, error) {
	repo, err := NewSnapshotRepository(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Infow("closing snapshot repository", "store_type", cfg.Store.Type)
			return repo.Close()
		},
	})
	return repo, nil
}
