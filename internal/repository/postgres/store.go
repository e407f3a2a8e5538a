package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/flexprice/dunning/internal/config"
	"github.com/flexprice/dunning/internal/domain/snapshot"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/logger"
	"github.com/flexprice/dunning/internal/validator"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store keeps documents in the dunning_snapshots table, one row per
// (tenant, name). Each Put is a single-row upsert.
type Store struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

// NewPool opens a connection pool for cfg
func NewPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid postgres configuration").
			Mark(ierr.ErrValidation)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not connect to postgres").
			Mark(ierr.ErrDatabase)
	}
	return pool, nil
}

func NewStore(db *pgxpool.Pool, logger *logger.Logger) snapshot.Repository {
	return &Store{db: db, logger: logger}
}

func (s *Store) Get(ctx context.Context, tenantID, name string) ([]byte, error) {
	if err := validator.ValidateIdentifier("tenant_id", tenantID); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.QueryRow(ctx,
		`select data from dunning_snapshots where tenant_id = $1 and name = $2`,
		strings.ToLower(tenantID), name,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ierr.NewErrorf("document %s not found", name).
			WithReportableDetails(map[string]any{"tenant_id": tenantID, "document": name}).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Could not read snapshot %s", name).
			Mark(ierr.ErrPersistence)
	}
	return data, nil
}

func (s *Store) Put(ctx context.Context, tenantID, name string, data []byte) error {
	if err := validator.ValidateIdentifier("tenant_id", tenantID); err != nil {
		return err
	}

	_, err := s.db.Exec(ctx, `insert into dunning_snapshots (tenant_id, name, data, version, updated_at)
values ($1, $2, $3, 1, now())
on conflict (tenant_id, name) do update
set data = excluded.data, version = dunning_snapshots.version + 1, updated_at = now()`,
		strings.ToLower(tenantID), name, data,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Could not write snapshot %s", name).
			Mark(ierr.ErrPersistence)
	}

	s.logger.Debugw("snapshot written",
		"tenant_id", tenantID,
		"document", name,
		"bytes", len(data),
	)
	return nil
}

func (s *Store) Delete(ctx context.Context, tenantID, name string) error {
	if err := validator.ValidateIdentifier("tenant_id", tenantID); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx,
		`delete from dunning_snapshots where tenant_id = $1 and name = $2`,
		strings.ToLower(tenantID), name,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Could not delete snapshot %s", name).
			Mark(ierr.ErrPersistence)
	}
	return nil
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}
