package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/flexprice/dunning/internal/config"
	"github.com/flexprice/dunning/internal/domain/snapshot"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/logger"
	"github.com/flexprice/dunning/internal/validator"
	r "github.com/redis/go-redis/v9"
)

// Store keeps documents as plain string values under
// <prefix>:<tenant>:<name>. SET replaces a value atomically.
type Store struct {
	rdb    *r.Client
	prefix string
	logger *logger.Logger
}

func NewClient(cfg config.RedisConfig) *r.Client {
	return r.NewClient(&r.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewStore(rdb *r.Client, prefix string, logger *logger.Logger) snapshot.Repository {
	if prefix == "" {
		prefix = "dunning"
	}
	return &Store{rdb: rdb, prefix: prefix, logger: logger}
}

func (s *Store) key(tenantID, name string) (string, error) {
	if err := validator.ValidateIdentifier("tenant_id", tenantID); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%s", s.prefix, strings.ToLower(tenantID), name), nil
}

func (s *Store) Get(ctx context.Context, tenantID, name string) ([]byte, error) {
	key, err := s.key(tenantID, name)
	if err != nil {
		return nil, err
	}

	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, r.Nil) {
		return nil, ierr.NewErrorf("document %s not found", name).
			WithReportableDetails(map[string]any{"tenant_id": tenantID, "document": name}).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Could not read redis key %s", key).
			Mark(ierr.ErrPersistence)
	}
	return data, nil
}

func (s *Store) Put(ctx context.Context, tenantID, name string, data []byte) error {
	key, err := s.key(tenantID, name)
	if err != nil {
		return err
	}

	if err := s.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return ierr.WithError(err).
			WithHintf("Could not write redis key %s", key).
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
	key, err := s.key(tenantID, name)
	if err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return ierr.WithError(err).
			WithHintf("Could not delete redis key %s", key).
			Mark(ierr.ErrPersistence)
	}
	return nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
