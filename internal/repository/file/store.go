package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/flexprice/dunning/internal/domain/snapshot"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/logger"
	"github.com/flexprice/dunning/internal/validator"
	"github.com/moby/sys/atomicwriter"
)

// Store keeps every document in <base>/<tenant>/<name>.json. Writes go to a
// temporary file that replaces the target, so a crash leaves the previous
// document intact.
type Store struct {
	basePath string
	logger   *logger.Logger
}

func NewStore(basePath string, logger *logger.Logger) (snapshot.Repository, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Could not create snapshot directory %s", basePath).
			Mark(ierr.ErrPersistence)
	}
	return &Store{basePath: basePath, logger: logger}, nil
}

func (s *Store) path(tenantID, name string) (string, error) {
	if err := validator.ValidateIdentifier("tenant_id", tenantID); err != nil {
		return "", err
	}
	if err := validator.ValidateIdentifier("document", name); err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, strings.ToLower(tenantID), name+".json"), nil
}

func (s *Store) Get(ctx context.Context, tenantID, name string) ([]byte, error) {
	p, err := s.path(tenantID, name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, ierr.NewErrorf("document %s not found", name).
			WithReportableDetails(map[string]any{"tenant_id": tenantID, "document": name}).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Could not read %s", p).
			Mark(ierr.ErrPersistence)
	}
	return data, nil
}

func (s *Store) Put(ctx context.Context, tenantID, name string, data []byte) error {
	p, err := s.path(tenantID, name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return ierr.WithError(err).
			WithHintf("Could not create tenant directory for %s", tenantID).
			Mark(ierr.ErrPersistence)
	}
	if err := atomicwriter.WriteFile(p, data, 0o600); err != nil {
		return ierr.WithError(err).
			WithHintf("Could not write %s", p).
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
	p, err := s.path(tenantID, name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return ierr.WithError(err).
			WithHintf("Could not delete %s", p).
			Mark(ierr.ErrPersistence)
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}
