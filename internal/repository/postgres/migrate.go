package postgres

import (
	"database/sql"
	"embed"
	"errors"

	"github.com/flexprice/dunning/internal/config"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/logger"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded schema migrations
type Migrator struct {
	migrate *migrate.Migrate
	db      *sql.DB
	logger  *logger.Logger
}

func NewMigrator(cfg config.PostgresConfig, logger *logger.Logger) (*Migrator, error) {
	db, err := sql.Open("pgx", cfg.GetDSN())
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not open postgres connection").
			Mark(ierr.ErrDatabase)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		_ = db.Close()
		return nil, ierr.WithError(err).
			WithHint("Could not create migration driver").
			Mark(ierr.ErrDatabase)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, ierr.WithError(err).
			WithHint("Could not load embedded migrations").
			Mark(ierr.ErrSystem)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, ierr.WithError(err).
			WithHint("Could not create migrator").
			Mark(ierr.ErrDatabase)
	}

	return &Migrator{migrate: m, db: db, logger: logger}, nil
}

// Up runs all pending migrations
func (m *Migrator) Up() error {
	m.logger.Info("running migrations up")

	err := m.migrate.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("no migrations to apply")
		return nil
	}
	if err != nil {
		return ierr.WithError(err).
			WithHint("Migration up failed").
			Mark(ierr.ErrDatabase)
	}

	version, dirty, err := m.migrate.Version()
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	m.logger.Infow("migrations completed", "version", version, "dirty", dirty)
	return nil
}

// Down rolls back all migrations
func (m *Migrator) Down() error {
	m.logger.Info("running migrations down")

	err := m.migrate.Down()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return ierr.WithError(err).
			WithHint("Migration down failed").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return sourceErr
	}
	return dbErr
}
