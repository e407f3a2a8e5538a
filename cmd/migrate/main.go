package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/flexprice/dunning/internal/config"
	"github.com/flexprice/dunning/internal/logger"
	"github.com/flexprice/dunning/internal/repository/postgres"
)

func main() {
	// Parse command line flags
	down := flag.Bool("down", false, "Roll back all migrations instead of applying them")
	flag.Parse()

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logger.Infow("Connecting to database",
		"host", cfg.Store.Postgres.Host,
		"database", cfg.Store.Postgres.DBName,
	)

	migrator, err := postgres.NewMigrator(cfg.Store.Postgres, logger)
	if err != nil {
		logger.Fatalw("Failed to create migrator", "error", err)
	}
	defer migrator.Close()

	if *down {
		err = migrator.Down()
	} else {
		err = migrator.Up()
	}
	if err != nil {
		logger.Fatalw("Migration failed", "error", err)
	}

	fmt.Println("Migration process completed")
}
