package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver
)

var (
	ErrMissingMigrationsPath = errors.New("migrations path cannot be empty")
	ErrMissingDatabaseURL    = errors.New("database URL cannot be empty")
	ErrDirtyMigration        = errors.New("database schema is dirty, fix the failed migration manually")
)

// migrationSource accepts ./migrations/postgres as well as file://./migrations/postgres
func migrationSource(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}

// RunMigrations brings the ledger, event store, audit and alert outbox
// schema up to the latest version
func RunMigrations(databaseURL string, migrationsPath string) error {
	if migrationsPath == "" {
		return ErrMissingMigrationsPath
	}
	if databaseURL == "" {
		return ErrMissingDatabaseURL
	}

	m, err := migrate.New(migrationSource(migrationsPath), databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		if _, dirty, vErr := m.Version(); vErr == nil && dirty {
			upErr = errors.Join(ErrDirtyMigration, upErr)
		}
	} else {
		upErr = nil
	}

	sourceErr, dbErr := m.Close()
	if upErr != nil {
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}
	if sourceErr != nil {
		return fmt.Errorf("migration source error: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("migration database error: %w", dbErr)
	}

	return nil
}
