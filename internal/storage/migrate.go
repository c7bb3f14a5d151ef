package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations brings the schema at dbPath up to date.
func RunMigrations(dbPath string) error {
	_, err := withMigrator(dbPath, func(m *migrate.Migrate) (uint, error) {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return 0, fmt.Errorf("run migrations: %w", err)
		}
		return 0, nil
	})
	return err
}

// MigrationVersion reports the applied schema version and whether the last
// migration left the schema dirty. Version 0 means no migration has run.
func MigrationVersion(dbPath string) (uint, bool, error) {
	var dirty bool
	v, err := withMigrator(dbPath, func(m *migrate.Migrate) (uint, error) {
		v, d, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		dirty = d
		return v, err
	})
	return v, dirty, err
}

func withMigrator(dbPath string, fn func(*migrate.Migrate) (uint, error)) (uint, error) {
	// Separate connection so the migrator can close it without touching the repository's pool.
	migrateDB, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return 0, fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("create sqlite driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	return fn(m)
}
